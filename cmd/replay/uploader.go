package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type uploader struct {
	baseURL string
	apiKey  string
	session string
	http    *http.Client
}

type summary struct {
	gps, images, potholes, failed int
}

type uploadReply struct {
	Error            string  `json:"error"`
	CacheSize        int     `json:"cache_size"`
	PotholeDetected  bool    `json:"pothole_detected"`
	DamagePercentage float64 `json:"damage_percentage"`
}

func (u *uploader) replay(steps []step, out io.Writer) (summary, error) {
	var s summary
	for _, st := range steps {
		var reply uploadReply
		var status int
		var err error

		if st.gps != nil {
			s.gps++
			status, err = u.sendGPS(*st.gps, &reply)
		} else {
			s.images++
			status, err = u.sendImage(*st.image, &reply)
		}
		if err != nil {
			return s, err
		}

		switch {
		case status != http.StatusOK:
			s.failed++
			fmt.Fprintf(out, "❌ t=%d HTTP %d: %s\n", st.timestamp(), status, reply.Error)
		case st.gps != nil:
			fmt.Fprintf(out, "📍 t=%d gps (%f, %f) cache=%d\n", st.gps.Timestamp, st.gps.Lat, st.gps.Lon, reply.CacheSize)
		case reply.PotholeDetected:
			s.potholes++
			fmt.Fprintf(out, "🕳️  t=%d %s pothole, damage %.2f%%\n", st.image.Timestamp, filepath.Base(st.image.Path), reply.DamagePercentage)
		default:
			fmt.Fprintf(out, "✅ t=%d %s clear\n", st.image.Timestamp, filepath.Base(st.image.Path))
		}
	}
	return s, nil
}

func (u *uploader) sendGPS(row gpsRow, reply *uploadReply) (int, error) {
	body, err := json.Marshal(map[string]any{
		"session_id": u.session,
		"type":       "gps",
		"timestamp":  row.Timestamp,
		"lat":        row.Lat,
		"lon":        row.Lon,
	})
	if err != nil {
		return 0, err
	}
	return u.post(bytes.NewReader(body), "application/json", reply)
}

func (u *uploader) sendImage(f frame, reply *uploadReply) (int, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("session_id", u.session)
	mw.WriteField("type", "image")
	mw.WriteField("timestamp", strconv.FormatInt(f.Timestamp, 10))
	part, err := mw.CreateFormFile("image", filepath.Base(f.Path))
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(data); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}
	return u.post(&body, mw.FormDataContentType(), reply)
}

func (u *uploader) post(body io.Reader, contentType string, reply *uploadReply) (int, error) {
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(u.baseURL, "/")+"/upload", body)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if u.apiKey != "" {
		req.Header.Set("X-API-Key", u.apiKey)
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		reply.Error = "unreadable response"
	}
	return resp.StatusCode, nil
}
