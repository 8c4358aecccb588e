package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"potholeserver/internal/dto"
)

// Request validation messages.
const (
	msgInvalidFormat    = "Invalid request format"
	msgMissingFields    = "Missing required fields"
	msgMissingGPS       = "Missing GPS coordinates"
	msgNoImage          = "No image file provided"
	msgInvalidType      = "Invalid type. Must be 'gps' or 'image'"
	msgInvalidTimestamp = "Invalid timestamp"
	msgInvalidGPS       = "Invalid GPS coordinates"
	msgInvalidImage     = "Invalid image encoding"
	msgTooLarge         = "Request body too large"
)

// RequestError is a rejected request; nothing has been mutated when it is returned.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func badRequest(msg string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: msg}
}

// rawUpload holds the fields as received, before validation.
type rawUpload struct {
	SessionID string
	Type      string
	Timestamp string
	Lat       *float64
	Lon       *float64
	Image     []byte
	HasImage  bool
}

type jsonUpload struct {
	SessionID string       `json:"session_id"`
	Type      string       `json:"type"`
	Timestamp *json.Number `json:"timestamp"`
	Lat       *float64     `json:"lat"`
	Lon       *float64     `json:"lon"`
	Image     *string      `json:"image"` // base64
}

// parseUpload reads a multipart, url-encoded or JSON body into a validated upload.
func parseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (dto.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var raw *rawUpload
	var err error
	switch mediaType {
	case "multipart/form-data":
		raw, err = parseMultipart(r, maxBytes)
	case "application/x-www-form-urlencoded":
		raw, err = parseForm(r)
	default:
		raw, err = parseJSON(r)
	}
	if err != nil {
		return nil, err
	}
	return raw.validate()
}

func parseMultipart(r *http.Request, maxBytes int64) (*rawUpload, error) {
	if err := r.ParseMultipartForm(min(maxBytes, 32<<20)); err != nil {
		return nil, bodyError(err)
	}

	raw, err := formFields(r)
	if err != nil {
		return nil, err
	}

	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return raw, nil
	case err != nil:
		return nil, bodyError(err)
	}
	defer file.Close()

	raw.Image, err = io.ReadAll(file)
	if err != nil {
		return nil, bodyError(err)
	}
	raw.HasImage = len(raw.Image) > 0
	return raw, nil
}

func parseForm(r *http.Request) (*rawUpload, error) {
	if err := r.ParseForm(); err != nil {
		return nil, bodyError(err)
	}
	return formFields(r)
}

func formFields(r *http.Request) (*rawUpload, error) {
	raw := &rawUpload{
		SessionID: strings.TrimSpace(r.FormValue("session_id")),
		Type:      strings.TrimSpace(r.FormValue("type")),
		Timestamp: strings.TrimSpace(r.FormValue("timestamp")),
	}

	var err error
	if raw.Lat, err = formFloat(r, "lat"); err != nil {
		return nil, err
	}
	if raw.Lon, err = formFloat(r, "lon"); err != nil {
		return nil, err
	}
	return raw, nil
}

func formFloat(r *http.Request, key string) (*float64, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, badRequest(msgInvalidGPS)
	}
	return &f, nil
}

func parseJSON(r *http.Request) (*rawUpload, error) {
	var body jsonUpload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, bodyError(err)
		}
		return nil, badRequest(msgInvalidFormat)
	}

	raw := &rawUpload{
		SessionID: strings.TrimSpace(body.SessionID),
		Type:      strings.TrimSpace(body.Type),
		Lat:       body.Lat,
		Lon:       body.Lon,
	}
	if body.Timestamp != nil {
		raw.Timestamp = body.Timestamp.String()
	}
	if body.Image != nil && *body.Image != "" {
		data, err := base64.StdEncoding.DecodeString(*body.Image)
		if err != nil {
			return nil, badRequest(msgInvalidImage)
		}
		raw.Image = data
		raw.HasImage = len(data) > 0
	}
	return raw, nil
}

// validate turns the raw fields into one of the two upload kinds.
func (raw *rawUpload) validate() (dto.Upload, error) {
	if raw.SessionID == "" || raw.Type == "" || raw.Timestamp == "" {
		return nil, badRequest(msgMissingFields)
	}

	ts, err := strconv.ParseInt(raw.Timestamp, 10, 64)
	if err != nil {
		return nil, badRequest(msgInvalidTimestamp)
	}

	switch raw.Type {
	case dto.KindGPS:
		if raw.Lat == nil || raw.Lon == nil {
			return nil, badRequest(msgMissingGPS)
		}
		return &dto.GpsUpload{
			SessionID: raw.SessionID,
			Timestamp: ts,
			Latitude:  *raw.Lat,
			Longitude: *raw.Lon,
		}, nil

	case dto.KindImage:
		if !raw.HasImage {
			return nil, badRequest(msgNoImage)
		}
		return &dto.ImageUpload{
			SessionID: raw.SessionID,
			Timestamp: ts,
			Image:     raw.Image,
		}, nil

	default:
		return nil, badRequest(msgInvalidType)
	}
}

// readImageFile reads the "image" part of a multipart request.
func readImageFile(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(min(maxBytes, 32<<20)); err != nil {
		return nil, bodyError(err)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, badRequest(msgNoImage)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, bodyError(err)
	}
	if len(data) == 0 {
		return nil, badRequest(msgNoImage)
	}
	return data, nil
}

func bodyError(err error) *RequestError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &RequestError{Status: http.StatusRequestEntityTooLarge, Message: msgTooLarge}
	}
	return badRequest(msgInvalidFormat)
}
