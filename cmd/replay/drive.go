package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type gpsRow struct {
	Timestamp int64
	Lat, Lon  float64
}

type frame struct {
	Timestamp int64
	Path      string
}

// step is one upload; exactly one of gps or image is set.
type step struct {
	gps   *gpsRow
	image *frame
}

func (s step) timestamp() int64 {
	if s.gps != nil {
		return s.gps.Timestamp
	}
	return s.image.Timestamp
}

// readGPS parses timestamp,lat,lon rows. A non-numeric first row is treated as a header.
func readGPS(r io.Reader) ([]gpsRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	var rows []gpsRow
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid GPS csv: %w", err)
		}

		row, err := parseGPSRecord(record)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("invalid GPS row %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseGPSRecord(record []string) (gpsRow, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return gpsRow{}, fmt.Errorf("timestamp: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return gpsRow{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return gpsRow{}, fmt.Errorf("lon: %w", err)
	}
	return gpsRow{Timestamp: ts, Lat: lat, Lon: lon}, nil
}

// scanFrames lists <timestamp>.jpg files and counts the files it skipped.
func scanFrames(dir string) ([]frame, int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read images directory: %w", err)
	}

	var frames []frame
	skipped := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".jpg" && ext != ".jpeg" {
			skipped++
			continue
		}

		ts, err := strconv.ParseInt(strings.TrimSuffix(name, filepath.Ext(name)), 10, 64)
		if err != nil {
			skipped++
			continue
		}
		frames = append(frames, frame{Timestamp: ts, Path: filepath.Join(dir, name)})
	}
	return frames, skipped, nil
}

// merge orders uploads by timestamp; on equal timestamps GPS goes first so the frame can match it.
func merge(fixes []gpsRow, frames []frame) []step {
	steps := make([]step, 0, len(fixes)+len(frames))
	for i := range fixes {
		steps = append(steps, step{gps: &fixes[i]})
	}
	for i := range frames {
		steps = append(steps, step{image: &frames[i]})
	}

	sort.SliceStable(steps, func(i, j int) bool {
		ti, tj := steps[i].timestamp(), steps[j].timestamp()
		if ti != tj {
			return ti < tj
		}
		return steps[i].gps != nil && steps[j].gps == nil
	})
	return steps
}
