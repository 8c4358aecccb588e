package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"potholeserver/internal/logger"
)

// ViewPath is the HTTP route serving stored images by name.
const ViewPath = "/api/potholes/view"

// ErrInvalidName reports an object name that would escape the store directory.
var ErrInvalidName = errors.New("invalid object name")

// FileStore keeps uploaded images in a local directory and hands out URLs
// pointing at the image view endpoint.
type FileStore struct {
	dir     string
	baseURL string
	mu      sync.Mutex
	logger  *logger.Logger
}

// NewFileStore creates the target directory if needed.
func NewFileStore(dir, publicBaseURL string, logger *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &FileStore{
		dir:     dir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  logger,
	}, nil
}

// Dir returns the directory images are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

// Put writes data under name and returns its public URL.
func (s *FileStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.Path(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Zapis przez plik tymczasowy, żeby podgląd nie dostał połowy obrazu
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to store %s: %w", name, err)
	}

	s.logger.Debug("Stored %s (%d bytes, %s)", name, len(data), contentType)
	return s.URL(name), nil
}

// Path resolves name inside the store directory.
func (s *FileStore) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// URL builds the public address of a stored object.
func (s *FileStore) URL(name string) string {
	return s.baseURL + ViewPath + "?image=" + url.QueryEscape(name)
}
