package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"potholeserver/internal/dto"
	"potholeserver/internal/logger"
	"potholeserver/internal/service/detection"
)

// writeJSON encodes data with the given status.
func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, logger *logger.Logger, status int, message string) {
	writeJSON(w, logger, status, dto.ErrorResponse{Error: message})
}

// writeRequestError reports a *RequestError, or a generic 400 for other errors.
func writeRequestError(w http.ResponseWriter, logger *logger.Logger, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		writeError(w, logger, reqErr.Status, reqErr.Message)
		return
	}
	writeError(w, logger, http.StatusBadRequest, msgInvalidFormat)
}

// processingStatus maps analysis errors to a status and message.
func processingStatus(err error) (int, string) {
	switch {
	case errors.Is(err, detection.ErrUndecodable):
		return http.StatusUnprocessableEntity, "Could not decode image"
	case errors.Is(err, detection.ErrModelNotLoaded):
		return http.StatusServiceUnavailable, "Model not loaded"
	default:
		return http.StatusInternalServerError, "Image processing failed"
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, logger *logger.Logger, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, logger, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
