package handler

import (
	"errors"
	"net/http"

	"potholeserver/internal/config"
	"potholeserver/internal/dto"
	"potholeserver/internal/logger"
	"potholeserver/internal/service"
	"potholeserver/internal/service/detection"
)

// AnnotateHandler annotates an uploaded image and stores the result, no GPS needed.
func AnnotateHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, logger, http.MethodPost) {
			return
		}

		image, err := readImageFile(w, r, cfg.MaxUploadBytes())
		if err != nil {
			writeRequestError(w, logger, err)
			return
		}

		result, err := manager.AnnotateAndStore(r.Context(), image)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrPersistenceNotConfigured):
			writeError(w, logger, http.StatusInternalServerError, "Storage not configured")
			return
		case errors.Is(err, detection.ErrUndecodable), errors.Is(err, service.ErrAnnotationFailed):
			writeError(w, logger, http.StatusBadRequest, "Failed to process image")
			return
		case errors.Is(err, detection.ErrModelNotLoaded):
			writeError(w, logger, http.StatusServiceUnavailable, "Model not loaded")
			return
		default:
			logger.Error("Annotated upload failed: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Upload failed: "+err.Error())
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.AnnotatedResponse{
			Status:          dto.StatusSuccess,
			Message:         "Annotated image uploaded",
			AnnotatedResult: *result,
		})
	}
}
