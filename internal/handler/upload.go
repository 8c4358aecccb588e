package handler

import (
	"net/http"

	"potholeserver/internal/config"
	"potholeserver/internal/dto"
	"potholeserver/internal/logger"
	"potholeserver/internal/service"
)

// UploadHandler accepts GPS fixes and camera frames on a single endpoint, selected by "type".
func UploadHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, logger, http.MethodPost) {
			return
		}

		upload, err := parseUpload(w, r, cfg.MaxUploadBytes())
		if err != nil {
			logger.Debug("Rejected upload: %v", err)
			writeRequestError(w, logger, err)
			return
		}

		switch u := upload.(type) {
		case *dto.GpsUpload:
			size := manager.RecordGps(u)
			writeJSON(w, logger, http.StatusOK, dto.GpsResponse{
				Status:    dto.StatusSuccess,
				Message:   "GPS data received",
				SessionID: u.SessionID,
				CacheSize: size,
			})

		case *dto.ImageUpload:
			result, err := manager.ProcessImage(r.Context(), u)
			if err != nil {
				status, msg := processingStatus(err)
				logger.Error("Error processing image for session %s: %v", u.SessionID, err)
				writeError(w, logger, status, msg)
				return
			}
			writeJSON(w, logger, http.StatusOK, dto.ImageResponse{
				Status:      dto.StatusSuccess,
				Message:     "Image processed",
				ImageResult: *result,
			})
		}
	}
}
