package handler

import (
	"net/http"
	"os"

	"potholeserver/internal/dto"
	"potholeserver/internal/logger"
	"potholeserver/internal/model"
	"potholeserver/internal/repository"
	"potholeserver/internal/service/storage"
)

const (
	defaultPageSize = 24
	maxPageSize     = 100
	maxPage         = 100000 // keeps (page-1)*limit far from overflow
)

// ListPotholesHandler returns persisted potholes newest first, paginated, optionally by session.
func ListPotholesHandler(repo repository.PotholeRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			writeError(w, logger, http.StatusServiceUnavailable, "Database not configured")
			return
		}

		q := r.URL.Query()
		page := min(atoiDefault(q.Get("page"), 1), maxPage)
		limit := min(atoiDefault(q.Get("limit"), defaultPageSize), maxPageSize)

		filter := &dto.PotholeFilter{
			SessionID: q.Get("session"),
			Limit:     limit,
			Offset:    (page - 1) * limit,
		}

		potholes, err := repo.GetAll(r.Context(), filter)
		if err != nil {
			logger.Error("Error querying potholes from database: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		totalCount, err := repo.GetTotalCount(r.Context(), filter)
		if err != nil {
			logger.Error("Error counting potholes: %v", err)
			totalCount = len(potholes)
		}

		if potholes == nil {
			potholes = []model.Pothole{}
		}

		writeJSON(w, logger, http.StatusOK, dto.PotholeList{
			Potholes:    potholes,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// ViewPotholeImageHandler serves a single stored image given by the "image" query parameter.
func ViewPotholeImageHandler(store *storage.FileStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, logger, http.StatusNotFound, "Image storage not configured")
			return
		}

		image := r.URL.Query().Get("image")
		if image == "" {
			writeError(w, logger, http.StatusBadRequest, "Image parameter is required")
			return
		}

		path, err := store.Path(image)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, "Invalid image name")
			return
		}
		if _, err := os.Stat(path); err != nil {
			writeError(w, logger, http.StatusNotFound, "Image not found")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, path)
	}
}
