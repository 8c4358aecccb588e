package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"potholeserver/internal/config"
	"potholeserver/internal/dto"
	"potholeserver/internal/logger"
	"potholeserver/internal/repository/sqlite"
	"potholeserver/internal/service"
	"potholeserver/internal/service/detection"
	"potholeserver/internal/service/gps"
	"potholeserver/internal/service/storage"
	"potholeserver/internal/service/upload"
)

type stubAnalyzer struct {
	ratio  float64
	err    error
	loaded bool
}

func (a *stubAnalyzer) Analyze([]byte, detection.Options) (*detection.Report, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &detection.Report{Width: 10, Height: 10, Ratio: a.ratio, Annotated: []byte("annotated")}, nil
}

func (a *stubAnalyzer) Loaded() bool { return a.loaded }

type env struct {
	cfg     *config.Config
	manager *service.Manager
	repo    *sqlite.PotholeRepository
	store   *storage.FileStore
	log     *logger.Logger
}

func newEnv(t *testing.T, analyzer detection.Analyzer) *env {
	t.Helper()
	dir := t.TempDir()
	log := logger.NewDiscard()

	cfg := &config.Config{
		InferenceSize:     640,
		GpsMatchTolerance: gps.DefaultTolerance,
		MaxUploadMB:       1,
		PersistTimeout:    time.Second,
	}

	db, err := sqlite.New(filepath.Join(dir, "potholes.db"))
	require.NoError(t, err)
	repo := sqlite.NewPotholeRepository(db)
	t.Cleanup(func() { repo.Close() })

	store, err := storage.NewFileStore(filepath.Join(dir, "images"), "", log)
	require.NoError(t, err)

	orchestrator := upload.NewOrchestrator(store, repo, log)
	manager := service.NewManager(cfg, gps.NewCache(100, 0), analyzer, orchestrator, nil, log)
	t.Cleanup(manager.Stop)

	return &env{cfg: cfg, manager: manager, repo: repo, store: store, log: log}
}

func multipartRequest(t *testing.T, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "frame.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestUploadHandler_GPS(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true})
	h := UploadHandler(e.manager, e.cfg, e.log)

	rec := serve(h, jsonRequest("/upload", `{"session_id":"s1","type":"gps","timestamp":100,"lat":1.0,"lon":2.0}`))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dto.GpsResponse](t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "GPS data received", resp.Message)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, 1, resp.CacheSize)

	form := url.Values{"session_id": {"s1"}, "type": {"gps"}, "timestamp": {"101"}, "lat": {"1.5"}, "lon": {"2.5"}}
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[dto.GpsResponse](t, rec).CacheSize)

	rec = serve(h, multipartRequest(t, "/upload", map[string]string{
		"session_id": "s1", "type": "gps", "timestamp": "102", "lat": "1", "lon": "2",
	}, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[dto.GpsResponse](t, rec).CacheSize)
}

func TestUploadHandler_Validation(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true})
	h := UploadHandler(e.manager, e.cfg, e.log)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `{broken`, "Invalid request format"},
		{"missing session", `{"type":"gps","timestamp":1,"lat":1,"lon":2}`, "Missing required fields"},
		{"missing type", `{"session_id":"s1","timestamp":1,"lat":1,"lon":2}`, "Missing required fields"},
		{"missing timestamp", `{"session_id":"s1","type":"gps","lat":1,"lon":2}`, "Missing required fields"},
		{"missing lat", `{"session_id":"s1","type":"gps","timestamp":1,"lon":2}`, "Missing GPS coordinates"},
		{"missing lon", `{"session_id":"s1","type":"gps","timestamp":1,"lat":1}`, "Missing GPS coordinates"},
		{"missing image", `{"session_id":"s1","type":"image","timestamp":1}`, "No image file provided"},
		{"unknown type", `{"session_id":"s1","type":"video","timestamp":1}`, "Invalid type. Must be 'gps' or 'image'"},
		{"fractional timestamp", `{"session_id":"s1","type":"gps","timestamp":1.5,"lat":1,"lon":2}`, "Invalid timestamp"},
		{"bad base64", `{"session_id":"s1","type":"image","timestamp":1,"image":"!!"}`, "Invalid image encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, jsonRequest("/upload", tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode[dto.ErrorResponse](t, rec).Error)
		})
	}

	// Rejected requests never touch the cache.
	assert.Equal(t, 0, e.manager.Health().TotalGpsPoints)
}

func TestUploadHandler_ZeroTimestampAccepted(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true})
	rec := serve(UploadHandler(e.manager, e.cfg, e.log),
		jsonRequest("/upload", `{"session_id":"s1","type":"gps","timestamp":0,"lat":1,"lon":2}`))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadHandler_MethodNotAllowed(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true})
	rec := serve(UploadHandler(e.manager, e.cfg, e.log), httptest.NewRequest(http.MethodGet, "/upload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUploadHandler_TooLarge(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true})
	big := strings.Repeat("A", 2<<20)
	rec := serve(UploadHandler(e.manager, e.cfg, e.log),
		jsonRequest("/upload", `{"session_id":"s1","type":"image","timestamp":1,"image":"`+big+`"}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body too large", decode[dto.ErrorResponse](t, rec).Error)
}

func TestUploadHandler_ImageEndToEnd(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true, ratio: 0.0345})
	h := UploadHandler(e.manager, e.cfg, e.log)

	rec := serve(h, jsonRequest("/upload", `{"session_id":"s1","type":"gps","timestamp":100,"lat":1.0,"lon":2.0}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, multipartRequest(t, "/upload", map[string]string{
		"session_id": "s1", "type": "image", "timestamp": "101",
	}, []byte("jpeg-bytes")))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[dto.ImageResponse](t, rec)
	assert.Equal(t, "Image processed", resp.Message)
	assert.True(t, resp.PotholeDetected)
	assert.Equal(t, 3.45, resp.DamagePercentage)
	assert.Equal(t, "s1", resp.SessionID)

	potholes, err := e.repo.GetAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, potholes, 1)
	assert.Equal(t, 1.0, potholes[0].Latitude)
	assert.Equal(t, 2.0, potholes[0].Longitude)
	assert.Equal(t, int64(101), potholes[0].CapturedAt)

	// The stored original is reachable through the view endpoint.
	imageURL, err := url.Parse(potholes[0].ImageURL)
	require.NoError(t, err)
	view := serve(ViewPotholeImageHandler(e.store, e.log), httptest.NewRequest(http.MethodGet, imageURL.String(), nil))
	require.Equal(t, http.StatusOK, view.Code)
	assert.Equal(t, []byte("jpeg-bytes"), view.Body.Bytes())

	// JSON form with a base64 image works the same way.
	body := `{"session_id":"s1","type":"image","timestamp":250,"image":"` + base64.StdEncoding.EncodeToString([]byte("x")) + `"}`
	rec = serve(h, jsonRequest("/upload", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dto.ImageResponse](t, rec).PotholeDetected)

	count, err := e.repo.GetTotalCount(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "no GPS match at t=250, nothing persisted")
}

func TestUploadHandler_ImageErrors(t *testing.T) {
	tests := []struct {
		name     string
		analyzer *stubAnalyzer
		status   int
		message  string
	}{
		{"undecodable", &stubAnalyzer{loaded: true, err: detection.ErrUndecodable}, http.StatusUnprocessableEntity, "Could not decode image"},
		{"model missing", &stubAnalyzer{loaded: false}, http.StatusServiceUnavailable, "Model not loaded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, tt.analyzer)
			rec := serve(UploadHandler(e.manager, e.cfg, e.log), multipartRequest(t, "/upload", map[string]string{
				"session_id": "s1", "type": "image", "timestamp": "1",
			}, []byte("junk")))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode[dto.ErrorResponse](t, rec).Error)
		})
	}
}

func TestAnnotateHandler(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true, ratio: 0.1})
	h := AnnotateHandler(e.manager, e.cfg, e.log)

	rec := serve(h, multipartRequest(t, "/test", nil, []byte("jpeg")))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dto.AnnotatedResponse](t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.True(t, strings.HasPrefix(resp.Filename, "test_"))
	assert.Contains(t, resp.ImageURL, resp.Filename)
	assert.Equal(t, 10.0, resp.DamagePercentage)

	data, err := os.ReadFile(filepath.Join(e.store.Dir(), resp.Filename))
	require.NoError(t, err)
	assert.Equal(t, []byte("annotated"), data)

	rec = serve(h, multipartRequest(t, "/test", map[string]string{"foo": "bar"}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No image file provided", decode[dto.ErrorResponse](t, rec).Error)
}

func TestAnnotateHandler_Errors(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true, err: detection.ErrUndecodable})
	rec := serve(AnnotateHandler(e.manager, e.cfg, e.log), multipartRequest(t, "/test", nil, []byte("junk")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Failed to process image", decode[dto.ErrorResponse](t, rec).Error)

	cfg := &config.Config{MaxUploadMB: 1}
	bare := service.NewManager(cfg, gps.NewCache(10, 0), &stubAnalyzer{loaded: true}, nil, nil, e.log)
	rec = serve(AnnotateHandler(bare, cfg, e.log), multipartRequest(t, "/test", nil, []byte("jpeg")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Storage not configured", decode[dto.ErrorResponse](t, rec).Error)
}

func TestHealthAndRoot(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true})
	serve(UploadHandler(e.manager, e.cfg, e.log), jsonRequest("/upload", `{"session_id":"a","type":"gps","timestamp":1,"lat":1,"lon":2}`))
	serve(UploadHandler(e.manager, e.cfg, e.log), jsonRequest("/upload", `{"session_id":"b","type":"gps","timestamp":1,"lat":1,"lon":2}`))

	rec := serve(HealthHandler(e.manager, e.log), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","model_loaded":true,"persistence_configured":true,"active_sessions":2,"total_gps_points":2}`,
		rec.Body.String())

	rec = serve(RootHandler(e.log), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"message":"Pothole Detection API is running"}`, rec.Body.String())

	rec = serve(RootHandler(e.log), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPotholesHandler(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true, ratio: 0.5})
	h := UploadHandler(e.manager, e.cfg, e.log)

	for _, ts := range []string{"100", "101", "102"} {
		serve(h, jsonRequest("/upload", `{"session_id":"s1","type":"gps","timestamp":`+ts+`,"lat":1,"lon":2}`))
		serve(h, multipartRequest(t, "/upload", map[string]string{"session_id": "s1", "type": "image", "timestamp": ts}, []byte("x")))
	}

	list := ListPotholesHandler(e.repo, e.log)
	rec := serve(list, httptest.NewRequest(http.MethodGet, "/api/potholes?session=s1&page=1&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dto.PotholeList](t, rec)
	assert.Len(t, resp.Potholes, 2)
	assert.Equal(t, 3, resp.Length)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Equal(t, 1, resp.CurrentPage)

	rec = serve(list, httptest.NewRequest(http.MethodGet, "/api/potholes?session=other", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"potholes":[]`)

	rec = serve(ListPotholesHandler(nil, e.log), httptest.NewRequest(http.MethodGet, "/api/potholes", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListPotholesHandler_ClampsPaging(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true})
	list := ListPotholesHandler(e.repo, e.log)

	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 1, defaultPageSize},
		{"limit capped", "?limit=5000", 1, maxPageSize},
		{"huge page capped", "?page=9223372036854775807&limit=100", maxPage, maxPageSize},
		{"negative falls back", "?page=-3&limit=-1", 1, defaultPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(list, httptest.NewRequest(http.MethodGet, "/api/potholes"+tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			resp := decode[dto.PotholeList](t, rec)
			assert.Equal(t, tt.wantPage, resp.CurrentPage)
			assert.Equal(t, tt.wantLimit, resp.Limit)
			assert.Empty(t, resp.Potholes)
		})
	}
}

func TestViewPotholeImageHandler_Errors(t *testing.T) {
	e := newEnv(t, &stubAnalyzer{loaded: true})
	h := ViewPotholeImageHandler(e.store, e.log)

	assert.Equal(t, http.StatusBadRequest, serve(h, httptest.NewRequest(http.MethodGet, "/api/potholes/view", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, httptest.NewRequest(http.MethodGet, "/api/potholes/view?image=..%2Fsecret", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(h, httptest.NewRequest(http.MethodGet, "/api/potholes/view?image=missing.jpg", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(ViewPotholeImageHandler(nil, e.log), httptest.NewRequest(http.MethodGet, "/api/potholes/view?image=a.jpg", nil)).Code)
}

func TestLogsHandlers(t *testing.T) {
	dir := t.TempDir()
	log, err := logger.NewLogger(&config.Config{LogDirectory: dir, LogLevel: "INFO"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, logger.InfoFile), []byte("hello\n"), 0644))

	rec := serve(ShowLogsHandler(log, logger.InfoFile), httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello")

	rec = serve(ClearLogsHandler(log, logger.InfoFile), httptest.NewRequest(http.MethodPost, "/logs/info/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(ClearLogsHandler(log, logger.InfoFile), httptest.NewRequest(http.MethodGet, "/logs/info/clear", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(ShowLogsHandler(logger.NewDiscard(), logger.InfoFile), httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
