package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/ocr"
	"github.com/MeKo-Tech/cellgrid/internal/session"
	"github.com/MeKo-Tech/cellgrid/internal/workspace"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	service        *session.Service
	validator      ocr.Validator
	rateLimiter    *RateLimiter
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	overlayEnabled bool
}

// RateLimitConfig holds per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	CORSOrigin        string
	MaxUploadMB       int64
	TimeoutSec        int
	AllowedExtensions []string
	OverlayEnabled    bool
	RateLimit         RateLimitConfig
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Type    string         `json:"type"`
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// SessionResponse is returned when a session is created or fetched.
type SessionResponse struct {
	ID   string         `json:"id"`
	View workspace.View `json:"view"`
}

// SelectionRequest toggles the selection of a cell.
type SelectionRequest struct {
	DocumentID string `json:"documentId"`
	CellID     string `json:"cellId"`
}

// SelectionResponse reports the canonical cell and whether it is selected now.
type SelectionResponse struct {
	Cell     workspace.CellRef `json:"cell"`
	Selected bool              `json:"selected"`
}

// TagRequest sets the sensor tag of a cell.
type TagRequest struct {
	SensorTag string `json:"sensorTag"`
}

// TagResponse reports the cell the tag was stored on.
type TagResponse struct {
	Cell      workspace.CellRef `json:"cell"`
	SensorTag string            `json:"sensorTag"`
}

// SaveResponse is the payload handed to the storage sink.
type SaveResponse struct {
	Saved   int               `json:"saved"`
	Entries []workspace.Entry `json:"entries"`
}

// NewServer creates the API server on top of a session service.
func NewServer(config Config, service *session.Service) (*Server, error) {
	if service == nil {
		return nil, errors.New("session service is required")
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = ocr.DefaultMaxBytes >> 20
	}

	s := &Server{
		service: service,
		validator: ocr.Validator{
			MaxBytes:   maxUpload << 20,
			Extensions: config.AllowedExtensions,
		},
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    maxUpload,
		timeoutSec:     config.TimeoutSec,
		overlayEnabled: config.OverlayEnabled,
	}
	if config.RateLimit.Enabled {
		rl := config.RateLimit
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// Run performs background housekeeping until ctx is done.
func (s *Server) Run(ctx context.Context) {
	if s.rateLimiter != nil {
		s.rateLimiter.Run(ctx, time.Hour)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("GET /metrics", metricsHandler())

	api := func(h http.HandlerFunc) http.HandlerFunc {
		return s.corsMiddleware(s.rateLimitMiddleware(s.timeoutMiddleware(h)))
	}

	mux.HandleFunc("POST /api/analyze", api(s.analyzeHandler))
	mux.HandleFunc("POST /api/sessions", api(s.createSessionHandler))
	mux.HandleFunc("GET /api/sessions/{id}", api(s.getSessionHandler))
	mux.HandleFunc("DELETE /api/sessions/{id}", api(s.deleteSessionHandler))
	mux.HandleFunc("POST /api/sessions/{id}/documents", api(s.uploadHandler))
	mux.HandleFunc("POST /api/sessions/{id}/crops", api(s.cropHandler))
	mux.HandleFunc("GET /api/sessions/{id}/documents/{doc}/overlay.png", api(s.overlayHandler))
	mux.HandleFunc("POST /api/sessions/{id}/selection", api(s.selectionHandler))
	mux.HandleFunc("PUT /api/sessions/{id}/tags/{doc}/{cell}", api(s.setTagHandler))
	mux.HandleFunc("DELETE /api/sessions/{id}/tags/{doc}/{cell}", api(s.deleteTagHandler))
	mux.HandleFunc("POST /api/sessions/{id}/fields", api(s.addFieldHandler))
	mux.HandleFunc("PUT /api/sessions/{id}/fields/{field}", api(s.updateFieldHandler))
	mux.HandleFunc("DELETE /api/sessions/{id}/fields/{field}", api(s.deleteFieldHandler))
	mux.HandleFunc("POST /api/sessions/{id}/save", api(s.saveHandler))
	mux.HandleFunc("GET /api/sessions/{id}/save", api(s.savedHandler))
	mux.HandleFunc("GET /api/sessions/{id}/events", s.eventsHandler)

	// Preflight requests for method-qualified routes.
	mux.HandleFunc("OPTIONS /api/", s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {}))
}
