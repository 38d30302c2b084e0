package server

import (
	"context"
	"fmt"
	"image"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lootlens/lootlens/internal/catalog"
	"github.com/lootlens/lootlens/internal/feedback"
	"github.com/lootlens/lootlens/internal/pipeline"
	"github.com/lootlens/lootlens/internal/strategy"
)

// detectorInterface defines the methods the server needs from a detector.
type detectorInterface interface {
	Detect(ctx context.Context, img image.Image, kinds ...catalog.Kind) (*pipeline.Detection, error)
	RecordCorrection(detectedID, actualID string, confidence float64, imageHash string)
	CacheStats() (hits, misses uint64, entries int)
	Close()
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	detector    detectorInterface
	strategies  *strategy.Engine
	ledger      *feedback.Ledger
	rateLimiter *RateLimiter
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	RateLimit      *RateLimitConfig // nil disables rate limiting
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// DetectResponse wraps a detection result for the HTTP API.
type DetectResponse struct {
	Success bool                `json:"success"`
	Result  *pipeline.Detection `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// StrategyResponse reports the active strategy.
type StrategyResponse struct {
	Strategy strategy.Strategy `json:"strategy"`
}

// StrategyUpdateRequest selects a preset or supplies a custom strategy.
type StrategyUpdateRequest struct {
	Preset   string             `json:"preset,omitempty"`
	Strategy *strategy.Strategy `json:"strategy,omitempty"`
}

// StrategiesResponse lists the available presets.
type StrategiesResponse struct {
	Active  string                       `json:"active"`
	Presets map[string]strategy.Strategy `json:"presets"`
}

// CorrectionRequest records a single user correction.
type CorrectionRequest struct {
	DetectedID string  `json:"detectedId"`
	ActualID   string  `json:"actualId"`
	Confidence float64 `json:"confidence"`
	ImageHash  string  `json:"imageHash,omitempty"`
}

// ErrorResponse is the generic error payload.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a new detection server instance. It builds the pipeline
// from the provided configuration.
func NewServer(config Config) (*Server, error) {
	cfg := config.PipelineConfig
	det, err := pipeline.NewBuilder().
		WithCatalogPath(cfg.CatalogPath).
		WithStrategy(cfg.StrategyName).
		WithOCRConfig(cfg.OCR).
		WithCacheTTL(cfg.CacheTTL).
		WithCleanupInterval(cfg.CleanupInterval).
		WithTimeout(cfg.Timeout).
		WithMaxRetries(cfg.MaxRetries).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	s := &Server{
		detector:    det,
		strategies:  det.Strategies,
		ledger:      det.Ledger,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}
	if config.RateLimit != nil {
		s.rateLimiter = NewRateLimiter(*config.RateLimit)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.detector != nil {
		s.detector.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/detect", s.corsMiddleware(s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/api/v1/strategy", s.corsMiddleware(s.strategyHandler))
	mux.HandleFunc("/api/v1/strategies", s.corsMiddleware(s.strategiesHandler))
	mux.HandleFunc("/api/v1/corrections", s.corsMiddleware(s.correctionsHandler))
	mux.HandleFunc("/ws/batch", s.batchWebSocketHandler)
}
