package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"

	"github.com/lootlens/lootlens/internal/catalog"
	"github.com/lootlens/lootlens/internal/feedback"
	"github.com/lootlens/lootlens/internal/strategy"
	"github.com/lootlens/lootlens/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// detectHandler processes screenshot detection requests.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeError(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeError(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		s.writeError(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	kinds, err := parseKinds(r.FormValue("kinds"))
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	det, err := s.detector.Detect(ctx, img, kinds...)
	if err != nil {
		detectRequestsTotal.WithLabelValues("error").Inc()
		slog.Error("Detection failed", "error", err)
		s.writeError(w, "Detection failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	detectRequestsTotal.WithLabelValues("success").Inc()
	detectDuration.Observe(time.Since(start).Seconds())
	detectResultCount.Observe(float64(len(det.Results)))

	hits, misses, entries := s.detector.CacheStats()
	cacheHitsTotal.Set(float64(hits))
	cacheMissesTotal.Set(float64(misses))
	cacheEntries.Set(float64(entries))

	s.writeJSON(w, http.StatusOK, DetectResponse{Success: true, Result: det})
}

// strategyHandler reads or replaces the active strategy.
func (s *Server) strategyHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, StrategyResponse{Strategy: s.strategies.Active()})
	case http.MethodPut:
		var req StrategyUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		switch {
		case req.Preset != "":
			if err := s.strategies.SetActiveName(req.Preset); err != nil {
				s.writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		case req.Strategy != nil:
			s.strategies.SetActive(*req.Strategy)
		default:
			s.writeError(w, "Either preset or strategy is required", http.StatusBadRequest)
			return
		}
		slog.Info("Strategy changed", "name", s.strategies.Active().Name)
		s.writeJSON(w, http.StatusOK, StrategyResponse{Strategy: s.strategies.Active()})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// strategiesHandler lists all known presets and the active name.
func (s *Server) strategiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, StrategiesResponse{
		Active:  s.strategies.Active().Name,
		Presets: strategy.Presets(),
	})
}

// correctionsHandler exports the correction ledger (GET) or ingests
// corrections (POST). A POST body holding a JSON array replaces the ledger;
// a single object records one correction.
func (s *Server) correctionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.ledger.Export()
		if err != nil {
			s.writeError(w, "Export failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, 10*1024*1024))
		if err != nil {
			s.writeError(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := s.ledger.Import(trimmed); err != nil {
				if errors.Is(err, feedback.ErrInvalidFormat) {
					s.writeError(w, "Invalid corrections format", http.StatusBadRequest)
					return
				}
				s.writeError(w, "Import failed", http.StatusInternalServerError)
				return
			}
			s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": s.ledger.Len()})
			return
		}

		var req CorrectionRequest
		if err := json.Unmarshal(trimmed, &req); err != nil || req.DetectedID == "" || req.ActualID == "" {
			s.writeError(w, "Invalid correction", http.StatusBadRequest)
			return
		}
		s.detector.RecordCorrection(req.DetectedID, req.ActualID, req.Confidence, req.ImageHash)
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": s.ledger.Len()})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// parseKinds converts a comma-separated kinds form value into catalog kinds.
func parseKinds(value string) ([]catalog.Kind, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	kinds := make([]catalog.Kind, 0, len(parts))
	for _, p := range parts {
		k, err := catalog.ParseKind(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, ErrorResponse{Success: false, Error: message})
}
