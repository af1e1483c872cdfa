package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// maxCacheAgeRequest is the PUT /cache/max-age body.
type maxCacheAgeRequest struct {
	MaxAgeMS int64 `json:"max_age_ms"`
}

// handleGetMaxCacheAge reports the engine's current freshness threshold.
func (s *Server) handleGetMaxCacheAge(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"max_age_ms": s.engine.MaxCacheAge().Milliseconds(),
	})
}

// handleSetMaxCacheAge adjusts the freshness threshold at runtime.
// The engine clamps to its floor; the response carries the applied value.
func (s *Server) handleSetMaxCacheAge(w http.ResponseWriter, r *http.Request) {
	var req maxCacheAgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.MaxAgeMS <= 0 {
		writeBadRequest(w, "max_age_ms must be positive")
		return
	}

	applied := s.engine.SetMaxCacheAge(time.Duration(req.MaxAgeMS) * time.Millisecond)
	s.logger.Info("max cache age updated",
		"requested_ms", req.MaxAgeMS,
		"applied_ms", applied.Milliseconds(),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"max_age_ms": applied.Milliseconds(),
	})
}
