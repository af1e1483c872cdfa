package api

import (
	"errors"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/enviro-core/internal/sensor"
	"github.com/nerrad567/enviro-core/internal/telemetry"
)

// sensorSummary is the JSON shape of one sensor in list/detail responses.
type sensorSummary struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Connected    bool     `json:"connected"`
	Capabilities []string `json:"capabilities"`
}

// readingResponse is the JSON shape of one cached measurement. Value is
// null for a sensor that has never produced a value (the cache's NaN
// sentinel, which encoding/json cannot represent).
type readingResponse struct {
	Sensor    string   `json:"sensor"`
	Kind      string   `json:"kind"`
	Value     *float64 `json:"value"`
	Timestamp string   `json:"timestamp,omitempty"`
	Valid     bool     `json:"valid"`
	AgeMS     int64    `json:"age_ms"`
}

func summarise(s sensor.Sensor) sensorSummary {
	caps := s.Capabilities()
	kinds := make([]string, len(caps))
	for i, c := range caps {
		kinds[i] = string(c)
	}
	return sensorSummary{
		Name:         s.Name(),
		Type:         s.Type(),
		Connected:    s.Connected(),
		Capabilities: kinds,
	}
}

// handleListSensors returns every registered sensor, sorted by name.
func (s *Server) handleListSensors(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.All()
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })

	sensors := make([]sensorSummary, 0, len(all))
	for _, sn := range all {
		sensors = append(sensors, summarise(sn))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(sensors),
		"sensors": sensors,
	})
}

// handleGetSensor returns one sensor with its current cached readings.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	sn, ok := s.registry.FindByName(name)
	if !ok {
		writeNotFound(w, "sensor not found: "+name)
		return
	}

	// Collect whatever the cache currently holds; capabilities that have
	// never been read simply do not appear.
	readings := make(map[string]readingResponse)
	for _, kind := range sn.Capabilities() {
		reading, err := s.engine.GetReading(name, kind)
		if err != nil {
			continue
		}
		readings[string(kind)] = toReadingResponse(name, kind, reading)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sensor":   summarise(sn),
		"readings": readings,
	})
}

// handleGetReading returns one cached measurement through the engine's
// bounded-wait read path.
func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	kind, err := sensor.ParseCapability(chi.URLParam(r, "kind"))
	if err != nil {
		writeBadRequest(w, "unknown measurement kind: "+chi.URLParam(r, "kind"))
		return
	}

	reading, err := s.engine.GetReadingSafe(r.Context(), name, kind)
	if err != nil {
		writeReadError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReadingResponse(name, kind, reading))
}

// handleGetHistory returns persisted readings for a sensor, newest first.
// Query parameters: kind (required), limit (optional).
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history store is not configured")
		return
	}

	name := chi.URLParam(r, "name")
	if _, ok := s.registry.FindByName(name); !ok {
		writeNotFound(w, "sensor not found: "+name)
		return
	}

	kindStr := r.URL.Query().Get("kind")
	kind, err := sensor.ParseCapability(kindStr)
	if err != nil {
		writeBadRequest(w, "unknown measurement kind: "+kindStr)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
	}

	points, err := s.history.History(r.Context(), name, kind, limit)
	if err != nil {
		s.logger.Error("history query failed", "sensor", name, "kind", kind, "error", err)
		writeInternalError(w, "history query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sensor": name,
		"kind":   string(kind),
		"count":  len(points),
		"points": points,
	})
}

// handleReconnect re-initialises one sensor and refreshes its cache entries.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.engine.Reconnect(r.Context(), name); err != nil {
		writeReadError(w, err)
		return
	}

	sn, _ := s.registry.FindByName(name)
	writeJSON(w, http.StatusOK, map[string]any{
		"sensor":    name,
		"connected": sn != nil && sn.Connected(),
	})
}

func toReadingResponse(name string, kind sensor.Capability, r sensor.Reading) readingResponse {
	resp := readingResponse{
		Sensor: name,
		Kind:   string(kind),
		Valid:  r.Valid,
	}
	if !math.IsNaN(r.Value) {
		v := r.Value
		resp.Value = &v
	}
	if !r.Timestamp.IsZero() {
		resp.Timestamp = r.Timestamp.UTC().Format(time.RFC3339Nano)
		resp.AgeMS = r.Age().Milliseconds()
	}
	return resp
}

// writeReadError maps engine errors to HTTP responses.
func writeReadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, telemetry.ErrSensorNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, telemetry.ErrNoReading):
		writeNotFound(w, err.Error())
	case errors.Is(err, telemetry.ErrUnsupportedKind):
		writeBadRequest(w, err.Error())
	case errors.Is(err, telemetry.ErrMaintenanceBusy):
		writeUnavailable(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
