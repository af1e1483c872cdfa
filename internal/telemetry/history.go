package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/enviro-core/internal/sensor"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryPoint is one persisted reading.
type HistoryPoint struct {
	ID      int64             `json:"id"`
	Sensor  string            `json:"sensor"`
	Kind    sensor.Capability `json:"kind"`
	Value   float64           `json:"value"`
	TakenAt time.Time         `json:"taken_at"`
}

// ReadingHistory persists readings to the local SQLite store. It backs
// the HTTP history endpoint and survives daemon restarts; long-term
// series storage is InfluxDB's job.
//
// Implements the Recorder interface. Only valid readings are recorded.
type ReadingHistory struct {
	db *sql.DB
}

// NewReadingHistory creates a history store over an open database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *ReadingHistory: Store instance ready for use
func NewReadingHistory(db *sql.DB) *ReadingHistory {
	return &ReadingHistory{db: db}
}

// Record inserts one reading.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - sensorName: Unique sensor name
//   - kind: Measurement kind
//   - r: The reading to persist; invalid readings are rejected
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (h *ReadingHistory) Record(ctx context.Context, sensorName string, kind sensor.Capability, r sensor.Reading) error {
	if sensorName == "" {
		return fmt.Errorf("sensor name is required")
	}
	if !r.Valid {
		return fmt.Errorf("refusing to record invalid reading for %q", sensorName)
	}

	_, err := h.db.ExecContext(ctx,
		"INSERT INTO readings (sensor, kind, value, taken_at) VALUES (?, ?, ?, ?)",
		sensorName,
		string(kind),
		r.Value,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	return nil
}

// History returns recent readings for a sensor and kind, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - sensorName: Unique sensor name
//   - kind: Measurement kind
//   - limit: Maximum points to return (default 50, max 500)
//
// Returns:
//   - []HistoryPoint: Points ordered by taken_at DESC
//   - error: nil on success, otherwise the underlying query error
func (h *ReadingHistory) History(ctx context.Context, sensorName string, kind sensor.Capability, limit int) ([]HistoryPoint, error) {
	if sensorName == "" {
		return nil, fmt.Errorf("sensor name is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, sensor, kind, value, taken_at
		 FROM readings
		 WHERE sensor = ? AND kind = ?
		 ORDER BY taken_at DESC
		 LIMIT ?`,
		sensorName,
		string(kind),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	points := make([]HistoryPoint, 0, limit)
	for rows.Next() {
		var p HistoryPoint
		var kindStr string
		var takenAt string

		if err := rows.Scan(&p.ID, &p.Sensor, &kindStr, &p.Value, &takenAt); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		p.Kind = sensor.Capability(kindStr)

		timestamp, err := parseReadingTimestamp(takenAt)
		if err != nil {
			return nil, err
		}
		p.TakenAt = timestamp

		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}

	return points, nil
}

// Prune deletes readings older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (readings older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (h *ReadingHistory) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	result, err := h.db.ExecContext(ctx,
		"DELETE FROM readings WHERE taken_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting readings: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseReadingTimestamp parses a timestamp stored in SQLite.
func parseReadingTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("taken_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse(time.RFC3339, value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing taken_at: %w", err)
}
