package telemetry

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/enviro-core/internal/sensor"
)

func newHistoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	_, err = db.Exec(`
		CREATE TABLE readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sensor TEXT NOT NULL,
			kind TEXT NOT NULL,
			value REAL NOT NULL,
			taken_at TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("creating readings table: %v", err)
	}
	return db
}

func TestReadingHistory_RecordAndQuery(t *testing.T) {
	h := NewReadingHistory(newHistoryDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		r := sensor.Reading{Value: 20.0 + float64(i), Timestamp: base.Add(time.Duration(i) * time.Second), Valid: true}
		if err := h.Record(ctx, "greenhouse", sensor.CapTemperature, r); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	// Another stream must not leak into the query.
	other := sensor.Reading{Value: 55.0, Timestamp: base, Valid: true}
	if err := h.Record(ctx, "greenhouse", sensor.CapHumidity, other); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	points, err := h.History(ctx, "greenhouse", sensor.CapTemperature, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("History() = %d points, want 3", len(points))
	}
	// Newest first.
	if points[0].Value != 22.0 || points[2].Value != 20.0 {
		t.Errorf("History() order = [%v..%v], want [22..20]", points[0].Value, points[2].Value)
	}
}

func TestReadingHistory_RecordRejectsInvalid(t *testing.T) {
	h := NewReadingHistory(newHistoryDB(t))

	err := h.Record(context.Background(), "greenhouse", sensor.CapTemperature, sensor.InvalidReading())
	if err == nil {
		t.Error("Record(invalid) error = nil, want error")
	}
}

func TestReadingHistory_Limit(t *testing.T) {
	h := NewReadingHistory(newHistoryDB(t))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		r := sensor.Reading{Value: float64(i), Timestamp: time.Now().Add(time.Duration(i) * time.Millisecond), Valid: true}
		if err := h.Record(ctx, "s", sensor.CapTemperature, r); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	points, err := h.History(ctx, "s", sensor.CapTemperature, 4)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(points) != 4 {
		t.Errorf("History(limit=4) = %d points, want 4", len(points))
	}
}

func TestReadingHistory_Prune(t *testing.T) {
	h := NewReadingHistory(newHistoryDB(t))
	ctx := context.Background()

	old := sensor.Reading{Value: 1.0, Timestamp: time.Now().Add(-48 * time.Hour), Valid: true}
	fresh := sensor.Reading{Value: 2.0, Timestamp: time.Now(), Valid: true}
	if err := h.Record(ctx, "s", sensor.CapTemperature, old); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := h.Record(ctx, "s", sensor.CapTemperature, fresh); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	n, err := h.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() = %d rows, want 1", n)
	}

	points, err := h.History(ctx, "s", sensor.CapTemperature, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(points) != 1 || points[0].Value != 2.0 {
		t.Errorf("History() after prune = %+v, want the fresh point only", points)
	}

	if _, err := h.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) error = nil, want error")
	}
}
