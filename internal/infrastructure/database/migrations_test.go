package database

import (
	"context"
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"up migration", "20260301_100000_create_readings.up.sql", "20260301_100000", true, true},
		{"down migration", "20260301_100000_create_readings.down.sql", "20260301_100000", false, true},
		{"no direction", "20260301_100000_create_readings.sql", "", false, false},
		{"not sql", "README.md", "", false, false},
		{"missing version part", "20260301.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if isUp != tt.wantUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantUp)
			}
		})
	}
}

func TestMigrationName(t *testing.T) {
	if got := migrationName("20260301_100000_create_readings.up.sql"); got != "create_readings" {
		t.Errorf("migrationName() = %q, want create_readings", got)
	}
}

func TestMigrate_AppliesAndIsIdempotent(t *testing.T) {
	// Exercise the apply path with a hand-built migration rather than
	// the embedded files.
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		t.Fatalf("creating migrations table: %v", err)
	}

	m := Migration{
		Version: "20260301_100000",
		Name:    "create_readings",
		UpSQL: `CREATE TABLE readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sensor TEXT NOT NULL,
			kind TEXT NOT NULL,
			value REAL NOT NULL,
			taken_at TEXT NOT NULL
		)`,
	}

	if err := db.applyMigration(ctx, m); err != nil {
		t.Fatalf("applyMigration() error = %v", err)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != "20260301_100000" {
		t.Errorf("SchemaVersion() = %q, want 20260301_100000", version)
	}

	// The table is usable.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO readings (sensor, kind, value, taken_at) VALUES (?, ?, ?, ?)",
		"greenhouse", "temperature", 21.5, "2026-03-01T10:00:00Z",
	); err != nil {
		t.Errorf("inserting into migrated table: %v", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	if !applied["20260301_100000"] {
		t.Error("migration not recorded as applied")
	}
}

func TestSchemaVersion_Empty(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		t.Fatalf("creating migrations table: %v", err)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != "" {
		t.Errorf("SchemaVersion() on empty table = %q, want empty", version)
	}
}
