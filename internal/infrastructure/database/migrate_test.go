package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-tv/internal/infrastructure/database"

	// Registers the daemon's embedded migration set, exactly as the
	// binary does.
	_ "github.com/nerrad567/gray-logic-tv/migrations"
)

func openBridgeDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "graylogic-tv.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

// TestMigrateCreatesCommandLog runs the real embedded migrations and
// verifies the command_log schema the history repository depends on.
func TestMigrateCreatesCommandLog(t *testing.T) {
	db := openBridgeDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var tableName string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='command_log'",
	).Scan(&tableName)
	if err != nil {
		t.Fatalf("table command_log not created: %v", err)
	}

	for _, index := range []string{"idx_command_log_device_created", "idx_command_log_status"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", index,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %s not created: %v", index, err)
		}
	}

	// The schema must accept the rows the history repository writes
	_, err = db.ExecContext(ctx, `
		INSERT INTO command_log (id, device_id, command, frame, response, status, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"cmd-a1b2c3d4", "tv-living", "power_on", "POWR1   ", "OK", "ok", 42, "2026-08-27T10:00:00Z")
	if err != nil {
		t.Fatalf("inserting command row: %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) == 0 {
		t.Error("no applied migrations recorded")
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}

	// Re-running must be idempotent
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

// TestMigrateDownDropsCommandLog verifies the down migration reverses
// the schema and the applied record.
func TestMigrateDownDropsCommandLog(t *testing.T) {
	db := openBridgeDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='command_log'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if count != 0 {
		t.Error("command_log should have been dropped")
	}
}
