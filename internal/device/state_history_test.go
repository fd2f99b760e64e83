package device

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
	_ "github.com/nerrad567/gray-logic-switchbot/migrations" // registers the schema
)

// setupTestDB opens a temp database with the production migrations applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "device.db")})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db.DB
}

// insertStateHistoryRow inserts a history row with a specific timestamp.
func insertStateHistoryRow(t *testing.T, db *sql.DB, deviceID, stateJSON, source string, createdAt time.Time) {
	t.Helper()

	_, err := db.Exec(
		"INSERT INTO state_history (device_id, state, source, created_at) VALUES (?, ?, ?, ?)",
		deviceID,
		stateJSON,
		source,
		createdAt.UTC().Format(historyTimeFormat),
	)
	if err != nil {
		t.Fatalf("failed to insert state history row: %v", err)
	}
}

func TestRecordStateChange(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	sample := state.Values{state.CurrentTemperature: 21.5, state.CurrentRelativeHumidity: 48}
	if err := repo.RecordStateChange(ctx, "C271111EC0AB", sample, StateHistorySourceRefresh); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "C271111EC0AB", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Source != StateHistorySourceRefresh {
		t.Errorf("Source = %q, want %q", entry.Source, StateHistorySourceRefresh)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero, want non-zero")
	}
	if temp, ok := entry.State.Float(state.CurrentTemperature); !ok || temp != 21.5 {
		t.Errorf("temperature = %v, want 21.5", entry.State[state.CurrentTemperature])
	}
	if hum, ok := entry.State.Int(state.CurrentRelativeHumidity); !ok || hum != 48 {
		t.Errorf("humidity = %v, want 48", entry.State[state.CurrentRelativeHumidity])
	}
}

func TestRecordStateChange_DefaultsSource(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	if err := repo.RecordStateChange(ctx, "dev-1", nil, ""); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}
	entries, err := repo.GetHistory(ctx, "dev-1", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Source != StateHistorySourceRefresh {
		t.Fatalf("entries = %+v, want one refresh entry", entries)
	}

	if err := repo.RecordStateChange(ctx, "", nil, ""); !errors.Is(err, errHistoryDeviceID) {
		t.Errorf("RecordStateChange() with empty id error = %v, want errHistoryDeviceID", err)
	}
	if _, err := repo.GetHistory(ctx, "", 5); !errors.Is(err, errHistoryDeviceID) {
		t.Errorf("GetHistory() with empty id error = %v, want errHistoryDeviceID", err)
	}
}

func TestGetHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	insertStateHistoryRow(t, db, "dev-1", `{"On":false}`, StateHistorySourcePush, now.Add(-2*time.Hour))
	insertStateHistoryRow(t, db, "dev-1", `{"On":true}`, StateHistorySourceRefresh, now.Add(-1*time.Hour))
	insertStateHistoryRow(t, db, "dev-1", `{"On":true}`, StateHistorySourceWebhook, now)
	insertStateHistoryRow(t, db, "dev-2", `{"On":true}`, StateHistorySourceRefresh, now)

	entries, err := repo.GetHistory(ctx, "dev-1", 2)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries length = %d, want 2", len(entries))
	}

	if !entries[0].CreatedAt.Equal(now) {
		t.Errorf("entry[0] CreatedAt = %s, want %s", entries[0].CreatedAt, now)
	}
	if entries[0].Source != StateHistorySourceWebhook {
		t.Errorf("entry[0] Source = %q, want webhook", entries[0].Source)
	}
	if !entries[1].CreatedAt.Equal(now.Add(-1 * time.Hour)) {
		t.Errorf("entry[1] CreatedAt = %s, want %s", entries[1].CreatedAt, now.Add(-1*time.Hour))
	}
}

func TestPruneHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	insertStateHistoryRow(t, db, "dev-1", `{"On":true}`, StateHistorySourceRefresh, now.Add(-40*24*time.Hour))
	insertStateHistoryRow(t, db, "dev-1", `{"On":false}`, StateHistorySourceRefresh, now.Add(-12*time.Hour))

	deleted, err := repo.PruneHistory(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	entries, err := repo.GetHistory(ctx, "dev-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	if _, err := repo.PruneHistory(ctx, 0); err == nil {
		t.Error("PruneHistory(0) should fail")
	}
}

func TestClampHistoryLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, defaultHistoryLimit},
		{-3, defaultHistoryLimit},
		{10, 10},
		{maxHistoryLimit, maxHistoryLimit},
		{maxHistoryLimit + 1, maxHistoryLimit},
	}
	for _, tt := range tests {
		if got := clampHistoryLimit(tt.in); got != tt.want {
			t.Errorf("clampHistoryLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
