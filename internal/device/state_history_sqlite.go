package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// historyTimeFormat is fixed-width so timestamps sort as strings.
	historyTimeFormat = "2006-01-02T15:04:05.000000Z"
)

var errHistoryDeviceID = errors.New("device: history requires a device id")

// SQLiteStateHistoryRepository keeps canonical-state samples in the
// state_history table, one JSON document per row. It is always a recorder;
// InfluxDB is added alongside it when enabled.
type SQLiteStateHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteStateHistoryRepository returns a repository over an open,
// migrated database.
func NewSQLiteStateHistoryRepository(db *sql.DB) *SQLiteStateHistoryRepository {
	return &SQLiteStateHistoryRepository{db: db}
}

// RecordStateChange appends a sample. An empty source is stored as refresh
// and nil values as an empty object.
func (r *SQLiteStateHistoryRepository) RecordStateChange(ctx context.Context, deviceID string, values state.Values, source string) error {
	if deviceID == "" {
		return errHistoryDeviceID
	}
	if source == "" {
		source = StateHistorySourceRefresh
	}
	if values == nil {
		values = state.Values{}
	}

	doc, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding history sample: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO state_history (device_id, state, source, created_at) VALUES (?, ?, ?, ?)`,
		deviceID, string(doc), source, time.Now().UTC().Format(historyTimeFormat),
	); err != nil {
		return fmt.Errorf("inserting history sample for %s: %w", deviceID, err)
	}
	return nil
}

// GetHistory returns up to limit samples for deviceID, newest first.
// Non-positive limits mean 50 and anything above 200 is clamped.
func (r *SQLiteStateHistoryRepository) GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error) {
	if deviceID == "" {
		return nil, errHistoryDeviceID
	}
	limit = clampHistoryLimit(limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, state, source, created_at
		FROM state_history
		WHERE device_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", deviceID, err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		entry, err := scanHistoryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history rows: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes samples older than olderThan and reports how many
// rows went.
func (r *SQLiteStateHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("device: prune window must be positive, got %s", olderThan)
	}
	cutoff := time.Now().UTC().Add(-olderThan).Format(historyTimeFormat)

	res, err := r.db.ExecContext(ctx, `DELETE FROM state_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return res.RowsAffected()
}

func clampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}

func scanHistoryRow(rows *sql.Rows) (StateHistoryEntry, error) {
	var (
		e         StateHistoryEntry
		doc       string
		createdAt string
	)
	if err := rows.Scan(&e.ID, &e.DeviceID, &doc, &e.Source, &createdAt); err != nil {
		return e, fmt.Errorf("scanning history row: %w", err)
	}
	if err := json.Unmarshal([]byte(doc), &e.State); err != nil {
		return e, fmt.Errorf("decoding history sample %d: %w", e.ID, err)
	}
	ts, err := parseTimestamp(createdAt)
	if err != nil {
		return e, err
	}
	e.CreatedAt = ts
	return e, nil
}
