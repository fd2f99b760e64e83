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

// ContextRepository persists device contexts.
type ContextRepository interface {
	// Get retrieves the context for a device.
	// Returns ErrContextNotFound if none has been stored yet.
	Get(ctx context.Context, deviceID string) (*Context, error)

	// List retrieves every stored context.
	List(ctx context.Context) ([]Context, error)

	// Save creates or replaces the context for c.DeviceID.
	Save(ctx context.Context, c *Context) error

	// Delete removes a device's context.
	// Returns ErrContextNotFound if none exists.
	Delete(ctx context.Context, deviceID string) error
}

// SQLiteContextRepository implements ContextRepository using SQLite.
type SQLiteContextRepository struct {
	db *sql.DB
}

// NewSQLiteContextRepository creates a new SQLite-backed context repository.
// The db parameter should be an open SQLite connection with migrations applied.
func NewSQLiteContextRepository(db *sql.DB) *SQLiteContextRepository {
	return &SQLiteContextRepository{db: db}
}

const selectContext = `
	SELECT device_id, type, state, firmware, offline, overrides, updated_at
	FROM device_contexts`

// Get retrieves the context for a device.
func (r *SQLiteContextRepository) Get(ctx context.Context, deviceID string) (*Context, error) {
	row := r.db.QueryRowContext(ctx, selectContext+" WHERE device_id = ?", deviceID)
	c, err := scanContextRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContextNotFound
		}
		return nil, fmt.Errorf("querying context: %w", err)
	}
	return c, nil
}

// List retrieves every stored context ordered by device ID.
func (r *SQLiteContextRepository) List(ctx context.Context) ([]Context, error) {
	rows, err := r.db.QueryContext(ctx, selectContext+" ORDER BY device_id")
	if err != nil {
		return nil, fmt.Errorf("querying contexts: %w", err)
	}
	defer rows.Close()

	var contexts []Context
	for rows.Next() {
		c, err := scanContextRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning context: %w", err)
		}
		contexts = append(contexts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contexts: %w", err)
	}
	return contexts, nil
}

// Save upserts the context. UpdatedAt is set to the current time.
func (r *SQLiteContextRepository) Save(ctx context.Context, c *Context) error {
	if c == nil || c.DeviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidContext)
	}

	values := c.State
	if values == nil {
		values = state.Values{}
	}
	stateJSON, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	overridesJSON, err := json.Marshal(c.Overrides)
	if err != nil {
		return fmt.Errorf("marshalling overrides: %w", err)
	}

	c.UpdatedAt = time.Now().UTC()
	query := `
		INSERT INTO device_contexts (device_id, type, state, firmware, offline, overrides, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			type = excluded.type,
			state = excluded.state,
			firmware = excluded.firmware,
			offline = excluded.offline,
			overrides = excluded.overrides,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		c.DeviceID,
		string(c.Type),
		string(stateJSON),
		nullableString(c.Firmware),
		boolToInt(c.Offline),
		string(overridesJSON),
		c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving context: %w", err)
	}
	return nil
}

// Delete removes a device's context.
func (r *SQLiteContextRepository) Delete(ctx context.Context, deviceID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM device_contexts WHERE device_id = ?", deviceID)
	if err != nil {
		return fmt.Errorf("deleting context: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrContextNotFound
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContextRow(scanner rowScanner) (*Context, error) {
	var c Context
	var deviceType, stateJSON, overridesJSON, updatedAt string
	var firmware sql.NullString
	var offline int

	if err := scanner.Scan(&c.DeviceID, &deviceType, &stateJSON, &firmware, &offline, &overridesJSON, &updatedAt); err != nil {
		return nil, err
	}

	c.Type = Type(deviceType)
	c.Offline = offline != 0
	if firmware.Valid {
		c.Firmware = firmware.String
	}

	if err := json.Unmarshal([]byte(stateJSON), &c.State); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}
	if err := json.Unmarshal([]byte(overridesJSON), &c.Overrides); err != nil {
		return nil, fmt.Errorf("unmarshalling overrides: %w", err)
	}

	t, err := parseTimestamp(updatedAt)
	if err != nil {
		return nil, err
	}
	c.UpdatedAt = t

	return &c, nil
}

// nullableString returns a sql.NullString, NULL for the empty string.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02 15:04:05", value)
	if fallbackErr == nil {
		return fallback.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
}
