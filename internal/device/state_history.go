package device

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// State history source values.
const (
	StateHistorySourceRefresh = "refresh"
	StateHistorySourcePush    = "push"
	StateHistorySourceWebhook = "webhook"
)

// StateHistoryEntry is a single recorded sample of a device's canonical state.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the unique identifier of the device.
	DeviceID string `json:"device_id"`

	// State is the sample in hub-facing units.
	State state.Values `json:"state"`

	// Source identifies how the sample was obtained (refresh, push, webhook).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the sample (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves device state samples.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records a state sample.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Unique device identifier
	//   - values: Sample to persist
	//   - source: Origin of the sample (refresh, push, webhook)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordStateChange(ctx context.Context, deviceID string, values state.Values, source string) error

	// GetHistory returns recent samples for the device, newest first.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)
}
