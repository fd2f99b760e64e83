package reconcile

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/cloud"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/radio"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Adapter describes one device category to the machine.
//
// Implementations are stateless apart from per-device settings fixed at
// construction, so every method may be called with the machine's lock held.
type Adapter interface {
	// Type is the device category.
	Type() device.Type

	// Baseline is the idle/off state forced when the device goes offline.
	Baseline() state.Values

	// Writable reports whether the hub may set the property.
	Writable(name string) bool

	// Prepare validates a hub set and returns every property it changes,
	// including dependent properties (for example a bulb hue change also
	// moves the colour temperature). current is the visible state before the
	// set.
	Prepare(name string, value any, current state.Values) (state.Values, error)

	// Commands turns the dirty properties into outbound commands. current is
	// the full visible state, dirty the subset that differs from the device.
	// Dirty properties that no command covers are reverted.
	Commands(dirty, current state.Values) []Command

	// LocalPush reports whether commands can be delivered over the radio.
	LocalPush() bool

	// Refreshable reports whether the device can report its status at all.
	Refreshable() bool

	// ConfirmDelay is the delay of the verifying refresh after a push.
	ConfirmDelay() time.Duration
}

// TelemetryAdapter is implemented by adapters that publish a flat property
// map after every state update.
type TelemetryAdapter interface {
	Telemetry(current state.Values) (map[string]any, bool)
}

// HistoryAdapter is implemented by adapters that decide themselves which
// samples are worth recording. Adapters without it record every change.
type HistoryAdapter interface {
	HistorySample(current state.Values) (state.Values, bool)
}

// Command is one outbound action covering one or more properties.
type Command struct {
	// Properties the command settles once acknowledged.
	Properties []string

	// Cloud is the cloud form of the command. An empty Command name means the
	// cloud cannot carry it.
	Cloud cloud.Command

	// Local is the radio form, nil when the radio cannot carry it.
	Local *radio.Command
}

// NoOp reports whether the command commits its properties without sending
// anything (for example an IR "off" with push disabled).
func (c Command) NoOp() bool {
	return c.Cloud.Command == "" && c.Local == nil
}

// CloudClient is the subset of *cloud.Client the machine needs.
type CloudClient interface {
	HasCredentials() bool
	Status(ctx context.Context, deviceID string) (*cloud.Response, error)
	SendCommand(ctx context.Context, deviceID string, cmd cloud.Command) (*cloud.Response, error)
}

// ContextStore persists the device context. *device.Registry satisfies it.
type ContextStore interface {
	GetContext(ctx context.Context, deviceID string) (*device.Context, error)
	SaveContext(ctx context.Context, c *device.Context) error
}

// Sink receives hub-facing updates.
type Sink interface {
	// Update carries the visible values that changed.
	Update(deviceID string, values state.Values)

	// Fault reports a failed refresh or push.
	Fault(deviceID string, err error)
}

// Telemetry publishes adapter telemetry. Failures are logged and dropped.
type Telemetry interface {
	PublishTelemetry(dev device.Device, payload map[string]any) error
}

// Recorder appends timestamped samples. *device.SQLiteStateHistoryRepository
// satisfies it.
type Recorder interface {
	RecordStateChange(ctx context.Context, deviceID string, values state.Values, source string) error
}

// Metrics observes the pipeline.
type Metrics interface {
	RefreshDone(deviceType string, ch string, err error)
	RefreshSkipped(deviceType string)
	PushDone(deviceType string, ch string, err error)
	Retry(deviceType string)
	Fallback(deviceType, op string)
	StatusCode(code int, action string)
	SetOffline(deviceID string, offline bool)
}

// Logger is the logging interface used by the machine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopSink struct{}

func (noopSink) Update(string, state.Values) {}
func (noopSink) Fault(string, error)         {}

type noopMetrics struct{}

func (noopMetrics) RefreshDone(string, string, error) {}
func (noopMetrics) RefreshSkipped(string)             {}
func (noopMetrics) PushDone(string, string, error)    {}
func (noopMetrics) Retry(string)                      {}
func (noopMetrics) Fallback(string, string)           {}
func (noopMetrics) StatusCode(int, string)            {}
func (noopMetrics) SetOffline(string, bool)           {}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
