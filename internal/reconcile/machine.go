package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/radio"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Machine defaults, used when neither the device nor the options set a value.
const (
	// DefaultRefreshRate is the periodic status poll interval.
	DefaultRefreshRate = 30 * time.Second

	// DefaultPushRate is the debounce window that coalesces hub sets.
	DefaultPushRate = 100 * time.Millisecond

	// DefaultRetryDelay is the fixed backoff between local push attempts.
	DefaultRetryDelay = time.Second

	// DefaultMaxRetry is the number of local retries after the first attempt.
	DefaultMaxRetry = 1

	// commandTimeout bounds one radio command attempt.
	commandTimeout = 5 * time.Second

	// persistTimeout bounds context and history writes.
	persistTimeout = 5 * time.Second
)

// Phase is the machine's reconciliation phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRefreshInFlight
	PhasePushPending
	PhasePushInFlight
	PhaseOffline
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRefreshInFlight:
		return "refresh_in_flight"
	case PhasePushPending:
		return "push_pending"
	case PhasePushInFlight:
		return "push_in_flight"
	case PhaseOffline:
		return "offline"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Options holds everything needed to build a Machine.
type Options struct {
	// Device is the device this machine reconciles. Required.
	Device device.Device

	// Adapter describes the device category. Required.
	Adapter Adapter

	// Cloud is the cloud API client. Optional; without it the cloud channel
	// is unusable.
	Cloud CloudClient

	// Scanner and Commander are the radio channel. Optional.
	Scanner   radio.Scanner
	Commander radio.Commander

	// Store persists the device context. Optional.
	Store ContextStore

	// Seed is the persisted context loaded at start-up. When nil the
	// adapter's baseline is the initial committed state.
	Seed *device.Context

	// Sink receives hub-facing updates and faults. Optional.
	Sink Sink

	// Telemetry and Recorder are best-effort side outputs. Optional.
	Telemetry Telemetry
	Recorder  Recorder

	// Metrics observes the pipeline. Optional.
	Metrics Metrics

	// Logger is the optional structured logger.
	Logger Logger

	// Bridge-wide defaults. The device's own settings take precedence,
	// then the overrides stored in Seed, then these.
	RefreshRate  time.Duration
	PushRate     time.Duration
	RetryDelay   time.Duration
	ScanDuration time.Duration
	MaxRetry     int

	// ConfirmDelay overrides the adapter's confirm delay when positive.
	// A negative value disables the confirming refresh.
	ConfirmDelay time.Duration
}

// Machine reconciles one device. Create with New, then call Start.
//
// Thread Safety: All methods are safe for concurrent use.
type Machine struct {
	dev       device.Device
	adapter   Adapter
	mode      channel.Mode
	cloud     CloudClient
	scanner   radio.Scanner
	commander radio.Commander
	store     ContextStore
	sink      Sink
	telemetry Telemetry
	recorder  Recorder
	metrics   Metrics
	hidden    map[string]bool

	refreshRate  time.Duration
	pushRate     time.Duration
	retryDelay   time.Duration
	scanDuration time.Duration
	confirmDelay time.Duration
	maxRetry     int
	overrides    device.Overrides

	// Guarded by mu.
	mu            sync.Mutex
	tracker       *state.Tracker
	phase         Phase
	refreshing    bool
	offlineReason channel.Reason
	firmware      string
	lastErr       error
	updatedAt     time.Time
	generation    uint64
	debounce      *time.Timer
	debounceSeq   uint64
	rearm         bool
	confirm       *time.Timer
	started       bool
	stopped       bool

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a machine for one device. Call Start to begin polling.
func New(opts Options) (*Machine, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("%w: adapter is required", ErrInvalidOptions)
	}
	if opts.Device.ID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidOptions)
	}
	if opts.Device.Type != opts.Adapter.Type() {
		return nil, fmt.Errorf("%w: adapter for %s cannot serve %s device %s",
			ErrInvalidOptions, opts.Adapter.Type(), opts.Device.Type, opts.Device.ID)
	}
	mode, err := channel.ParseMode(opts.Device.Connection)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", opts.Device.ID, err)
	}

	dev := opts.Device.DeepCopy()
	if dev.MAC == "" {
		dev.MAC = radio.AddressFromID(dev.ID)
	}

	var seeded device.Overrides
	committed := opts.Adapter.Baseline()
	firmware := ""
	if opts.Seed != nil {
		seeded = opts.Seed.Overrides
		if len(opts.Seed.State) > 0 {
			committed = opts.Seed.State.Clone()
		}
		firmware = opts.Seed.Firmware
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	m := &Machine{
		dev:       *dev,
		adapter:   opts.Adapter,
		mode:      mode,
		cloud:     opts.Cloud,
		scanner:   opts.Scanner,
		commander: opts.Commander,
		store:     opts.Store,
		sink:      opts.Sink,
		telemetry: opts.Telemetry,
		recorder:  opts.Recorder,
		metrics:   opts.Metrics,
		hidden:    make(map[string]bool, len(dev.Settings.Hide)),
		tracker:   state.NewTracker(committed),
		phase:     PhaseIdle,
		firmware:  firmware,
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}
	if m.sink == nil {
		m.sink = noopSink{}
	}
	if m.metrics == nil {
		m.metrics = noopMetrics{}
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	for _, name := range dev.Settings.Hide {
		m.hidden[name] = true
	}

	s := dev.Settings
	m.refreshRate = firstDuration(s.RefreshRate, seeded.RefreshRate, opts.RefreshRate, DefaultRefreshRate)
	m.pushRate = firstDuration(s.PushRate, opts.PushRate, DefaultPushRate)
	m.retryDelay = firstDuration(opts.RetryDelay, DefaultRetryDelay)
	m.scanDuration = firstDuration(s.ScanDuration, seeded.ScanDuration, opts.ScanDuration, radio.DefaultScanDuration)
	m.maxRetry = firstInt(s.MaxRetry, seeded.MaxRetry, opts.MaxRetry, DefaultMaxRetry)
	switch {
	case opts.ConfirmDelay > 0:
		m.confirmDelay = opts.ConfirmDelay
	case opts.ConfirmDelay < 0:
		m.confirmDelay = -1
	default:
		m.confirmDelay = opts.Adapter.ConfirmDelay()
	}
	m.overrides = device.Overrides{
		ScanDuration: m.scanDuration,
		RefreshRate:  m.refreshRate,
		MinLux:       firstFloat(s.MinLux, seeded.MinLux),
		MaxLux:       firstFloat(s.MaxLux, seeded.MaxLux),
		MaxRetry:     m.maxRetry,
	}

	return m, nil
}

// Start evaluates the channel plan and begins periodic refreshes.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true

	plan := m.planLocked()
	var offline state.Values
	var entered bool
	if !plan.Usable() && plan.Reason != channel.ReasonPushUnsupported {
		offline, entered = m.goOfflineLocked(plan.Reason)
	}
	snap := m.contextLocked()
	m.mu.Unlock()

	if entered {
		m.publishOffline(ctx, plan.Reason, offline, snap)
	}

	if m.adapter.Refreshable() {
		m.wg.Add(1)
		go m.refreshLoop()
	}

	m.logInfo("device machine started",
		"type", string(m.dev.Type),
		"plan", plan.String(),
		"refresh_rate", m.refreshRate.String())
	return nil
}

// Stop halts timers and waits for in-flight work to finish.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		if m.debounce != nil {
			m.debounce.Stop()
		}
		if m.confirm != nil {
			m.confirm.Stop()
		}
		m.mu.Unlock()

		close(m.done)
		m.ctxCancel()
		m.wg.Wait()

		m.logInfo("device machine stopped")
	})
}

// Device returns a copy of the device this machine serves.
func (m *Machine) Device() device.Device {
	return *m.dev.DeepCopy()
}

// Get returns the cached visible value of a property without I/O.
func (m *Machine) Get(name string) (any, bool) {
	if m.hidden[name] {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Get(name)
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Snapshot is a point-in-time view of a machine for the API and health
// reporting.
type Snapshot struct {
	DeviceID      string         `json:"device_id"`
	Name          string         `json:"name"`
	Type          device.Type    `json:"type"`
	Connection    channel.Mode   `json:"connection"`
	Phase         Phase          `json:"phase"`
	Offline       bool           `json:"offline"`
	OfflineReason channel.Reason `json:"offline_reason,omitempty"`
	Values        state.Values   `json:"state"`
	Dirty         []string       `json:"dirty,omitempty"`
	Firmware      string         `json:"firmware,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Snapshot returns the machine's current view without I/O.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	values := m.tracker.Current()
	for name := range m.hidden {
		delete(values, name)
	}
	s := Snapshot{
		DeviceID:   m.dev.ID,
		Name:       m.dev.Name,
		Type:       m.dev.Type,
		Connection: m.mode,
		Phase:      m.phase,
		Offline:    m.phase == PhaseOffline,
		Values:     values,
		Dirty:      m.tracker.Dirty().Keys(),
		Firmware:   m.firmware,
		UpdatedAt:  m.updatedAt,
	}
	if s.Offline {
		s.OfflineReason = m.offlineReason
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// Set records a hub-initiated change and (re)arms the debounce timer. The
// visible state changes immediately; the device is updated once no further
// set arrives within the push rate.
func (m *Machine) Set(name string, value any) error {
	if !m.adapter.Writable(name) {
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	updates, err := m.adapter.Prepare(name, value, m.tracker.Current())
	if err != nil {
		m.mu.Unlock()
		return err
	}
	var changed []string
	for _, k := range updates.Keys() {
		if m.tracker.Set(k, updates[k]) {
			changed = append(changed, k)
		}
	}
	m.generation++
	if m.phase == PhasePushInFlight {
		m.rearm = true
	} else {
		m.phase = PhasePushPending
		m.armDebounceLocked()
	}
	visible := m.visibleLocked(changed)
	m.mu.Unlock()

	m.logDebug("set", "property", name, "value", value, "changed", changed)
	if len(visible) > 0 {
		m.sink.Update(m.dev.ID, visible)
	}
	return nil
}

// refreshLoop runs the initial refresh and then one per tick. Ticks that land
// while a refresh or push is outstanding are skipped, not queued.
func (m *Machine) refreshLoop() {
	defer m.wg.Done()

	m.tick()

	ticker := time.NewTicker(m.refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Machine) tick() {
	if err := m.Refresh(m.ctx); err != nil && m.ctx.Err() == nil {
		m.logDebug("refresh tick", "error", err)
	}
}

// planLocked is the plan for the machine's main operation: refresh for
// devices that report status, push for the others.
func (m *Machine) planLocked() channel.Plan {
	if m.adapter.Refreshable() {
		return channel.ForRefresh(m.inputs())
	}
	return channel.ForPush(m.inputs(), m.adapter.LocalPush())
}

func (m *Machine) inputs() channel.Inputs {
	return channel.Inputs{
		Mode:           m.mode,
		CloudEnabled:   m.dev.CloudEnabled,
		HasCredentials: m.cloud != nil && m.cloud.HasCredentials(),
		Disabled:       m.dev.Offline,
	}
}

func (m *Machine) armDebounceLocked() {
	m.debounceSeq++
	seq := m.debounceSeq
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(m.pushRate, func() { m.onDebounce(seq) })
}

// goOfflineLocked forces the baseline and enters PhaseOffline. It returns the
// visible baseline and whether the machine was online before.
func (m *Machine) goOfflineLocked(reason channel.Reason) (state.Values, bool) {
	entered := m.phase != PhaseOffline
	m.tracker.Discard()
	baseline := m.adapter.Baseline()
	m.tracker.Force(baseline)
	m.phase = PhaseOffline
	m.offlineReason = reason
	m.rearm = false
	m.debounceSeq++
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.generation++
	m.updatedAt = time.Now()
	m.metrics.SetOffline(m.dev.ID, true)
	return m.visibleLocked(baseline.Keys()), entered
}

// leaveOfflineLocked clears the offline state after a channel proved usable.
// A set made while offline has already moved the phase on.
func (m *Machine) leaveOfflineLocked() {
	if m.phase != PhaseOffline && m.offlineReason == channel.ReasonNone {
		return
	}
	if m.phase == PhaseOffline {
		m.phase = PhaseIdle
	}
	m.offlineReason = channel.ReasonNone
	m.metrics.SetOffline(m.dev.ID, false)
	m.logInfo("device back online")
}

func (m *Machine) publishOffline(ctx context.Context, reason channel.Reason, baseline state.Values, snap *device.Context) {
	m.logError("device offline", fmt.Errorf("%w: %s", ErrOffline, reason))
	m.persist(ctx, snap)
	if len(baseline) > 0 {
		m.sink.Update(m.dev.ID, baseline)
	}
	m.sink.Fault(m.dev.ID, fmt.Errorf("%w: %s", ErrOffline, reason))
}

func (m *Machine) visibleLocked(names []string) state.Values {
	out := make(state.Values, len(names))
	for _, n := range names {
		if m.hidden[n] {
			continue
		}
		if v, ok := m.tracker.Get(n); ok {
			out[n] = v
		}
	}
	return out
}

func (m *Machine) contextLocked() *device.Context {
	return &device.Context{
		DeviceID:  m.dev.ID,
		Type:      m.dev.Type,
		State:     m.tracker.Committed(),
		Firmware:  m.firmware,
		Offline:   m.phase == PhaseOffline,
		Overrides: m.overrides,
	}
}

// persist writes the context. Failures are logged and dropped.
func (m *Machine) persist(ctx context.Context, c *device.Context) {
	if m.store == nil || c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := m.store.SaveContext(ctx, c); err != nil {
		m.logError("failed to persist device context", err)
	}
}

// emit feeds telemetry and history. Both are best-effort.
func (m *Machine) emit(current, changed state.Values, source string) {
	if m.telemetry != nil {
		if ta, ok := m.adapter.(TelemetryAdapter); ok {
			if payload, ok := ta.Telemetry(current); ok {
				if err := m.telemetry.PublishTelemetry(m.dev, payload); err != nil {
					m.logError("failed to publish telemetry", err)
				}
			}
		}
	}

	if m.recorder == nil {
		return
	}
	sample := changed
	if ha, ok := m.adapter.(HistoryAdapter); ok {
		var record bool
		if sample, record = ha.HistorySample(current); !record {
			return
		}
	}
	if len(sample) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), persistTimeout)
	defer cancel()
	if err := m.recorder.RecordStateChange(ctx, m.dev.ID, sample, source); err != nil {
		m.logError("failed to record history sample", err)
	}
}

// SetLogger sets the logger for the machine.
func (m *Machine) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

func (m *Machine) logArgs(keysAndValues []any) []any {
	return append([]any{
		"device_id", m.dev.ID,
		"device_name", m.dev.Name,
		"connection", string(m.mode),
	}, keysAndValues...)
}

// logInfo logs an info message with the device context.
func (m *Machine) logInfo(msg string, keysAndValues ...any) {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, m.logArgs(keysAndValues)...)
	}
}

// logError logs an error message with the device context.
func (m *Machine) logError(msg string, err error, keysAndValues ...any) {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, m.logArgs(append([]any{"error", err}, keysAndValues...))...)
	}
}

// logDebug logs a debug message with the device context.
func (m *Machine) logDebug(msg string, keysAndValues ...any) {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, m.logArgs(keysAndValues)...)
	}
}

func firstDuration(vals ...time.Duration) time.Duration {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstFloat(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
