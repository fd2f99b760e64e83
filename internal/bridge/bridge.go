package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-switchbot/internal/adapter"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-switchbot/internal/normalize"
	"github.com/nerrad567/gray-logic-switchbot/internal/radio"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
)

// Bridge owns one reconciliation machine per device and routes traffic
// between them and MQTT, the HTTP API and the history recorders.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg          *config.Config
	mqtt         MQTTClient
	cloud        CloudClient
	radio        Radio
	registry     *device.Registry
	metrics      reconcile.Metrics
	sink         *fanOut
	health       *HealthReporter
	deviceLogger func(device.Device) Logger
	newID        func() string

	machines   map[string]*reconcile.Machine
	machinesMu sync.RWMutex

	// Shutdown coordination
	started   bool
	startMu   sync.Mutex
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// CloudClient is the cloud API as used by the bridge and its machines.
// *cloud.Client satisfies it.
type CloudClient interface {
	reconcile.CloudClient
	DeviceLister
}

// Radio is the local channel. *radio.MQTTGateway satisfies it.
type Radio interface {
	radio.Scanner
	radio.Commander
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds everything needed to create a bridge.
type Options struct {
	// Config is the loaded configuration. Required.
	Config *config.Config

	// Registry catalogues devices and persists their contexts. Required.
	Registry *device.Registry

	// Version is reported in health messages.
	Version string

	// MQTT carries state, faults, telemetry, commands and relayed webhooks.
	// Optional; without it the bridge is driven by the HTTP API only.
	MQTT MQTTClient

	// Cloud is the cloud API client. Optional.
	Cloud CloudClient

	// Radio is the local BLE channel. Optional.
	Radio Radio

	// Recorders receive every recorded state sample (SQLite history,
	// InfluxDB). Optional.
	Recorders []reconcile.Recorder

	// TelemetryWriters receive sensor telemetry. Optional.
	TelemetryWriters []TelemetryWriter

	// Hub broadcasts state and faults to WebSocket clients. Optional.
	Hub Broadcaster

	// Metrics observes the machines. Optional.
	Metrics reconcile.Metrics

	// Logger is the optional structured logger.
	Logger Logger

	// DeviceLogger builds the logger handed to each machine. Defaults to
	// Logger.
	DeviceLogger func(device.Device) Logger
}

// New creates a bridge. Call Start to build and start the machines.
func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	var publisher Publisher
	if opts.MQTT != nil {
		publisher = opts.MQTT
	}
	sink := newFanOut(publisher, opts.Hub, logger)
	sink.recorders = opts.Recorders
	sink.telemetry = opts.TelemetryWriters

	b := &Bridge{
		cfg:          opts.Config,
		mqtt:         opts.MQTT,
		cloud:        opts.Cloud,
		radio:        opts.Radio,
		registry:     opts.Registry,
		metrics:      opts.Metrics,
		sink:         sink,
		deviceLogger: opts.DeviceLogger,
		newID:        uuid.NewString,
		machines:     make(map[string]*reconcile.Machine),
		ctx:          ctx,
		ctxCancel:    ctxCancel,
		logger:       logger,
	}

	var healthPublisher HealthPublisher
	if opts.MQTT != nil {
		healthPublisher = opts.MQTT
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Cloud:     opts.Cloud != nil && opts.Cloud.HasCredentials(),
		Interval:  opts.Config.Bridge.HealthInterval,
		Publisher: healthPublisher,
		Stats:     b.Stats,
	})
	b.health.SetLogger(logger)

	return b, nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// Start builds a machine per device, starts them concurrently, subscribes
// to the command and webhook topics and begins health reporting.
//
// Devices that fail validation are logged and skipped. Discovery failures
// are logged and the configured devices are used alone.
func (b *Bridge) Start(ctx context.Context) error {
	b.startMu.Lock()
	defer b.startMu.Unlock()
	if b.started {
		return nil
	}

	log := b.getLogger()
	if err := b.health.PublishStarting(); err != nil {
		log.Error("failed to publish starting status", "error", err)
	}

	devices := make([]device.Device, 0, len(b.cfg.Devices))
	for _, dc := range b.cfg.Devices {
		devices = append(devices, dc.Device())
	}
	if b.cfg.Bridge.Discover && b.cloud != nil && b.cloud.HasCredentials() {
		merged, err := Discover(ctx, b.cloud, devices, log)
		if err != nil {
			log.Warn("device discovery failed, using configured devices", "error", err)
		}
		devices = merged
	}

	for _, d := range devices {
		if err := b.addDevice(ctx, d); err != nil {
			log.Error("skipping device", "device_id", d.ID, "type", string(d.Type), "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range b.allMachines() {
		g.Go(func() error {
			return m.Start(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("starting device machines: %w", err)
	}

	if b.mqtt != nil {
		if err := b.mqtt.Subscribe(mqtt.Topics{}.AllCommands(), 1, b.handleCommandMessage); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		if b.cfg.Webhook.Enabled && b.cfg.Webhook.Topic != "" {
			if err := b.mqtt.Subscribe(b.cfg.Webhook.Topic, 1, b.handleWebhookMessage); err != nil {
				return fmt.Errorf("subscribe to webhooks: %w", err)
			}
		}
	}

	b.health.Start(b.ctx)
	b.started = true

	managed, offline := b.Stats()
	log.Info("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"devices", managed,
		"offline", offline)
	return nil
}

// Stop halts every machine and health reporting.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.health.Stop()

		var g errgroup.Group
		for _, m := range b.allMachines() {
			g.Go(func() error {
				m.Stop()
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // Stop never fails

		b.getLogger().Info("bridge stopped")
	})
}

// addDevice registers a device and builds its machine.
func (b *Bridge) addDevice(ctx context.Context, d device.Device) error {
	if err := b.registry.Register(&d); err != nil {
		return err
	}
	ad, err := adapter.New(d)
	if err != nil {
		return err
	}

	seed, err := b.registry.GetContext(ctx, d.ID)
	if err != nil {
		if !errors.Is(err, device.ErrContextNotFound) {
			b.getLogger().Warn("failed to load device context", "device_id", d.ID, "error", err)
		}
		seed = nil
	}

	var logger Logger = b.getLogger()
	if b.deviceLogger != nil {
		logger = b.deviceLogger(d)
	}

	rc := b.cfg.Reconcile
	m, err := reconcile.New(reconcile.Options{
		Device:       d,
		Adapter:      ad,
		Cloud:        b.cloud,
		Scanner:      b.radio,
		Commander:    b.radio,
		Store:        b.registry,
		Seed:         seed,
		Sink:         b.sink,
		Telemetry:    b.sink,
		Recorder:     b.sink,
		Metrics:      b.metrics,
		Logger:       logger,
		RefreshRate:  rc.RefreshRate,
		PushRate:     rc.PushRate,
		RetryDelay:   rc.RetryDelay,
		ScanDuration: rc.ScanDuration,
		MaxRetry:     rc.MaxRetry,
	})
	if err != nil {
		return err
	}

	b.sink.prime(d.ID, m.Snapshot().Values)

	b.machinesMu.Lock()
	b.machines[d.ID] = m
	b.machinesMu.Unlock()
	return nil
}

func (b *Bridge) allMachines() []*reconcile.Machine {
	b.machinesMu.RLock()
	defer b.machinesMu.RUnlock()
	return slices.Collect(maps.Values(b.machines))
}

func (b *Bridge) machine(deviceID string) (*reconcile.Machine, error) {
	b.machinesMu.RLock()
	m, ok := b.machines[deviceID]
	b.machinesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return m, nil
}

// Snapshots returns a view of every machine ordered by name.
func (b *Bridge) Snapshots() []reconcile.Snapshot {
	machines := b.allMachines()
	out := make([]reconcile.Snapshot, 0, len(machines))
	for _, m := range machines {
		out = append(out, m.Snapshot())
	}
	slices.SortFunc(out, func(a, c reconcile.Snapshot) int {
		if n := strings.Compare(a.Name, c.Name); n != 0 {
			return n
		}
		return strings.Compare(a.DeviceID, c.DeviceID)
	})
	return out
}

// Snapshot returns the view of one machine.
func (b *Bridge) Snapshot(deviceID string) (reconcile.Snapshot, error) {
	m, err := b.machine(deviceID)
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	return m.Snapshot(), nil
}

// Stats returns the managed and offline machine counts.
func (b *Bridge) Stats() (managed, offline int) {
	for _, m := range b.allMachines() {
		managed++
		if m.Phase() == reconcile.PhaseOffline {
			offline++
		}
	}
	return managed, offline
}

// Health returns the current health message.
func (b *Bridge) Health() HealthMessage {
	return b.health.Current()
}

// Set applies hub set-commands to a device in property-name order. Every
// property is attempted; the errors of rejected ones are joined.
func (b *Bridge) Set(deviceID string, values map[string]any) error {
	m, err := b.machine(deviceID)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: no values", ErrInvalidCommand)
	}

	var errs []error
	for _, name := range slices.Sorted(maps.Keys(values)) {
		if err := m.Set(name, values[name]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Refresh forces a status refresh of one device.
func (b *Bridge) Refresh(ctx context.Context, deviceID string) error {
	m, err := b.machine(deviceID)
	if err != nil {
		return err
	}
	return m.Refresh(ctx)
}

// HandleWebhook routes a cloud change report to the device named by its
// context.deviceMac.
func (b *Bridge) HandleWebhook(payload []byte) error {
	var ev WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	id := ev.DeviceID()
	if id == "" {
		return fmt.Errorf("%w: missing context.deviceMac", ErrInvalidWebhook)
	}
	m, err := b.machine(id)
	if err != nil {
		return err
	}

	b.getLogger().Debug("webhook received",
		"device_id", id,
		"event_type", ev.EventType)
	return m.ApplyPush(normalize.Raw(ev.Context))
}

// handleCommandMessage processes a set-command from
// switchbot/command/{device_id}.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) {
	log := b.getLogger()
	deviceID := topic[strings.LastIndex(topic, "/")+1:]

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		log.Warn("failed to parse command", "topic", topic, "error", err)
		return
	}
	if cmd.ID == "" {
		cmd.ID = b.newID()
	}

	log.Info("received command",
		"command_id", cmd.ID,
		"device_id", deviceID,
		"properties", slices.Sorted(maps.Keys(cmd.Values)))

	if err := b.Set(deviceID, cmd.Values); err != nil {
		log.Warn("command rejected", "command_id", cmd.ID, "device_id", deviceID, "error", err)
		if !errors.Is(err, ErrUnknownDevice) {
			b.sink.Fault(deviceID, err)
		}
	}
}

// handleWebhookMessage processes a webhook relayed over MQTT.
func (b *Bridge) handleWebhookMessage(topic string, payload []byte) {
	if err := b.HandleWebhook(payload); err != nil {
		b.getLogger().Warn("webhook rejected", "topic", topic, "error", err)
	}
}
