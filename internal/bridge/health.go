package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/mqtt"
)

const (
	defaultHealthInterval = 30 * time.Second
	healthQoS             = 1
)

// HealthPublisher is the slice of the MQTT client the reporter needs.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig configures a HealthReporter. Zero Interval means 30s
// and a nil Stats reports no devices.
type HealthReporterConfig struct {
	BridgeID  string
	Version   string
	Cloud     bool // cloud credentials present
	Interval  time.Duration
	Publisher HealthPublisher
	Stats     func() (managed, offline int)
}

// HealthReporter publishes a retained HealthMessage on switchbot/system/health
// at a fixed interval, plus "starting" and "stopping" transitions.
type HealthReporter struct {
	cfg      HealthReporterConfig
	interval time.Duration
	started  time.Time

	cancel   context.CancelFunc
	loopDone chan struct{}
	stopOnce sync.Once

	logger atomic.Value // loggerBox
}

type loggerBox struct{ Logger }

// NewHealthReporter returns an idle reporter; Start begins the ticker.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Stats == nil {
		cfg.Stats = func() (int, int) { return 0, 0 }
	}
	h := &HealthReporter{
		cfg:      cfg,
		interval: cfg.Interval,
		started:  time.Now(),
	}
	if h.interval <= 0 {
		h.interval = defaultHealthInterval
	}
	h.logger.Store(loggerBox{noopLogger{}})
	return h
}

// SetLogger replaces the reporter's logger.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.logger.Store(loggerBox{logger})
}

// Start publishes the current status and then one per interval until ctx
// ends or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.loopDone = make(chan struct{})
	go h.run(ctx)
}

// Stop ends the ticker and publishes a final "stopping" status. Repeat
// calls do nothing.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
			<-h.loopDone
		}
		if err := h.publish(HealthStopping, ""); err != nil {
			h.log().Debug("final health publish failed", "error", err)
		}
	})
}

// PublishStarting announces the bridge before devices are loaded.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow evaluates and publishes the current status.
func (h *HealthReporter) PublishNow() error {
	return h.publish(h.determineStatus())
}

// Current builds the message PublishNow would send.
func (h *HealthReporter) Current() HealthMessage {
	return h.build(h.determineStatus())
}

func (h *HealthReporter) run(ctx context.Context) {
	defer close(h.loopDone)

	tick := time.NewTicker(h.interval)
	defer tick.Stop()
	for {
		if err := h.PublishNow(); err != nil {
			h.log().Error("health publish failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// determineStatus is degraded while MQTT is down or any device sits offline.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if p := h.cfg.Publisher; p != nil && !p.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if _, offline := h.cfg.Stats(); offline > 0 {
		return HealthDegraded, fmt.Sprintf("%d device(s) offline", offline)
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) build(status HealthStatus, reason string) HealthMessage {
	managed, offline := h.cfg.Stats()
	return HealthMessage{
		Bridge:         h.cfg.BridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        h.cfg.Version,
		UptimeSeconds:  int64(time.Since(h.started) / time.Second),
		DevicesManaged: managed,
		DevicesOffline: offline,
		Cloud:          h.cfg.Cloud,
		Reason:         reason,
	}
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}
	payload, err := json.Marshal(h.build(status, reason))
	if err != nil {
		return fmt.Errorf("encoding health: %w", err)
	}
	return h.cfg.Publisher.Publish(mqtt.Topics{}.SystemHealth(), payload, healthQoS, true)
}

func (h *HealthReporter) log() Logger {
	return h.logger.Load().(loggerBox).Logger //nolint:forcetypeassert // only loggerBox is stored
}
