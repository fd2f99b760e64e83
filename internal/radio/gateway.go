package radio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Gateway topic layout.
const (
	// DefaultTopicPrefix is the root of the gateway topics.
	DefaultTopicPrefix = "switchbot/ble"

	// scanBufferSize is the per-scan advertisement buffer. Advertisements
	// arriving while a scan's buffer is full are dropped.
	scanBufferSize = 16

	// gatewayQoS is used for command publishes and subscriptions.
	gatewayQoS = 1
)

// MQTTClient is the subset of MQTT operations the gateway needs.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// Logger is the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// ack is the gateway's reply to a command.
type ack struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type scanSession struct {
	filter Filter
	out    chan Advertisement
}

// MQTTGateway is a Scanner and Commander backed by a BLE gateway on MQTT.
//
// Thread Safety: All methods are safe for concurrent use.
type MQTTGateway struct {
	client MQTTClient
	prefix string
	now    func() time.Time

	sessions  map[uint64]*scanSession
	nextID    uint64
	sessionMu sync.Mutex

	pending   map[string]chan ack
	pendingMu sync.Mutex

	started bool
	startMu sync.Mutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewMQTTGateway creates a gateway client. Call Start before scanning.
//
// Parameters:
//   - client: MQTT client used for all gateway traffic
//   - prefix: Topic prefix; empty uses DefaultTopicPrefix
func NewMQTTGateway(client MQTTClient, prefix string) *MQTTGateway {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTGateway{
		client:   client,
		prefix:   strings.TrimSuffix(prefix, "/"),
		now:      time.Now,
		sessions: make(map[uint64]*scanSession),
		pending:  make(map[string]chan ack),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger.
func (g *MQTTGateway) SetLogger(logger Logger) {
	g.loggerMu.Lock()
	defer g.loggerMu.Unlock()
	if logger == nil {
		g.logger = noopLogger{}
		return
	}
	g.logger = logger
}

func (g *MQTTGateway) getLogger() Logger {
	g.loggerMu.RLock()
	defer g.loggerMu.RUnlock()
	return g.logger
}

// Start subscribes to advertisement and acknowledgement topics.
func (g *MQTTGateway) Start() error {
	g.startMu.Lock()
	defer g.startMu.Unlock()
	if g.started {
		return nil
	}

	if err := g.client.Subscribe(g.prefix+"/adv/+", 0, g.handleAdvertisement); err != nil {
		return fmt.Errorf("subscribing to advertisements: %w", err)
	}
	if err := g.client.Subscribe(g.prefix+"/ack/+", gatewayQoS, g.handleAck); err != nil {
		return fmt.Errorf("subscribing to acknowledgements: %w", err)
	}
	g.started = true
	return nil
}

func (g *MQTTGateway) isStarted() bool {
	g.startMu.Lock()
	defer g.startMu.Unlock()
	return g.started
}

// Scan implements Scanner. Advertisements matching f are delivered until ctx
// is cancelled, then the channel is closed.
func (g *MQTTGateway) Scan(ctx context.Context, f Filter) (<-chan Advertisement, error) {
	if !g.isStarted() {
		return nil, ErrNotConnected
	}

	s := &scanSession{filter: f, out: make(chan Advertisement, scanBufferSize)}

	g.sessionMu.Lock()
	g.nextID++
	id := g.nextID
	g.sessions[id] = s
	g.sessionMu.Unlock()

	go func() {
		<-ctx.Done()
		g.sessionMu.Lock()
		delete(g.sessions, id)
		close(s.out)
		g.sessionMu.Unlock()
	}()

	return s.out, nil
}

// Send implements Commander. It publishes the command and waits for the
// gateway's acknowledgement until ctx is done.
func (g *MQTTGateway) Send(ctx context.Context, address string, cmd Command) error {
	if !g.isStarted() {
		return ErrNotConnected
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	reply := make(chan ack, 1)
	g.pendingMu.Lock()
	g.pending[cmd.ID] = reply
	g.pendingMu.Unlock()
	defer func() {
		g.pendingMu.Lock()
		delete(g.pending, cmd.ID)
		g.pendingMu.Unlock()
	}()

	topic := fmt.Sprintf("%s/cmd/%s", g.prefix, NormalizeAddress(address))
	if err := g.client.Publish(topic, payload, gatewayQoS, false); err != nil {
		return fmt.Errorf("publishing command: %w", err)
	}

	select {
	case a := <-reply:
		if !a.OK {
			return fmt.Errorf("%w: %s %s: %s", ErrCommandFailed, cmd.Action, address, a.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s %s: %w", ErrAckTimeout, cmd.Action, address, ctx.Err())
	}
}

func (g *MQTTGateway) handleAdvertisement(topic string, payload []byte) {
	var ad Advertisement
	if err := json.Unmarshal(payload, &ad); err != nil {
		g.getLogger().Warn("invalid advertisement", "topic", topic, "error", err)
		return
	}
	if ad.Address == "" {
		ad.Address = topic[strings.LastIndex(topic, "/")+1:]
	}
	ad.ReceivedAt = g.now()

	g.sessionMu.Lock()
	defer g.sessionMu.Unlock()
	for _, s := range g.sessions {
		if !s.filter.Matches(ad) {
			continue
		}
		select {
		case s.out <- ad:
		default:
			g.getLogger().Debug("scan buffer full, advertisement dropped", "address", ad.Address)
		}
	}
}

func (g *MQTTGateway) handleAck(topic string, payload []byte) {
	var a ack
	if err := json.Unmarshal(payload, &a); err != nil {
		g.getLogger().Warn("invalid command acknowledgement", "topic", topic, "error", err)
		return
	}

	g.pendingMu.Lock()
	reply, ok := g.pending[a.ID]
	g.pendingMu.Unlock()
	if !ok {
		g.getLogger().Debug("acknowledgement for unknown command", "id", a.ID)
		return
	}

	select {
	case reply <- a:
	default:
	}
}
