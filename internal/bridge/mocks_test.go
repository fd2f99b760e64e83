package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/cloud"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// memRepo is an in-memory device.ContextRepository.
type memRepo struct {
	mu       sync.Mutex
	contexts map[string]*device.Context
}

func newMemRepo() *memRepo {
	return &memRepo{contexts: make(map[string]*device.Context)}
}

func (r *memRepo) Get(_ context.Context, id string) (*device.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contexts[id]
	if !ok {
		return nil, device.ErrContextNotFound
	}
	return c.DeepCopy(), nil
}

func (r *memRepo) List(context.Context) ([]device.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]device.Context, 0, len(r.contexts))
	for _, c := range r.contexts {
		out = append(out, *c.DeepCopy())
	}
	return out, nil
}

func (r *memRepo) Save(_ context.Context, c *device.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[c.DeviceID] = c.DeepCopy()
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, id)
	return nil
}

// mockMQTT records publications and routes delivered messages to handlers.
type mockMQTT struct {
	mu        sync.Mutex
	connected bool
	published []publishedMessage
	handlers  map[string]func(topic string, payload []byte)
}

type publishedMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{connected: true, handlers: make(map[string]func(string, []byte))}
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMessage{topic: topic, payload: payload, retained: retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler func(string, []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockMQTT) setConnected(c bool) {
	m.mu.Lock()
	m.connected = c
	m.mu.Unlock()
}

// deliver hands a message to every handler whose filter matches the topic.
func (m *mockMQTT) deliver(topic string, payload []byte) {
	m.mu.Lock()
	var matched []func(string, []byte)
	for filter, h := range m.handlers {
		if topicMatches(filter, topic) {
			matched = append(matched, h)
		}
	}
	m.mu.Unlock()
	for _, h := range matched {
		h(topic, payload)
	}
}

func (m *mockMQTT) subscribed(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

// last returns the last message published on topic.
func (m *mockMQTT) last(topic string) (publishedMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].topic == topic {
			return m.published[i], true
		}
	}
	return publishedMessage{}, false
}

func topicMatches(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) || (f != "+" && f != tp[i]) {
			return false
		}
	}
	return len(fp) == len(tp)
}

// mockCloud serves status bodies per device. Status blocks until the
// caller's context ends when block is set, so polling never races a test.
type mockCloud struct {
	mu          sync.Mutex
	credentials bool
	block       bool
	bodies      map[string]map[string]any
	list        *cloud.DeviceList
	listErr     error
	sent        []cloud.Command
}

func newMockCloud() *mockCloud {
	return &mockCloud{credentials: true, block: true, bodies: make(map[string]map[string]any)}
}

func (c *mockCloud) HasCredentials() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credentials
}

func (c *mockCloud) Status(ctx context.Context, id string) (*cloud.Response, error) {
	c.mu.Lock()
	block := c.block
	body := c.bodies[id]
	c.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &cloud.Response{HTTPStatus: 200, StatusCode: 100, Message: "success", Body: data}, nil
}

func (c *mockCloud) SendCommand(_ context.Context, _ string, cmd cloud.Command) (*cloud.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, cmd)
	return &cloud.Response{HTTPStatus: 200, StatusCode: 100, Message: "success"}, nil
}

func (c *mockCloud) Devices(context.Context) (*cloud.DeviceList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	if c.list == nil {
		return &cloud.DeviceList{}, nil
	}
	return c.list, nil
}

func (c *mockCloud) getSent() []cloud.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cloud.Command(nil), c.sent...)
}

// mockHub records WebSocket broadcasts.
type mockHub struct {
	mu     sync.Mutex
	events []string
}

func (h *mockHub) Broadcast(channel string, _ any) {
	h.mu.Lock()
	h.events = append(h.events, channel)
	h.mu.Unlock()
}

func (h *mockHub) count(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e == channel {
			n++
		}
	}
	return n
}

// mockRecorder records history samples, failing with err when set.
type mockRecorder struct {
	mu      sync.Mutex
	err     error
	sources []string
	samples []state.Values
}

func (r *mockRecorder) RecordStateChange(_ context.Context, _ string, values state.Values, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
	r.samples = append(r.samples, values.Clone())
	return r.err
}

func (r *mockRecorder) getSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sources...)
}

// mockTelemetryWriter records telemetry writes.
type mockTelemetryWriter struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (w *mockTelemetryWriter) WriteTelemetry(_, _ string, payload map[string]any) {
	w.mu.Lock()
	w.payloads = append(w.payloads, payload)
	w.mu.Unlock()
}

func testConfig(devices ...config.DeviceConfig) *config.Config {
	return &config.Config{
		Bridge: config.BridgeConfig{ID: "switchbot-test", HealthInterval: time.Hour},
		Reconcile: config.ReconcileConfig{
			RefreshRate: time.Hour,
			PushRate:    10 * time.Millisecond,
			RetryDelay:  10 * time.Millisecond,
		},
		Webhook: config.WebhookConfig{Enabled: true, Path: "/webhook", Topic: "switchbot/webhook"},
		Devices: devices,
	}
}

func lockConfig() config.DeviceConfig {
	return config.DeviceConfig{ID: "C0FFEE123456", Name: "Front Door", Type: "lock", Connection: "cloud"}
}

func irLightConfig() config.DeviceConfig {
	return config.DeviceConfig{ID: "IR-01", Name: "Hall Light", Type: "ir", RemoteType: "Light", Connection: "cloud"}
}

type testBridge struct {
	*Bridge
	mqtt     *mockMQTT
	cloud    *mockCloud
	hub      *mockHub
	recorder *mockRecorder
}

// startBridge starts a bridge over mocks and stops it when the test ends.
func startBridge(t *testing.T, cfg *config.Config) *testBridge {
	t.Helper()
	tb := &testBridge{
		mqtt:     newMockMQTT(),
		cloud:    newMockCloud(),
		hub:      &mockHub{},
		recorder: &mockRecorder{},
	}
	b, err := New(Options{
		Config:    cfg,
		Registry:  device.NewRegistry(newMemRepo()),
		Version:   "test",
		MQTT:      tb.mqtt,
		Cloud:     tb.cloud,
		Recorders: []reconcile.Recorder{tb.recorder},
		Hub:       tb.hub,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)
	tb.Bridge = b
	return tb
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
