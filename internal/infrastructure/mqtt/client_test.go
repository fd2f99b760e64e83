package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "switchbot-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// offlineClient is a client that never connected.
func offlineClient() *Client {
	return &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) counts() (errs, warns int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors), len(l.warns)
}

// =============================================================================
// Options
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "bridge", Password: "pw"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "switchbot-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "pw" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect and a clean session")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured without broker.tls")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS 1.2 minimum")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "switchbot-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Error("expected a retained will")
	}
	if opts.WillTopic != "switchbot/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var will map[string]string
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if will["status"] != "offline" || will["reason"] != "unexpected_disconnect" || will["client_id"] != "switchbot-test" {
		t.Errorf("will = %v", will)
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		status  string
	}{
		{"online", buildOnlinePayload("c1"), "online"},
		{"offline", buildOfflinePayload("c1"), "offline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p map[string]string
			if err := json.Unmarshal(tt.payload, &p); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if p["status"] != tt.status || p["client_id"] != "c1" || p["timestamp"] == "" {
				t.Errorf("payload = %v", p)
			}
		})
	}
}

// =============================================================================
// Validation without a broker
// =============================================================================

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := offlineClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "switchbot/state/A1", []byte("x"), 3, ErrInvalidQoS},
		{"too large", "switchbot/state/A1", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "switchbot/state/A1", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishJSON_EncodeError(t *testing.T) {
	c := offlineClient()
	err := c.PublishJSON("switchbot/state/A1", map[string]any{"bad": make(chan int)}, true)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := offlineClient()
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		want    error
	}{
		{"empty topic", "", 1, noop, ErrInvalidTopic},
		{"invalid qos", "switchbot/command/+", 3, noop, ErrInvalidQoS},
		{"nil handler", "switchbot/command/+", 1, nil, ErrSubscribeFailed},
		{"not connected", "switchbot/command/+", 1, noop, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Subscribe(tt.topic, tt.qos, tt.handler); !errors.Is(err, tt.want) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.want)
			}
		})
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	c := offlineClient()
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v", err)
	}
	if err := c.Unsubscribe("switchbot/webhook"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_Offline(t *testing.T) {
	c := offlineClient()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

// =============================================================================
// Handler wrapping
// =============================================================================

func TestWrapHandler_LogsErrorsAndPanics(t *testing.T) {
	c := offlineClient()
	logger := &mockLogger{}
	c.SetLogger(logger)

	msg := fakeMessage{topic: "switchbot/webhook", payload: []byte(`{}`)}

	c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })(nil, msg)
	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, msg)

	errs, warns := logger.counts()
	if errs != 1 || warns != 1 {
		t.Errorf("logged errors=%d warns=%d, want 1 and 1", errs, warns)
	}
}

func TestWrapHandler_PassesTopicAndPayload(t *testing.T) {
	c := offlineClient()
	var gotTopic, gotPayload string
	c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})(nil, fakeMessage{topic: "switchbot/command/A1", payload: []byte(`{"On":true}`)})

	if gotTopic != "switchbot/command/A1" || gotPayload != `{"On":true}` {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
}

func TestSetLogger(t *testing.T) {
	c := offlineClient()
	if c.getLogger() != nil {
		t.Error("getLogger() should start nil")
	}
	c.SetLogger(&mockLogger{})
	if c.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}
}

// =============================================================================
// Topics
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"State", topics.State("C0FFEE123456"), "switchbot/state/C0FFEE123456"},
		{"Fault", topics.Fault("C0FFEE123456"), "switchbot/fault/C0FFEE123456"},
		{"Command", topics.Command("C0FFEE123456"), "switchbot/command/C0FFEE123456"},
		{"Telemetry", topics.Telemetry("hub", "c0:ff:ee:12:34:56"), "switchbot/telemetry/hub/c0:ff:ee:12:34:56"},
		{"Webhook", topics.Webhook(), "switchbot/webhook"},
		{"SystemStatus", topics.SystemStatus(), "switchbot/system/status"},
		{"SystemHealth", topics.SystemHealth(), "switchbot/system/health"},
		{"AllStates", topics.AllStates(), "switchbot/state/+"},
		{"AllCommands", topics.AllCommands(), "switchbot/command/+"},
		{"AllTopics", topics.AllTopics(), "switchbot/#"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
			if !strings.HasPrefix(tt.got, TopicPrefix+"/") {
				t.Errorf("%s is outside the %s hierarchy", tt.name, TopicPrefix)
			}
		})
	}
}
