package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/rcp-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Broker tests need a running broker at 127.0.0.1:1883 and skip otherwise.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "rcp-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

const testPresenceTopic = "rcptest/rcp/v1/$engine/state"

// connectOrSkip connects to the local broker or skips the test.
func connectOrSkip(t *testing.T, cfg config.MQTTConfig) *Client {
	t.Helper()

	addr := net.JoinHostPort(cfg.Broker.Host, "1883")
	conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	if err != nil {
		t.Skipf("no MQTT broker at %s: %v", addr, err)
	}
	conn.Close()

	client, err := Connect(cfg, testPresenceTopic)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

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

// =============================================================================
// Option Tests
// =============================================================================

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name string
		b    config.MQTTBrokerConfig
		want string
	}{
		{"plain", config.MQTTBrokerConfig{Host: "localhost", Port: 1883}, "tcp://localhost:1883"},
		{"tls", config.MQTTBrokerConfig{Host: "broker.lab", Port: 8883, TLS: true}, "ssl://broker.lab:8883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := brokerURL(tt.b); got != tt.want {
				t.Errorf("brokerURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUniqueClientID(t *testing.T) {
	a := uniqueClientID("rcp-engine")
	b := uniqueClientID("rcp-engine")

	if !strings.HasPrefix(a, "rcp-engine-") || len(a) != len("rcp-engine-")+8 {
		t.Errorf("uniqueClientID() = %q, want rcp-engine- plus 8 characters", a)
	}
	if a == b {
		t.Errorf("uniqueClientID() returned %q twice", a)
	}
	if got := uniqueClientID(""); !strings.HasPrefix(got, defaultClientID+"-") {
		t.Errorf("uniqueClientID(\"\") = %q, want %s prefix", got, defaultClientID)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "engine", Password: "secret"}

	opts := buildClientOptions(cfg, "rcp-test-1")

	if opts.ClientID != "rcp-test-1" {
		t.Errorf("ClientID = %q, want rcp-test-1", opts.ClientID)
	}
	if opts.Username != "engine" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want engine/secret", opts.Username, opts.Password)
	}
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if !opts.AutoReconnect || !opts.CleanSession || !opts.Order {
		t.Errorf("AutoReconnect/CleanSession/Order = %v/%v/%v, want all true",
			opts.AutoReconnect, opts.CleanSession, opts.Order)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig(), "rcp-test-1")
	configureLWT(opts, testPresenceTopic, "rcp-test-1")

	if !opts.WillEnabled || opts.WillTopic != testPresenceTopic {
		t.Fatalf("will = %v on %q, want enabled on %q", opts.WillEnabled, opts.WillTopic, testPresenceTopic)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will retained/qos = %v/%d, want true/1", opts.WillRetained, opts.WillQos)
	}

	var p presence
	if err := json.Unmarshal(opts.WillPayload, &p); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if p.Status != presenceOffline || p.Reason != reasonUnexpected || p.ClientID != "rcp-test-1" {
		t.Errorf("will payload = %+v", p)
	}
}

func TestBuildPresencePayload(t *testing.T) {
	var p presence
	if err := json.Unmarshal(buildPresencePayload(presenceOnline, "c1", ""), &p); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if p.Status != presenceOnline || p.ClientID != "c1" {
		t.Errorf("payload = %+v, want online for c1", p)
	}
	if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not RFC3339: %v", p.Timestamp, err)
	}
}

// =============================================================================
// Offline Client Tests
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := &Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"single-level wildcard", "xflow/rcp/v1/+/status", []byte("x"), 1, ErrInvalidTopic},
		{"multi-level wildcard", "xflow/rcp/v1/#", []byte("x"), 1, ErrInvalidTopic},
		{"NUL in topic", "xflow/rcp\x00/v1", []byte("x"), 1, ErrInvalidTopic},
		{"bad qos", "a/b", []byte("x"), 3, ErrInvalidQoS},
		{"too large", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPayloadTooLarge},
		{"disconnected", "a/b", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"hash not last", "xflow/#/cmd", 1, handler, ErrInvalidTopic},
		{"plus inside level", "xflow/rcp/v1/robot+/cmd/+", 1, handler, ErrInvalidTopic},
		{"bad qos", "a/+", 3, handler, ErrInvalidQoS},
		{"nil handler", "a/+", 1, nil, ErrSubscribeFailed},
		{"disconnected", "a/+", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if n := client.SubscriptionCount(); n != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", n)
	}
}

func TestCheckTopicFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{"xflow/rcp/v1/+/cmd/+", false},
		{"xflow/rcp/v1/#", false},
		{"#", false},
		{"+", false},
		{"xflow/rcp/v1/robot-1/status", false},
		{"", true},
		{"xflow/#/status", true},
		{"xflow/rcp#", true},
		{"xflow/+rcp/v1", true},
	}

	for _, tt := range tests {
		err := checkTopicFilter(tt.filter)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkTopicFilter(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("checkTopicFilter(%q) error = %v, want ErrInvalidTopic", tt.filter, err)
		}
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("a/+"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestDispatch(t *testing.T) {
	msg := fakeMessage{topic: "xflow/rcp/v1/r1/cmd/status", payload: []byte("{}")}

	t.Run("error is logged", func(t *testing.T) {
		logger := &mockLogger{}
		dispatch(msg, func(string, []byte) error { return errors.New("boom") }, logger)
		if len(logger.warns) != 1 {
			t.Errorf("warns = %v, want one entry", logger.warns)
		}
	})

	t.Run("panic is recovered", func(t *testing.T) {
		logger := &mockLogger{}
		dispatch(msg, func(string, []byte) error { panic("bad handler") }, logger)
		if len(logger.errors) != 1 {
			t.Errorf("errors = %v, want one entry", logger.errors)
		}
	})

	t.Run("handler sees topic and payload", func(t *testing.T) {
		var gotTopic, gotPayload string
		dispatch(msg, func(topic string, payload []byte) error {
			gotTopic, gotPayload = topic, string(payload)
			return nil
		}, nil)
		if gotTopic != msg.topic || gotPayload != "{}" {
			t.Errorf("handler got %q %q", gotTopic, gotPayload)
		}
	})
}

// =============================================================================
// Broker Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectOrSkip(t, testConfig())

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if !strings.HasPrefix(client.ClientID(), "rcp-test-") {
		t.Errorf("ClientID() = %q, want rcp-test- prefix", client.ClientID())
	}
}

func TestClose(t *testing.T) {
	client := connectOrSkip(t, testConfig())

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
	if err := client.Publish("rcptest/x", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	client := connectOrSkip(t, testConfig())
	handler := func(string, []byte) error { return nil }

	topics := []string{"rcptest/a/cmd/+", "rcptest/b/cmd/+", "rcptest/c/cmd/+"}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if n := client.SubscriptionCount(); n != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", n, len(topics))
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topics[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", topics[0])
	}
	if n := client.SubscriptionCount(); n != len(topics)-1 {
		t.Errorf("SubscriptionCount() = %d, want %d", n, len(topics)-1)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	pub := connectOrSkip(t, testConfig())
	sub := connectOrSkip(t, testConfig())

	pattern := "rcptest/rcp/v1/+/status"
	received := make(chan string, 3)
	err := sub.Subscribe(pattern, 1, func(topic string, _ []byte) error {
		received <- topic
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	want := []string{"rcptest/rcp/v1/r1/status", "rcptest/rcp/v1/r2/status", "rcptest/rcp/v1/r3/status"}
	for _, topic := range want {
		if err := pub.Publish(topic, []byte(`{"id":"x"}`), 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	// Ordered delivery: the topics come back in publish order.
	for i, topic := range want {
		select {
		case got := <-received:
			if got != topic {
				t.Errorf("message %d on %q, want %q", i, got, topic)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for %s", topic)
		}
	}
}

func TestPresenceRetained(t *testing.T) {
	client := connectOrSkip(t, testConfig())

	got := make(chan presence, 8)
	err := client.Subscribe(testPresenceTopic, 1, func(_ string, payload []byte) error {
		var p presence
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		select {
		case got <- p:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// An earlier client's offline message may arrive first.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p := <-got:
			if p.Status == presenceOnline && p.ClientID == client.ClientID() {
				return
			}
		case <-timeout:
			t.Fatal("no online presence message for this client")
		}
	}
}
