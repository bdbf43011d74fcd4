package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ugoku-core/internal/infrastructure/config"
	"github.com/nerrad567/ugoku-core/internal/sequencer"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, payload, qos, retained})
	return f.err
}

type captureLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *captureLogger) Error(string, ...any) {}
func (l *captureLogger) Info(string, ...any)  {}
func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", Topics{}.SystemStatus(), "ugoku/system/status"},
		{"state", Topics{}.RunState("r1"), "ugoku/run/r1/state"},
		{"task", Topics{}.RunTask("r1"), "ugoku/run/r1/task"},
		{"all runs", Topics{}.AllRuns(), "ugoku/run/#"},
		{"stop", Topics{}.ControlStop(), "ugoku/control/stop"},
		{"sanitized", Topics{}.RunTask("a/b+#"), "ugoku/run/a_b__/task"},
		{"empty id", Topics{}.RunState(""), "ugoku/run/_/state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 8883, TLS: true, ClientID: "ugoku-test"},
		Auth:   config.MQTTAuthConfig{Username: "studio", Password: "secret"},
		QoS:    1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 2,
			MaxDelay:     30,
		},
	}
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://broker.local:8883" {
		t.Errorf("Servers = %v, want [ssl://broker.local:8883]", opts.Servers)
	}
	if opts.ClientID != "ugoku-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "studio" || opts.Password != "secret" {
		t.Errorf("credentials not applied")
	}
	if opts.MaxReconnectInterval != 30*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 30s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig not set for ssl broker")
	}

	configureLWT(opts, "ugoku-test")
	if !opts.WillEnabled || opts.WillTopic != "ugoku/system/status" || !opts.WillRetained {
		t.Errorf("will = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	var will statusMessage
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if will.Status != "offline" || will.Reason != "unexpected_disconnect" {
		t.Errorf("will = %+v", will)
	}
}

func TestClient_ValidatesBeforeConnecting(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("a", nil, 3, false), ErrInvalidQoS},
		{"publish oversized", c.Publish("a", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("a", []byte("x"), 1, false), ErrNotConnected},
		{"subscribe nil handler", c.Subscribe("a", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("a", 1, noop), ErrNotConnected},
		{"unsubscribe empty", c.Unsubscribe(""), ErrInvalidTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("err = %v, want %v", tt.err, tt.want)
			}
		})
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("failed subscribe was remembered")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on unconnected client: %v", err)
	}
}

func TestDispatch_RecoversPanic(t *testing.T) {
	log := &captureLogger{}
	c := &Client{}
	c.SetLogger(log)

	c.dispatch(func(string, []byte) error { panic("boom") }, "t", nil)
	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "t", nil)

	if len(log.warns) != 1 || !strings.Contains(log.warns[0], "handler returned error") {
		t.Errorf("warns = %v", log.warns)
	}
}

func TestRunPublisher(t *testing.T) {
	pub := &fakePublisher{}
	p := NewRunPublisher(pub, 1, nil)

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	exec := sequencer.Execution{ID: "run-1", State: sequencer.StateRunning, Total: 2, StartedAt: start}
	p.RunStarted(exec)
	p.TaskFinished(sequencer.Outcome{
		RunID: "run-1", Row: 0, TaskID: "t1", Target: "cam1", Action: "shutter",
		Status: sequencer.StatusCompleted, Attempts: 1, Started: start, Finished: start,
	})
	exec.State = sequencer.StateHalted
	p.RunFinished(exec)

	if len(pub.msgs) != 3 {
		t.Fatalf("published %d messages, want 3", len(pub.msgs))
	}

	wantTopics := []string{"ugoku/run/run-1/state", "ugoku/run/run-1/task", "ugoku/run/run-1/state"}
	wantRetained := []bool{true, false, true}
	for i, m := range pub.msgs {
		if m.topic != wantTopics[i] || m.retained != wantRetained[i] || m.qos != 1 {
			t.Errorf("msg %d = %s retained=%v qos=%d", i, m.topic, m.retained, m.qos)
		}
	}

	var outcome sequencer.Outcome
	if err := json.Unmarshal(pub.msgs[1].payload, &outcome); err != nil {
		t.Fatalf("task payload: %v", err)
	}
	if outcome.TaskID != "t1" || outcome.Status != sequencer.StatusCompleted {
		t.Errorf("outcome = %+v", outcome)
	}

	var state runStateMessage
	if err := json.Unmarshal(pub.msgs[2].payload, &state); err != nil {
		t.Fatalf("state payload: %v", err)
	}
	if state.Event != "halted" || state.Execution.ID != "run-1" {
		t.Errorf("state = %+v", state)
	}
}

func TestRunPublisher_ErrorsAreLogged(t *testing.T) {
	pub := &fakePublisher{err: ErrNotConnected}
	log := &captureLogger{}
	p := NewRunPublisher(pub, 0, log)

	p.RunStarted(sequencer.Execution{ID: "r"})
	p.TaskFinished(sequencer.Outcome{RunID: "r"})

	if len(log.warns) != 2 {
		t.Errorf("warns = %v, want 2", log.warns)
	}
}

func TestStopHandler(t *testing.T) {
	stopped := 0
	h := StopHandler(func() { stopped++ }, nil)

	if err := h(Topics{}.ControlStop(), []byte(`{"reason":"operator"}`)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if err := h(Topics{}.ControlStop(), nil); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if stopped != 2 {
		t.Errorf("stop called %d times, want 2", stopped)
	}
}
