package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/ugoku-core/internal/sequencer"
	"github.com/nerrad567/ugoku-core/internal/transport"
)

func scrape(t *testing.T, m *Metrics) (int, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Code, rr.Body.String()
}

func TestHandler_nilMetrics(t *testing.T) {
	var m *Metrics

	// Every observer method must tolerate a nil receiver.
	m.ObserveAttempt("http", transport.OutcomeOK, time.Millisecond)
	m.RunStarted(sequencer.Execution{})
	m.TaskFinished(sequencer.Outcome{})
	m.RunFinished(sequencer.Execution{})
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)

	code, body := scrape(t, m)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if !strings.Contains(body, "metrics unavailable") {
		t.Fatalf("expected body to mention metrics unavailable, got %q", body)
	}
}

func TestHandler_exposesRunMetrics(t *testing.T) {
	m := New()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m.RunStarted(sequencer.Execution{ID: "r"})
	m.ObserveAttempt("http", transport.OutcomeRetryable, 20*time.Millisecond)
	m.ObserveAttempt("http", transport.OutcomeOK, 10*time.Millisecond)
	m.TaskFinished(sequencer.Outcome{Action: "shutter", Status: sequencer.StatusCompleted, Started: start, Finished: start.Add(time.Second)})
	m.TaskFinished(sequencer.Outcome{Action: "cw", Status: sequencer.StatusFailed, Started: start, Finished: start})
	m.RunFinished(sequencer.Execution{ID: "r", State: sequencer.StateHalted})

	code, body := scrape(t, m)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}

	for _, want := range []string{
		`ugoku_task_outcomes_total{action="shutter",status="completed"} 1`,
		`ugoku_task_outcomes_total{action="cw",status="failed"} 1`,
		`ugoku_task_duration_seconds_count{action="shutter"} 1`,
		`ugoku_transport_attempts_total{kind="http",outcome="retryable"} 1`,
		`ugoku_transport_attempts_total{kind="http",outcome="ok"} 1`,
		`ugoku_runs_total{state="halted"} 1`,
		`ugoku_run_active 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in scrape", want)
		}
	}
}

func TestDryRunSkipsDuration(t *testing.T) {
	m := New()
	m.TaskFinished(sequencer.Outcome{Action: "shutter", Status: sequencer.StatusValidated})

	_, body := scrape(t, m)
	if !strings.Contains(body, `ugoku_task_outcomes_total{action="shutter",status="validated"} 1`) {
		t.Error("validated outcome not counted")
	}
	if strings.Contains(body, `ugoku_task_duration_seconds_count{action="shutter"}`) {
		t.Error("validated outcome should not observe a duration")
	}
}
