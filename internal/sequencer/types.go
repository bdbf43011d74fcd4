package sequencer

import "time"

// State is the dispatcher's lifecycle state.
type State string

// Dispatcher states. Completed and Halted are terminal for a run; a new Run
// always starts again from row 0.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateHalted    State = "halted"
)

// Status is the result of one task.
type Status string

// Task statuses.
const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusValidated Status = "validated" // dry run: built but not sent
)

// Options control a single run.
type Options struct {
	// DryRun resolves, maps and builds every task without waiting or
	// sending anything.
	DryRun bool

	// Source names the task list (usually its path) for the journal.
	Source string
}

// Outcome records what happened to one task.
type Outcome struct {
	RunID    string    `json:"run_id"`
	Row      int       `json:"row"`
	TaskID   string    `json:"task_id"`
	Target   string    `json:"target"`
	Action   string    `json:"action"`
	Status   Status    `json:"status"`
	Reason   string    `json:"reason,omitempty"`
	Attempts int       `json:"attempts"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Duration returns how long the task's action took, excluding its wait.
func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// Execution tracks a single run of a task list.
type Execution struct {
	ID         string     `json:"id"`
	Source     string     `json:"source,omitempty"`
	DryRun     bool       `json:"dry_run"`
	State      State      `json:"state"`
	Total      int        `json:"total"`
	Completed  int        `json:"completed"`
	Cursor     int        `json:"cursor"` // row currently waiting or executing
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	HaltTaskID string     `json:"halt_task_id,omitempty"`
	HaltRow    *int       `json:"halt_row,omitempty"`
	HaltReason string     `json:"halt_reason,omitempty"`
}

// Observer receives run progress. Calls are made synchronously from the
// dispatching goroutine, in order, so implementations must not block for
// long. Observers report their own failures; they cannot stop a run.
type Observer interface {
	RunStarted(exec Execution)
	TaskFinished(outcome Outcome)
	RunFinished(exec Execution)
}

// Logger defines the logging interface used by the Dispatcher.
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
