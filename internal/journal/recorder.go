package journal

import (
	"context"
	"time"

	"github.com/nerrad567/ugoku-core/internal/sequencer"
)

// writeTimeout bounds each journal write so a locked database cannot stall a run.
const writeTimeout = 5 * time.Second

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes run progress to a Repository. It implements
// sequencer.Observer. A failed write is logged and the run carries on:
// the journal is a record, not a gate.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, logger: logger}
}

// RunStarted inserts the run row.
func (r *Recorder) RunStarted(exec sequencer.Execution) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.CreateRun(ctx, exec); err != nil {
		r.logger.Error("journal: recording run start failed", "run_id", exec.ID, "error", err)
	}
}

// TaskFinished appends the outcome.
func (r *Recorder) TaskFinished(o sequencer.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.AddOutcome(ctx, o); err != nil {
		r.logger.Error("journal: recording outcome failed", "run_id", o.RunID, "task_id", o.TaskID, "error", err)
	}
}

// RunFinished records the final state.
func (r *Recorder) RunFinished(exec sequencer.Execution) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.FinishRun(ctx, exec); err != nil {
		r.logger.Warn("journal: recording run end failed", "run_id", exec.ID, "error", err)
	}
}
