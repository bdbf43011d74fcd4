package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/ugoku-core/internal/retry"
	"github.com/nerrad567/ugoku-core/internal/task"
)

// Dispatcher replays a task list against registered devices.
//
// Rows run strictly in order, one at a time. Each row's wait elapses before
// its action. The first failure of any kind halts the run; there is no
// skip-and-continue and no resume. A new Run always starts from row 0.
//
// Thread Safety:
//   - Run refuses to start while another Run is in progress.
//   - State and Snapshot are safe to call from other goroutines at any time.
type Dispatcher struct {
	devices    Resolver
	cameras    map[string]CameraClient
	turntables map[string]TurntableDriver
	observers  []Observer
	logger     Logger

	// Replaced in tests.
	wait  func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string

	mu      sync.RWMutex
	running bool
	exec    Execution
}

// NewDispatcher creates a dispatcher that resolves targets with devices.
// Camera clients and turntable drivers are attached with AddCamera and
// AddTurntable before the first Run.
func NewDispatcher(devices Resolver, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		devices:    devices,
		cameras:    make(map[string]CameraClient),
		turntables: make(map[string]TurntableDriver),
		logger:     logger,
		wait:       wait,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		exec:       Execution{State: StateIdle},
	}
}

// AddCamera attaches the client used for camera id.
func (d *Dispatcher) AddCamera(id string, c CameraClient) {
	d.cameras[id] = c
}

// AddTurntable attaches the driver used for turntable id.
func (d *Dispatcher) AddTurntable(id string, t TurntableDriver) {
	d.turntables[id] = t
}

// AddObserver registers an observer for run progress.
func (d *Dispatcher) AddObserver(o Observer) {
	if o != nil {
		d.observers = append(d.observers, o)
	}
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.exec.State
}

// Snapshot returns a copy of the current or most recent execution.
func (d *Dispatcher) Snapshot() Execution {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.exec
}

// Run executes list from row 0 and returns the finished execution.
//
// Returns:
//   - nil when every row completed (or validated, in dry mode)
//   - *HaltError wrapping the row's failure when the run halted
//   - ErrAlreadyRunning if another Run is in progress
//
// Cancelling ctx stops the run at the next safe point: during a wait, or
// between retry attempts. An attempt already in flight is never severed.
func (d *Dispatcher) Run(ctx context.Context, list *task.List, opts Options) (Execution, error) {
	if list == nil {
		return Execution{}, ErrNilList
	}

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return Execution{}, ErrAlreadyRunning
	}
	d.running = true
	d.exec = Execution{
		ID:        d.newID(),
		Source:    opts.Source,
		DryRun:    opts.DryRun,
		State:     StateRunning,
		Total:     list.Len(),
		StartedAt: d.now(),
	}
	start := d.exec
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	d.logger.Info("run started",
		"run_id", start.ID,
		"tasks", start.Total,
		"dry_run", opts.DryRun,
		"total_wait", list.TotalWait(),
	)
	for _, o := range d.observers {
		o.RunStarted(start)
	}

	var halt *HaltError
	for row := 0; row < list.Len(); row++ {
		t := list.At(row)
		d.setCursor(row)

		outcome, err := d.runTask(ctx, start.ID, row, t, opts.DryRun)
		d.notify(outcome)
		if err != nil {
			halt = &HaltError{TaskID: t.ID, Row: row, Err: err}
			break
		}
		d.markCompleted()
	}

	final := d.finish(halt)

	if halt != nil {
		d.logger.Error("run halted",
			"run_id", final.ID,
			"task_id", halt.TaskID,
			"row", halt.Row,
			"completed", final.Completed,
			"error", halt.Err,
		)
	} else {
		d.logger.Info("run completed",
			"run_id", final.ID,
			"tasks", final.Total,
			"dry_run", final.DryRun,
			"duration", final.FinishedAt.Sub(final.StartedAt),
		)
	}
	for _, o := range d.observers {
		o.RunFinished(final)
	}

	if halt != nil {
		return final, halt
	}
	return final, nil
}

// runTask waits, builds and sends one task. It always returns an outcome.
func (d *Dispatcher) runTask(ctx context.Context, runID string, row int, t task.Task, dry bool) (Outcome, error) {
	outcome := Outcome{
		RunID:  runID,
		Row:    row,
		TaskID: t.ID,
		Target: t.Target,
		Action: t.Action,
	}

	if !dry {
		if err := d.wait(ctx, t.Wait); err != nil {
			return d.fail(outcome, d.now(), err), err
		}
	}

	outcome.Started = d.now()
	d.logger.Info("executing task",
		"run_id", runID,
		"row", row,
		"task_id", t.ID,
		"target", t.Target,
		"action", t.Action,
	)

	s, err := d.build(t)
	if err != nil {
		return d.fail(outcome, outcome.Started, err), err
	}

	if dry {
		outcome.Status = StatusValidated
		outcome.Finished = d.now()
		return outcome, nil
	}

	if s.send != nil {
		attempts, sendErr := s.send(ctx)
		outcome.Attempts = attempts
		if sendErr != nil {
			return d.fail(outcome, outcome.Started, sendErr), sendErr
		}
	}

	outcome.Status = StatusCompleted
	outcome.Finished = d.now()
	return outcome, nil
}

func (d *Dispatcher) fail(o Outcome, started time.Time, err error) Outcome {
	if o.Started.IsZero() {
		o.Started = started
	}
	o.Status = StatusFailed
	o.Reason = err.Error()
	o.Finished = d.now()
	return o
}

func (d *Dispatcher) notify(o Outcome) {
	if o.Status == StatusFailed {
		d.logger.Warn("task failed",
			"run_id", o.RunID,
			"row", o.Row,
			"task_id", o.TaskID,
			"attempts", o.Attempts,
			"reason", o.Reason,
		)
	} else {
		d.logger.Debug("task finished",
			"run_id", o.RunID,
			"row", o.Row,
			"task_id", o.TaskID,
			"status", o.Status,
			"attempts", o.Attempts,
			"duration", o.Duration(),
		)
	}
	for _, obs := range d.observers {
		obs.TaskFinished(o)
	}
}

func (d *Dispatcher) setCursor(row int) {
	d.mu.Lock()
	d.exec.Cursor = row
	d.mu.Unlock()
}

func (d *Dispatcher) markCompleted() {
	d.mu.Lock()
	d.exec.Completed++
	d.mu.Unlock()
}

func (d *Dispatcher) finish(halt *HaltError) Execution {
	d.mu.Lock()
	defer d.mu.Unlock()

	finished := d.now()
	d.exec.FinishedAt = &finished
	if halt != nil {
		row := halt.Row
		d.exec.State = StateHalted
		d.exec.HaltTaskID = halt.TaskID
		d.exec.HaltRow = &row
		d.exec.HaltReason = halt.Err.Error()
	} else {
		d.exec.State = StateCompleted
	}
	return d.exec
}

// wait blocks for d or until ctx is done. A zero wait still observes a
// cancelled context so a stop takes effect before the next row.
func wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStopped, err)
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
	}
}

// Stopped reports whether err means the run was stopped rather than failed.
func Stopped(err error) bool {
	return errors.Is(err, ErrStopped) || errors.Is(err, retry.ErrCancelled)
}
