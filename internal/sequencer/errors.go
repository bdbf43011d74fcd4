package sequencer

import (
	"errors"
	"fmt"
)

// Sentinel errors for the sequencer.
var (
	// ErrAlreadyRunning is returned when Run is called while a run is in progress.
	ErrAlreadyRunning = errors.New("sequencer: run already in progress")

	// ErrUnknownTarget is returned when a task's target is not registered.
	ErrUnknownTarget = errors.New("sequencer: unknown target")

	// ErrUnknownAction is returned when an action is not legal for the target kind.
	ErrUnknownAction = errors.New("sequencer: unknown action")

	// ErrInvalidParam is returned when a task's param or payload cannot be used.
	ErrInvalidParam = errors.New("sequencer: invalid parameter")

	// ErrStopped is returned when the run is cancelled between attempts or during a wait.
	ErrStopped = errors.New("sequencer: run stopped")

	// ErrNilList is returned when Run is given a nil task list. An empty list
	// is valid and completes with zero rows.
	ErrNilList = errors.New("sequencer: task list is nil")
)

// HaltError identifies the task that stopped a run.
type HaltError struct {
	TaskID string
	Row    int
	Err    error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("halted at row %d (task %s): %v", e.Row, e.TaskID, e.Err)
}

func (e *HaltError) Unwrap() error {
	return e.Err
}

// IsResolution reports whether err is a target, action or parameter problem,
// i.e. something a dry validation run would have caught.
func IsResolution(err error) bool {
	return errors.Is(err, ErrUnknownTarget) ||
		errors.Is(err, ErrUnknownAction) ||
		errors.Is(err, ErrInvalidParam)
}
