package task

import (
	"errors"
	"fmt"
	"time"
)

// Required column names, in their conventional order.
const (
	ColumnTaskID   = "task_id"
	ColumnWaitTime = "wait_time"
	ColumnTarget   = "target"
	ColumnAction   = "action"
	ColumnParam    = "param"
	ColumnPayload  = "payload"
)

// Columns lists every required column.
var Columns = []string{ColumnTaskID, ColumnWaitTime, ColumnTarget, ColumnAction, ColumnParam, ColumnPayload}

// ErrSchema is matched by every *SchemaError.
var ErrSchema = errors.New("task: schema violation")

// SchemaError describes the first problem found in a task list.
// Row is the zero-based data row index, or -1 for header problems.
type SchemaError struct {
	Row    int
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	if e == nil {
		return "task schema error"
	}
	if e.Row < 0 {
		return fmt.Sprintf("task list header: %s", e.Reason)
	}
	if e.Column == "" {
		return fmt.Sprintf("task list row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("task list row %d, column %s: %s", e.Row, e.Column, e.Reason)
}

// Is matches ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// Task is one row of the task list. Tasks are immutable once loaded.
type Task struct {
	ID       string        `json:"task_id"`
	Wait     time.Duration `json:"wait_time"`
	Target   string        `json:"target"`
	Action   string        `json:"action"`
	Param    string        `json:"param,omitempty"`
	Payload  string        `json:"payload,omitempty"`
	SourceNo int           `json:"source_line"` // 1-based line in the source file
}

// List is an ordered, validated task list. List order is execution order.
type List struct {
	tasks []Task
}

// Len returns the number of tasks.
func (l *List) Len() int {
	return len(l.tasks)
}

// At returns the task at row i.
func (l *List) At(i int) Task {
	return l.tasks[i]
}

// All returns a copy of the tasks in order.
func (l *List) All() []Task {
	out := make([]Task, len(l.tasks))
	copy(out, l.tasks)
	return out
}

// TotalWait returns the sum of all inter-task waits.
func (l *List) TotalWait() time.Duration {
	var total time.Duration
	for _, t := range l.tasks {
		total += t.Wait
	}
	return total
}
