package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/ugoku-core/internal/sequencer"
)

// Measurement names.
const (
	MeasurementTaskOutcome = "task_outcome"
	MeasurementRun         = "run"
)

// WriteTaskOutcome records one task's result. Tags are the low-cardinality
// target, action and status; the run and task IDs are fields.
func (c *Client) WriteTaskOutcome(o sequencer.Outcome) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(taskOutcomePoint(o))
}

// WriteRun records a finished run's totals.
func (c *Client) WriteRun(exec sequencer.Execution) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(runPoint(exec))
}

// RunStarted implements sequencer.Observer. Only finished runs are written.
func (c *Client) RunStarted(sequencer.Execution) {}

// TaskFinished implements sequencer.Observer.
func (c *Client) TaskFinished(o sequencer.Outcome) { c.WriteTaskOutcome(o) }

// RunFinished implements sequencer.Observer.
func (c *Client) RunFinished(exec sequencer.Execution) { c.WriteRun(exec) }

func taskOutcomePoint(o sequencer.Outcome) *write.Point {
	ts := o.Finished
	if ts.IsZero() {
		ts = time.Now()
	}
	fields := map[string]interface{}{
		"run_id":      o.RunID,
		"task_id":     o.TaskID,
		"row":         o.Row,
		"attempts":    o.Attempts,
		"duration_ms": float64(o.Duration()) / float64(time.Millisecond),
	}
	if o.Reason != "" {
		fields["reason"] = o.Reason
	}
	return write.NewPoint(
		MeasurementTaskOutcome,
		map[string]string{
			"target": o.Target,
			"action": o.Action,
			"status": string(o.Status),
		},
		fields,
		ts,
	)
}

func runPoint(exec sequencer.Execution) *write.Point {
	ts := time.Now()
	if exec.FinishedAt != nil {
		ts = *exec.FinishedAt
	}
	return write.NewPoint(
		MeasurementRun,
		map[string]string{
			"state":   string(exec.State),
			"dry_run": strconv.FormatBool(exec.DryRun),
		},
		map[string]interface{}{
			"run_id":    exec.ID,
			"total":     exec.Total,
			"completed": exec.Completed,
		},
		ts,
	)
}
