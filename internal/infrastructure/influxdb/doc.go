// Package influxdb writes run timing series to InfluxDB v2.
//
// Each finished task becomes a task_outcome point (tags target, action,
// status; fields duration_ms, attempts, row, run_id, task_id) and each
// finished run a run point. The Client implements sequencer.Observer so it
// is attached to the dispatcher like any other observer.
//
// Writes are batched and asynchronous. A write failure is reported through
// SetOnError and never affects the run.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
//	    return err
//	}
//	if client != nil {
//	    defer client.Close()
//	    client.SetOnError(func(err error) { log.Warn("influx write failed", "error", err) })
//	    dispatcher.AddObserver(client)
//	}
package influxdb
