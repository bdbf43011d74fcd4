// Package task loads and validates the session task list.
//
// A task list is a CSV file with the columns task_id, wait_time, target,
// action, param and payload, one task per row. The whole file is validated
// before anything runs; the first problem is reported as a *SchemaError.
//
// Validation covers the schema only. Whether a target is registered and an
// action is legal for it is decided by the sequencer.
package task
