// Package journal keeps a durable record of runs in SQLite: one row per run
// and one row per attempted task, enough to tell after a halt which
// physical actions happened. The schema lives in the top-level migrations
// package.
package journal
