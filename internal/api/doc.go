// Package api serves the status and control API.
//
// Routes (all under /api/v1 except /metrics):
//
//	GET  /health       liveness plus the current run state
//	GET  /system       runtime, websocket, broker and journal summary
//	GET  /run          live execution snapshot
//	POST /run/stop     cancel the current run (operator role)
//	GET  /devices      registered devices and their advisory state
//	GET  /runs         recent journal runs
//	GET  /runs/{id}    one journal run with its task outcomes
//	GET  /audit        who started, stopped or interrupted runs
//	GET  /ws           websocket stream of run.state and run.task events
//	GET  /metrics      Prometheus exposition
//
// When security.jwt.secret is set every route except /health, /system and
// /metrics requires a bearer token (or a token query parameter for /ws).
// Stopping a run requires the operator role.
//
// The API only observes and cancels. It cannot start runs or send device
// commands.
package api
