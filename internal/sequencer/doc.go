// Package sequencer runs a validated task list against cameras and turntables.
//
// The Dispatcher is a small state machine:
//
//	idle -> running -> completed
//	                -> halted
//
// For each row, in order, it sleeps the row's wait_time, resolves the target,
// builds the device command and sends it. Camera commands go through the
// retrying executor; turntable commands are sent once. The first failure of
// any kind halts the run with a *HaltError naming the task and row.
//
// A dry run (Options.DryRun) resolves and builds every command without
// waiting or sending, so a bad target, action or parameter anywhere in the
// list is found before anything moves.
//
// Progress is reported to Observers: the run journal, MQTT, the websocket
// hub, metrics. Every attempted row produces exactly one Outcome.
package sequencer
