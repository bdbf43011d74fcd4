package mqtt

import "strings"

// TopicPrefix is the root of every topic this process publishes or reads.
const TopicPrefix = "ugoku"

// Topics builds topic names.
//
//	ugoku/system/status           retained online/offline
//	ugoku/run/{run_id}/state      run started, completed or halted
//	ugoku/run/{run_id}/task       one message per task outcome
//	ugoku/control/stop            any message stops the current run
type Topics struct{}

// SystemStatus is the retained online/offline topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// RunState carries run lifecycle changes.
func (Topics) RunState(runID string) string {
	return TopicPrefix + "/run/" + sanitize(runID) + "/state"
}

// RunTask carries per-task outcomes.
func (Topics) RunTask(runID string) string {
	return TopicPrefix + "/run/" + sanitize(runID) + "/task"
}

// AllRuns matches every run topic.
func (Topics) AllRuns() string {
	return TopicPrefix + "/run/#"
}

// ControlStop is the remote stop topic.
func (Topics) ControlStop() string {
	return TopicPrefix + "/control/stop"
}

// sanitize keeps an ID from adding levels or wildcards to a topic.
func sanitize(id string) string {
	if id == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(id)
}
