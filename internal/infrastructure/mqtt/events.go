package mqtt

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/ugoku-core/internal/sequencer"
)

// Publisher is the subset of Client used by RunPublisher.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// RunPublisher mirrors run progress onto MQTT. It implements
// sequencer.Observer.
type RunPublisher struct {
	pub    Publisher
	qos    byte
	logger Logger
}

// NewRunPublisher creates a publisher. logger may be nil.
func NewRunPublisher(pub Publisher, qos byte, logger Logger) *RunPublisher {
	return &RunPublisher{pub: pub, qos: qos, logger: logger}
}

// runStateMessage is published (retained) to ugoku/run/{id}/state.
type runStateMessage struct {
	Event     string              `json:"event"`
	Execution sequencer.Execution `json:"execution"`
	Timestamp string              `json:"timestamp"`
}

// RunStarted implements sequencer.Observer.
func (p *RunPublisher) RunStarted(exec sequencer.Execution) {
	p.publishState("started", exec)
}

// RunFinished implements sequencer.Observer.
func (p *RunPublisher) RunFinished(exec sequencer.Execution) {
	p.publishState(string(exec.State), exec)
}

// TaskFinished implements sequencer.Observer.
func (p *RunPublisher) TaskFinished(o sequencer.Outcome) {
	payload, err := json.Marshal(o)
	if err != nil {
		p.warn("marshal task outcome", o.RunID, err)
		return
	}
	if err := p.pub.Publish(Topics{}.RunTask(o.RunID), payload, p.qos, false); err != nil {
		p.warn("publish task outcome", o.RunID, err)
	}
}

func (p *RunPublisher) publishState(event string, exec sequencer.Execution) {
	payload, err := json.Marshal(runStateMessage{
		Event:     event,
		Execution: exec,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		p.warn("marshal run state", exec.ID, err)
		return
	}
	if err := p.pub.Publish(Topics{}.RunState(exec.ID), payload, p.qos, true); err != nil {
		p.warn("publish run state", exec.ID, err)
	}
}

func (p *RunPublisher) warn(op, runID string, err error) {
	if p.logger != nil {
		p.logger.Warn("mqtt "+op+" failed", "run_id", runID, "error", err)
	}
}

// StopHandler returns a handler for Topics.ControlStop. Any message calls
// stop; the payload is only logged.
func StopHandler(stop func(), logger Logger) MessageHandler {
	return func(topic string, payload []byte) error {
		if logger != nil {
			logger.Warn("remote stop requested", "topic", topic, "payload", string(payload))
		}
		stop()
		return nil
	}
}
