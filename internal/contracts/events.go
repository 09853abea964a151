package contracts

import "time"

// EventType names a pipeline decision point
type EventType string

const (
	EventRunStarted        EventType = "run_started"
	EventStageCompleted    EventType = "stage_completed"
	EventCandidateSelected EventType = "candidate_selected"
	EventGateDecided       EventType = "gate_decided"
	EventExecutionRecorded EventType = "execution_recorded"
	EventRunFinished       EventType = "run_finished"
	EventOutcomeRecorded   EventType = "outcome_recorded"
)

// Event is published at each decision point of a run.
// Consumers are observers only: nothing on the trade path reads them back.
type Event struct {
	Type   EventType      `json:"type"`
	RunID  string         `json:"run_id"`
	Stage  Stage          `json:"stage,omitempty"`
	Time   time.Time      `json:"time"`
	Result *StageResult   `json:"result,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Observer consumes events. OnEvent must not block.
type Observer interface {
	OnEvent(e Event)
}
