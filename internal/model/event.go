// internal/model/event.go
package model

import "time"

// EventType represents the type of event delivered to consumers
type EventType string

const (
	EventStateChanged   EventType = "state_changed"
	EventReadingDecoded EventType = "reading_decoded"
)

// StateChange is emitted once per transport outcome
type StateChange struct {
	DeviceID       string            `json:"device_id"`
	State          ConnectionState   `json:"state"`
	Outcome        ConnectionOutcome `json:"outcome"`
	Classification string            `json:"classification"`
	Message        string            `json:"message"`
	Timestamp      time.Time         `json:"timestamp"`
}

// NewStateChange builds the event for an outcome
func NewStateChange(deviceID string, outcome ConnectionOutcome, at time.Time) StateChange {
	return StateChange{
		DeviceID:       deviceID,
		State:          outcome.ResultingState(),
		Outcome:        outcome,
		Classification: outcome.String(),
		Message:        outcome.Message(),
		Timestamp:      at,
	}
}

// ReadingEvent is emitted once per successfully decoded frame
type ReadingEvent struct {
	DeviceID  string    `json:"device_id"`
	Reading   Reading   `json:"reading"`
	Timestamp time.Time `json:"timestamp"`
}
