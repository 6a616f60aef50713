// internal/model/link.go
package model

import (
	"encoding/json"
	"fmt"
)

// ConnectionState represents the lifecycle state of the kit link
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
)

var connectionStateNames = map[ConnectionState]string{
	StateIdle:       "idle",
	StateConnecting: "connecting",
	StateConnected:  "connected",
}

func (s ConnectionState) String() string {
	if name, ok := connectionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// MarshalJSON encodes the state by name
func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ConnectionOutcome is the result a transport reports for a connection
// attempt or an unsolicited drop.
type ConnectionOutcome int

const (
	OutcomeConnected ConnectionOutcome = iota
	OutcomeDisconnected
	OutcomeNoDeviceFound
)

var outcomeCodes = map[ConnectionOutcome]string{
	OutcomeConnected:     "connected",
	OutcomeDisconnected:  "disconnected",
	OutcomeNoDeviceFound: "no_device_found",
}

var outcomeMessages = map[ConnectionOutcome]string{
	OutcomeConnected:     "Connected to the health kit.",
	OutcomeDisconnected:  "Connection to the health kit failed or ended.",
	OutcomeNoDeviceFound: "No health kit found to connect to.",
}

// String returns the classification code of the outcome
func (o ConnectionOutcome) String() string {
	if code, ok := outcomeCodes[o]; ok {
		return code
	}
	return fmt.Sprintf("ConnectionOutcome(%d)", int(o))
}

// Message returns the user-facing text for the outcome
func (o ConnectionOutcome) Message() string {
	if msg, ok := outcomeMessages[o]; ok {
		return msg
	}
	return "Unknown connection result."
}

// MarshalJSON encodes the outcome by classification code
func (o ConnectionOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// ResultingState returns the state a link enters after the outcome.
func (o ConnectionOutcome) ResultingState() ConnectionState {
	if o == OutcomeConnected {
		return StateConnected
	}
	return StateIdle
}

// Reading is one decoded telemetry frame. Values are display text exactly
// as the kit sent them.
type Reading struct {
	Heartbeat   string `json:"heartbeat"`
	Temperature string `json:"temperature"`
	Weight      string `json:"weight"`
}
