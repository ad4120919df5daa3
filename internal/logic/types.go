// Package logic contains the pure decision logic of the gas log controller:
// the safety governor, the operating window, duty-cycle math, thermostat
// hysteresis, operating-mode rules and thermostat-contact debouncing.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the debounced logical state of the thermostat contact.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// EventType represents a contact transition event.
type EventType string

const (
	EventHeatCallOn  EventType = "HEAT_CALL_ON"
	EventHeatCallOff EventType = "HEAT_CALL_OFF"
)

// Event represents a debounced contact transition.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
}

// ContactState tracks debounce state for the contact input.
type ContactState struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Input represents a single sample of the contact.
type Input struct {
	Call bool // true = thermostat calling for heat
	Time time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	HeatCallOn  int
	HeatCallOff int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}
