// Package mqtt publishes controller telemetry and receives remote commands,
// with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/gaslog-controller/internal/logic"
)

// State topics. Values are plain strings and retained.
const (
	TopicMode        = "gaslog/mode"
	TopicValveState  = "gaslog/valve_state"
	TopicTemperature = "gaslog/temperature"
	TopicSetpoint    = "gaslog/setpoint"
	TopicStatus      = "gaslog/status"
)

// TopicSystem carries lifecycle events (STARTUP, SHUTDOWN, HEARTBEAT, OFFLINE).
const TopicSystem = "gaslog/system"

// Command topics.
const (
	TopicSetMode     = "gaslog/set_mode"
	TopicSetSetpoint = "gaslog/set_setpoint"
)

// Publisher publishes controller telemetry.
type Publisher interface {
	// PublishState sends the state topics.
	// Returns error if publishing fails (should not crash the process).
	PublishState(s State) error

	// PublishStatus sends a user-facing notice to TopicStatus.
	PublishStatus(n logic.Notice) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// State is the controller state mirrored to the state topics.
type State struct {
	Mode      logic.Mode
	ValveOpen bool
	TempOK    bool
	TempF     float64
	SetpointF int
}

// Message is one outgoing MQTT message.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// StateMessages renders s as retained state-topic messages. The
// temperature topic is omitted while there is no valid reading.
func StateMessages(s State) []Message {
	valve := "CLOSED"
	if s.ValveOpen {
		valve = "OPEN"
	}
	msgs := []Message{
		{Topic: TopicMode, Payload: []byte(s.Mode), Retained: true},
		{Topic: TopicValveState, Payload: []byte(valve), Retained: true},
		{Topic: TopicSetpoint, Payload: []byte(strconv.Itoa(s.SetpointF)), Retained: true},
	}
	if s.TempOK {
		msgs = append(msgs, Message{
			Topic:    TopicTemperature,
			Payload:  []byte(strconv.FormatFloat(s.TempF, 'f', 1, 64)),
			Retained: true,
		})
	}
	return msgs
}

// StatusMessage renders a notice for TopicStatus.
func StatusMessage(n logic.Notice) Message {
	return Message{Topic: TopicStatus, Payload: []byte(n.Message())}
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload is the payload for events without a full status snapshot
// (the OFFLINE will, for example).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{Event: event.Event, Reason: event.Reason}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is published by the broker when the connection drops.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	return data
}

// CommandKind identifies a remote command.
type CommandKind string

const (
	CommandSetMode     CommandKind = "set_mode"
	CommandSetSetpoint CommandKind = "set_setpoint"
)

// Command is a parsed message from a command topic.
type Command struct {
	Kind  CommandKind
	Value string
}

// ParseCommand maps a command-topic message to a Command. Unknown topics
// and empty payloads are rejected.
func ParseCommand(topic string, payload []byte) (Command, bool) {
	v := strings.TrimSpace(string(payload))
	if v == "" {
		return Command{}, false
	}
	switch topic {
	case TopicSetMode:
		return Command{Kind: CommandSetMode, Value: v}, true
	case TopicSetSetpoint:
		return Command{Kind: CommandSetSetpoint, Value: v}, true
	}
	return Command{}, false
}
