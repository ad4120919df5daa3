package web

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sweeney/gaslog-controller/internal/logic"
	"github.com/sweeney/gaslog-controller/internal/status"
)

// WelcomeMessage is sent to every WebSocket client on connect.
const WelcomeMessage = "Connected to Gas Log Controller"

// StatusMessage carries a notice to the UI.
type StatusMessage struct {
	Type    string `json:"type"` // always "status"
	Message string `json:"message"`
	Error   bool   `json:"error,omitempty"`
}

// StateMessage is the full UI state.
type StateMessage struct {
	Type        string   `json:"type"` // always "state"
	Power       string   `json:"power"`
	Mode        string   `json:"mode"`
	Setpoint    int      `json:"setpoint"`
	SliderState string   `json:"sliderState"`
	Valve       string   `json:"valve"`
	RoomTempF   *float64 `json:"roomTempF"`
	LimitActive bool     `json:"limitActive"`
}

// Command is a message from the UI.
type Command struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

func newStatusMessage(text string, isError bool) StatusMessage {
	return StatusMessage{Type: "status", Message: text, Error: isError}
}

func noticeMessage(n logic.Notice) StatusMessage {
	return newStatusMessage(n.Message(), n.IsError())
}

// newStateMessage renders snap for the UI; uiMode is "automatic" or "manual".
func newStateMessage(snap status.Snapshot, uiMode string) StateMessage {
	power := "on"
	if snap.Control.Mode == logic.ModeOff || snap.Control.Mode == "" {
		power = "off"
	}
	slider := string(snap.Control.Slider)
	if slider == "" {
		slider = string(logic.SliderOff)
	}
	m := StateMessage{
		Type:        "state",
		Power:       power,
		Mode:        uiMode,
		Setpoint:    snap.Control.SetpointF,
		SliderState: slider,
		Valve:       status.ValveState(snap.Valve.Open),
		LimitActive: snap.Valve.Safety.LimitActive,
	}
	if snap.Temperature.OK {
		f := status.RoundTenth(snap.Temperature.F)
		m.RoomTempF = &f
	}
	return m
}

// stringValue accepts a JSON string or bare number/bool as text.
func (c Command) stringValue() string {
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(c.Value))
}

func (c Command) intValue() (int, error) {
	f, err := strconv.ParseFloat(c.stringValue(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid setpoint %s", c.Value)
	}
	f = math.Max(math.Min(f, math.MaxInt32), math.MinInt32)
	return int(math.Round(f)), nil
}
