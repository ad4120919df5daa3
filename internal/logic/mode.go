package logic

import "strings"

// Mode is the operating mode selected from the UI or MQTT.
type Mode string

const (
	ModeOff        Mode = "OFF"
	ModeThermostat Mode = "THERMOSTAT"
	ModeOn         Mode = "ON"
)

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeOff, ModeThermostat, ModeOn:
		return m, true
	}
	return "", false
}

// Slider is the heating indicator shown next to the room temperature.
type Slider string

const (
	SliderHeating Slider = "HEATING"
	SliderIdle    Slider = "IDLE"
	SliderOff     Slider = "OFF"
)

// DemandInput is everything the mode rules look at on one control tick.
type DemandInput struct {
	Mode      Mode
	SensorOK  bool    // a recent valid room temperature exists
	RoomTempF float64 // valid only when SensorOK
	SetpointF float64
	// Contact, when non-nil, is the debounced wired thermostat call and
	// replaces the temperature thermostat in THERMOSTAT mode.
	Contact *bool
}

// Demand is the outcome of the mode rules for one tick.
type Demand struct {
	WantOpen bool
	Slider   Slider
	Notice   Notice // NoticeNone when nothing needs reporting
	// FallbackMode is set when the rules force a different mode
	// (e.g. sensor failure in THERMOSTAT mode).
	FallbackMode Mode
}

// Decide applies the operating-mode rules. The thermostat keeps its
// hysteresis state between calls.
func Decide(in DemandInput, th *Thermostat) Demand {
	switch in.Mode {
	case ModeOff:
		th.Reset()
		return Demand{Slider: SliderOff}

	case ModeThermostat:
		if in.Contact != nil {
			if *in.Contact {
				return Demand{WantOpen: true, Slider: SliderHeating}
			}
			return Demand{Slider: SliderIdle}
		}
		if !in.SensorOK {
			th.Reset()
			return Demand{Slider: SliderOff, Notice: NoticeSensorFailure, FallbackMode: ModeOff}
		}
		if th.HeatCall(in.RoomTempF, in.SetpointF) {
			return Demand{WantOpen: true, Slider: SliderHeating}
		}
		return Demand{Slider: SliderIdle}

	case ModeOn:
		return Demand{WantOpen: true, Slider: SliderHeating}

	default:
		th.Reset()
		return Demand{Slider: SliderOff, Notice: NoticeInvalidMode}
	}
}
