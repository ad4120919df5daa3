// Package control holds the user-selected operating mode and setpoint,
// shared by the web UI, MQTT commands and the control loop.
package control

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/sweeney/gaslog-controller/internal/logic"
)

// ErrInvalidCommand is wrapped by every rejected command.
var ErrInvalidCommand = errors.New("invalid command")

// UI mode names.
const (
	UIAutomatic = "automatic"
	UIManual    = "manual"
)

// Settings is the mutable operating selection. Safe for concurrent use.
type Settings struct {
	mu         sync.RWMutex
	mode       logic.Mode
	setpoint   int
	min        int
	max        int
	lastUIMode string // automatic/manual choice restored by power-on
	changed    chan struct{}
}

// Values is a copy of the current settings.
type Values struct {
	Mode      logic.Mode
	SetpointF int
}

// Power reports "on" unless the mode is OFF.
func (v Values) Power() string {
	if v.Mode == logic.ModeOff {
		return "off"
	}
	return "on"
}

// NewSettings starts in OFF with setpoint clamped into [min, max].
func NewSettings(setpoint, min, max int) *Settings {
	s := &Settings{
		mode:       logic.ModeOff,
		min:        min,
		max:        max,
		changed:    make(chan struct{}, 1),
		lastUIMode: UIAutomatic,
	}
	s.setpoint = s.clamp(setpoint)
	return s
}

func (s *Settings) clamp(v int) int {
	if v < s.min {
		return s.min
	}
	if v > s.max {
		return s.max
	}
	return v
}

// Get returns the current settings.
func (s *Settings) Get() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Values{Mode: s.mode, SetpointF: s.setpoint}
}

// UIMode returns "automatic" or "manual" for the web UI. In OFF it
// reports the mode that power-on will restore.
func (s *Settings) UIMode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.mode {
	case logic.ModeThermostat:
		return UIAutomatic
	case logic.ModeOn:
		return UIManual
	}
	return s.lastUIMode
}

// Changed is signalled (non-blocking, coalesced) after every change.
func (s *Settings) Changed() <-chan struct{} {
	return s.changed
}

func (s *Settings) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// SetMode switches the operating mode.
func (s *Settings) SetMode(m logic.Mode) {
	s.mu.Lock()
	changed := s.setModeLocked(m)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Settings) setModeLocked(m logic.Mode) bool {
	if m == s.mode {
		return false
	}
	s.mode = m
	switch m {
	case logic.ModeThermostat:
		s.lastUIMode = UIAutomatic
	case logic.ModeOn:
		s.lastUIMode = UIManual
	}
	return true
}

// SetSetpoint stores v clamped to the configured range and returns the
// stored value.
func (s *Settings) SetSetpoint(v int) int {
	s.mu.Lock()
	v = s.clamp(v)
	changed := v != s.setpoint
	s.setpoint = v
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return v
}

// SetPower applies the UI power switch. Power off selects OFF; power on
// selects THERMOSTAT in automatic and ON in manual.
func (s *Settings) SetPower(on bool) {
	s.mu.Lock()
	m := logic.ModeOff
	if on {
		m = s.mode
		if m == logic.ModeOff {
			m = modeFor(s.lastUIMode)
		}
	}
	changed := s.setModeLocked(m)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// SetUIMode applies the UI automatic/manual selector. While powered off
// it only remembers the choice.
func (s *Settings) SetUIMode(ui string) error {
	ui = strings.ToLower(strings.TrimSpace(ui))
	if ui != UIAutomatic && ui != UIManual {
		return fmt.Errorf("%w: mode %q", ErrInvalidCommand, ui)
	}
	s.mu.Lock()
	changed := false
	if s.mode == logic.ModeOff {
		s.lastUIMode = ui
	} else {
		changed = s.setModeLocked(modeFor(ui))
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return nil
}

func modeFor(ui string) logic.Mode {
	if ui == UIManual {
		return logic.ModeOn
	}
	return logic.ModeThermostat
}

// ApplyModeString parses and applies a mode name (OFF, THERMOSTAT, ON).
func (s *Settings) ApplyModeString(v string) error {
	m, ok := logic.ParseMode(v)
	if !ok {
		return fmt.Errorf("%w: mode %q", ErrInvalidCommand, v)
	}
	s.SetMode(m)
	return nil
}

// ApplySetpointString parses an integer (or decimal, rounded) setpoint.
func (s *Settings) ApplySetpointString(v string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: setpoint %q", ErrInvalidCommand, v)
	}
	f = math.Max(math.Min(f, math.MaxInt32), math.MinInt32)
	return s.SetSetpoint(int(math.Round(f))), nil
}
