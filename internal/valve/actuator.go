// Package valve drives the gas valve: the voltage sampler, the H-bridge
// actuator and the request state machine that consults the safety
// governor before every open.
package valve

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/gaslog-controller/internal/gpio"
	"github.com/sweeney/gaslog-controller/internal/logic"
)

// PWMFrequencyHz is the H-bridge PWM carrier frequency.
const PWMFrequencyHz = 2000

// DefaultYieldInterval is how often a travel wait wakes to run the yield hook.
const DefaultYieldInterval = 100 * time.Millisecond

// BridgeState is the logical drive state of the H-bridge.
type BridgeState int

const (
	Idle BridgeState = iota
	Forward
	Reverse
	Brake // not used; both inputs high
)

func (s BridgeState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case Brake:
		return "brake"
	default:
		return "unknown"
	}
}

// ActuatorConfig holds the valve travel times.
type ActuatorConfig struct {
	TimeToOpen    time.Duration
	TimeToClose   time.Duration
	YieldInterval time.Duration
}

// YieldFunc is called periodically during a travel wait with the elapsed
// and total pulse time. It runs on the caller's goroutine.
type YieldFunc func(elapsed, total time.Duration)

// Actuator converts open/close commands into timed H-bridge pulses.
// Open and Close block for the travel time and always run to completion.
type Actuator struct {
	bridge  gpio.HBridge
	sampler *Sampler
	clock   Clock
	cfg     ActuatorConfig
	yield   YieldFunc
	state   BridgeState
}

// NewActuator creates an Actuator.
func NewActuator(bridge gpio.HBridge, sampler *Sampler, clock Clock, cfg ActuatorConfig) *Actuator {
	if cfg.YieldInterval <= 0 {
		cfg.YieldInterval = DefaultYieldInterval
	}
	return &Actuator{bridge: bridge, sampler: sampler, clock: clock, cfg: cfg}
}

// SetYield installs the hook run during travel waits.
func (a *Actuator) SetYield(fn YieldFunc) {
	a.yield = fn
}

// State returns the current bridge drive state.
func (a *Actuator) State() BridgeState {
	return a.state
}

// Begin arms the PWM channels, de-energizes the bridge and runs a full
// close cycle so the valve starts from a known position.
func (a *Actuator) Begin() (logic.DutyReading, error) {
	if err := a.bridge.Configure(PWMFrequencyHz); err != nil {
		return logic.DutyReading{}, fmt.Errorf("configure h-bridge: %w", err)
	}
	if err := a.Deenergize(); err != nil {
		return logic.DutyReading{}, err
	}
	log.Printf("valve: forcing valve closed for safety startup")
	return a.Close()
}

// Open drives the bridge forward for TimeToOpen.
func (a *Actuator) Open() (logic.DutyReading, error) {
	return a.pulse(Forward, a.cfg.TimeToOpen)
}

// Close drives the bridge in reverse for TimeToClose.
func (a *Actuator) Close() (logic.DutyReading, error) {
	return a.pulse(Reverse, a.cfg.TimeToClose)
}

// Deenergize drives both inputs low. It is always safe to call.
func (a *Actuator) Deenergize() error {
	a.state = Idle
	if err := a.bridge.Drive(0, 0); err != nil {
		return fmt.Errorf("de-energize h-bridge: %w", err)
	}
	return nil
}

func (a *Actuator) pulse(dir BridgeState, travel time.Duration) (logic.DutyReading, error) {
	r := a.sampler.DutyCycle()

	var in1, in2 uint8
	if dir == Forward {
		in2 = r.Duty
		log.Printf("valve: opening valve (%d ms)...", travel.Milliseconds())
	} else {
		in1 = r.Duty
		log.Printf("valve: closing valve (%d ms)...", travel.Milliseconds())
	}

	if err := a.bridge.Drive(in1, in2); err != nil {
		if derr := a.Deenergize(); derr != nil {
			log.Printf("valve: %v", derr)
		}
		return r, fmt.Errorf("energize %s: %w", dir, err)
	}
	a.state = dir

	a.hold(travel)

	if err := a.Deenergize(); err != nil {
		return r, err
	}
	if dir == Forward {
		log.Printf("valve: ...valve OPEN")
	} else {
		log.Printf("valve: ...valve CLOSED")
	}
	return r, nil
}

// hold waits for travel, waking every YieldInterval to run the yield hook.
func (a *Actuator) hold(travel time.Duration) {
	start := a.clock.Now()
	for {
		elapsed := a.clock.Now().Sub(start)
		if elapsed >= travel {
			return
		}
		step := a.cfg.YieldInterval
		if rem := travel - elapsed; rem < step {
			step = rem
		}
		a.clock.Sleep(step)
		if a.yield != nil {
			a.yield(a.clock.Now().Sub(start), travel)
		}
	}
}
