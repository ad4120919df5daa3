package valve

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/gaslog-controller/internal/logic"
)

// Notifier receives user-facing notices from the controller.
type Notifier interface {
	Notify(n logic.Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(logic.Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n logic.Notice) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(logic.Notice) {}

// Outcome is the result of a Request.
type Outcome int

const (
	OutcomeNoop Outcome = iota
	OutcomeOpened
	OutcomeClosed
	OutcomeDenied
	OutcomeFault
	OutcomeBusy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeOpened:
		return "opened"
	case OutcomeClosed:
		return "closed"
	case OutcomeDenied:
		return "denied"
	case OutcomeFault:
		return "fault"
	case OutcomeBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of the valve and safety state.
type Snapshot struct {
	Open       bool
	Actuating  bool
	Bridge     BridgeState
	Safety     logic.SafetyState
	Config     logic.GovernorConfig
	LastDuty   logic.DutyReading
	LastDenial logic.Decision
	Opens      int
	Closes     int
	Denials    int
	Faults     int
	UpdatedAt  time.Time
}

// Controller is the valve request state machine. Request and Tick are
// serialized by a mutex; IsOpen and Snapshot read a copy published after
// every change and never wait on valve travel.
type Controller struct {
	mu       sync.Mutex
	actuator *Actuator
	governor *logic.Governor
	clock    Clock
	notifier Notifier

	open       bool
	lastDuty   logic.DutyReading
	lastDenial logic.Decision
	opens      int
	closes     int
	denials    int
	faults     int

	// set while the yield hook runs; Request and Tick refuse to reenter
	yielding atomic.Bool

	snapMu sync.RWMutex
	snap   Snapshot
}

// NewController wires an actuator and governor. A nil notifier discards
// notices.
func NewController(act *Actuator, gov *logic.Governor, clock Clock, n Notifier) *Controller {
	if n == nil {
		n = nopNotifier{}
	}
	c := &Controller{actuator: act, governor: gov, clock: clock, notifier: n}
	c.publish(false)
	return c
}

// SetYield installs a hook run periodically while the valve travels. The
// hook must not call Request or Tick.
func (c *Controller) SetYield(fn YieldFunc) {
	if fn == nil {
		c.actuator.SetYield(nil)
		return
	}
	c.actuator.SetYield(func(elapsed, total time.Duration) {
		c.yielding.Store(true)
		defer c.yielding.Store(false)
		fn(elapsed, total)
	})
}

// Begin forces the valve closed so it starts from a known position.
func (c *Controller) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifier.Notify(logic.NoticeInitializing)
	c.publish(true)
	r, err := c.actuator.Begin()
	c.lastDuty = r
	c.open = false
	c.publish(false)
	if err != nil {
		return fmt.Errorf("begin valve: %w", err)
	}
	if r.Degraded {
		c.notifier.Notify(logic.NoticeSenseFault)
	}
	c.notifier.Notify(logic.NoticeReady)
	return nil
}

// Request asks for the valve to be open or closed. Opening is subject to
// the safety governor; closing is never refused.
func (c *Controller) Request(wantOpen bool) Outcome {
	if c.yielding.Load() {
		log.Printf("valve: request during valve travel ignored")
		return OutcomeBusy
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if wantOpen == c.open {
		return OutcomeNoop
	}
	if !wantOpen {
		return c.closeLocked(logic.NoticeValveClosed)
	}

	d := c.governor.ConsultBeforeOpen(c.clock.Now())
	if d != logic.Allow {
		if d != c.lastDenial {
			log.Printf("valve: open denied: %s", d)
		}
		c.lastDenial = d
		c.denials++
		c.notifier.Notify(d.Notice())
		c.publish(false)
		return OutcomeDenied
	}
	c.lastDenial = logic.Allow

	c.publish(true)
	r, err := c.actuator.Open()
	c.lastDuty = r
	if err != nil {
		log.Printf("valve: open failed: %v", err)
		c.faults++
		c.publish(false)
		c.notifier.Notify(logic.NoticeDriveFault)
		return OutcomeFault
	}
	c.open = true
	c.opens++
	c.governor.RecordOpen(c.clock.Now())
	c.publish(false)

	if r.Degraded {
		c.notifier.Notify(logic.NoticeSenseFault)
	}
	c.notifier.Notify(logic.NoticeValveOpened)
	return OutcomeOpened
}

// Tick runs the governor's housekeeping and carries out any forced close.
func (c *Controller) Tick() logic.TickResult {
	if c.yielding.Load() {
		return logic.TickResult{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.governor.Tick(c.clock.Now())
	if res.ForceClose && c.open {
		log.Printf("valve: forced close (%s)", res.Reason)
		c.closeLocked(res.Reason.Notice())
	}
	if res.InhibitStarted {
		log.Printf("valve: limit inhibition timer started")
	}
	if res.LimitReset {
		log.Printf("valve: time limit reset")
		c.notifier.Notify(logic.NoticeLimitReset)
	}
	c.publish(false)
	return res
}

// closeLocked closes the valve and credits the open interval. A drive
// failure leaves the valve logically open so the next request retries.
func (c *Controller) closeLocked(notice logic.Notice) Outcome {
	c.publish(true)
	r, err := c.actuator.Close()
	c.lastDuty = r
	if err != nil {
		log.Printf("valve: close failed: %v", err)
		c.faults++
		c.publish(false)
		c.notifier.Notify(logic.NoticeDriveFault)
		return OutcomeFault
	}
	c.open = false
	c.closes++
	c.governor.RecordClose(time.Time{}, c.clock.Now())
	c.publish(false)

	if r.Degraded {
		c.notifier.Notify(logic.NoticeSenseFault)
	}
	c.notifier.Notify(notice)
	return OutcomeClosed
}

// IsOpen reports the logical valve state.
func (c *Controller) IsOpen() bool {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap.Open
}

// Snapshot returns the last published state.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

func (c *Controller) publish(actuating bool) {
	s := Snapshot{
		Open:       c.open,
		Actuating:  actuating,
		Bridge:     c.actuator.State(),
		Safety:     c.governor.State(),
		Config:     c.governor.Config(),
		LastDuty:   c.lastDuty,
		LastDenial: c.lastDenial,
		Opens:      c.opens,
		Closes:     c.closes,
		Denials:    c.denials,
		Faults:     c.faults,
		UpdatedAt:  c.clock.Now(),
	}
	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}
