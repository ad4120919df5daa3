package logic

import "time"

// Detector debounces the wired thermostat contact and reports transitions.
type Detector struct {
	debounceDuration time.Duration
	contact          ContactState
	eventCounts      EventCounts
}

// NewDetector creates a contact detector with the given debounce duration.
func NewDetector(debounceDuration time.Duration) *Detector {
	return &Detector{debounceDuration: debounceDuration}
}

// Process takes a new input sample and returns an event if the debounced
// state changed. No event is returned while the baseline is being
// established.
func (d *Detector) Process(input Input) *Event {
	newState := boolToState(input.Call)
	c := &d.contact

	if !c.Baselined {
		if c.Pending != newState {
			// First sample, or the state changed during baseline: restart
			c.Pending = newState
			c.PendingSince = input.Time
			return nil
		}
		if input.Time.Sub(c.PendingSince) >= d.debounceDuration {
			c.Stable = newState
			c.Baselined = true
			c.Pending = ""
		}
		return nil
	}

	if newState == c.Stable {
		c.Pending = ""
		return nil
	}

	if c.Pending != newState {
		c.Pending = newState
		c.PendingSince = input.Time
		return nil
	}

	if input.Time.Sub(c.PendingSince) < d.debounceDuration {
		return nil
	}

	c.Stable = newState
	c.Pending = ""

	event := &Event{Timestamp: input.Time, State: newState}
	if newState == StateOn {
		event.Type = EventHeatCallOn
		d.eventCounts.HeatCallOn++
	} else {
		event.Type = EventHeatCallOff
		d.eventCounts.HeatCallOff++
	}
	return event
}

func boolToState(b bool) State {
	if b {
		return StateOn
	}
	return StateOff
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.contact.Baselined
}

// Calling reports whether the debounced contact is calling for heat.
// It is false until a baseline exists.
func (d *Detector) Calling() bool {
	return d.contact.Baselined && d.contact.Stable == StateOn
}

// CurrentState returns the current stable state ("" before baseline).
func (d *Detector) CurrentState() State {
	return d.contact.Stable
}

// EventCountsSnapshot returns a copy of the transition counters.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// Heartbeat decides when periodic heartbeat telemetry is due.
type Heartbeat struct {
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewHeartbeat creates a Heartbeat anchored at startTime.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{startTime: startTime, lastHeartbeat: startTime}
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (h *Heartbeat) Check(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(h.lastHeartbeat) < interval {
		return nil
	}
	h.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
	}
}
