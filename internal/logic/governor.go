package logic

import "time"

// Default safety limits.
const (
	DefaultMaxTotalOpen = 240 * time.Minute
	DefaultInhibitReset = 60 * time.Minute
)

// Decision is the governor's verdict on an open request.
type Decision int

const (
	Allow Decision = iota
	DenySchedule
	DenyLimit
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenySchedule:
		return "deny_schedule"
	case DenyLimit:
		return "deny_limit"
	default:
		return "unknown"
	}
}

// Notice returns the notification for a denial, or NoticeNone for Allow.
func (d Decision) Notice() Notice {
	switch d {
	case DenySchedule:
		return NoticeScheduleInhibit
	case DenyLimit:
		return NoticeLimitInhibit
	default:
		return NoticeNone
	}
}

// CloseReason says why the governor demands a forced close.
type CloseReason int

const (
	CloseNone CloseReason = iota
	CloseLimit
	CloseSchedule
)

func (r CloseReason) String() string {
	switch r {
	case CloseLimit:
		return "limit"
	case CloseSchedule:
		return "schedule"
	default:
		return "none"
	}
}

// Notice returns the notification emitted after a forced close.
func (r CloseReason) Notice() Notice {
	switch r {
	case CloseLimit:
		return NoticeLimitExceeded
	case CloseSchedule:
		return NoticeScheduleClosed
	default:
		return NoticeNone
	}
}

// GovernorConfig holds the safety policy parameters.
type GovernorConfig struct {
	MaxTotalOpen time.Duration
	InhibitReset time.Duration
	Window       OperatingWindow
}

// SafetyState is the governor's bookkeeping. Zero times mean "unset".
type SafetyState struct {
	CumulativeOpen   time.Duration
	LastOpenedAt     time.Time
	LimitActive      bool
	InhibitStartedAt time.Time
}

// Open reports whether an open interval is currently running.
func (s SafetyState) Open() bool {
	return !s.LastOpenedAt.IsZero()
}

// TickResult reports what a housekeeping tick decided.
type TickResult struct {
	ForceClose     bool
	Reason         CloseReason
	InhibitStarted bool
	LimitReset     bool
}

// Governor gatekeeps valve-open requests against the operating window and
// the cumulative open-time limit. It is not safe for concurrent use; the
// valve controller serializes access.
type Governor struct {
	cfg   GovernorConfig
	state SafetyState
}

// NewGovernor creates a Governor. Non-positive limits fall back to the
// defaults.
func NewGovernor(cfg GovernorConfig) *Governor {
	if cfg.MaxTotalOpen <= 0 {
		cfg.MaxTotalOpen = DefaultMaxTotalOpen
	}
	if cfg.InhibitReset <= 0 {
		cfg.InhibitReset = DefaultInhibitReset
	}
	return &Governor{cfg: cfg}
}

// Config returns the governor's policy parameters.
func (g *Governor) Config() GovernorConfig {
	return g.cfg
}

// State returns a copy of the safety bookkeeping.
func (g *Governor) State() SafetyState {
	return g.state
}

// OperationAllowed reports whether now lies inside the operating window.
// It fails open when the wall clock is not synchronized.
func (g *Governor) OperationAllowed(now time.Time) bool {
	return g.cfg.Window.Allowed(now)
}

// ConsultBeforeOpen decides whether the valve may be opened now.
func (g *Governor) ConsultBeforeOpen(now time.Time) Decision {
	if g.state.CumulativeOpen >= g.cfg.MaxTotalOpen {
		g.trip()
	}
	if g.state.LimitActive {
		return DenyLimit
	}
	if !g.OperationAllowed(now) {
		return DenySchedule
	}
	return Allow
}

// RecordOpen marks the start of an open interval.
func (g *Governor) RecordOpen(now time.Time) {
	g.state.LastOpenedAt = now
}

// RecordClose credits the open interval [openedAt, now] to the running
// total. A zero openedAt uses the interval started by RecordOpen. The total
// is capped at MaxTotalOpen, which trips the limit.
func (g *Governor) RecordClose(openedAt, now time.Time) {
	if openedAt.IsZero() {
		openedAt = g.state.LastOpenedAt
	}
	g.state.LastOpenedAt = time.Time{}
	if openedAt.IsZero() {
		return
	}

	elapsed := now.Sub(openedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	total := g.state.CumulativeOpen + elapsed
	if total >= g.cfg.MaxTotalOpen {
		g.state.CumulativeOpen = g.cfg.MaxTotalOpen
		g.trip()
		return
	}
	g.state.CumulativeOpen = total
}

// Tick performs periodic housekeeping. While the valve is open it demands
// a forced close when the limit is reached or the window has ended; the
// caller closes the valve and then calls RecordClose. While the limit is
// active it runs the inhibition timer and resets the limit once
// InhibitReset has elapsed continuously outside the window.
func (g *Governor) Tick(now time.Time) TickResult {
	if g.state.Open() {
		running := now.Sub(g.state.LastOpenedAt)
		if g.state.LimitActive || g.state.CumulativeOpen+running >= g.cfg.MaxTotalOpen {
			return TickResult{ForceClose: true, Reason: CloseLimit}
		}
		if !g.OperationAllowed(now) {
			return TickResult{ForceClose: true, Reason: CloseSchedule}
		}
		return TickResult{}
	}

	if g.state.CumulativeOpen >= g.cfg.MaxTotalOpen {
		g.trip()
	}
	if !g.state.LimitActive {
		return TickResult{}
	}

	if g.OperationAllowed(now) {
		g.state.InhibitStartedAt = time.Time{}
		return TickResult{}
	}
	if g.state.InhibitStartedAt.IsZero() {
		g.state.InhibitStartedAt = now
		return TickResult{InhibitStarted: true}
	}
	if now.Sub(g.state.InhibitStartedAt) >= g.cfg.InhibitReset {
		g.state = SafetyState{}
		return TickResult{LimitReset: true}
	}
	return TickResult{}
}

func (g *Governor) trip() {
	if g.state.LimitActive {
		return
	}
	g.state.LimitActive = true
	g.state.InhibitStartedAt = time.Time{}
}
