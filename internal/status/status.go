// Package status provides a thread-safe status tracker for the gaslog
// daemon. It is read by the HTTP, WebSocket, MQTT and metrics consumers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/gaslog-controller/internal/logic"
	"github.com/sweeney/gaslog-controller/internal/valve"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	Window      string
	MinSetpoint int
	MaxSetpoint int
}

// Control is the operating state chosen by the user and the mode rules.
type Control struct {
	Mode      logic.Mode
	SetpointF int
	Slider    logic.Slider
}

// Temperature is the last room temperature reading.
type Temperature struct {
	OK     bool
	F      float64
	ReadAt time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Control       Control
	Temperature   Temperature
	Valve         valve.Snapshot
	LastNotice    logic.Notice
	NoticeAt      time.Time
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateControl records the mode, setpoint and slider.
func (t *Tracker) UpdateControl(c Control) {
	t.mu.Lock()
	t.snap.Control = c
	t.mu.Unlock()
}

// UpdateTemperature records a room temperature reading.
func (t *Tracker) UpdateTemperature(temp Temperature) {
	t.mu.Lock()
	t.snap.Temperature = temp
	t.mu.Unlock()
}

// UpdateValve records the valve controller's snapshot.
func (t *Tracker) UpdateValve(v valve.Snapshot) {
	t.mu.Lock()
	t.snap.Valve = v
	t.mu.Unlock()
}

// UpdateCounts records heat-call transition counts.
func (t *Tracker) UpdateCounts(c logic.EventCounts) {
	t.mu.Lock()
	t.snap.Counts = c
	t.mu.Unlock()
}

// SetNotice records n. It returns false when n repeats the last notice,
// so callers can suppress duplicate broadcasts.
func (t *Tracker) SetNotice(n logic.Notice, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n == t.snap.LastNotice {
		return false
	}
	t.snap.LastNotice = n
	t.snap.NoticeAt = at
	return true
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
