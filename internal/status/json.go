package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/gaslog-controller/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Setpoint      int          `json:"setpoint_f"`
	Slider        string       `json:"slider"`
	RoomTemp      *float64     `json:"room_temp_f"`
	Valve         ValveJSON    `json:"valve"`
	Safety        SafetyJSON   `json:"safety"`
	Notice        *NoticeJSON  `json:"notice,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ValveJSON reports the valve and its drive.
type ValveJSON struct {
	State       string  `json:"state"`
	Actuating   bool    `json:"actuating"`
	Bridge      string  `json:"bridge"`
	Duty        uint8   `json:"duty"`
	SupplyVolts float64 `json:"supply_volts"`
	SenseFault  bool    `json:"sense_fault"`
	Opens       int     `json:"opens"`
	Closes      int     `json:"closes"`
	Denials     int     `json:"denials"`
	Faults      int     `json:"faults"`
}

// SafetyJSON reports the governor's bookkeeping.
type SafetyJSON struct {
	CumulativeOpenSeconds int64  `json:"cumulative_open_seconds"`
	MaxTotalOpenSeconds   int64  `json:"max_total_open_seconds"`
	LimitActive           bool   `json:"limit_active"`
	InhibitStartedAt      string `json:"inhibit_started_at,omitempty"`
	Window                string `json:"window"`
}

// NoticeJSON is the most recent user-facing notice.
type NoticeJSON struct {
	Message string `json:"message"`
	Error   bool   `json:"error"`
	At      string `json:"at"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	HeatCallOn  int `json:"heat_call_on"`
	HeatCallOff int `json:"heat_call_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	Window      string `json:"window"`
	MinSetpoint int    `json:"min_setpoint_f"`
	MaxSetpoint int    `json:"max_setpoint_f"`
}

// ValveState renders the valve as OPEN or CLOSED.
func ValveState(open bool) string {
	if open {
		return "OPEN"
	}
	return "CLOSED"
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	v := snap.Valve
	inner := StatusInner{
		Mode:     orUnknown(string(snap.Control.Mode)),
		Setpoint: snap.Control.SetpointF,
		Slider:   orUnknown(string(snap.Control.Slider)),
		Valve: ValveJSON{
			State:       ValveState(v.Open),
			Actuating:   v.Actuating,
			Bridge:      v.Bridge.String(),
			Duty:        v.LastDuty.Duty,
			SupplyVolts: math.Round(v.LastDuty.SupplyVolts*100) / 100,
			SenseFault:  v.LastDuty.Degraded,
			Opens:       v.Opens,
			Closes:      v.Closes,
			Denials:     v.Denials,
			Faults:      v.Faults,
		},
		Safety: SafetyJSON{
			CumulativeOpenSeconds: int64(v.Safety.CumulativeOpen.Seconds()),
			MaxTotalOpenSeconds:   int64(v.Config.MaxTotalOpen.Seconds()),
			LimitActive:           v.Safety.LimitActive,
			Window:                v.Config.Window.String(),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			HeatCallOn:  snap.Counts.HeatCallOn,
			HeatCallOff: snap.Counts.HeatCallOff,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			Window:      snap.Config.Window,
			MinSetpoint: snap.Config.MinSetpoint,
			MaxSetpoint: snap.Config.MaxSetpoint,
		},
	}
	if !v.Safety.InhibitStartedAt.IsZero() {
		inner.Safety.InhibitStartedAt = v.Safety.InhibitStartedAt.UTC().Format(time.RFC3339)
	}
	if snap.Temperature.OK {
		f := RoundTenth(snap.Temperature.F)
		inner.RoomTemp = &f
	}
	if snap.LastNotice != logic.NoticeNone {
		inner.Notice = &NoticeJSON{
			Message: snap.LastNotice.Message(),
			Error:   snap.LastNotice.IsError(),
			At:      snap.NoticeAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// RoundTenth rounds to one decimal place.
func RoundTenth(f float64) float64 {
	return math.Round(f*10) / 10
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
