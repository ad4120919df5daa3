// Package metrics exposes controller state as Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sweeney/gaslog-controller/internal/logic"
	"github.com/sweeney/gaslog-controller/internal/status"
	"github.com/sweeney/gaslog-controller/internal/valve"
)

const namespace = "gaslog"

// Metrics owns a private registry with the controller's collectors.
type Metrics struct {
	registry *prometheus.Registry

	mu   sync.Mutex
	last valve.Snapshot

	valveOpen      prometheus.Gauge
	actuating      prometheus.Gauge
	cumulativeOpen prometheus.Gauge
	limitActive    prometheus.Gauge
	supplyVolts    prometheus.Gauge
	duty           prometheus.Gauge
	senseFault     prometheus.Gauge
	roomTemp       prometheus.Gauge
	setpoint       prometheus.Gauge
	mode           *prometheus.GaugeVec
	mqttConnected  prometheus.Gauge
	notices        *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	m.valveOpen = gauge("valve_open", "1 when the valve is open.")
	m.actuating = gauge("valve_actuating", "1 while the valve is travelling.")
	m.cumulativeOpen = gauge("cumulative_open_seconds", "Open time credited against the limit.")
	m.limitActive = gauge("limit_active", "1 while the open-time limit inhibits operation.")
	m.supplyVolts = gauge("supply_volts", "Supply voltage at the last actuation.")
	m.duty = gauge("valve_duty", "PWM duty (0-255) used at the last actuation.")
	m.senseFault = gauge("sense_fault", "1 when the last supply reading was implausible.")
	m.roomTemp = gauge("room_temperature_fahrenheit", "Last room temperature reading.")
	m.setpoint = gauge("setpoint_fahrenheit", "Thermostat setpoint.")
	m.mqttConnected = gauge("mqtt_connected", "1 when connected to the MQTT broker.")
	m.mode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "mode", Help: "1 for the active operating mode.",
	}, []string{"mode"})
	m.notices = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "notices_total", Help: "Notices emitted, by message.",
	}, []string{"notice", "error"})

	counter := func(name, help string, read func(valve.Snapshot) int) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
			func() float64 {
				m.mu.Lock()
				defer m.mu.Unlock()
				return float64(read(m.last))
			})
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.valveOpen, m.actuating, m.cumulativeOpen, m.limitActive,
		m.supplyVolts, m.duty, m.senseFault, m.roomTemp, m.setpoint,
		m.mode, m.mqttConnected, m.notices,
		counter("valve_opens_total", "Completed open actuations.", func(s valve.Snapshot) int { return s.Opens }),
		counter("valve_closes_total", "Completed close actuations.", func(s valve.Snapshot) int { return s.Closes }),
		counter("valve_denials_total", "Open requests refused by the safety governor.", func(s valve.Snapshot) int { return s.Denials }),
		counter("valve_faults_total", "Failed H-bridge drives.", func(s valve.Snapshot) int { return s.Faults }),
	)
	return m
}

// Registry returns the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ObserveValve records a valve controller snapshot.
func (m *Metrics) ObserveValve(s valve.Snapshot) {
	m.mu.Lock()
	m.last = s
	m.mu.Unlock()

	m.valveOpen.Set(boolFloat(s.Open))
	m.actuating.Set(boolFloat(s.Actuating))
	m.cumulativeOpen.Set(s.Safety.CumulativeOpen.Seconds())
	m.limitActive.Set(boolFloat(s.Safety.LimitActive))
	m.supplyVolts.Set(s.LastDuty.SupplyVolts)
	m.duty.Set(float64(s.LastDuty.Duty))
	m.senseFault.Set(boolFloat(s.LastDuty.Degraded))
}

// ObserveControl records the operating selection and room temperature.
func (m *Metrics) ObserveControl(c status.Control, t status.Temperature) {
	for _, mode := range []logic.Mode{logic.ModeOff, logic.ModeThermostat, logic.ModeOn} {
		m.mode.WithLabelValues(string(mode)).Set(boolFloat(c.Mode == mode))
	}
	m.setpoint.Set(float64(c.SetpointF))
	if t.OK {
		m.roomTemp.Set(t.F)
	}
}

// ObserveNotice counts a notice.
func (m *Metrics) ObserveNotice(n logic.Notice) {
	if n == logic.NoticeNone {
		return
	}
	isErr := "false"
	if n.IsError() {
		isErr = "true"
	}
	m.notices.WithLabelValues(n.Message(), isErr).Inc()
}

// SetMQTTConnected records broker connectivity.
func (m *Metrics) SetMQTTConnected(connected bool) {
	m.mqttConnected.Set(boolFloat(connected))
}
