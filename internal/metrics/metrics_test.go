package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/gaslog-controller/internal/logic"
	"github.com/sweeney/gaslog-controller/internal/status"
	"github.com/sweeney/gaslog-controller/internal/valve"
)

func TestObserveValve(t *testing.T) {
	m := New()
	m.ObserveValve(valve.Snapshot{
		Open:     true,
		Safety:   logic.SafetyState{CumulativeOpen: 90 * time.Second, LimitActive: true},
		LastDuty: logic.DutyReading{Duty: 128, SupplyVolts: 12},
		Opens:    3,
		Denials:  2,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.valveOpen))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.cumulativeOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.limitActive))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.duty))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.senseFault))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		if len(f.GetMetric()) == 1 && f.GetMetric()[0].GetCounter() != nil {
			values[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 3.0, values["gaslog_valve_opens_total"])
	assert.Equal(t, 2.0, values["gaslog_valve_denials_total"])
	assert.Equal(t, 0.0, values["gaslog_valve_faults_total"])
}

func TestObserveControl(t *testing.T) {
	m := New()
	m.ObserveControl(status.Control{Mode: logic.ModeThermostat, SetpointF: 70}, status.Temperature{OK: true, F: 68.5})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.mode.WithLabelValues("THERMOSTAT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.mode.WithLabelValues("ON")))
	assert.Equal(t, 70.0, testutil.ToFloat64(m.setpoint))
	assert.Equal(t, 68.5, testutil.ToFloat64(m.roomTemp))

	m.ObserveControl(status.Control{Mode: logic.ModeOff}, status.Temperature{})
	assert.Equal(t, 68.5, testutil.ToFloat64(m.roomTemp), "missing reading keeps last value")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mode.WithLabelValues("OFF")))
}

func TestObserveNotice(t *testing.T) {
	m := New()
	m.ObserveNotice(logic.NoticeNone)
	m.ObserveNotice(logic.NoticeDriveFault)
	m.ObserveNotice(logic.NoticeDriveFault)
	m.ObserveNotice(logic.NoticeValveOpened)

	assert.Equal(t, 2, testutil.CollectAndCount(m.notices))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.notices.WithLabelValues("Error: Valve drive failed", "true")))
}

func TestSetMQTTConnected(t *testing.T) {
	m := New()
	m.SetMQTTConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mqttConnected))
}
