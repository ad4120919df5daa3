package logic

// Thermostat is a two-threshold thermostat. It starts calling for heat at
// setpoint-Hysteresis and stops at setpoint+Hysteresis.
type Thermostat struct {
	Hysteresis float64
	heatCall   bool
}

// NewThermostat creates a Thermostat with the given hysteresis (degrees).
func NewThermostat(hysteresis float64) *Thermostat {
	return &Thermostat{Hysteresis: hysteresis}
}

// HeatCall updates and returns the heat call for the given room
// temperature and setpoint (same units).
func (t *Thermostat) HeatCall(roomTemp, setpoint float64) bool {
	if t.heatCall {
		if roomTemp >= setpoint+t.Hysteresis {
			t.heatCall = false
		}
	} else if roomTemp <= setpoint-t.Hysteresis {
		t.heatCall = true
	}
	return t.heatCall
}

// Calling returns the last heat call without updating it.
func (t *Thermostat) Calling() bool {
	return t.heatCall
}

// Reset drops the heat call.
func (t *Thermostat) Reset() {
	t.heatCall = false
}
