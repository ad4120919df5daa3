package logic

import "math"

// DutyMax is the full-scale value of the 8-bit PWM duty cycle.
const DutyMax = 255

// DutyReading is the result of converting a supply-voltage measurement into
// a compensated PWM duty cycle.
type DutyReading struct {
	AvgMilliVolts float64 // averaged ADC reading at the sense pin
	SupplyVolts   float64 // reconstructed supply voltage
	Duty          uint8
	Degraded      bool // sense fault; Duty is forced to 0
}

// ComputeDuty derives the duty cycle that makes the valve see targetVolts
// from a supply measured as avgMilliVolts behind a divider of dividerRatio.
// A non-positive or non-finite supply is a sense fault and yields duty 0.
func ComputeDuty(avgMilliVolts, dividerRatio, targetVolts float64) DutyReading {
	r := DutyReading{AvgMilliVolts: avgMilliVolts}
	r.SupplyVolts = dividerRatio * avgMilliVolts / 1000.0

	if math.IsNaN(r.SupplyVolts) || math.IsInf(r.SupplyVolts, 0) || r.SupplyVolts <= 0 {
		r.Degraded = true
		return r
	}

	ratio := targetVolts / r.SupplyVolts
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	r.Duty = uint8(math.Round(ratio * DutyMax))
	return r
}
