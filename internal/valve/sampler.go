package valve

import (
	"log"
	"time"

	"github.com/sweeney/gaslog-controller/internal/gpio"
	"github.com/sweeney/gaslog-controller/internal/logic"
)

// Supply sampling parameters.
const (
	SampleCount    = 10
	SampleInterval = 10 * time.Millisecond
)

// SamplerConfig describes the sense divider and the valve's target voltage.
type SamplerConfig struct {
	TargetVolts  float64 // voltage the valve coil should see
	DividerRatio float64 // supply volts per volt at the sense pin
}

// Sampler converts the live supply voltage into a compensated duty cycle.
type Sampler struct {
	adc   gpio.ADC
	clock Clock
	cfg   SamplerConfig
}

// NewSampler creates a Sampler reading adc.
func NewSampler(adc gpio.ADC, clock Clock, cfg SamplerConfig) *Sampler {
	return &Sampler{adc: adc, clock: clock, cfg: cfg}
}

// DutyCycle averages SampleCount readings taken SampleInterval apart and
// returns the duty that delivers the target voltage. Failed reads are
// skipped; if every read fails the result is degraded with duty 0.
func (s *Sampler) DutyCycle() logic.DutyReading {
	var sum float64
	var n int
	for i := 0; i < SampleCount; i++ {
		mv, err := s.adc.ReadMilliVolts()
		if err != nil {
			log.Printf("valve: adc read error: %v", err)
		} else {
			sum += mv
			n++
		}
		s.clock.Sleep(SampleInterval)
	}

	if n == 0 {
		return logic.DutyReading{Degraded: true}
	}

	r := logic.ComputeDuty(sum/float64(n), s.cfg.DividerRatio, s.cfg.TargetVolts)
	log.Printf("valve: avg=%.0fmV supply=%.2fV duty=%d", r.AvgMilliVolts, r.SupplyVolts, r.Duty)
	if r.Degraded {
		log.Printf("valve: implausible supply voltage %.2fV, drive disabled", r.SupplyVolts)
	}
	return r
}
