package gpio

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PeriphBridge drives the H-bridge inputs through periph.io. The pins must
// support PWM (on a Raspberry Pi: GPIO12/13/18/19).
type PeriphBridge struct {
	in1  gpio.PinIO
	in2  gpio.PinIO
	freq physic.Frequency
}

// NewPeriphBridge initializes periph.io and resolves the IN1/IN2 pins by
// BCM number.
func NewPeriphBridge(pinIN1, pinIN2 int) (*PeriphBridge, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	in1, err := resolvePin(pinIN1)
	if err != nil {
		return nil, err
	}
	in2, err := resolvePin(pinIN2)
	if err != nil {
		return nil, err
	}
	return &PeriphBridge{in1: in1, in2: in2}, nil
}

func resolvePin(pin int) (gpio.PinIO, error) {
	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %d (%s) not found in hardware", pin, name)
	}
	return p, nil
}

// Configure sets the PWM frequency and leaves both inputs low.
func (b *PeriphBridge) Configure(freqHz int) error {
	if freqHz <= 0 {
		return fmt.Errorf("invalid pwm frequency %d Hz", freqHz)
	}
	b.freq = physic.Frequency(freqHz) * physic.Hertz
	return b.Drive(0, 0)
}

// Drive sets the duty of both inputs.
func (b *PeriphBridge) Drive(in1, in2 uint8) error {
	if err := b.set(b.in1, in1); err != nil {
		return fmt.Errorf("drive IN1: %w", err)
	}
	if err := b.set(b.in2, in2); err != nil {
		return fmt.Errorf("drive IN2: %w", err)
	}
	return nil
}

func (b *PeriphBridge) set(p gpio.PinIO, duty uint8) error {
	switch duty {
	case 0:
		return p.Out(gpio.Low)
	case 255:
		return p.Out(gpio.High)
	}
	if b.freq == 0 {
		return errors.New("pwm not configured")
	}
	return p.PWM(dutyToPeriph(duty), b.freq)
}

// dutyToPeriph scales an 8-bit duty to periph's 24-bit gpio.Duty.
func dutyToPeriph(duty uint8) gpio.Duty {
	return gpio.Duty(int64(duty) * int64(gpio.DutyMax) / 255)
}

// Close drives both inputs low and halts the pins.
func (b *PeriphBridge) Close() error {
	var errs []error
	for _, p := range []gpio.PinIO{b.in1, b.in2} {
		if err := p.Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", p.Name(), err))
		}
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
