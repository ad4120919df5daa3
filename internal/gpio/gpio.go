// Package gpio provides the controller's hardware I/O with abstraction for
// testing: the H-bridge driving the valve, the supply-voltage sense ADC and
// the optional wired thermostat contact.
// Real implementations use periph.io (PWM), the Linux IIO sysfs ABI (ADC)
// and the Linux GPIO character device (contact). Fakes allow testing
// without hardware.
package gpio

import "errors"

// ErrNotSupported is returned by hardware constructors on platforms that
// lack the required kernel interfaces.
var ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// HBridge drives the two inputs of a DRV8871-style H-bridge.
//
//	IN1=0,   IN2=0:   idle (de-energized)
//	IN1=0,   IN2=PWM: forward (open valve)
//	IN1=PWM, IN2=0:   reverse (close valve)
//	IN1=255, IN2=255: brake (not used)
type HBridge interface {
	// Configure arms both PWM channels at freqHz with 8-bit resolution.
	Configure(freqHz int) error

	// Drive sets the duty of IN1 and IN2; 0 is a steady low, 255 full on.
	Drive(in1, in2 uint8) error

	// Close de-energizes the bridge and releases the pins.
	Close() error
}

// ADC reads the supply-voltage sense channel.
type ADC interface {
	// ReadMilliVolts returns one calibrated sample at the sense pin.
	ReadMilliVolts() (float64, error)

	// Close releases ADC resources.
	Close() error
}

// Reader reads the wired thermostat contact.
type Reader interface {
	// Read returns true while the thermostat calls for heat.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Default pin assignments (BCM numbering). GPIO12/13 carry hardware PWM.
const (
	DefaultPinIN1     = 12
	DefaultPinIN2     = 13
	DefaultPinContact = 26
)
