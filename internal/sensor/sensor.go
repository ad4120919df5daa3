// Package sensor reads the room temperature probe.
package sensor

import "errors"

// ErrDisconnected is returned when the probe is missing or its reading
// failed the integrity check.
var ErrDisconnected = errors.New("sensor: probe disconnected")

// Sensor reads a temperature in degrees Celsius.
type Sensor interface {
	ReadCelsius() (float64, error)
}

// CelsiusToFahrenheit converts a temperature.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9.0/5.0 + 32.0
}
