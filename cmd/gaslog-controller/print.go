package main

import (
	"fmt"
	"io"

	"github.com/sweeney/gaslog-controller/internal/gpio"
	"github.com/sweeney/gaslog-controller/internal/sensor"
	"github.com/sweeney/gaslog-controller/internal/valve"
)

// printInputs samples the supply once and reports the inputs without
// touching the H-bridge.
func printInputs(w io.Writer, sampler *valve.Sampler, contact gpio.Reader, probe sensor.Sensor) error {
	r := sampler.DutyCycle()
	if r.Degraded {
		fmt.Fprintf(w, "Supply: %.2fV (sense fault), Duty: 0\n", r.SupplyVolts)
	} else {
		fmt.Fprintf(w, "Supply: %.2fV, Duty: %d\n", r.SupplyVolts, r.Duty)
	}

	if contact != nil {
		call, err := contact.Read()
		if err != nil {
			return fmt.Errorf("read contact: %w", err)
		}
		fmt.Fprintf(w, "Contact: %s\n", stateString(call))
	}

	if probe != nil {
		c, err := probe.ReadCelsius()
		if err != nil {
			fmt.Fprintf(w, "Room: unavailable (%v)\n", err)
		} else {
			fmt.Fprintf(w, "Room: %.1fF\n", sensor.CelsiusToFahrenheit(c))
		}
	}
	return nil
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
