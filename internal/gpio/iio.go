package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultIIORoot is where the kernel exposes Industrial I/O devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

// IIOADC reads a voltage channel through the Linux IIO sysfs ABI
// (in_voltageN_raw scaled by in_voltageN_scale, which yields millivolts).
// This covers the Pi's common add-on ADCs (ADS1015/ADS1115, MCP3008) once
// their device-tree overlay is loaded.
type IIOADC struct {
	rawPath string
	scale   float64
	offset  float64
}

// NewIIOADC opens channel of iio:device<device> under root (DefaultIIORoot
// when empty). Scale and offset are read once; a missing scale file means
// the raw value is already in millivolts.
func NewIIOADC(root string, device, channel int) (*IIOADC, error) {
	if root == "" {
		root = DefaultIIORoot
	}
	dir := filepath.Join(root, fmt.Sprintf("iio:device%d", device))
	prefix := filepath.Join(dir, fmt.Sprintf("in_voltage%d", channel))

	a := &IIOADC{rawPath: prefix + "_raw", scale: 1}
	if _, err := os.Stat(a.rawPath); err != nil {
		return nil, fmt.Errorf("open adc channel: %w", err)
	}

	if v, ok, err := readFloatFile(prefix + "_scale"); err != nil {
		return nil, fmt.Errorf("read adc scale: %w", err)
	} else if ok {
		a.scale = v
	}
	if v, ok, err := readFloatFile(prefix + "_offset"); err != nil {
		return nil, fmt.Errorf("read adc offset: %w", err)
	} else if ok {
		a.offset = v
	}
	return a, nil
}

// ReadMilliVolts reads one sample.
func (a *IIOADC) ReadMilliVolts() (float64, error) {
	raw, ok, err := readFloatFile(a.rawPath)
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("read adc: %s vanished", a.rawPath)
	}
	return (raw + a.offset) * a.scale, nil
}

// Close is a no-op; every read opens the sysfs file afresh.
func (a *IIOADC) Close() error {
	return nil
}

// readFloatFile parses a sysfs attribute. ok is false if the file does not
// exist.
func readFloatFile(path string) (v float64, ok bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err = strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return v, true, nil
}
