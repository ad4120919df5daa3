package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultW1Root is where the kernel w1 bus exposes 1-Wire slaves.
const DefaultW1Root = "/sys/bus/w1/devices"

// powerOnReset is the DS18B20 scratchpad value before a conversion ran.
const powerOnReset = 85000

// DS18B20 reads a DS18B20 probe through the kernel w1-therm driver.
type DS18B20 struct {
	dir string
}

// NewDS18B20 locates the probe with the given id (e.g. "28-0316a27969ff")
// under root (DefaultW1Root when empty). An empty id picks the first
// family-28 device on the bus.
func NewDS18B20(root, id string) (*DS18B20, error) {
	if root == "" {
		root = DefaultW1Root
	}
	if id == "" {
		matches, err := filepath.Glob(filepath.Join(root, "28-*"))
		if err != nil {
			return nil, fmt.Errorf("scan w1 bus: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("scan w1 bus: %w", ErrDisconnected)
		}
		return &DS18B20{dir: matches[0]}, nil
	}

	dir := filepath.Join(root, id)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("open probe %s: %w", id, ErrDisconnected)
	}
	return &DS18B20{dir: dir}, nil
}

// ID returns the 1-Wire id of the probe.
func (s *DS18B20) ID() string {
	return filepath.Base(s.dir)
}

// ReadCelsius triggers a conversion and returns the temperature. The
// kernel blocks for the conversion time (up to 750 ms at 12 bits).
func (s *DS18B20) ReadCelsius() (float64, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "w1_slave"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrDisconnected
		}
		return 0, fmt.Errorf("read probe: %w", err)
	}
	return parseW1Slave(string(data))
}

// parseW1Slave parses the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(s string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) < 2 || !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, ErrDisconnected
	}
	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("parse probe output: no t= field")
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][i+2:]))
	if err != nil {
		return 0, fmt.Errorf("parse probe output: %w", err)
	}
	if milli == powerOnReset {
		return 0, ErrDisconnected
	}
	return float64(milli) / 1000.0, nil
}
