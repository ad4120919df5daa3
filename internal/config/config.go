// Package config loads the controller's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/gaslog-controller/internal/gpio"
	"github.com/sweeney/gaslog-controller/internal/logic"
)

// DefaultPath is where the daemon looks for its configuration file.
const DefaultPath = "/etc/gaslog-controller.yaml"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Valve configures the H-bridge outputs, supply sensing and travel times.
type Valve struct {
	PinIN1       int           `yaml:"pin_in1"`
	PinIN2       int           `yaml:"pin_in2"`
	ADCDevice    int           `yaml:"adc_device"`
	ADCChannel   int           `yaml:"adc_channel"`
	TargetVolts  float64       `yaml:"target_volts"`
	DividerRatio float64       `yaml:"divider_ratio"`
	TimeToOpen   time.Duration `yaml:"time_to_open"`
	TimeToClose  time.Duration `yaml:"time_to_close"`
}

// Safety configures the governor.
type Safety struct {
	MaxTotalOpen time.Duration `yaml:"max_total_open"`
	InhibitReset time.Duration `yaml:"inhibit_reset"`
	WindowBegin  string        `yaml:"window_begin"`
	WindowEnd    string        `yaml:"window_end"`
}

// Thermostat configures room temperature control.
type Thermostat struct {
	Hysteresis      float64       `yaml:"hysteresis"`
	DefaultSetpoint int           `yaml:"default_setpoint"`
	MinSetpoint     int           `yaml:"min_setpoint"`
	MaxSetpoint     int           `yaml:"max_setpoint"`
	SensorID        string        `yaml:"sensor_id"`
	SensorInterval  time.Duration `yaml:"sensor_interval"`
	ContactPin      int           `yaml:"contact_pin"` // non-zero: wired contact instead of the probe
	Debounce        time.Duration `yaml:"debounce"`
}

// MQTT configures telemetry.
type MQTT struct {
	Broker    string `yaml:"broker"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	BufferLen int    `yaml:"buffer_len"`
}

// HTTP configures the status and control server.
type HTTP struct {
	Addr string `yaml:"addr"`
	// CommandRate is the per-connection WebSocket command limit (per second).
	CommandRate float64 `yaml:"command_rate"`
}

// Influx configures the optional history sink. Empty URL disables it.
type Influx struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// MDNS configures service advertisement.
type MDNS struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Loop configures the control loop cadence.
type Loop struct {
	Tick      time.Duration `yaml:"tick"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Config is the full daemon configuration.
type Config struct {
	Valve      Valve      `yaml:"valve"`
	Safety     Safety     `yaml:"safety"`
	Thermostat Thermostat `yaml:"thermostat"`
	MQTT       MQTT       `yaml:"mqtt"`
	HTTP       HTTP       `yaml:"http"`
	Influx     Influx     `yaml:"influx"`
	MDNS       MDNS       `yaml:"mdns"`
	Loop       Loop       `yaml:"loop"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Valve: Valve{
			PinIN1:       gpio.DefaultPinIN1,
			PinIN2:       gpio.DefaultPinIN2,
			ADCChannel:   0,
			TargetVolts:  6.0,
			DividerRatio: 11.0,
			TimeToOpen:   2 * time.Second,
			TimeToClose:  2 * time.Second,
		},
		Safety: Safety{
			MaxTotalOpen: logic.DefaultMaxTotalOpen,
			InhibitReset: logic.DefaultInhibitReset,
			WindowBegin:  "10:00",
			WindowEnd:    "23:00",
		},
		Thermostat: Thermostat{
			Hysteresis:      0.2,
			DefaultSetpoint: 70,
			MinSetpoint:     50,
			MaxSetpoint:     85,
			SensorInterval:  5 * time.Second,
			Debounce:        250 * time.Millisecond,
		},
		MQTT: MQTT{
			Broker:    "tcp://192.168.1.200:1883",
			BufferLen: 64,
		},
		HTTP: HTTP{
			Addr:        ":80",
			CommandRate: 5,
		},
		Influx: Influx{
			Bucket: "gaslog",
		},
		MDNS: MDNS{
			Enabled:  true,
			Instance: "Gas Log Controller",
		},
		Loop: Loop{
			Tick:      time.Second,
			Heartbeat: 15 * time.Minute,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping values the document does not set,
// and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return cfg.Validate()
}

// Window parses the configured operating window.
func (c Config) Window() (logic.OperatingWindow, error) {
	return logic.ParseWindow(c.Safety.WindowBegin, c.Safety.WindowEnd)
}

// Governor returns the safety governor parameters.
func (c Config) Governor() (logic.GovernorConfig, error) {
	w, err := c.Window()
	if err != nil {
		return logic.GovernorConfig{}, err
	}
	return logic.GovernorConfig{
		MaxTotalOpen: c.Safety.MaxTotalOpen,
		InhibitReset: c.Safety.InhibitReset,
		Window:       w,
	}, nil
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Valve.PinIN1 == c.Valve.PinIN2 {
		add("valve.pin_in1 and valve.pin_in2 must differ")
	}
	if c.Valve.TargetVolts <= 0 {
		add("valve.target_volts must be positive")
	}
	if c.Valve.DividerRatio <= 0 {
		add("valve.divider_ratio must be positive")
	}
	if c.Valve.TimeToOpen <= 0 || c.Valve.TimeToClose <= 0 {
		add("valve travel times must be positive")
	}
	if c.Safety.MaxTotalOpen <= 0 {
		add("safety.max_total_open must be positive")
	}
	if c.Safety.InhibitReset <= 0 {
		add("safety.inhibit_reset must be positive")
	}
	if _, err := c.Window(); err != nil {
		add("safety window: %v", err)
	}
	if c.Thermostat.Hysteresis < 0 {
		add("thermostat.hysteresis must not be negative")
	}
	if c.Thermostat.MinSetpoint > c.Thermostat.MaxSetpoint {
		add("thermostat.min_setpoint exceeds max_setpoint")
	}
	if c.Thermostat.DefaultSetpoint < c.Thermostat.MinSetpoint || c.Thermostat.DefaultSetpoint > c.Thermostat.MaxSetpoint {
		add("thermostat.default_setpoint outside [%d, %d]", c.Thermostat.MinSetpoint, c.Thermostat.MaxSetpoint)
	}
	if c.Thermostat.SensorInterval <= 0 {
		add("thermostat.sensor_interval must be positive")
	}
	if c.MQTT.BufferLen < 0 {
		add("mqtt.buffer_len must not be negative")
	}
	if c.HTTP.CommandRate <= 0 {
		add("http.command_rate must be positive")
	}
	if c.Influx.URL != "" && (c.Influx.Org == "" || c.Influx.Bucket == "") {
		add("influx.org and influx.bucket are required with influx.url")
	}
	if c.Loop.Tick <= 0 {
		add("loop.tick must be positive")
	}
	if c.Loop.Heartbeat < 0 {
		add("loop.heartbeat must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
