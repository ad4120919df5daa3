// Command gaslog-controller drives a gas log valve through an H-bridge,
// enforcing an operating window and a cumulative burn limit, and exposes
// the controller over HTTP, WebSocket and MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/gaslog-controller/internal/config"
	"github.com/sweeney/gaslog-controller/internal/control"
	"github.com/sweeney/gaslog-controller/internal/discovery"
	"github.com/sweeney/gaslog-controller/internal/gpio"
	"github.com/sweeney/gaslog-controller/internal/history"
	"github.com/sweeney/gaslog-controller/internal/logic"
	"github.com/sweeney/gaslog-controller/internal/metrics"
	"github.com/sweeney/gaslog-controller/internal/mqtt"
	"github.com/sweeney/gaslog-controller/internal/sensor"
	"github.com/sweeney/gaslog-controller/internal/status"
	"github.com/sweeney/gaslog-controller/internal/valve"
	"github.com/sweeney/gaslog-controller/internal/web"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	httpAddr := flag.String("http", "", "HTTP status/control address, overrides the config (\"off\" disables)")
	broker := flag.String("broker", "", "MQTT broker address, overrides the config")
	printState := flag.Bool("print-state", false, "Print supply voltage, duty and inputs, then exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyOverrides(&cfg, *httpAddr, *broker)

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyOverrides lets the few flags the service unit passes win over the
// config file. Empty values leave the file's setting alone.
func applyOverrides(cfg *config.Config, httpAddr, broker string) {
	switch httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = httpAddr
	}
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
}

func run(cfg config.Config, printState bool) error {
	clock := valve.RealClock()

	adc, err := gpio.NewIIOADC("", cfg.Valve.ADCDevice, cfg.Valve.ADCChannel)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer adc.Close()
	sampler := valve.NewSampler(adc, clock, valve.SamplerConfig{
		TargetVolts:  cfg.Valve.TargetVolts,
		DividerRatio: cfg.Valve.DividerRatio,
	})

	var contact gpio.Reader
	var probe sensor.Sensor
	if cfg.Thermostat.ContactPin != 0 {
		r, err := gpio.NewRealReader(cfg.Thermostat.ContactPin, true)
		if err != nil {
			return fmt.Errorf("init contact: %w", err)
		}
		defer r.Close()
		contact = r
	} else {
		probe = &lazyProbe{id: cfg.Thermostat.SensorID}
	}

	if printState {
		return printInputs(os.Stdout, sampler, contact, probe)
	}

	bridge, err := gpio.NewPeriphBridge(cfg.Valve.PinIN1, cfg.Valve.PinIN2)
	if err != nil {
		return fmt.Errorf("init h-bridge: %w", err)
	}
	defer bridge.Close()

	govCfg, err := cfg.Governor()
	if err != nil {
		return err
	}

	settings := control.NewSettings(cfg.Thermostat.DefaultSetpoint, cfg.Thermostat.MinSetpoint, cfg.Thermostat.MaxSetpoint)

	// Tracker exists before STARTUP so the snapshot is available.
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	m := metrics.New()

	var rec history.Recorder = history.Nop{}
	if cfg.Influx.URL != "" {
		rec = history.NewInflux(history.Options{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		})
		log.Printf("history: writing to %s bucket %s", cfg.Influx.URL, cfg.Influx.Bucket)
	}
	defer rec.Close()

	publisher := mqtt.NewRealPublisher(mqtt.Options{
		Broker:    cfg.MQTT.Broker,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		BufferLen: cfg.MQTT.BufferLen,
		OnCommand: func(c mqtt.Command) { applyCommand(settings, c) },
	})
	defer publisher.Close()

	hub := web.NewHub(tracker, settings, cfg.HTTP.CommandRate)

	d := newDaemon(deps{
		cfg: cfg,
		actuator: valve.NewActuator(bridge, sampler, clock, valve.ActuatorConfig{
			TimeToOpen:    cfg.Valve.TimeToOpen,
			TimeToClose:   cfg.Valve.TimeToClose,
			YieldInterval: valve.DefaultYieldInterval,
		}),
		governor:   logic.NewGovernor(govCfg),
		clock:      clock,
		settings:   settings,
		tracker:    tracker,
		publisher:  publisher,
		mqttStatus: publisher,
		hub:        hub,
		metrics:    m,
		history:    rec,
		probe:      probe,
		contact:    contact,
	})
	if err := d.start(); err != nil {
		return err
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, hub, m.Registry())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Printf("http server listening on %s", cfg.HTTP.Addr)

		if cfg.MDNS.Enabled {
			if adv := advertise(cfg); adv != nil {
				defer adv.Shutdown()
			}
		}
	}

	log.Printf("started: window=%s max_open=%v tick=%v broker=%s heartbeat=%v",
		govCfg.Window, govCfg.MaxTotalOpen, cfg.Loop.Tick, cfg.MQTT.Broker, cfg.Loop.Heartbeat)

	ticker := time.NewTicker(cfg.Loop.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.runLoop(ticker.C, sigCh)
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		TickMs:      cfg.Loop.Tick.Milliseconds(),
		HeartbeatMs: cfg.Loop.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP.Addr,
		Window:      cfg.Safety.WindowBegin + "-" + cfg.Safety.WindowEnd,
		MinSetpoint: cfg.Thermostat.MinSetpoint,
		MaxSetpoint: cfg.Thermostat.MaxSetpoint,
	}
}

// advertise announces the web UI. Failure is logged, not fatal.
func advertise(cfg config.Config) *discovery.Advertiser {
	port, err := discovery.PortFromAddr(cfg.HTTP.Addr)
	if err != nil {
		log.Printf("discovery: %v", err)
		return nil
	}
	adv, err := discovery.Advertise(discovery.Options{
		Instance: cfg.MDNS.Instance,
		Port:     port,
		TXT:      map[string]string{"path": "/", "ws": "/ws"},
	})
	if err != nil {
		log.Printf("discovery: %v", err)
		return nil
	}
	return adv
}

// applyCommand routes an MQTT command to the settings. It runs on a paho
// goroutine; Settings is safe for that.
func applyCommand(s *control.Settings, c mqtt.Command) {
	switch c.Kind {
	case mqtt.CommandSetMode:
		if err := s.ApplyModeString(c.Value); err != nil {
			log.Printf("mqtt: %v", err)
			return
		}
		log.Printf("mqtt: mode set to %s", s.Get().Mode)
	case mqtt.CommandSetSetpoint:
		v, err := s.ApplySetpointString(c.Value)
		if err != nil {
			log.Printf("mqtt: %v", err)
			return
		}
		log.Printf("mqtt: setpoint set to %d", v)
	}
}

// lazyProbe opens the DS18B20 on first use so a probe plugged in after
// boot is picked up.
type lazyProbe struct {
	id    string
	probe *sensor.DS18B20
}

func (p *lazyProbe) ReadCelsius() (float64, error) {
	if p.probe == nil {
		s, err := sensor.NewDS18B20("", p.id)
		if err != nil {
			return 0, err
		}
		log.Printf("sensor: using probe %s", s.ID())
		p.probe = s
	}
	return p.probe.ReadCelsius()
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
