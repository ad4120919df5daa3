package main

import (
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/gaslog-controller/internal/config"
	"github.com/sweeney/gaslog-controller/internal/control"
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

// historyInterval bounds how long an unchanged state goes unrecorded.
const historyInterval = time.Minute

// deps are the collaborators the daemon is built from. mqttStatus, probe
// and contact may be nil.
type deps struct {
	cfg        config.Config
	actuator   *valve.Actuator
	governor   *logic.Governor
	clock      valve.Clock
	settings   *control.Settings
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	hub        *web.Hub
	metrics    *metrics.Metrics
	history    history.Recorder
	probe      sensor.Sensor
	contact    gpio.Reader
}

// shown is what the state topics and UI display; a change triggers a push.
type shown struct {
	state  mqtt.State
	slider logic.Slider
	limit  bool
}

// daemon owns the control loop. Everything except the settings and the
// status tracker is touched only from the loop goroutine.
type daemon struct {
	deps
	ctrl *valve.Controller

	detector   *logic.Detector
	thermostat *logic.Thermostat
	heartbeat  *logic.Heartbeat

	temp        status.Temperature
	lastRead    time.Time
	probeFailed bool
	lastMode    logic.Mode
	lastShown   shown
	lastHistory time.Time
}

func newDaemon(p deps) *daemon {
	d := &daemon{
		deps:       p,
		detector:   logic.NewDetector(p.cfg.Thermostat.Debounce),
		thermostat: logic.NewThermostat(p.cfg.Thermostat.Hysteresis),
		heartbeat:  logic.NewHeartbeat(p.clock.Now()),
		lastMode:   p.settings.Get().Mode,
	}
	d.ctrl = valve.NewController(p.actuator, p.governor, p.clock, valve.NotifierFunc(d.notify))
	d.ctrl.SetYield(d.onYield)
	return d
}

// start closes the valve into a known position and announces STARTUP.
func (d *daemon) start() error {
	if err := d.ctrl.Begin(); err != nil {
		return err
	}
	d.refresh(d.clock.Now(), logic.SliderOff)
	d.publishSystem("STARTUP", "", d.clock.Now(), true)
	return nil
}

func (d *daemon) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if d.ctrl.IsOpen() {
				log.Printf("valve: closing for shutdown")
				d.ctrl.Request(false)
			}
			d.refresh(d.clock.Now(), logic.SliderOff)
			d.publishSystem("SHUTDOWN", signalName, d.clock.Now(), true)
			return nil

		case <-d.settings.Changed():
			d.step(d.clock.Now())

		case <-tick:
			d.step(d.clock.Now())
		}
	}
}

// step runs one pass of the control loop: read inputs, apply the mode
// rules, let the governor do housekeeping, then drive the valve.
func (d *daemon) step(t time.Time) {
	d.readTemperature(t)
	contact := d.readContact(t)

	vals := d.settings.Get()
	if vals.Mode != d.lastMode {
		d.announceMode(vals.Mode)
	}

	dem := logic.Decide(logic.DemandInput{
		Mode:      vals.Mode,
		SensorOK:  d.temp.OK,
		RoomTempF: d.temp.F,
		SetpointF: float64(vals.SetpointF),
		Contact:   contact,
	}, d.thermostat)
	d.notify(dem.Notice)
	if dem.FallbackMode != "" {
		log.Printf("control: falling back to %s", dem.FallbackMode)
		d.settings.SetMode(dem.FallbackMode)
		d.lastMode = dem.FallbackMode
	}

	d.ctrl.Tick()
	d.ctrl.Request(dem.WantOpen)
	d.refresh(t, dem.Slider)

	if hb := d.heartbeat.Check(t, d.cfg.Loop.Heartbeat); hb != nil {
		vs := d.ctrl.Snapshot()
		log.Printf("heartbeat: uptime=%v mode=%s valve=%s cumulative=%v limit=%v",
			hb.Uptime, vals.Mode, status.ValveState(vs.Open), vs.Safety.CumulativeOpen, vs.Safety.LimitActive)
		if net := readNetworkInfo(); net != nil {
			d.tracker.SetNetwork(net)
		}
		d.publishSystem("HEARTBEAT", "", hb.Timestamp, false)
	}
}

func (d *daemon) announceMode(m logic.Mode) {
	d.lastMode = m
	log.Printf("control: mode %s", m)
	switch m {
	case logic.ModeThermostat:
		d.notify(logic.NoticeModeAutomatic)
	case logic.ModeOn:
		d.notify(logic.NoticeModeManual)
	}
}

func (d *daemon) readTemperature(t time.Time) {
	if d.probe == nil {
		return
	}
	if !d.lastRead.IsZero() && t.Sub(d.lastRead) < d.cfg.Thermostat.SensorInterval {
		return
	}
	d.lastRead = t

	c, err := d.probe.ReadCelsius()
	if err != nil {
		if !d.probeFailed {
			log.Printf("sensor: read error: %v", err)
			d.notify(logic.NoticeSensorReadFailed)
		}
		d.probeFailed = true
		d.temp.OK = false
	} else {
		if d.probeFailed {
			log.Printf("sensor: reading again")
		}
		d.probeFailed = false
		d.temp = status.Temperature{OK: true, F: sensor.CelsiusToFahrenheit(c), ReadAt: t}
	}
	d.tracker.UpdateTemperature(d.temp)
}

// readContact returns the debounced wired call, or nil when the
// thermostat runs from the probe. Until the baseline is established the
// contact counts as not calling.
func (d *daemon) readContact(t time.Time) *bool {
	if d.contact == nil {
		return nil
	}
	call, err := d.contact.Read()
	if err != nil {
		log.Printf("gpio read error: %v", err)
	} else if ev := d.detector.Process(logic.Input{Call: call, Time: t}); ev != nil {
		log.Printf("event: %s", ev.Type)
		d.tracker.UpdateCounts(d.detector.EventCountsSnapshot())
	}
	calling := d.detector.IsBaselined() && d.detector.Calling()
	return &calling
}

// refresh pushes the current state to the tracker and metrics, and to
// MQTT, the UI and history when it changed.
func (d *daemon) refresh(t time.Time, slider logic.Slider) {
	vals := d.settings.Get()
	vs := d.ctrl.Snapshot()
	ctl := status.Control{Mode: vals.Mode, SetpointF: vals.SetpointF, Slider: slider}

	d.tracker.UpdateControl(ctl)
	d.tracker.UpdateValve(vs)
	d.metrics.ObserveControl(ctl, d.temp)
	d.metrics.ObserveValve(vs)
	if d.mqttStatus != nil {
		connected := d.mqttStatus.IsConnected()
		d.tracker.SetMQTTConnected(connected)
		d.metrics.SetMQTTConnected(connected)
	}

	cur := shown{
		state: mqtt.State{
			Mode:      vals.Mode,
			ValveOpen: vs.Open,
			TempOK:    d.temp.OK,
			TempF:     status.RoundTenth(d.temp.F),
			SetpointF: vals.SetpointF,
		},
		slider: slider,
		limit:  vs.Safety.LimitActive,
	}
	if cur != d.lastShown {
		d.lastShown = cur
		if err := d.publisher.PublishState(cur.state); err != nil {
			log.Printf("publish error: %v", err)
		}
		d.hub.BroadcastState()
	} else if t.Sub(d.lastHistory) < historyInterval {
		return
	}
	d.lastHistory = t
	d.history.RecordState(d.tracker.Snapshot())
}

// onYield keeps the status page live while the valve travels.
func (d *daemon) onYield(elapsed, total time.Duration) {
	vs := d.ctrl.Snapshot()
	d.tracker.UpdateValve(vs)
	d.metrics.ObserveValve(vs)
}

// notify fans a notice out to every consumer. Repeats of the current
// notice are dropped.
func (d *daemon) notify(n logic.Notice) {
	if n == logic.NoticeNone {
		return
	}
	at := d.clock.Now()
	if !d.tracker.SetNotice(n, at) {
		return
	}
	log.Printf("notice: %s", n.Message())
	d.hub.BroadcastNotice(n)
	if err := d.publisher.PublishStatus(n); err != nil {
		log.Printf("publish error: %v", err)
	}
	d.metrics.ObserveNotice(n)
	d.history.RecordNotice(n, at)
}

func (d *daemon) publishSystem(event, reason string, at time.Time, retained bool) {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	ev := mqtt.SystemEvent{
		Timestamp:  at,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", strings.ToLower(event), err)
		return
	}
	log.Printf("published %s event", strings.ToLower(event))
}
