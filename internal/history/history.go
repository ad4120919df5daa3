// Package history records valve and room state to InfluxDB so burn time
// and temperature can be graphed over weeks.
package history

import (
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/sweeney/gaslog-controller/internal/logic"
	"github.com/sweeney/gaslog-controller/internal/status"
)

// Measurement names written by the recorder.
const (
	MeasurementState  = "gaslog_state"
	MeasurementNotice = "gaslog_notice"
)

// Recorder receives state samples and notices.
type Recorder interface {
	RecordState(snap status.Snapshot)
	RecordNotice(n logic.Notice, at time.Time)
	Close()
}

// Options configures the Influx recorder.
type Options struct {
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     uint
	FlushInterval time.Duration
}

// Influx writes points through the non-blocking write API. Write errors
// arrive asynchronously and are logged by a listener goroutine.
type Influx struct {
	client influxdb2.Client
	api    api.WriteAPI

	mu      sync.RWMutex
	lastErr time.Time
	errors  int
	written int
}

// NewInflux creates the client and starts the error listener. No
// connection is made until the first batch is flushed.
func NewInflux(o Options) *Influx {
	if o.BatchSize == 0 {
		o.BatchSize = 20
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 10 * time.Second
	}
	opts := influxdb2.DefaultOptions().
		SetBatchSize(o.BatchSize).
		SetFlushInterval(uint(o.FlushInterval.Milliseconds()))
	client := influxdb2.NewClientWithOptions(o.URL, o.Token, opts)
	return newInflux(client, client.WriteAPI(o.Org, o.Bucket))
}

func newInflux(client influxdb2.Client, w api.WriteAPI) *Influx {
	h := &Influx{client: client, api: w}
	go func() {
		for err := range w.Errors() {
			if err == nil {
				continue
			}
			h.mu.Lock()
			h.lastErr = time.Now()
			h.errors++
			h.mu.Unlock()
			log.Printf("history: influx write error: %v", err)
		}
	}()
	return h
}

// RecordState queues one state point.
func (h *Influx) RecordState(snap status.Snapshot) {
	h.write(StatePoint(snap))
}

// RecordNotice queues one notice point. NoticeNone is ignored.
func (h *Influx) RecordNotice(n logic.Notice, at time.Time) {
	if n == logic.NoticeNone {
		return
	}
	h.write(NoticePoint(n, at))
}

func (h *Influx) write(p *write.Point) {
	h.api.WritePoint(p)
	h.mu.Lock()
	h.written++
	h.mu.Unlock()
}

// Stats returns the number of queued points, write errors and the time of
// the last error (zero when none).
func (h *Influx) Stats() (written, errors int, lastErr time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.written, h.errors, h.lastErr
}

// Close flushes pending points and releases the client.
func (h *Influx) Close() {
	h.api.Flush()
	h.client.Close()
	log.Printf("history: closed")
}

// StatePoint converts a status snapshot into a point. The room
// temperature field is omitted while the sensor has no valid reading.
func StatePoint(snap status.Snapshot) *write.Point {
	tags := map[string]string{
		"mode":   string(snap.Control.Mode),
		"slider": string(snap.Control.Slider),
	}
	fields := map[string]interface{}{
		"valve_open":        snap.Valve.Open,
		"cumulative_open_s": snap.Valve.Safety.CumulativeOpen.Seconds(),
		"limit_active":      snap.Valve.Safety.LimitActive,
		"setpoint_f":        int64(snap.Control.SetpointF),
		"duty":              int64(snap.Valve.LastDuty.Duty),
		"supply_volts":      snap.Valve.LastDuty.SupplyVolts,
		"sense_fault":       snap.Valve.LastDuty.Degraded,
	}
	if snap.Temperature.OK {
		fields["room_temp_f"] = snap.Temperature.F
	}
	at := snap.Now
	if at.IsZero() {
		at = time.Now()
	}
	return influxdb2.NewPoint(MeasurementState, tags, fields, at)
}

// NoticePoint converts a notice into a point tagged by severity.
func NoticePoint(n logic.Notice, at time.Time) *write.Point {
	severity := "info"
	if n.IsError() {
		severity = "error"
	}
	tags := map[string]string{"severity": severity}
	fields := map[string]interface{}{
		"message": n.Message(),
		"count":   int64(1),
	}
	return influxdb2.NewPoint(MeasurementNotice, tags, fields, at)
}

// Nop discards everything. It is used when no Influx URL is configured.
type Nop struct{}

func (Nop) RecordState(status.Snapshot) {}
func (Nop) RecordNotice(logic.Notice, time.Time) {}
func (Nop) Close() {}
