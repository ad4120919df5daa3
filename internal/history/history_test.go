package history

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/gaslog-controller/internal/logic"
	"github.com/sweeney/gaslog-controller/internal/status"
	"github.com/sweeney/gaslog-controller/internal/valve"
)

func sampleSnapshot(tempOK bool) status.Snapshot {
	return status.Snapshot{
		Control:     status.Control{Mode: logic.ModeThermostat, SetpointF: 70, Slider: logic.SliderHeating},
		Temperature: status.Temperature{OK: tempOK, F: 67.5},
		Valve: valve.Snapshot{
			Open:     true,
			Safety:   logic.SafetyState{CumulativeOpen: 90 * time.Second},
			LastDuty: logic.DutyReading{SupplyVolts: 12.1, Duty: 126},
		},
		Now: time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC),
	}
}

func fields(p *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestStatePoint(t *testing.T) {
	p := StatePoint(sampleSnapshot(true))

	assert.Equal(t, MeasurementState, p.Name())
	assert.Equal(t, time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC), p.Time())
	assert.Equal(t, map[string]string{"mode": "THERMOSTAT", "slider": "HEATING"}, tags(p))

	f := fields(p)
	assert.Equal(t, true, f["valve_open"])
	assert.Equal(t, 90.0, f["cumulative_open_s"])
	assert.Equal(t, false, f["limit_active"])
	assert.Equal(t, int64(70), f["setpoint_f"])
	assert.Equal(t, int64(126), f["duty"])
	assert.Equal(t, 12.1, f["supply_volts"])
	assert.Equal(t, 67.5, f["room_temp_f"])
}

func TestStatePointOmitsInvalidTemperature(t *testing.T) {
	p := StatePoint(sampleSnapshot(false))
	_, ok := fields(p)["room_temp_f"]
	assert.False(t, ok)
}

func TestNoticePointSeverity(t *testing.T) {
	at := time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC)

	p := NoticePoint(logic.NoticeLimitExceeded, at)
	assert.Equal(t, MeasurementNotice, p.Name())
	assert.Equal(t, "info", tags(p)["severity"])
	assert.Equal(t, "Time limit exceeded: Valve closed", fields(p)["message"])

	p = NoticePoint(logic.NoticeDriveFault, at)
	assert.Equal(t, "error", tags(p)["severity"])
}

type writeSink struct {
	mu     sync.Mutex
	bodies []string
	status int
}

func (s *writeSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, string(body))
	code := s.status
	s.mu.Unlock()
	if code == 0 {
		code = http.StatusNoContent
	}
	w.WriteHeader(code)
}

func (s *writeSink) all() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.bodies, "\n")
}

func TestInfluxWritesOnClose(t *testing.T) {
	sink := &writeSink{}
	srv := httptest.NewServer(sink)
	defer srv.Close()

	h := NewInflux(Options{URL: srv.URL, Token: "t", Org: "home", Bucket: "gaslog", BatchSize: 100})
	h.RecordState(sampleSnapshot(true))
	h.RecordNotice(logic.NoticeValveOpened, time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC))
	h.RecordNotice(logic.NoticeNone, time.Now())
	h.Close()

	body := sink.all()
	assert.Contains(t, body, "gaslog_state,mode=THERMOSTAT,slider=HEATING")
	assert.Contains(t, body, `gaslog_notice,severity=info count=1i,message="Valve open"`)

	written, errs, _ := h.Stats()
	assert.Equal(t, 2, written)
	assert.Equal(t, 0, errs)
}

func TestInfluxCountsWriteErrors(t *testing.T) {
	sink := &writeSink{status: http.StatusBadRequest}
	srv := httptest.NewServer(sink)
	defer srv.Close()

	h := NewInflux(Options{URL: srv.URL, Token: "t", Org: "home", Bucket: "gaslog", BatchSize: 1})
	defer h.Close()

	h.RecordState(sampleSnapshot(true))

	require.Eventually(t, func() bool {
		_, errs, _ := h.Stats()
		return errs > 0
	}, 5*time.Second, 20*time.Millisecond)

	_, _, lastErr := h.Stats()
	assert.False(t, lastErr.IsZero())
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordState(sampleSnapshot(true))
	r.RecordNotice(logic.NoticeReady, time.Now())
	r.Close()
}
