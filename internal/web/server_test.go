package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/gaslog-controller/internal/control"
	"github.com/sweeney/gaslog-controller/internal/logic"
	"github.com/sweeney/gaslog-controller/internal/status"
	"github.com/sweeney/gaslog-controller/internal/valve"
)

type testEnv struct {
	ts       *httptest.Server
	tracker  *status.Tracker
	settings *control.Settings
	hub      *Hub
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	return newTestServerWithRate(t, 100)
}

func newTestServerWithRate(t *testing.T, cmdRate float64) *testEnv {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		TickMs:      1000,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
		Window:      "10:00-23:00",
		MinSetpoint: 50,
		MaxSetpoint: 85,
	}
	tr := status.NewTracker(start, cfg)
	settings := control.NewSettings(70, 50, 85)
	hub := NewHub(tr, settings, cmdRate)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "gaslog_test_total", Help: "test"}))

	srv := New(":0", tr, hub, reg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, tracker: tr, settings: settings, hub: hub}
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	env := newTestServer(t)
	env.tracker.UpdateControl(status.Control{Mode: logic.ModeThermostat, SetpointF: 70, Slider: logic.SliderHeating})
	env.tracker.UpdateValve(valve.Snapshot{Open: true, Opens: 1})
	env.tracker.SetMQTTConnected(true)

	resp, err := http.Get(env.ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	sj := getJSON(t, env.ts.URL+"/index.json")
	if sj.Status.Mode != "THERMOSTAT" {
		t.Errorf("Mode: got %q, want THERMOSTAT", sj.Status.Mode)
	}
	if sj.Status.Valve.State != "OPEN" {
		t.Errorf("Valve.State: got %q, want OPEN", sj.Status.Valve.State)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("Config.Broker: got %q", sj.Status.Config.Broker)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	env := newTestServer(t)
	env.tracker.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"})

	sj := getJSON(t, env.ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	env := newTestServer(t)
	window, _ := logic.ParseWindow("10:00", "23:00")
	env.tracker.UpdateValve(valve.Snapshot{
		Open:   true,
		Config: logic.GovernorConfig{MaxTotalOpen: 4 * time.Hour, Window: window},
		Safety: logic.SafetyState{CumulativeOpen: 30 * time.Minute},
	})
	env.tracker.UpdateTemperature(status.Temperature{OK: true, F: 67.26})
	env.tracker.SetNotice(logic.NoticeScheduleInhibit, time.Now())

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(env.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("Content-Type: got %q, want text/html", ct)
		}
		for _, want := range []string{"Gas Log Controller", "OPEN", "67.3", "10:00-23:00", "30 / 240 min", "Operation inhibited by schedule"} {
			if !strings.Contains(string(body), want) {
				t.Errorf("%s: body missing %q", path, want)
			}
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	env := newTestServer(t)

	resp, err := http.Get(env.ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t)

	resp, err := http.Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("healthy status: got %d, want 200", resp.StatusCode)
	}

	env.tracker.SetNotice(logic.NoticeDriveFault, time.Now())
	resp, err = http.Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("fault status: got %d, want 503", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Valve drive failed") {
		t.Errorf("body: got %q", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t)

	resp, err := http.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), "gaslog_test_total") {
		t.Errorf("metrics missing registered collector:\n%s", body)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	env := newTestServer(t)

	if sj := getJSON(t, env.ts.URL+"/index.json"); sj.Status.Valve.State != "CLOSED" {
		t.Errorf("expected CLOSED initially, got %q", sj.Status.Valve.State)
	}

	env.tracker.UpdateValve(valve.Snapshot{Open: true})
	env.tracker.SetMQTTConnected(true)

	sj := getJSON(t, env.ts.URL+"/index.json")
	if sj.Status.Valve.State != "OPEN" {
		t.Errorf("Valve.State: got %q, want OPEN", sj.Status.Valve.State)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
