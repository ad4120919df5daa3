package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/gaslog-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"valve": status.ValveState,
	"minutes": func(d time.Duration) int {
		return int(d.Minutes())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Gas Log Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.open, .HEATING { color: #c60; font-weight: bold; }
.closed, .IDLE { color: #888; }
.OFF { color: #aaa; }
.connected { color: green; }
.disconnected, .error { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
#controls button { font-family: monospace; margin-right: 4px; }
</style>
</head>
<body>
<h1>Gas Log Controller<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<p id="notice" class="{{if .Notice.Error}}error{{end}}">{{.Notice.Text}}</p>

<h2>State</h2>
<table>
<tr><th>Valve</th><td id="valve" class="{{if .Valve.Open}}open{{else}}closed{{end}}">{{valve .Valve.Open}}</td></tr>
<tr><th>Mode</th><td id="mode">{{orUnknown (printf "%s" .Control.Mode)}}</td></tr>
<tr><th>Heating</th><td id="slider" class="{{.Control.Slider}}">{{orUnknown (printf "%s" .Control.Slider)}}</td></tr>
<tr><th>Room</th><td id="room">{{if .Temperature.OK}}{{printf "%.1f" .Temperature.F}}&deg;F{{else}}--{{end}}</td></tr>
<tr><th>Setpoint</th><td id="setpoint-value">{{.Control.SetpointF}}&deg;F</td></tr>
</table>

<div id="controls">
<button id="power">Power</button>
<button id="auto">Automatic</button>
<button id="manual">Manual</button>
<input id="setpoint" type="range" min="{{.Config.MinSetpoint}}" max="{{.Config.MaxSetpoint}}" value="{{.Control.SetpointF}}">
</div>

<h2>Safety</h2>
<table>
<tr><th>Operating hours</th><td>{{.Valve.Config.Window}}</td></tr>
<tr><th>Open time used</th><td>{{minutes .Valve.Safety.CumulativeOpen}} / {{minutes .Valve.Config.MaxTotalOpen}} min</td></tr>
<tr><th>Limit</th><td id="limit" class="{{if .Valve.Safety.LimitActive}}error{{end}}">{{if .Valve.Safety.LimitActive}}ACTIVE{{else}}ok{{end}}</td></tr>
<tr><th>Supply</th><td>{{printf "%.2f" .Valve.LastDuty.SupplyVolts}} V (duty {{.Valve.LastDuty.Duty}}/255){{if .Valve.LastDuty.Degraded}} <span class="error">sense fault</span>{{end}}</td></tr>
<tr><th>Opens / closes</th><td>{{.Valve.Opens}} / {{.Valve.Closes}}</td></tr>
<tr><th>Denied / faults</th><td>{{.Valve.Denials}} / {{.Valve.Faults}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var power = "{{if eq (printf "%s" .Control.Mode) "OFF"}}off{{else}}on{{end}}";
  var ws;

  function text(id, v, cls) {
    var el = document.getElementById(id);
    el.textContent = v;
    if (cls !== undefined) el.className = cls;
  }

  function send(type, value) {
    if (ws && ws.readyState === 1) ws.send(JSON.stringify({type: type, value: value}));
  }

  document.getElementById("power").onclick = function() { send("power", power === "on" ? "OFF" : "ON"); };
  document.getElementById("auto").onclick = function() { send("mode", "automatic"); };
  document.getElementById("manual").onclick = function() { send("mode", "manual"); };
  document.getElementById("setpoint").onchange = function(e) { send("setpoint", parseInt(e.target.value, 10)); };

  function connect() {
    ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() { dot.className = "live-dot err"; dot.title = "offline"; setTimeout(connect, 5000); };
    ws.onmessage = function(ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { return; }
      if (msg.type === "status") {
        text("notice", msg.message, msg.error ? "error" : "");
      } else if (msg.type === "state") {
        power = msg.power;
        text("valve", msg.valve, msg.valve === "OPEN" ? "open" : "closed");
        text("mode", msg.power === "off" ? "OFF" : msg.mode);
        text("slider", msg.sliderState, msg.sliderState);
        text("room", msg.roomTempF === null ? "--" : msg.roomTempF.toFixed(1) + "\u00b0F");
        text("setpoint-value", msg.setpoint + "\u00b0F");
        text("limit", msg.limitActive ? "ACTIVE" : "ok", msg.limitActive ? "error" : "");
        document.getElementById("setpoint").value = msg.setpoint;
      }
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Notice struct {
			Text  string
			Error bool
		}
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	data.Notice.Text = snap.LastNotice.Message()
	data.Notice.Error = snap.LastNotice.IsError()
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
