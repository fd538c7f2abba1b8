package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/garage-opener/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
	"ms": func(v int64) string {
		return (time.Duration(v) * time.Millisecond).String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Garage Door</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.state { font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.alert { color: #b00; }
button { font-family: monospace; font-size: 1.2em; padding: 0.4em 1.2em; }
</style>
</head>
<body>
<h1>Garage Door</h1>

<h2>Door</h2>
<table>
<tr><th>State</th><td id="door-state" class="state">{{.StateName}}</td></tr>
<tr><th>Relay A</th><td class="{{onOff .Door.RelayA}}">{{onOff .Door.RelayA}}</td></tr>
<tr><th>Relay B</th><td class="{{onOff .Door.RelayB}}">{{onOff .Door.RelayB}}</td></tr>
<tr><th>Light</th><td class="{{onOff .Door.Light}}">{{onOff .Door.Light}}</td></tr>
<tr><th>Tick</th><td>{{.Door.Tick}}</td></tr>
{{if not .LastChange.IsZero}}<tr><th>Last change</th><td>{{.LastChange.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>
{{if .TriggerEnabled}}
<p><button id="trigger" {{if .Door.TriggerPending}}disabled{{end}}>Press button</button> <span id="trigger-result"></span></p>
{{end}}

<h2>Recent Alerts</h2>
{{if .RecentAlerts}}<table>
{{range .RecentAlerts}}<tr><th>{{.At.UTC.Format "2006-01-02T15:04:05Z"}}</th><td class="alert">{{.Message}}</td></tr>
{{end}}</table>{{else}}<p>none</p>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.Prefix}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>State changes</th><td>{{.Counts.StateChanges}}</td></tr>
<tr><th>Motor timeouts</th><td>{{.Counts.MotorTimeouts}}</td></tr>
<tr><th>Door held open</th><td>{{.Counts.DoorHeldOpen}}</td></tr>
<tr><th>Dropped</th><td>{{.Dropped}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{ms .Config.TickPeriodMs}} ({{.Config.TickMode}})</td></tr>
<tr><th>Light on</th><td>{{ms .Config.LightOnMs}}</td></tr>
<tr><th>Motor run limit</th><td>{{ms .Config.MotorRunLimitMs}}</td></tr>
<tr><th>Open alert</th><td>{{ms .Config.DoorOpenAlertMs}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{ms .Config.HeartbeatMs}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .TriggerEnabled}}
<script>
(function() {
  var btn = document.getElementById("trigger");
  var out = document.getElementById("trigger-result");
  btn.addEventListener("click", function() {
    btn.disabled = true;
    fetch("/api/trigger", { method: "POST" }).then(function(r) {
      out.textContent = r.status === 202 ? "sent" : r.status === 409 ? "busy" : r.status === 429 ? "slow down" : "error " + r.status;
    }).catch(function() {
      out.textContent = "error";
    });
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, triggerEnabled bool) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime         time.Duration
		TriggerEnabled bool
	}{
		Snapshot:       snap,
		Uptime:         snap.Uptime(),
		TriggerEnabled: triggerEnabled,
	}
	return indexTmpl.Execute(w, data)
}
