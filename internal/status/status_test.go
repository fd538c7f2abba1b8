package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/garage-opener/internal/door"
	"github.com/sweeney/garage-opener/internal/notify"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func alertAt(kind door.EventKind, at time.Time) notify.Event {
	return notify.Event{
		At: at,
		StatusEvent: door.StatusEvent{
			Kind:     kind,
			State:    door.Opened,
			Interval: 15 * time.Minute,
		},
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{TickPeriodMs: 10, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg, 0)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.TickPeriodMs != 10 {
		t.Errorf("Config.TickPeriodMs: got %d, want 10", snap.Config.TickPeriodMs)
	}
	if snap.HasDoor {
		t.Error("expected HasDoor=false before Attach")
	}
	if snap.StateName() != "UNKNOWN" {
		t.Errorf("StateName: got %q, want UNKNOWN", snap.StateName())
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if len(snap.RecentAlerts) != 0 {
		t.Error("expected no alerts initially")
	}
}

func TestAttachSources(t *testing.T) {
	tr := NewTracker(start, Config{}, 0)
	tr.Attach(func() door.Snapshot {
		return door.Snapshot{State: door.Opening, Tick: 77, RelayA: true, Light: true}
	}, func() uint64 { return 3 })

	snap := tr.Snapshot()
	if !snap.HasDoor {
		t.Fatal("expected HasDoor=true")
	}
	if snap.Door.State != door.Opening || snap.Door.Tick != 77 {
		t.Errorf("unexpected door snapshot: %+v", snap.Door)
	}
	if snap.StateName() != "OPENING" {
		t.Errorf("StateName: got %q", snap.StateName())
	}
	if snap.Dropped != 3 {
		t.Errorf("Dropped: got %d, want 3", snap.Dropped)
	}
}

func TestOnStatusCounts(t *testing.T) {
	tr := NewTracker(start, Config{}, 0)
	at := start.Add(time.Minute)

	tr.OnStatus(notify.Event{At: start, StatusEvent: door.StatusEvent{Kind: door.StateChanged, State: door.Closed}})
	tr.OnStatus(notify.Event{At: at, StatusEvent: door.StatusEvent{Kind: door.StateChanged, State: door.Opening}})

	snap := tr.Snapshot()
	if snap.Counts.StateChanges != 2 {
		t.Errorf("StateChanges: got %d, want 2", snap.Counts.StateChanges)
	}
	if !snap.LastChange.Equal(at) {
		t.Errorf("LastChange: got %v, want %v", snap.LastChange, at)
	}
}

func TestOnAlertHistory(t *testing.T) {
	tr := NewTracker(start, Config{}, time.Hour)

	tr.OnAlert(alertAt(door.MotorTimeout, start))
	tr.OnAlert(alertAt(door.DoorHeldOpen, start.Add(time.Minute)))
	tr.OnAlert(alertAt(door.DoorHeldOpen, start.Add(2*time.Minute)))

	snap := tr.Snapshot()
	if snap.Counts.MotorTimeouts != 1 || snap.Counts.DoorHeldOpen != 2 {
		t.Errorf("unexpected counts: %+v", snap.Counts)
	}
	if len(snap.RecentAlerts) != 3 {
		t.Fatalf("expected 3 recent alerts, got %d", len(snap.RecentAlerts))
	}
	if snap.RecentAlerts[0].Kind != "MOTOR_TIMEOUT" {
		t.Errorf("oldest alert should come first, got %s", snap.RecentAlerts[0].Kind)
	}
	if snap.RecentAlerts[2].Message != "Garage has been open for 15 minutes" {
		t.Errorf("unexpected message: %q", snap.RecentAlerts[2].Message)
	}
}

func TestRecentAlertsCapped(t *testing.T) {
	tr := NewTracker(start, Config{}, time.Hour)
	for i := 0; i < MaxRecentAlerts+5; i++ {
		tr.OnAlert(alertAt(door.DoorHeldOpen, start.Add(time.Duration(i)*time.Minute)))
	}

	snap := tr.Snapshot()
	if len(snap.RecentAlerts) != MaxRecentAlerts {
		t.Fatalf("expected %d alerts, got %d", MaxRecentAlerts, len(snap.RecentAlerts))
	}
	want := start.Add(5 * time.Minute)
	if !snap.RecentAlerts[0].At.Equal(want) {
		t.Errorf("expected oldest kept alert at %v, got %v", want, snap.RecentAlerts[0].At)
	}
	if snap.Counts.DoorHeldOpen != MaxRecentAlerts+5 {
		t.Errorf("counts must not be capped, got %d", snap.Counts.DoorHeldOpen)
	}
}

func TestRecentAlertsExpire(t *testing.T) {
	tr := NewTracker(start, Config{}, 20*time.Millisecond)
	tr.OnAlert(alertAt(door.MotorTimeout, start))

	time.Sleep(50 * time.Millisecond)

	if n := len(tr.Snapshot().RecentAlerts); n != 0 {
		t.Errorf("expected expired alerts to be gone, got %d", n)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{}, 0)

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestAttachMQTT(t *testing.T) {
	tr := NewTracker(time.Now(), Config{}, 0)
	connected := false
	tr.AttachMQTT(func() bool { return connected })

	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
	connected = true
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected live source to be read on every snapshot")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{}, 0)

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, Config{}, 0)

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, Config{}, 0)
	tr.OnStatus(notify.Event{At: start})

	snap1 := tr.Snapshot()
	tr.OnStatus(notify.Event{At: start.Add(time.Second)})

	if snap1.Counts.StateChanges != 1 {
		t.Error("snapshot should be a copy; counts were modified")
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Door:          door.Snapshot{State: door.Closing, Tick: 1234, RelayB: true, Light: true},
		HasDoor:       true,
		LastChange:    start.Add(10 * time.Minute),
		Counts:        Counts{StateChanges: 5, MotorTimeouts: 1},
		Dropped:       2,
		RecentAlerts:  []Alert{{At: start, Kind: "MOTOR_TIMEOUT", Message: "Motor ran for longer than expected.", State: "OPENED"}},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{TickPeriodMs: 10, TickMode: "loop", HeartbeatMs: 900000, Broker: "tcp://localhost:1883", Prefix: "garage/door", HTTPAddr: ":80", LightOnMs: 120000},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.State != "CLOSING" {
		t.Errorf("State: got %q, want CLOSING", s.State)
	}
	if s.Tick != 1234 {
		t.Errorf("Tick: got %d, want 1234", s.Tick)
	}
	if s.Relays.A || !s.Relays.B || !s.Light {
		t.Errorf("unexpected outputs: relays=%+v light=%v", s.Relays, s.Light)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if s.LastChange != "2026-01-01T00:10:00Z" {
		t.Errorf("LastChange: got %q", s.LastChange)
	}
	if !s.MQTT.Connected || s.MQTT.Prefix != "garage/door" {
		t.Errorf("unexpected MQTT: %+v", s.MQTT)
	}
	if s.Counts.StateChanges != 5 || s.DroppedEvents != 2 {
		t.Errorf("unexpected counters: %+v dropped=%d", s.Counts, s.DroppedEvents)
	}
	if len(s.RecentAlerts) != 1 || s.RecentAlerts[0].Kind != "MOTOR_TIMEOUT" {
		t.Errorf("unexpected alerts: %+v", s.RecentAlerts)
	}
	if s.Config.LightOnMs != 120000 || s.Config.TickMode != "loop" {
		t.Errorf("unexpected config: %+v", s.Config)
	}
	// Event and Reason should be omitted
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected empty Event/Reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.State != "UNKNOWN" {
		t.Errorf("State: got %q, want UNKNOWN", parsed.Status.State)
	}
	if parsed.Status.RecentAlerts == nil {
		t.Error("recent_alerts should be an empty list, not null")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Door:      door.Snapshot{State: door.Opened},
		HasDoor:   true,
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Event/Reason: got %q/%q", parsed.Status.Event, parsed.Status.Reason)
	}
	if parsed.Status.State != "OPENED" {
		t.Errorf("State: got %q, want OPENED", parsed.Status.State)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if _, exists := status["last_change"]; exists {
		t.Error("last_change should be omitted before any change")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(time.Minute),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{}, 0)
	tr.Attach(func() door.Snapshot { return door.Snapshot{State: door.Closed} }, nil)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.OnStatus(notify.Event{At: time.Now()})
			if i%10 == 0 {
				tr.OnAlert(alertAt(door.DoorHeldOpen, time.Now()))
			}
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
		}
	}()

	wg.Wait()
}

func TestTrackerIsSink(t *testing.T) {
	var _ notify.Sink = (*Tracker)(nil)
}
