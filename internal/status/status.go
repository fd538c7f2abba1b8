// Package status provides a thread-safe status tracker for the garage-opener daemon.
// It is fed by the event publisher and read by HTTP handlers and system events.
package status

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sweeney/garage-opener/internal/door"
	"github.com/sweeney/garage-opener/internal/notify"
)

// DefaultAlertRetention is how long alerts stay in the recent-alerts list.
const DefaultAlertRetention = 24 * time.Hour

// MaxRecentAlerts caps the number of alerts reported in a snapshot.
const MaxRecentAlerts = 20

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickPeriodMs int64
	TickMode     string
	HeartbeatMs  int64
	Broker       string
	Prefix       string
	HTTPAddr     string

	LimitDebounceMs  int64
	ButtonDebounceMs int64
	LightOnMs        int64
	MotorRunLimitMs  int64
	DoorOpenAlertMs  int64
	ButtonCooldownMs int64
}

// Counts tallies delivered events since start.
type Counts struct {
	StateChanges  uint64
	MotorTimeouts uint64
	DoorHeldOpen  uint64
}

// Alert is one entry of the recent-alerts history.
type Alert struct {
	At      time.Time
	Kind    string
	Message string
	State   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Door       door.Snapshot
	HasDoor    bool // false until a controller is attached
	LastChange time.Time

	Counts       Counts
	Dropped      uint64
	RecentAlerts []Alert // oldest first

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex. It implements
// notify.Sink.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot

	doorSrc    func() door.Snapshot
	droppedSrc func() uint64
	mqttSrc    func() bool

	alerts *cache.Cache
	seq    uint64
}

// NewTracker creates a Tracker with the given start time and config.
// Alerts expire from the history after retention.
func NewTracker(startTime time.Time, cfg Config, retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = DefaultAlertRetention
	}
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		alerts: cache.New(retention, retention/2),
	}
}

// Attach registers the live sources read on every Snapshot.
// Either may be nil.
func (t *Tracker) Attach(doorSrc func() door.Snapshot, droppedSrc func() uint64) {
	t.mu.Lock()
	t.doorSrc = doorSrc
	t.droppedSrc = droppedSrc
	t.mu.Unlock()
}

// AttachMQTT registers a live MQTT connectivity check. It takes precedence
// over SetMQTTConnected.
func (t *Tracker) AttachMQTT(connected func() bool) {
	t.mu.Lock()
	t.mqttSrc = connected
	t.mu.Unlock()
}

// OnStatus records a delivered state change.
func (t *Tracker) OnStatus(ev notify.Event) {
	t.mu.Lock()
	t.snap.Counts.StateChanges++
	t.snap.LastChange = ev.At
	t.mu.Unlock()
}

// OnAlert records a delivered alert.
func (t *Tracker) OnAlert(ev notify.Event) {
	t.mu.Lock()
	switch ev.Kind {
	case door.MotorTimeout:
		t.snap.Counts.MotorTimeouts++
	case door.DoorHeldOpen:
		t.snap.Counts.DoorHeldOpen++
	}
	t.seq++
	key := fmt.Sprintf("%020d", t.seq)
	t.mu.Unlock()

	t.alerts.Set(key, Alert{
		At:      ev.At,
		Kind:    ev.Kind.String(),
		Message: ev.Message(),
		State:   ev.State.String(),
	}, cache.DefaultExpiration)
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	doorSrc, droppedSrc, mqttSrc := t.doorSrc, t.droppedSrc, t.mqttSrc
	t.mu.RUnlock()

	if doorSrc != nil {
		s.Door = doorSrc()
		s.HasDoor = true
	}
	if droppedSrc != nil {
		s.Dropped = droppedSrc()
	}
	if mqttSrc != nil {
		s.MQTTConnected = mqttSrc()
	}
	s.RecentAlerts = t.recentAlerts()
	s.Now = time.Now()
	return s
}

func (t *Tracker) recentAlerts() []Alert {
	items := t.alerts.Items()
	if len(items) == 0 {
		return nil
	}

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	// Keys are zero-padded sequence numbers.
	sort.Strings(keys)
	if len(keys) > MaxRecentAlerts {
		keys = keys[len(keys)-MaxRecentAlerts:]
	}

	out := make([]Alert, 0, len(keys))
	for _, k := range keys {
		out = append(out, items[k].Object.(Alert))
	}
	return out
}
