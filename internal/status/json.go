package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string       `json:"event,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	State          string       `json:"state"`
	Tick           uint32       `json:"tick"`
	Relays         RelaysJSON   `json:"relays"`
	Light          bool         `json:"light"`
	TriggerPending bool         `json:"trigger_pending"`
	LastChange     string       `json:"last_change,omitempty"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	StartTime      string       `json:"start_time"`
	Timestamp      string       `json:"timestamp"`
	MQTT           MQTTStatus   `json:"mqtt"`
	Counts         CountsJSON   `json:"event_counts"`
	DroppedEvents  uint64       `json:"dropped_events"`
	RecentAlerts   []AlertJSON  `json:"recent_alerts"`
	Network        *NetworkJSON `json:"network,omitempty"`
	Config         ConfigJSON   `json:"config"`
}

// RelaysJSON reports the motor relay outputs.
type RelaysJSON struct {
	A bool `json:"a"`
	B bool `json:"b"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Prefix    string `json:"prefix"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	StateChanges  uint64 `json:"state_changes"`
	MotorTimeouts uint64 `json:"motor_timeouts"`
	DoorHeldOpen  uint64 `json:"door_held_open"`
}

// AlertJSON is the JSON representation of a recent alert.
type AlertJSON struct {
	Timestamp string `json:"timestamp"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	State     string `json:"state"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickPeriodMs     int64  `json:"tick_period_ms"`
	TickMode         string `json:"tick_mode"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	HTTPAddr         string `json:"http_addr"`
	LimitDebounceMs  int64  `json:"limit_debounce_ms"`
	ButtonDebounceMs int64  `json:"button_debounce_ms"`
	LightOnMs        int64  `json:"light_on_ms"`
	MotorRunLimitMs  int64  `json:"motor_run_limit_ms"`
	DoorOpenAlertMs  int64  `json:"door_open_alert_ms"`
	ButtonCooldownMs int64  `json:"button_cooldown_ms"`
}

// StateName returns the door state name, or UNKNOWN before a controller
// is attached.
func (s Snapshot) StateName() string {
	if !s.HasDoor {
		return "UNKNOWN"
	}
	return s.Door.State.String()
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		State:          snap.StateName(),
		Tick:           snap.Door.Tick,
		Relays:         RelaysJSON{A: snap.Door.RelayA, B: snap.Door.RelayB},
		Light:          snap.Door.Light,
		TriggerPending: snap.Door.TriggerPending,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Prefix:    snap.Config.Prefix,
		},
		Counts: CountsJSON{
			StateChanges:  snap.Counts.StateChanges,
			MotorTimeouts: snap.Counts.MotorTimeouts,
			DoorHeldOpen:  snap.Counts.DoorHeldOpen,
		},
		DroppedEvents: snap.Dropped,
		RecentAlerts:  []AlertJSON{},
		Config: ConfigJSON{
			TickPeriodMs:     snap.Config.TickPeriodMs,
			TickMode:         snap.Config.TickMode,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
			LimitDebounceMs:  snap.Config.LimitDebounceMs,
			ButtonDebounceMs: snap.Config.ButtonDebounceMs,
			LightOnMs:        snap.Config.LightOnMs,
			MotorRunLimitMs:  snap.Config.MotorRunLimitMs,
			DoorOpenAlertMs:  snap.Config.DoorOpenAlertMs,
			ButtonCooldownMs: snap.Config.ButtonCooldownMs,
		},
	}
	if !snap.LastChange.IsZero() {
		inner.LastChange = snap.LastChange.UTC().Format(time.RFC3339)
	}
	for _, a := range snap.RecentAlerts {
		inner.RecentAlerts = append(inner.RecentAlerts, AlertJSON{
			Timestamp: a.At.UTC().Format(time.RFC3339),
			Kind:      a.Kind,
			Message:   a.Message,
			State:     a.State,
		})
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
