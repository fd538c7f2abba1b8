// Package mqtt provides MQTT publishing and the remote trigger subscription
// with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/garage-opener/internal/notify"
)

// DefaultPrefix is the default topic prefix.
const DefaultPrefix = "garage/door"

// Topics holds the topics derived from a prefix.
type Topics struct {
	State   string // retained door state, one message per state change
	Alert   string // motor timeout and door-open alerts
	System  string // lifecycle events and last will
	Command string // remote trigger requests
}

// TopicsFor derives the topic set for prefix.
func TopicsFor(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		State:   prefix + "/state",
		Alert:   prefix + "/alert",
		System:  prefix + "/system",
		Command: prefix + "/command",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a door status or alert event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event notify.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "FAULT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
// Exactly one of Door or Alert is set.
type Payload struct {
	Door  *DoorPayload  `json:"door,omitempty"`
	Alert *AlertPayload `json:"alert,omitempty"`
}

// DoorPayload describes a state change.
type DoorPayload struct {
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
	Previous  string `json:"previous"`
	Tick      uint32 `json:"tick"`
}

// AlertPayload describes an alert.
type AlertPayload struct {
	Timestamp string `json:"timestamp"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	State     string `json:"state"`
}

// FormatPayload creates the JSON payload for a door event.
func FormatPayload(event notify.Event) ([]byte, error) {
	ts := event.At.UTC().Format(time.RFC3339)

	var payload Payload
	if event.IsAlert() {
		payload.Alert = &AlertPayload{
			Timestamp: ts,
			Kind:      event.Kind.String(),
			Message:   event.Message(),
			State:     event.State.String(),
		}
	} else {
		payload.Door = &DoorPayload{
			Timestamp: ts,
			State:     event.State.String(),
			Previous:  event.Previous.String(),
			Tick:      event.Tick,
		}
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
