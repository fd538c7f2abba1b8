// Package door contains the garage door control core: debounce, timers,
// the state machine and the actuator driver.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is expressed only in ticks supplied by the caller.
package door

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidLimitSwitch is returned when both limit switches are asserted at startup.
var ErrInvalidLimitSwitch = errors.New("both limit switches asserted")

// State is the door state machine state.
type State uint8

const (
	Idle State = iota // pre-initialization placeholder, never re-entered
	Opened
	Closed
	Opening
	Closing
	StoppedWhileOpening
	StoppedWhileClosing
	Floating
	InvalidLimitSwitch
)

var stateNames = [...]string{
	Idle:                "IDLE",
	Opened:              "OPENED",
	Closed:              "CLOSED",
	Opening:             "OPENING",
	Closing:             "CLOSING",
	StoppedWhileOpening: "STOPPED WHILE OPENING",
	StoppedWhileClosing: "STOPPED WHILE CLOSING",
	Floating:            "FLOATING",
	InvalidLimitSwitch:  "INVALID LIMIT SWITCH STATE",
}

// String returns the canonical state name reported to collaborators.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Moving reports whether the motor is expected to be running.
func (s State) Moving() bool {
	return s == Opening || s == Closing
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return Idle, false
}

// Command is an actuator intent. The zero value means "leave the motor alone".
type Command uint8

const (
	CommandNone Command = iota
	CommandOpen
	CommandClose
	CommandStop
)

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "NONE"
	case CommandOpen:
		return "OPEN"
	case CommandClose:
		return "CLOSE"
	case CommandStop:
		return "STOP"
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

// Levels is one sample of the monitored inputs, already polarity-normalized
// (true = asserted).
type Levels struct {
	LimitA bool
	LimitB bool
	Button bool
}

// Inputs supplies raw input samples to the controller.
type Inputs interface {
	Read() (Levels, error)
}

// Outputs drives the motor relays and the light.
type Outputs interface {
	// SetMotor writes both relay lines in one operation.
	SetMotor(relayA, relayB bool) error
	SetLight(on bool) error
}

// EventKind tags a StatusEvent.
type EventKind uint8

const (
	StateChanged EventKind = iota + 1
	MotorTimeout
	DoorHeldOpen
)

func (k EventKind) String() string {
	switch k {
	case StateChanged:
		return "STATE_CHANGED"
	case MotorTimeout:
		return "MOTOR_TIMEOUT"
	case DoorHeldOpen:
		return "DOOR_HELD_OPEN"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// StatusEvent is handed to the event publisher. It is a plain value so
// emitting one from the tick routine does not allocate.
type StatusEvent struct {
	Kind     EventKind
	State    State // state at the time of the event
	Previous State // previously published state (StateChanged only)
	Tick     uint32
	Interval time.Duration // configured alert interval (DoorHeldOpen only)
}

// Message returns the human-readable alert text for alert events.
func (e StatusEvent) Message() string {
	switch e.Kind {
	case StateChanged:
		return e.State.String()
	case MotorTimeout:
		return "Motor ran for longer than expected."
	case DoorHeldOpen:
		return "Garage has been open for " + formatInterval(e.Interval)
	}
	return ""
}

// IsAlert reports whether the event goes to onAlert rather than onStatus.
func (e StatusEvent) IsAlert() bool {
	return e.Kind == MotorTimeout || e.Kind == DoorHeldOpen
}

func formatInterval(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}

// Emitter accepts status events without blocking. It returns false when
// the event was dropped.
type Emitter interface {
	Emit(ev StatusEvent) bool
}

// Config holds the tunable constants of the core. Durations are in ticks.
type Config struct {
	LimitDebounce  uint32
	ButtonDebounce uint32
	LightOn        uint32
	MotorRunLimit  uint32
	DoorOpenAlert  uint32
	ButtonCooldown uint32

	// AlertInterval is the wall-clock equivalent of DoorOpenAlert, used in
	// the alert text only.
	AlertInterval time.Duration

	InvertMotor         bool
	InvertLimitSwitches bool
}

// Ticks converts a duration into a whole number of ticks, never less than one.
func Ticks(d, period time.Duration) uint32 {
	if period <= 0 {
		return 1
	}
	n := d / period
	if n < 1 {
		return 1
	}
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}
