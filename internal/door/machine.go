package door

import "fmt"

// Trigger is an input to the state machine, produced by a timer fire.
type Trigger uint8

const (
	TriggerToggle       Trigger = iota + 1 // button or remote edge
	TriggerLimitA                          // limit switch A reached
	TriggerLimitB                          // limit switch B reached
	TriggerMotorTimeout                    // motor ran past its limit
	TriggerDoorHeldOpen                    // door-open alert interval elapsed
)

func (t Trigger) String() string {
	switch t {
	case TriggerToggle:
		return "TOGGLE"
	case TriggerLimitA:
		return "LIMIT_A"
	case TriggerLimitB:
		return "LIMIT_B"
	case TriggerMotorTimeout:
		return "MOTOR_TIMEOUT"
	case TriggerDoorHeldOpen:
		return "DOOR_HELD_OPEN"
	}
	return fmt.Sprintf("Trigger(%d)", uint8(t))
}

// Outcome is the result of one transition.
type Outcome struct {
	Next    State
	Command Command
	// Alert is MotorTimeout or DoorHeldOpen when the transition raises an
	// alarm, zero otherwise.
	Alert EventKind
}

// Machine is the pure transition function of the door.
type Machine struct {
	// InvertLimitSwitches swaps the roles of the two limit switches.
	InvertLimitSwitches bool
}

// Next computes the next state and actuator command for a trigger.
func (m Machine) Next(s State, t Trigger) Outcome {
	switch t {
	case TriggerToggle:
		return toggle(s)
	case TriggerLimitA:
		return Outcome{Next: m.endA(), Command: CommandStop}
	case TriggerLimitB:
		return Outcome{Next: m.endB(), Command: CommandStop}
	case TriggerMotorTimeout:
		// Fail-safe guess, not a measurement.
		next := Opened
		if s == Opening {
			next = Closed
		}
		return Outcome{Next: next, Command: CommandStop, Alert: MotorTimeout}
	case TriggerDoorHeldOpen:
		return Outcome{Next: s, Alert: DoorHeldOpen}
	}
	return Outcome{Next: s}
}

func toggle(s State) Outcome {
	switch s {
	case Opened, StoppedWhileOpening:
		return Outcome{Next: Closing, Command: CommandClose}
	case Closed, StoppedWhileClosing, Floating:
		return Outcome{Next: Opening, Command: CommandOpen}
	case Opening:
		return Outcome{Next: StoppedWhileOpening, Command: CommandStop}
	case Closing:
		return Outcome{Next: StoppedWhileClosing, Command: CommandStop}
	case Idle, InvalidLimitSwitch:
		// Not reachable once the controller is running.
		return Outcome{Next: s}
	}
	return Outcome{Next: s}
}

func (m Machine) endA() State {
	if m.InvertLimitSwitches {
		return Closed
	}
	return Opened
}

func (m Machine) endB() State {
	if m.InvertLimitSwitches {
		return Opened
	}
	return Closed
}

// InitialState classifies a single startup sample of the limit switches.
func InitialState(lv Levels, invertLimitSwitches bool) State {
	m := Machine{InvertLimitSwitches: invertLimitSwitches}
	switch {
	case lv.LimitA && lv.LimitB:
		return InvalidLimitSwitch
	case lv.LimitA:
		return m.endA()
	case lv.LimitB:
		return m.endB()
	default:
		return Floating
	}
}
