package door

import (
	"testing"
	"time"
)

func TestToggleTransitions(t *testing.T) {
	tests := []struct {
		from    State
		want    State
		wantCmd Command
	}{
		{Opened, Closing, CommandClose},
		{StoppedWhileOpening, Closing, CommandClose},
		{Closed, Opening, CommandOpen},
		{StoppedWhileClosing, Opening, CommandOpen},
		{Floating, Opening, CommandOpen},
		{Opening, StoppedWhileOpening, CommandStop},
		{Closing, StoppedWhileClosing, CommandStop},
		{Idle, Idle, CommandNone},
		{InvalidLimitSwitch, InvalidLimitSwitch, CommandNone},
	}

	var m Machine
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			out := m.Next(tt.from, TriggerToggle)
			if out.Next != tt.want {
				t.Errorf("next: got %s, want %s", out.Next, tt.want)
			}
			if out.Command != tt.wantCmd {
				t.Errorf("command: got %s, want %s", out.Command, tt.wantCmd)
			}
			if out.Alert != 0 {
				t.Errorf("toggle should not raise an alert, got %s", out.Alert)
			}
		})
	}
}

func TestLimitSwitchTransitionsAreUnconditional(t *testing.T) {
	states := []State{Opened, Closed, Opening, Closing, StoppedWhileOpening, StoppedWhileClosing, Floating}

	for _, invert := range []bool{false, true} {
		m := Machine{InvertLimitSwitches: invert}
		wantA, wantB := Opened, Closed
		if invert {
			wantA, wantB = Closed, Opened
		}
		for _, s := range states {
			a := m.Next(s, TriggerLimitA)
			if a.Next != wantA || a.Command != CommandStop {
				t.Errorf("invert=%v %s + LIMIT_A: got (%s, %s), want (%s, STOP)", invert, s, a.Next, a.Command, wantA)
			}
			b := m.Next(s, TriggerLimitB)
			if b.Next != wantB || b.Command != CommandStop {
				t.Errorf("invert=%v %s + LIMIT_B: got (%s, %s), want (%s, STOP)", invert, s, b.Next, b.Command, wantB)
			}
		}
	}
}

func TestMotorTimeoutFailSafe(t *testing.T) {
	var m Machine

	out := m.Next(Opening, TriggerMotorTimeout)
	if out.Next != Closed {
		t.Errorf("OPENING timeout: got %s, want CLOSED", out.Next)
	}
	if out.Command != CommandStop {
		t.Errorf("OPENING timeout: got command %s, want STOP", out.Command)
	}
	if out.Alert != MotorTimeout {
		t.Errorf("OPENING timeout: got alert %s, want MOTOR_TIMEOUT", out.Alert)
	}

	out = m.Next(Closing, TriggerMotorTimeout)
	if out.Next != Opened {
		t.Errorf("CLOSING timeout: got %s, want OPENED", out.Next)
	}
	if out.Alert != MotorTimeout {
		t.Errorf("CLOSING timeout: got alert %s, want MOTOR_TIMEOUT", out.Alert)
	}
}

func TestDoorHeldOpenKeepsState(t *testing.T) {
	var m Machine
	out := m.Next(StoppedWhileClosing, TriggerDoorHeldOpen)
	if out.Next != StoppedWhileClosing {
		t.Errorf("got %s, want unchanged state", out.Next)
	}
	if out.Command != CommandNone {
		t.Errorf("got command %s, want NONE", out.Command)
	}
	if out.Alert != DoorHeldOpen {
		t.Errorf("got alert %s, want DOOR_HELD_OPEN", out.Alert)
	}
}

func TestInitialState(t *testing.T) {
	tests := []struct {
		name   string
		lv     Levels
		invert bool
		want   State
	}{
		{"neither", Levels{}, false, Floating},
		{"only A", Levels{LimitA: true}, false, Opened},
		{"only B", Levels{LimitB: true}, false, Closed},
		{"both", Levels{LimitA: true, LimitB: true}, false, InvalidLimitSwitch},
		{"only A inverted", Levels{LimitA: true}, true, Closed},
		{"only B inverted", Levels{LimitB: true}, true, Opened},
		{"both inverted", Levels{LimitA: true, LimitB: true}, true, InvalidLimitSwitch},
		{"button ignored", Levels{Button: true}, false, Floating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InitialState(tt.lv, tt.invert); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStateNames(t *testing.T) {
	for s := Idle; s <= InvalidLimitSwitch; s++ {
		name := s.String()
		parsed, ok := ParseState(name)
		if !ok || parsed != s {
			t.Errorf("ParseState(%q): got (%s, %v), want %s", name, parsed, ok, s)
		}
	}
	if StoppedWhileOpening.String() != "STOPPED WHILE OPENING" {
		t.Errorf("unexpected name: %q", StoppedWhileOpening.String())
	}
	if _, ok := ParseState("AJAR"); ok {
		t.Error("expected unknown name to fail")
	}
}

func TestAlertMessages(t *testing.T) {
	tests := []struct {
		ev   StatusEvent
		want string
	}{
		{StatusEvent{Kind: MotorTimeout}, "Motor ran for longer than expected."},
		{StatusEvent{Kind: DoorHeldOpen, Interval: 15 * time.Minute}, "Garage has been open for 15 minutes"},
		{StatusEvent{Kind: DoorHeldOpen, Interval: time.Minute}, "Garage has been open for 1 minute"},
		{StatusEvent{Kind: DoorHeldOpen, Interval: 90 * time.Second}, "Garage has been open for 1m30s"},
		{StatusEvent{Kind: StateChanged, State: Closing}, "CLOSING"},
	}
	for _, tt := range tests {
		if got := tt.ev.Message(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.ev.Kind, got, tt.want)
		}
	}
}

func TestTicks(t *testing.T) {
	period := 10 * time.Millisecond
	tests := []struct {
		d    time.Duration
		want uint32
	}{
		{20 * time.Millisecond, 2},
		{500 * time.Millisecond, 50},
		{30 * time.Second, 3000},
		{2 * time.Minute, 12000},
		{15 * time.Minute, 90000},
		{5 * time.Millisecond, 1},
		{0, 1},
	}
	for _, tt := range tests {
		if got := Ticks(tt.d, period); got != tt.want {
			t.Errorf("Ticks(%v): got %d, want %d", tt.d, got, tt.want)
		}
	}
}
