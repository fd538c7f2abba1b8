package door

import "fmt"

// TimerID names one of the fixed countdown timers.
type TimerID uint8

const (
	LimitADebounce TimerID = iota
	LimitBDebounce
	ButtonDebounce
	LightOn
	MotorRunLimit
	DoorOpenAlert
	ButtonCooldown

	numTimers
)

// NumTimers is the number of timers in the registry.
const NumTimers = int(numTimers)

func (id TimerID) String() string {
	switch id {
	case LimitADebounce:
		return "LIMIT_A_DEBOUNCE"
	case LimitBDebounce:
		return "LIMIT_B_DEBOUNCE"
	case ButtonDebounce:
		return "BUTTON_DEBOUNCE"
	case LightOn:
		return "LIGHT_ON"
	case MotorRunLimit:
		return "MOTOR_RUN_LIMIT"
	case DoorOpenAlert:
		return "DOOR_OPEN_ALERT"
	case ButtonCooldown:
		return "BUTTON_COOLDOWN"
	case numTimers:
	}
	return fmt.Sprintf("TimerID(%d)", uint8(id))
}

// timerKind decides what happens to a timer after it fires.
type timerKind uint8

const (
	// kindLevel fires once per continuous qualifying interval, then stays
	// latched until its condition drops.
	kindLevel timerKind = iota
	// kindOneShot owns its condition; the fire clears it.
	kindOneShot
	// kindRecurring restarts its count on fire and keeps going.
	kindRecurring
)

func kindOf(id TimerID) timerKind {
	switch id {
	case LimitADebounce, LimitBDebounce, ButtonDebounce, MotorRunLimit:
		return kindLevel
	case LightOn, ButtonCooldown:
		return kindOneShot
	case DoorOpenAlert:
		return kindRecurring
	case numTimers:
	}
	return kindLevel
}

// Timer is a single tick-counting countdown.
type Timer struct {
	Duration uint32
	Armed    bool
	Start    uint32

	kind    timerKind
	latched bool
}

// step advances the timer to tick now given its arm condition.
// It reports whether the timer fired on this tick.
func (t *Timer) step(cond bool, now uint32) bool {
	if !cond {
		t.Armed = false
		t.latched = false
		t.Start = now
		return false
	}
	if t.latched {
		t.Start = now
		return false
	}
	t.Armed = true
	// Unsigned subtraction keeps this correct across counter wraparound.
	if now-t.Start < t.Duration {
		return false
	}
	switch t.kind {
	case kindLevel:
		t.Armed = false
		t.latched = true
	case kindOneShot:
		t.Armed = false
	case kindRecurring:
	}
	t.Start = now
	return true
}

// restart re-arms the timer from tick now, clearing any latch.
func (t *Timer) restart(now uint32) {
	t.Armed = true
	t.latched = false
	t.Start = now
}

// Timers is the timer registry, indexed by TimerID.
type Timers [numTimers]Timer

// NewTimers builds the registry from the configured durations.
func NewTimers(cfg Config) Timers {
	var ts Timers
	for id := TimerID(0); id < numTimers; id++ {
		ts[id] = Timer{Duration: durationOf(id, cfg), kind: kindOf(id)}
	}
	return ts
}

func durationOf(id TimerID, cfg Config) uint32 {
	switch id {
	case LimitADebounce, LimitBDebounce:
		return cfg.LimitDebounce
	case ButtonDebounce:
		return cfg.ButtonDebounce
	case LightOn:
		return cfg.LightOn
	case MotorRunLimit:
		return cfg.MotorRunLimit
	case DoorOpenAlert:
		return cfg.DoorOpenAlert
	case ButtonCooldown:
		return cfg.ButtonCooldown
	case numTimers:
	}
	return 0
}

// Get returns a copy of the timer with the given id.
func (ts Timers) Get(id TimerID) Timer {
	return ts[id]
}
