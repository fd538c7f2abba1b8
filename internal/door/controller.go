package door

import (
	"fmt"
	"sync/atomic"
)

// Controller is the single owned aggregate of the door core: current and
// published state, debounce channels, timers and the tick counter.
//
// Tick is the only mutator and must be called from one execution context
// at a time. RequestTrigger, Snapshot and State are safe from any goroutine.
type Controller struct {
	cfg     Config
	machine Machine
	inputs  Inputs
	act     *Actuator
	emit    Emitter

	tick      uint32
	state     State
	published State
	levels    Levels
	timers    Timers

	lightArmed bool
	toggled    bool

	// remote is the ButtonCooldown arm flag, the only field written from
	// outside the tick routine.
	remote atomic.Bool
	snap   atomic.Uint64
}

// New samples the limit switches once and creates a controller in the
// matching state. It fails with ErrInvalidLimitSwitch, without touching the
// outputs, when both switches are asserted.
func New(cfg Config, in Inputs, out Outputs, emit Emitter) (*Controller, error) {
	lv, err := in.Read()
	if err != nil {
		return nil, fmt.Errorf("read initial inputs: %w", err)
	}

	state := InitialState(lv, cfg.InvertLimitSwitches)
	if state == InvalidLimitSwitch {
		return nil, fmt.Errorf("init door state (A=%v B=%v): %w", lv.LimitA, lv.LimitB, ErrInvalidLimitSwitch)
	}

	c := &Controller{
		cfg:       cfg,
		machine:   Machine{InvertLimitSwitches: cfg.InvertLimitSwitches},
		inputs:    in,
		act:       NewActuator(out, cfg.InvertMotor),
		emit:      emit,
		state:     state,
		published: Idle,
		levels:    lv,
		timers:    NewTimers(cfg),
	}
	c.storeSnapshot()
	return c, nil
}

// Tick advances the controller by one tick. It never blocks or allocates
// on the success path. An input read error skips the tick entirely.
func (c *Controller) Tick() error {
	lv, err := c.inputs.Read()
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}

	c.tick++
	c.levels = lv
	c.toggled = false

	// Outputs a previous tick failed to write are retried first.
	outErr := c.act.Sync()
	for id := TimerID(0); id < numTimers; id++ {
		if !c.timers[id].step(c.armed(id), c.tick) {
			continue
		}
		if err := c.fire(id); err != nil && outErr == nil {
			outErr = err
		}
	}

	c.publishIfChanged()
	c.storeSnapshot()
	return outErr
}

// armed computes the arm condition of a timer. State-derived conditions see
// transitions made earlier in the same tick.
func (c *Controller) armed(id TimerID) bool {
	switch id {
	case LimitADebounce:
		return c.levels.LimitA
	case LimitBDebounce:
		return c.levels.LimitB
	case ButtonDebounce:
		return c.levels.Button
	case LightOn:
		return c.lightArmed
	case MotorRunLimit:
		return c.state.Moving()
	case DoorOpenAlert:
		return c.state != Closed
	case ButtonCooldown:
		return c.remote.Load()
	case numTimers:
	}
	return false
}

func (c *Controller) fire(id TimerID) error {
	switch id {
	case LimitADebounce:
		return c.apply(c.machine.Next(c.state, TriggerLimitA))
	case LimitBDebounce:
		return c.apply(c.machine.Next(c.state, TriggerLimitB))
	case ButtonDebounce, ButtonCooldown:
		if id == ButtonCooldown {
			c.remote.Store(false)
		}
		if c.toggled {
			return nil
		}
		c.toggled = true
		c.lightArmed = true
		c.timers[LightOn].restart(c.tick)
		lightErr := c.act.SetLight(true)
		if err := c.apply(c.machine.Next(c.state, TriggerToggle)); err != nil {
			return err
		}
		return lightErr
	case LightOn:
		c.lightArmed = false
		return c.act.SetLight(false)
	case MotorRunLimit:
		return c.apply(c.machine.Next(c.state, TriggerMotorTimeout))
	case DoorOpenAlert:
		return c.apply(c.machine.Next(c.state, TriggerDoorHeldOpen))
	case numTimers:
	}
	return fmt.Errorf("unknown timer %v", id)
}

func (c *Controller) apply(o Outcome) error {
	err := c.act.Apply(o.Command)
	c.state = o.Next
	c.publishIfChanged()
	switch o.Alert {
	case MotorTimeout:
		c.emit.Emit(StatusEvent{Kind: MotorTimeout, State: c.state, Tick: c.tick})
	case DoorHeldOpen:
		c.emit.Emit(StatusEvent{Kind: DoorHeldOpen, State: c.state, Tick: c.tick, Interval: c.cfg.AlertInterval})
	case 0, StateChanged:
	}
	return err
}

// publishIfChanged emits one StateChanged when the state differs from the
// last published value.
func (c *Controller) publishIfChanged() {
	if c.state == c.published {
		return
	}
	ev := StatusEvent{Kind: StateChanged, State: c.state, Previous: c.published, Tick: c.tick}
	c.published = c.state
	c.emit.Emit(ev)
}

// RequestTrigger arms the remote-trigger cooldown. It returns false when a
// previous remote trigger is still pending. The pending bit is only set in
// the snapshot while the request is still unconsumed.
func (c *Controller) RequestTrigger() bool {
	if !c.remote.CompareAndSwap(false, true) {
		return false
	}
	for {
		old := c.snap.Load()
		// A tick may already have consumed the request.
		if !c.remote.Load() {
			return true
		}
		if c.snap.CompareAndSwap(old, old|snapPending) {
			return true
		}
	}
}

// Shutdown stops the motor and switches the light off. Call it only after
// the tick source has stopped.
func (c *Controller) Shutdown() error {
	err := c.act.Apply(CommandStop)
	if lerr := c.act.SetLight(false); err == nil {
		err = lerr
	}
	c.lightArmed = false
	c.storeSnapshot()
	return err
}

// Snapshot is a consistent read-only view of the controller.
type Snapshot struct {
	State          State
	Tick           uint32
	RelayA         bool
	RelayB         bool
	Light          bool
	TriggerPending bool
}

const (
	snapRelayA  = 1 << 8
	snapRelayB  = 1 << 9
	snapLight   = 1 << 10
	snapPending = 1 << 11
)

// storeSnapshot packs the observable state into one word so readers never
// see a partially updated tick.
func (c *Controller) storeSnapshot() {
	v := uint64(c.state) | uint64(c.tick)<<32
	ra, rb := c.act.Relays()
	if ra {
		v |= snapRelayA
	}
	if rb {
		v |= snapRelayB
	}
	if c.act.Light() {
		v |= snapLight
	}
	if c.remote.Load() {
		v |= snapPending
	}
	c.snap.Store(v)
}

// Snapshot returns the state as of the end of the last completed tick.
func (c *Controller) Snapshot() Snapshot {
	v := c.snap.Load()
	return Snapshot{
		State:          State(v & 0xff),
		Tick:           uint32(v >> 32),
		RelayA:         v&snapRelayA != 0,
		RelayB:         v&snapRelayB != 0,
		Light:          v&snapLight != 0,
		TriggerPending: v&snapPending != 0,
	}
}

// State returns the current door state.
func (c *Controller) State() State {
	return c.Snapshot().State
}

// Timers returns a copy of the timer registry. Tick-context only.
func (c *Controller) Timers() Timers {
	return c.timers
}
