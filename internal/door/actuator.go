package door

import "fmt"

// Actuator translates commands into relay and light outputs.
// The two relays are never asserted together.
//
// The last commanded levels are kept separately from the last written
// ones; Sync re-writes them after a failed write.
type Actuator struct {
	out    Outputs
	invert bool

	relayA bool
	relayB bool
	light  bool

	wantA     bool
	wantB     bool
	wantLight bool
}

// NewActuator creates an actuator. invert swaps the relay used for each
// direction.
func NewActuator(out Outputs, invert bool) *Actuator {
	return &Actuator{out: out, invert: invert}
}

// Apply drives the motor relays for cmd. CommandNone leaves them untouched.
func (a *Actuator) Apply(cmd Command) error {
	var ra, rb bool
	switch cmd {
	case CommandNone:
		return nil
	case CommandOpen:
		ra = true
	case CommandClose:
		rb = true
	case CommandStop:
	default:
		return fmt.Errorf("unknown command %v", cmd)
	}
	if a.invert {
		ra, rb = rb, ra
	}
	a.wantA, a.wantB = ra, rb
	return a.drive()
}

// drive writes the commanded relay levels.
func (a *Actuator) drive() error {
	ra, rb := a.wantA, a.wantB
	// Reversing direction goes through all-off so the relays never overlap.
	if (a.relayA && rb) || (a.relayB && ra) {
		if err := a.write(false, false); err != nil {
			return err
		}
	}
	return a.write(ra, rb)
}

func (a *Actuator) write(ra, rb bool) error {
	if err := a.out.SetMotor(ra, rb); err != nil {
		return fmt.Errorf("set motor %v/%v: %w", ra, rb, err)
	}
	a.relayA, a.relayB = ra, rb
	return nil
}

// SetLight switches the light output.
func (a *Actuator) SetLight(on bool) error {
	a.wantLight = on
	if err := a.out.SetLight(on); err != nil {
		return fmt.Errorf("set light %v: %w", on, err)
	}
	a.light = on
	return nil
}

// Sync re-writes any output whose last write failed. It does nothing when
// the outputs already match the commanded levels.
func (a *Actuator) Sync() error {
	var err error
	if a.relayA != a.wantA || a.relayB != a.wantB {
		err = a.drive()
	}
	if a.light != a.wantLight {
		if lerr := a.SetLight(a.wantLight); err == nil {
			err = lerr
		}
	}
	return err
}

// Relays returns the last successfully written relay levels.
func (a *Actuator) Relays() (relayA, relayB bool) {
	return a.relayA, a.relayB
}

// Light returns the last successfully written light level.
func (a *Actuator) Light() bool {
	return a.light
}
