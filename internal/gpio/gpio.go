// Package gpio provides the door's GPIO inputs and outputs with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/garage-opener/internal/door"

// Reader reads the limit switches and the wall button.
type Reader interface {
	// Read returns the logical levels (true = asserted). Active-low
	// inversion has already been applied.
	Read() (door.Levels, error)

	// Close releases GPIO resources.
	Close() error
}

// Writer drives the motor relays and the light.
type Writer interface {
	SetMotor(relayA, relayB bool) error
	SetLight(on bool) error

	// Close releases GPIO resources, leaving all outputs off.
	Close() error
}

// Default line offsets on gpiochip0 (BCM numbering).
const (
	DefaultChip   = "gpiochip0"
	DefaultLimitA = 17
	DefaultLimitB = 27
	DefaultButton = 22
	DefaultRelayA = 23
	DefaultRelayB = 24
	DefaultLight  = 25
)

// Config selects the chip and lines.
type Config struct {
	Chip   string
	LimitA int
	LimitB int
	Button int
	RelayA int
	RelayB int
	Light  int

	// ActiveLow inverts the inputs: a line pulled to ground is asserted.
	// Inputs are then biased with pull-ups.
	ActiveLow bool
}

// DefaultConfig returns the default wiring.
func DefaultConfig() Config {
	return Config{
		Chip:      DefaultChip,
		LimitA:    DefaultLimitA,
		LimitB:    DefaultLimitB,
		Button:    DefaultButton,
		RelayA:    DefaultRelayA,
		RelayB:    DefaultRelayB,
		Light:     DefaultLight,
		ActiveLow: true,
	}
}
