//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/garage-opener/internal/door"
)

const consumer = "garage-opener"

// RealReader reads the inputs from actual hardware using Linux GPIO character device.
type RealReader struct {
	lines *gpiocdev.Lines
	bias  gpiocdev.LineBias
	vals  []int
}

// NewRealReader requests the limit switch and button lines as inputs.
func NewRealReader(cfg Config) (*RealReader, error) {
	bias := gpiocdev.WithPullDown
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer(consumer)}
	if cfg.ActiveLow {
		// Switches pull the line to ground; the kernel inverts the value.
		bias = gpiocdev.WithPullUp
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	opts = append(opts, bias)

	offsets := []int{cfg.LimitA, cfg.LimitB, cfg.Button}
	lines, err := gpiocdev.RequestLines(cfg.Chip, offsets, opts...)
	if err != nil {
		return nil, fmt.Errorf("request input lines %v on %s: %w", offsets, cfg.Chip, err)
	}

	return &RealReader{
		lines: lines,
		bias:  bias,
		vals:  make([]int, len(offsets)),
	}, nil
}

// Read samples all three inputs in one request.
func (r *RealReader) Read() (door.Levels, error) {
	if err := r.lines.Values(r.vals); err != nil {
		return door.Levels{}, fmt.Errorf("read inputs: %w", err)
	}
	return door.Levels{
		LimitA: r.vals[0] == 1,
		LimitB: r.vals[1] == 1,
		Button: r.vals[2] == 1,
	}, nil
}

// Close releases the input lines.
// Lines are reconfigured as biased inputs first so the pins are left in a
// known state across restarts.
func (r *RealReader) Close() error {
	if r.lines == nil {
		return nil
	}
	var errs []error
	if err := r.lines.Reconfigure(gpiocdev.AsInput, r.bias); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure inputs: %w", err))
	}
	if err := r.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close inputs: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealWriter drives the relays and the light.
type RealWriter struct {
	relays *gpiocdev.Lines
	light  *gpiocdev.Line
	vals   []int
}

// NewRealWriter requests the relay and light lines as outputs, initially off.
func NewRealWriter(cfg Config) (*RealWriter, error) {
	relays, err := gpiocdev.RequestLines(cfg.Chip, []int{cfg.RelayA, cfg.RelayB},
		gpiocdev.AsOutput(0, 0), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request relay lines %d,%d on %s: %w", cfg.RelayA, cfg.RelayB, cfg.Chip, err)
	}

	light, err := gpiocdev.RequestLine(cfg.Chip, cfg.Light,
		gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
	if err != nil {
		relays.Close()
		return nil, fmt.Errorf("request light line %d on %s: %w", cfg.Light, cfg.Chip, err)
	}

	return &RealWriter{
		relays: relays,
		light:  light,
		vals:   make([]int, 2),
	}, nil
}

// SetMotor sets both relay lines in a single request, so the kernel never
// exposes an intermediate combination.
func (w *RealWriter) SetMotor(relayA, relayB bool) error {
	w.vals[0] = boolToValue(relayA)
	w.vals[1] = boolToValue(relayB)
	if err := w.relays.SetValues(w.vals); err != nil {
		return fmt.Errorf("set relays: %w", err)
	}
	return nil
}

// SetLight sets the light line.
func (w *RealWriter) SetLight(on bool) error {
	if err := w.light.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("set light: %w", err)
	}
	return nil
}

// Close switches every output off and releases the lines.
func (w *RealWriter) Close() error {
	var errs []error

	if w.relays != nil {
		if err := w.relays.SetValues([]int{0, 0}); err != nil {
			errs = append(errs, fmt.Errorf("stop relays: %w", err))
		}
		if err := w.relays.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relays: %w", err))
		}
	}
	if w.light != nil {
		if err := w.light.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("light off: %w", err))
		}
		if err := w.light.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close light: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func boolToValue(b bool) int {
	if b {
		return 1
	}
	return 0
}
