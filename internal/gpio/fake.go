package gpio

import (
	"errors"

	"github.com/sweeney/garage-opener/internal/door"
)

// FakeReader is a test double that returns scripted input levels.
type FakeReader struct {
	// Samples contains scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []door.Levels

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []door.Levels) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (door.Levels, error) {
	if f.ReadError != nil {
		return door.Levels{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return door.Levels{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// Consumed returns how many samples have been read so far.
func (f *FakeReader) Consumed() int {
	return f.index
}

// MotorWrite is one recorded SetMotor call.
type MotorWrite struct {
	RelayA bool
	RelayB bool
}

// FakeWriter records output writes for test assertions.
type FakeWriter struct {
	RelayA bool
	RelayB bool
	Light  bool

	// MotorWrites and LightWrites hold every write in order.
	MotorWrites []MotorWrite
	LightWrites []bool

	// Overlap is set if a write ever asserted both relays.
	Overlap bool

	// WriteError, if set, will be returned by every write.
	WriteError error

	Closed bool
}

// NewFakeWriter creates a FakeWriter with all outputs off.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

// SetMotor records the relay levels.
func (f *FakeWriter) SetMotor(relayA, relayB bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if relayA && relayB {
		f.Overlap = true
	}
	f.RelayA, f.RelayB = relayA, relayB
	f.MotorWrites = append(f.MotorWrites, MotorWrite{RelayA: relayA, RelayB: relayB})
	return nil
}

// SetLight records the light level.
func (f *FakeWriter) SetLight(on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Light = on
	f.LightWrites = append(f.LightWrites, on)
	return nil
}

// Close turns everything off and marks the writer closed.
func (f *FakeWriter) Close() error {
	f.RelayA, f.RelayB, f.Light = false, false, false
	f.Closed = true
	return nil
}
