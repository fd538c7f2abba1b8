package tick

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// guardedStep counts steps and records whether two ever overlapped.
type guardedStep struct {
	inFlight atomic.Int32
	count    atomic.Int64
	overlap  atomic.Bool
}

func (g *guardedStep) step() {
	if g.inFlight.Add(1) > 1 {
		g.overlap.Store(true)
	}
	time.Sleep(200 * time.Microsecond)
	g.count.Add(1)
	g.inFlight.Add(-1)
}

func runFor(t *testing.T, src Source, d time.Duration) *guardedStep {
	t.Helper()
	g := &guardedStep{}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, g.step) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(d + 2*time.Second):
		t.Fatal("source did not stop after cancel")
	}
	return g
}

func TestLoopSteps(t *testing.T) {
	g := runFor(t, Loop{Period: time.Millisecond}, 100*time.Millisecond)
	assert.Greater(t, g.count.Load(), int64(5))
	assert.False(t, g.overlap.Load())
}

func TestInterruptSteps(t *testing.T) {
	g := runFor(t, Interrupt{Period: time.Millisecond}, 100*time.Millisecond)
	assert.Greater(t, g.count.Load(), int64(5))
	assert.False(t, g.overlap.Load())
}

func TestInterruptNoStepAfterReturn(t *testing.T) {
	g := runFor(t, Interrupt{Period: time.Millisecond}, 30*time.Millisecond)
	after := g.count.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, g.count.Load(), "step ran after Run returned")
	assert.Zero(t, g.inFlight.Load())
}

func TestChanStepsPerValue(t *testing.T) {
	c := make(chan time.Time)
	var n int
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Chan(c).Run(ctx, func() { n++ }) }()

	for i := 0; i < 5; i++ {
		c <- time.Time{}
	}
	close(c)
	require.NoError(t, <-done)
	assert.Equal(t, 5, n)
}

func TestNew(t *testing.T) {
	src, err := New(ModeLoop, DefaultPeriod)
	require.NoError(t, err)
	assert.IsType(t, Loop{}, src)

	src, err = New(ModeTimer, DefaultPeriod)
	require.NoError(t, err)
	assert.IsType(t, Interrupt{}, src)

	_, err = New("isr", DefaultPeriod)
	assert.Error(t, err)

	_, err = New(ModeLoop, 0)
	assert.Error(t, err)
}
