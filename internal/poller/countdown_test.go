package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdown_RunsIntoOvertimeUntilCompleted(t *testing.T) {
	c := NewCountdown(time.Millisecond)
	assert.Equal(t, PhaseIdle, c.Phase())

	c.Start(3)
	assert.True(t, c.Active())
	require.Eventually(t, func() bool { return c.Remaining() < -2 }, time.Second, time.Millisecond)
	assert.Equal(t, PhaseOvertime, c.Phase())

	c.Complete()
	assert.False(t, c.Active())
	assert.Zero(t, c.Remaining())
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, c.Remaining())
}

func TestCountdown_StopKeepsRemaining(t *testing.T) {
	c := NewCountdown(time.Millisecond)
	c.Start(1000)
	require.Eventually(t, func() bool { return c.Remaining() < 998 }, time.Second, time.Millisecond)

	c.Stop()
	left := c.Remaining()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, left, c.Remaining())
	assert.False(t, c.Active())

	c.Stop()
	c.Complete()
	assert.Zero(t, c.Remaining())
}

func TestCountdown_RestartResets(t *testing.T) {
	c := NewCountdown(time.Millisecond)
	defer c.Stop()
	c.Start(2)
	require.Eventually(t, func() bool { return c.Remaining() < 0 }, time.Second, time.Millisecond)

	c.Start(NominalDuration)
	assert.GreaterOrEqual(t, c.Remaining(), NominalDuration-5)
	assert.Equal(t, PhaseStarting, c.Phase())
}

func TestCountdown_OnTick(t *testing.T) {
	c := NewCountdown(time.Millisecond)
	defer c.Stop()
	ticks := make(chan int, 100)
	c.OnTick(func(remaining int) {
		select {
		case ticks <- remaining:
		default:
		}
	})
	c.Start(5)

	assert.Equal(t, 4, <-ticks)
	assert.Equal(t, 3, <-ticks)
}

func TestPhaseFor(t *testing.T) {
	tests := []struct {
		remaining int
		want      Phase
	}{
		{210, PhaseStarting},
		{190, PhaseStarting},
		{189, PhaseWriting},
		{100, PhaseWriting},
		{32, PhaseWriting},
		{31, PhaseFinishing},
		{0, PhaseFinishing},
		{-1, PhaseOvertime},
		{-500, PhaseOvertime},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, phaseFor(true, tt.remaining, NominalDuration), "remaining %d", tt.remaining)
	}
	assert.Equal(t, PhaseIdle, phaseFor(false, 100, NominalDuration))
}
