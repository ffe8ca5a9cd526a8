package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	assert.Equal(t, start, c.Now())

	c.Advance(2 * time.Second)
	assert.Equal(t, start.Add(2*time.Second), c.Now())
	assert.Equal(t, 2*time.Second, c.Since(start))

	later := start.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestFrameClock(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewFrameClock(base, 20)

	assert.Equal(t, base, c.Now())

	c.SetFrame(40)
	assert.Equal(t, base.Add(2*time.Second), c.Now())

	c.SetFrame(3)
	assert.Equal(t, base.Add(150*time.Millisecond), c.Now())
	assert.Equal(t, 150*time.Millisecond, c.Since(base))
}

func TestFrameClockInvalidFPS(t *testing.T) {
	base := time.Unix(0, 0)
	c := NewFrameClock(base, 0)

	c.SetFrame(5)
	assert.Equal(t, base.Add(5*time.Second), c.Now())
}

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}
