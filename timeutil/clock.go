// Package timeutil provides the time sources used to timestamp processed
// frames.  Speed measurement only ever reads the clock through the Clock
// interface so scripted timestamps can be injected in tests and replays.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides the current time for a processed frame
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the wall clock
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually controlled clock for testing.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by the given duration
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// FrameClock derives time from a video timeline rather than the wall clock,
// the time of frame n is base + n/fps.  Replaying the same video therefore
// always produces the same timestamps and speeds.
type FrameClock struct {
	mu    sync.Mutex
	base  time.Time
	fps   float64
	frame int
}

// NewFrameClock returns a FrameClock starting at base for a video running
// at the given frames per second
func NewFrameClock(base time.Time, fps float64) *FrameClock {
	if fps <= 0 {
		fps = 1
	}

	return &FrameClock{
		base: base,
		fps:  fps,
	}
}

// SetFrame positions the clock on the given frame number of the video
func (c *FrameClock) SetFrame(frame int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frame
}

// Now returns the timestamp of the current frame.
func (c *FrameClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	offset := time.Duration(float64(c.frame) / c.fps * float64(time.Second))
	return c.base.Add(offset)
}

// Since returns the duration between t and the current frame.
func (c *FrameClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
