// Package speed measures vehicle speed from the time taken to travel
// between two horizontal reference lines a fixed real world distance apart.
package speed

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/swdee/go-speedcam/timeutil"
	"github.com/swdee/go-speedcam/tracker"
)

const (
	// DefaultLineA is the y coordinate of the first reference line
	DefaultLineA = 322
	// DefaultLineB is the y coordinate of the second reference line
	DefaultLineB = 368
	// DefaultOffset is the tolerance band in pixels either side of a line
	DefaultOffset = 6
	// DefaultDistanceM is the real world distance between the lines in meters
	DefaultDistanceM = 10.0
)

var (
	// ErrStaleFrame is returned when a frame was not produced by a tracker
	// update newer than the last one the engine processed
	ErrStaleFrame = errors.New("frame was not produced by a newer tracker update")
	// ErrInvalidConfig is returned for an unusable engine configuration
	ErrInvalidConfig = errors.New("invalid speed engine config")
)

// Policy controls how often speed samples are emitted for a vehicle
type Policy int

const (
	// SingleShot emits one event when a vehicle completes a traversal of
	// both lines and then forgets the crossing
	SingleShot Policy = 0
	// Continuous records each line independently and emits an event every
	// frame while a crossing timestamp exists for the vehicle
	Continuous Policy = 1
)

// String returns the name of the policy
func (p Policy) String() string {
	switch p {
	case SingleShot:
		return "single-shot"
	case Continuous:
		return "continuous"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a policy name into a Policy
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "single-shot", "singleshot":
		return SingleShot, nil
	case "continuous":
		return Continuous, nil
	default:
		return SingleShot, fmt.Errorf("unknown emission policy %q, use 'single-shot' or 'continuous'", name)
	}
}

// Config defines the reference line layout
type Config struct {
	// LineA is the y coordinate of the upper reference line
	LineA int
	// LineB is the y coordinate of the lower reference line
	LineB int
	// Offset is the tolerance band either side of a line
	Offset int
	// DistanceM is the real world distance between the lines in meters
	DistanceM float64
	// Policy is the emission policy
	Policy Policy
	// SpeedLimitKMH marks events above this speed as exceeded, 0 disables
	SpeedLimitKMH float64
}

// DefaultConfig returns the reference layout for a 1020x500 frame
func DefaultConfig() Config {
	return Config{
		LineA:     DefaultLineA,
		LineB:     DefaultLineB,
		Offset:    DefaultOffset,
		DistanceM: DefaultDistanceM,
		Policy:    SingleShot,
	}
}

// Validate checks the configuration is usable
func (c Config) Validate() error {

	if c.Offset <= 0 {
		return fmt.Errorf("%w: offset must be positive, got %d", ErrInvalidConfig, c.Offset)
	}

	if c.DistanceM <= 0 {
		return fmt.Errorf("%w: distance must be positive, got %f", ErrInvalidConfig, c.DistanceM)
	}

	if c.SpeedLimitKMH < 0 {
		return fmt.Errorf("%w: speed limit must not be negative, got %f", ErrInvalidConfig, c.SpeedLimitKMH)
	}

	gap := c.LineB - c.LineA
	if gap < 0 {
		gap = -gap
	}

	// a centroid may never be on both lines at once
	if gap < 2*c.Offset-1 {
		return fmt.Errorf("%w: tolerance bands of lines %d and %d overlap with offset %d",
			ErrInvalidConfig, c.LineA, c.LineB, c.Offset)
	}

	if c.Policy != SingleShot && c.Policy != Continuous {
		return fmt.Errorf("%w: unknown policy %d", ErrInvalidConfig, int(c.Policy))
	}

	return nil
}

// onLine reports whether y lies strictly inside the tolerance band of line
func (c Config) onLine(y, line int) bool {
	return line-c.Offset < y && y < line+c.Offset
}

// Result is the outcome of processing one frame
type Result struct {
	// Frame is the tracker update number processed
	Frame uint64
	// At is the timestamp the frame was processed with
	At time.Time
	// Events are the speed samples emitted, in frame object order
	Events []Event
	// Counts are the running distinct vehicle counts
	Counts Counts
	// Valid is false when the frame was rejected
	Valid bool
}

// Engine keeps the line crossing timestamps and distinct vehicle counters
// for one video source.  It only reads identities assigned by the tracker.
//
// An Engine is not safe for concurrent use.
type Engine struct {
	cfg   Config
	clock timeutil.Clock
	// downTimes holds when a vehicle was on line A
	downTimes map[int]time.Time
	// upTimes holds when a vehicle was on line B
	upTimes map[int]time.Time
	// downSeen and upSeen are the distinct IDs counted per direction
	downSeen map[int]struct{}
	upSeen   map[int]struct{}
	// completed holds IDs that finished a single-shot traversal
	completed map[int]struct{}
	// lastSeq is the last tracker update processed
	lastSeq uint64
}

// NewEngine returns an Engine for the given layout.  The clock provides the
// timestamp of each frame passed to Update.
func NewEngine(cfg Config, clock timeutil.Clock) (*Engine, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = timeutil.RealClock{}
	}

	e := &Engine{
		cfg:   cfg,
		clock: clock,
	}

	e.Reset()

	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Reset clears all crossing timestamps and counters
func (e *Engine) Reset() {
	e.downTimes = make(map[int]time.Time)
	e.upTimes = make(map[int]time.Time)
	e.downSeen = make(map[int]struct{})
	e.upSeen = make(map[int]struct{})
	e.completed = make(map[int]struct{})
	e.lastSeq = 0
}

// Counts returns the number of distinct vehicles counted per direction
func (e *Engine) Counts() Counts {
	return Counts{
		Down: len(e.downSeen),
		Up:   len(e.upSeen),
	}
}

// Pending returns the number of vehicles with an open crossing timestamp
// per direction
func (e *Engine) Pending() Counts {
	return Counts{
		Down: len(e.downTimes),
		Up:   len(e.upTimes),
	}
}

// Update processes the tracker output for a frame timestamped with the
// engine clock
func (e *Engine) Update(frame tracker.Frame) (Result, error) {
	return e.UpdateAt(frame, e.clock.Now())
}

// UpdateAt processes the tracker output for a frame timestamped now.  A frame
// that did not come from a newer tracker update is rejected with
// ErrStaleFrame and leaves the engine state untouched.
func (e *Engine) UpdateAt(frame tracker.Frame, now time.Time) (Result, error) {

	if frame.Seq == 0 || frame.Seq <= e.lastSeq {
		return Result{Frame: frame.Seq, At: now, Counts: e.Counts()},
			fmt.Errorf("%w: got update %d after %d", ErrStaleFrame, frame.Seq, e.lastSeq)
	}

	e.lastSeq = frame.Seq

	res := Result{
		Frame: frame.Seq,
		At:    now,
		Valid: true,
	}

	for _, obj := range frame.Objects {
		switch e.cfg.Policy {
		case Continuous:
			res.Events = e.continuous(res.Events, obj, frame.Seq, now)
		default:
			res.Events = e.singleShot(res.Events, obj, frame.Seq, now)
		}
	}

	res.Counts = e.Counts()

	return res, nil
}

// continuous applies the independent two line policy for one object
func (e *Engine) continuous(events []Event, obj tracker.Object, seq uint64,
	now time.Time) []Event {

	cy := obj.Centroid.Y

	if e.cfg.onLine(cy, e.cfg.LineA) {
		e.downTimes[obj.ID] = now
	}

	if e.cfg.onLine(cy, e.cfg.LineB) {
		e.upTimes[obj.ID] = now
	}

	if start, ok := e.downTimes[obj.ID]; ok {
		events = append(events, e.emit(obj, Down, start, seq, now))
	}

	if start, ok := e.upTimes[obj.ID]; ok {
		events = append(events, e.emit(obj, Up, start, seq, now))
	}

	return events
}

// singleShot applies the monotonic policy for one object, a traversal is
// reported once when the second line is reached
func (e *Engine) singleShot(events []Event, obj tracker.Object, seq uint64,
	now time.Time) []Event {

	cy := obj.Centroid.Y
	_, done := e.completed[obj.ID]

	if e.cfg.onLine(cy, e.cfg.LineA) {
		if start, ok := e.upTimes[obj.ID]; ok {
			delete(e.upTimes, obj.ID)
			e.completed[obj.ID] = struct{}{}
			events = append(events, e.emit(obj, Up, start, seq, now))
		} else if !done {
			e.downTimes[obj.ID] = now
		}
	}

	if e.cfg.onLine(cy, e.cfg.LineB) {
		if start, ok := e.downTimes[obj.ID]; ok {
			delete(e.downTimes, obj.ID)
			e.completed[obj.ID] = struct{}{}
			events = append(events, e.emit(obj, Down, start, seq, now))
		} else if !done {
			e.upTimes[obj.ID] = now
		}
	}

	return events
}

// emit builds the event for obj and counts the vehicle in its direction
func (e *Engine) emit(obj tracker.Object, dir Direction, start time.Time,
	seq uint64, now time.Time) Event {

	elapsed := now.Sub(start)
	spd := Calculate(e.cfg.DistanceM, elapsed)

	switch dir {
	case Down:
		e.downSeen[obj.ID] = struct{}{}
	case Up:
		e.upSeen[obj.ID] = struct{}{}
	}

	return Event{
		ID:        obj.ID,
		Direction: dir,
		Speed:     spd,
		Elapsed:   elapsed,
		At:        now,
		Centroid:  obj.Centroid,
		Box:       obj.Box,
		Frame:     seq,
		Exceeded:  e.cfg.SpeedLimitKMH > 0 && spd.Available && spd.KMH > e.cfg.SpeedLimitKMH,
	}
}
