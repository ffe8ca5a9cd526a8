package speedcam

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swdee/go-speedcam/logging"
	"github.com/swdee/go-speedcam/postprocess"
	"github.com/swdee/go-speedcam/speed"
	"github.com/swdee/go-speedcam/timeutil"
	"github.com/swdee/go-speedcam/tracker"
)

// Options configure a Pipeline
type Options struct {
	// DistanceThreshold is the tracker match distance in pixels, zero uses
	// tracker.DefaultDistanceThreshold
	DistanceThreshold float64
	// MatchPolicy selects the tracker association strategy
	MatchPolicy tracker.MatchPolicy
	// Speed is the reference line layout and emission policy
	Speed speed.Config
	// Clock timestamps frames processed without an explicit time, nil uses
	// the wall clock
	Clock timeutil.Clock
	// Filter selects vehicle detections, nil keeps all detections
	Filter *ClassFilter
	// NMSThreshold suppresses overlapping vehicle detections of any class
	// above this IoU, zero disables suppression
	NMSThreshold float32
	// TrailSize is the number of centroids kept per vehicle for drawing,
	// zero disables trails
	TrailSize int
	// Logger receives debug records of speed events, nil discards them
	Logger logrus.FieldLogger
}

// DefaultOptions returns the reference configuration
func DefaultOptions() Options {
	return Options{
		DistanceThreshold: tracker.DefaultDistanceThreshold,
		MatchPolicy:       tracker.GreedyMatch,
		Speed:             speed.DefaultConfig(),
	}
}

// FrameResult is the outcome of processing one frame of detections
type FrameResult struct {
	// Frame is the tracker output, one object per vehicle box in detection
	// order
	Frame tracker.Frame
	// At is the timestamp the frame was processed with
	At time.Time
	// Events are the speed samples emitted on this frame
	Events []speed.Event
	// Counts are the running distinct vehicle counts
	Counts speed.Counts
}

// Pipeline runs the tracker and the speed engine strictly in order for a
// single video source.  It is not safe for concurrent use.
type Pipeline struct {
	tracker *tracker.CentroidTracker
	engine  *speed.Engine
	filter  *ClassFilter
	nms     float32
	trail   *tracker.Trail
	clock   timeutil.Clock
	log     logrus.FieldLogger
}

// NewPipeline returns a Pipeline configured with opts
func NewPipeline(opts Options) (*Pipeline, error) {

	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	engine, err := speed.NewEngine(opts.Speed, clock)

	if err != nil {
		return nil, fmt.Errorf("error creating speed engine: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	p := &Pipeline{
		tracker: tracker.NewCentroidTracker(
			tracker.WithDistanceThreshold(opts.DistanceThreshold),
			tracker.WithMatchPolicy(opts.MatchPolicy),
		),
		engine: engine,
		filter: opts.Filter,
		nms:    opts.NMSThreshold,
		clock:  clock,
		log:    log,
	}

	if opts.TrailSize > 0 {
		p.trail = tracker.NewTrail(opts.TrailSize)
	}

	return p, nil
}

// Tracker returns the tracker owned by the pipeline
func (p *Pipeline) Tracker() *tracker.CentroidTracker {
	return p.tracker
}

// Engine returns the speed engine owned by the pipeline
func (p *Pipeline) Engine() *speed.Engine {
	return p.engine
}

// Trail returns the centroid history, nil when trails are disabled
func (p *Pipeline) Trail() *tracker.Trail {
	return p.trail
}

// Filter returns the class filter, nil when all detections are kept
func (p *Pipeline) Filter() *ClassFilter {
	return p.filter
}

// Counts returns the distinct vehicle counts per direction
func (p *Pipeline) Counts() speed.Counts {
	return p.engine.Counts()
}

// Reset clears tracking and speed state.  Identities already handed out are
// never reused.
func (p *Pipeline) Reset() {
	p.tracker.Reset()
	p.engine.Reset()

	if p.trail != nil {
		p.trail.Reset()
	}
}

// Process tracks the vehicle boxes of a frame timestamped with the pipeline
// clock
func (p *Pipeline) Process(boxes []tracker.Box) (FrameResult, error) {
	return p.ProcessAt(boxes, p.clock.Now())
}

// ProcessDetections filters the detections of a frame to vehicles and
// processes them at the given time.  A vehicle detected twice as different
// classes is reduced to its most confident detection when NMS is enabled.
func (p *Pipeline) ProcessDetections(dets []postprocess.DetectResult, now time.Time) (FrameResult, error) {

	dets = p.filter.Filter(dets)

	if p.nms > 0 {
		dets = postprocess.NMS(dets, p.nms, false)
	}

	return p.ProcessAt(tracker.DetectionsToBoxes(dets), now)
}

// ProcessAt tracks the vehicle boxes of a frame timestamped now and times
// their line crossings
func (p *Pipeline) ProcessAt(boxes []tracker.Box, now time.Time) (FrameResult, error) {

	frame := p.tracker.Update(boxes)

	res, err := p.engine.UpdateAt(frame, now)

	if err != nil {
		return FrameResult{}, fmt.Errorf("error updating speed engine: %w", err)
	}

	if p.trail != nil {
		p.trail.AddFrame(frame)
	}

	for _, ev := range res.Events {
		p.log.WithFields(logrus.Fields{
			"frame":     ev.Frame,
			"id":        ev.ID,
			"direction": ev.Direction.String(),
			"speed":     ev.Speed.String(),
			"elapsed":   ev.Elapsed,
		}).Debug("Speed event")
	}

	return FrameResult{
		Frame:  frame,
		At:     now,
		Events: res.Events,
		Counts: res.Counts,
	}, nil
}
