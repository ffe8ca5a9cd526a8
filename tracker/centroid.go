package tracker

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultDistanceThreshold is the maximum centroid displacement in pixels
// between two frames for a detection to keep the identity of a live object
const DefaultDistanceThreshold = 35.0

// MatchPolicy selects how detections are associated with live objects
type MatchPolicy int

const (
	// GreedyMatch processes detections in input order and gives each the
	// nearest unclaimed live object within the threshold.  Equal distances
	// go to the smallest ID.
	GreedyMatch MatchPolicy = 0
	// OptimalMatch solves the minimum total distance bipartite matching
	// between detections and live objects within the threshold
	OptimalMatch MatchPolicy = 1
)

// String returns the name of the policy
func (p MatchPolicy) String() string {
	switch p {
	case GreedyMatch:
		return "greedy"
	case OptimalMatch:
		return "optimal"
	default:
		return fmt.Sprintf("MatchPolicy(%d)", int(p))
	}
}

// ParseMatchPolicy converts a policy name into a MatchPolicy
func ParseMatchPolicy(name string) (MatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "greedy":
		return GreedyMatch, nil
	case "optimal":
		return OptimalMatch, nil
	default:
		return GreedyMatch, fmt.Errorf("unknown match policy %q, use 'greedy' or 'optimal'", name)
	}
}

// liveObject is an object the tracker currently holds
type liveObject struct {
	id       int
	centroid Point
}

// CentroidTracker assigns stable identities to detections by associating
// each detection centroid with the nearest object seen in the previous
// frame.  Objects that are not matched in a frame are dropped immediately,
// if they reappear later they receive a new ID.
//
// A CentroidTracker is not safe for concurrent use.  Create one per video
// source as it keeps a record of the previous frame's objects.
type CentroidTracker struct {
	// distThresh is the centroid distance at or beyond which a detection is
	// considered a different object
	distThresh float64
	// policy is the association method
	policy MatchPolicy
	// ids allocates new track IDs
	ids *IDGenerator
	// seq is the number of updates performed
	seq uint64
	// live objects from the last update, sorted by ascending ID
	live []liveObject
}

// Option configures a CentroidTracker
type Option func(*CentroidTracker)

// WithDistanceThreshold sets the matching distance threshold in pixels
func WithDistanceThreshold(thresh float64) Option {
	return func(ct *CentroidTracker) {
		if thresh > 0 {
			ct.distThresh = thresh
		}
	}
}

// WithMatchPolicy sets the association policy
func WithMatchPolicy(policy MatchPolicy) Option {
	return func(ct *CentroidTracker) {
		ct.policy = policy
	}
}

// NewCentroidTracker returns a tracker with no live objects
func NewCentroidTracker(opts ...Option) *CentroidTracker {

	ct := &CentroidTracker{
		distThresh: DefaultDistanceThreshold,
		policy:     GreedyMatch,
		ids:        NewIDGenerator(),
	}

	for _, opt := range opts {
		opt(ct)
	}

	return ct
}

// DistanceThreshold returns the configured matching threshold
func (ct *CentroidTracker) DistanceThreshold() float64 {
	return ct.distThresh
}

// Policy returns the configured association policy
func (ct *CentroidTracker) Policy() MatchPolicy {
	return ct.policy
}

// Reset drops all live objects.  The ID counter is kept so IDs remain unique
// for the lifetime of the tracker.
func (ct *CentroidTracker) Reset() {
	ct.live = nil
}

// Live returns a copy of the objects currently tracked, sorted by ID
func (ct *CentroidTracker) Live() []Object {

	objs := make([]Object, len(ct.live))

	for i, obj := range ct.live {
		objs[i] = Object{ID: obj.id, Centroid: obj.centroid}
	}

	return objs
}

// Update associates the detection boxes of the current frame with the live
// objects and returns the boxes annotated with their IDs in input order
func (ct *CentroidTracker) Update(boxes []Box) Frame {

	ct.seq++

	frame := Frame{
		Seq:     ct.seq,
		Objects: make([]Object, len(boxes)),
	}

	centroids := make([]Point, len(boxes))

	for i, box := range boxes {
		centroids[i] = box.Centroid()
	}

	var matched []int

	switch ct.policy {
	case OptimalMatch:
		matched = ct.matchOptimal(centroids)
	default:
		matched = ct.matchGreedy(centroids)
	}

	next := make([]liveObject, 0, len(boxes))

	for i, box := range boxes {

		var id int

		if matched[i] >= 0 {
			id = ct.live[matched[i]].id
		} else {
			id = ct.ids.GetNext()
		}

		next = append(next, liveObject{id: id, centroid: centroids[i]})

		frame.Objects[i] = Object{
			Box:      box,
			ID:       id,
			Centroid: centroids[i],
		}
	}

	// unmatched live objects are not carried over
	sort.Slice(next, func(a, b int) bool {
		return next[a].id < next[b].id
	})

	ct.live = next

	return frame
}

// matchGreedy returns the index into ct.live matched to each centroid, or -1
func (ct *CentroidTracker) matchGreedy(centroids []Point) []int {

	matched := make([]int, len(centroids))
	claimed := make([]bool, len(ct.live))

	for i, c := range centroids {

		best := -1
		bestDist := 0.0

		// ct.live is sorted by ID so the strict comparison keeps the
		// smallest ID on equal distances
		for j, obj := range ct.live {

			if claimed[j] {
				continue
			}

			dist := c.Distance(obj.centroid)

			if dist >= ct.distThresh {
				continue
			}

			if best < 0 || dist < bestDist {
				best = j
				bestDist = dist
			}
		}

		if best >= 0 {
			claimed[best] = true
		}

		matched[i] = best
	}

	return matched
}

// matchOptimal returns the index into ct.live matched to each centroid, or -1,
// minimising the total distance of all matched pairs
func (ct *CentroidTracker) matchOptimal(centroids []Point) []int {

	cost := make([][]float64, len(centroids))

	for i, c := range centroids {
		cost[i] = make([]float64, len(ct.live))

		for j, obj := range ct.live {
			cost[i][j] = c.Distance(obj.centroid)
		}
	}

	matched, err := solveAssignment(cost, ct.distThresh)

	if err != nil {
		// the solver only fails on an internal inconsistency, fall back to
		// the greedy association so the frame still gets valid IDs
		return ct.matchGreedy(centroids)
	}

	return matched
}
