package tracker

import "sync"

// Track represents a track history
type Track struct {
	points []Point
}

// Trail is the struct to keep a history of centroid positions per track ID
// used for drawing a trail
type Trail struct {
	// size is the maximum number of most recent points to keep in history
	size int
	// history of tracked points
	history map[int]*Track
	sync.Mutex
}

// NewTrail returns a new trail history track instance.  Size is the number
// of most recent points to keep and specifies the maximum length of the trail
// to maintain
func NewTrail(size int) *Trail {
	return &Trail{
		size:    size,
		history: make(map[int]*Track),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int]*Track)
}

// Add a tracked object's centroid to the history
func (t *Trail) Add(obj Object) {
	t.Lock()
	defer t.Unlock()

	track, exists := t.history[obj.ID]

	if !exists {
		track = &Track{}
		t.history[obj.ID] = track
	}

	track.points = append(track.points, obj.Centroid)

	// check if history is exceeded and drop oldest point
	if len(track.points) > t.size {
		track.points = track.points[1:]
	}
}

// AddFrame adds every object of the frame and forgets the history of IDs not
// present in it.  IDs are never reused so a dropped ID's trail is dead.
func (t *Trail) AddFrame(frame Frame) {

	for _, obj := range frame.Objects {
		t.Add(obj)
	}

	t.Lock()
	defer t.Unlock()

	present := make(map[int]struct{}, len(frame.Objects))

	for _, obj := range frame.Objects {
		present[obj.ID] = struct{}{}
	}

	for id := range t.history {
		if _, ok := present[id]; !ok {
			delete(t.history, id)
		}
	}
}

// GetPoints gets the point history for a specific track id
func (t *Trail) GetPoints(id int) []Point {
	t.Lock()
	defer t.Unlock()

	if track, exists := t.history[id]; exists {
		points := make([]Point, len(track.points))
		copy(points, track.points)
		return points
	}

	// no history yet
	return nil
}

// Len returns the number of track IDs with history
func (t *Trail) Len() int {
	t.Lock()
	defer t.Unlock()

	return len(t.history)
}
