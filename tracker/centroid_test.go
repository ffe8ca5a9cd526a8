package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boxAt returns a 20x20 box whose centroid is exactly (cx, cy)
func boxAt(cx, cy int) Box {
	return NewBox(cx-10, cy-10, cx+10, cy+10)
}

// assertUniqueIDs checks no two objects in a frame share an ID
func assertUniqueIDs(t *testing.T, frame Frame) {
	t.Helper()

	seen := make(map[int]bool)

	for _, obj := range frame.Objects {
		if seen[obj.ID] {
			t.Errorf("frame %d: duplicate id %d in %v", frame.Seq, obj.ID, frame.IDs())
		}
		seen[obj.ID] = true
	}
}

func TestCentroidTrackerIdentityStability(t *testing.T) {
	for _, policy := range []MatchPolicy{GreedyMatch, OptimalMatch} {
		t.Run(policy.String(), func(t *testing.T) {
			ct := NewCentroidTracker(WithMatchPolicy(policy))

			// vehicle moving down the frame 12 pixels per frame
			for i := 0; i < 30; i++ {
				frame := ct.Update([]Box{boxAt(400, 100+i*12)})

				require.Len(t, frame.Objects, 1)
				assert.Equal(t, 1, frame.Objects[0].ID, "frame %d", i)
				assert.Equal(t, Point{400, 100 + i*12}, frame.Objects[0].Centroid)
			}
		})
	}
}

func TestCentroidTrackerNewIdentity(t *testing.T) {
	ct := NewCentroidTracker()

	frame := ct.Update([]Box{boxAt(50, 50)})
	assert.Equal(t, []int{1}, frame.IDs())

	frame = ct.Update([]Box{boxAt(60, 50), boxAt(300, 300)})
	assert.Equal(t, []int{1, 2}, frame.IDs())

	frame = ct.Update([]Box{boxAt(600, 400), boxAt(70, 50), boxAt(310, 300)})
	assert.Equal(t, []int{3, 1, 2}, frame.IDs())
}

func TestCentroidTrackerEviction(t *testing.T) {
	ct := NewCentroidTracker()

	frame := ct.Update([]Box{boxAt(100, 100)})
	assert.Equal(t, []int{1}, frame.IDs())

	// missing for one frame
	frame = ct.Update(nil)
	assert.Empty(t, frame.Objects)
	assert.Empty(t, ct.Live())

	// same position, but the old identity is gone
	frame = ct.Update([]Box{boxAt(100, 100)})
	assert.Equal(t, []int{2}, frame.IDs())
}

func TestCentroidTrackerThresholdIsExclusive(t *testing.T) {
	ct := NewCentroidTracker(WithDistanceThreshold(35))

	ct.Update([]Box{boxAt(100, 100)})

	// exactly 35 pixels away is not a match
	frame := ct.Update([]Box{boxAt(135, 100)})
	assert.Equal(t, []int{2}, frame.IDs())

	// 34 pixels is
	frame = ct.Update([]Box{boxAt(169, 100)})
	assert.Equal(t, []int{2}, frame.IDs())
}

func TestCentroidTrackerGreedyTieBreak(t *testing.T) {
	ct := NewCentroidTracker()

	frame := ct.Update([]Box{boxAt(100, 100), boxAt(120, 100)})
	require.Equal(t, []int{1, 2}, frame.IDs())

	// equidistant from both live objects, smallest ID wins
	frame = ct.Update([]Box{boxAt(110, 100)})
	assert.Equal(t, []int{1}, frame.IDs())

	live := ct.Live()
	require.Len(t, live, 1)
	assert.Equal(t, 1, live[0].ID)
}

func TestCentroidTrackerNoDuplicateIDs(t *testing.T) {
	for _, policy := range []MatchPolicy{GreedyMatch, OptimalMatch} {
		t.Run(policy.String(), func(t *testing.T) {
			ct := NewCentroidTracker(WithMatchPolicy(policy))

			ct.Update([]Box{boxAt(100, 100)})

			// two detections within threshold of the single live object
			frame := ct.Update([]Box{boxAt(105, 100), boxAt(95, 100)})
			assertUniqueIDs(t, frame)
			assert.Len(t, frame.Objects, 2)
			assert.Contains(t, frame.IDs(), 1)
			assert.Contains(t, frame.IDs(), 2)

			// a crowded scene stays duplicate free
			frame = ct.Update([]Box{
				boxAt(100, 100), boxAt(104, 100), boxAt(96, 100),
				boxAt(100, 104), boxAt(100, 96),
			})
			assertUniqueIDs(t, frame)
		})
	}
}

func TestCentroidTrackerGreedyFirstDetectionWins(t *testing.T) {
	ct := NewCentroidTracker()

	ct.Update([]Box{boxAt(100, 100)})

	// the first detection in input order takes the object even though the
	// second one is closer
	frame := ct.Update([]Box{boxAt(110, 100), boxAt(101, 100)})
	assert.Equal(t, []int{1, 2}, frame.IDs())
}

func TestCentroidTrackerOptimalMinimisesTotalDistance(t *testing.T) {

	seed := []Box{boxAt(100, 100), boxAt(140, 100)}
	next := []Box{boxAt(120, 100), boxAt(105, 100)}

	greedy := NewCentroidTracker(WithMatchPolicy(GreedyMatch))
	greedy.Update(seed)
	frame := greedy.Update(next)

	// the first detection is equidistant and takes ID 1, leaving the second
	// detection exactly at the threshold from ID 2
	assert.Equal(t, []int{1, 3}, frame.IDs())

	optimal := NewCentroidTracker(WithMatchPolicy(OptimalMatch))
	optimal.Update(seed)
	frame = optimal.Update(next)

	assert.Equal(t, []int{2, 1}, frame.IDs())
}

func TestCentroidTrackerIDsNeverReused(t *testing.T) {
	ct := NewCentroidTracker()

	last := 0

	for i := 0; i < 10; i++ {
		// every frame the object jumps beyond the threshold
		frame := ct.Update([]Box{boxAt(100+i*100, 100)})
		require.Len(t, frame.Objects, 1)
		assert.Greater(t, frame.Objects[0].ID, last)
		last = frame.Objects[0].ID
	}

	ct.Reset()
	assert.Empty(t, ct.Live())

	frame := ct.Update([]Box{boxAt(100, 100)})
	assert.Equal(t, []int{last + 1}, frame.IDs())
}

func TestCentroidTrackerFrameSeq(t *testing.T) {
	ct := NewCentroidTracker()

	assert.Equal(t, uint64(1), ct.Update(nil).Seq)
	assert.Equal(t, uint64(2), ct.Update([]Box{boxAt(1, 1)}).Seq)
	assert.Equal(t, uint64(3), ct.Update(nil).Seq)
}

func TestCentroidTrackerEmptyInput(t *testing.T) {
	ct := NewCentroidTracker()

	frame := ct.Update([]Box{})
	assert.NotNil(t, frame.Objects)
	assert.Empty(t, frame.Objects)
}

func TestParseMatchPolicy(t *testing.T) {
	p, err := ParseMatchPolicy("optimal")
	require.NoError(t, err)
	assert.Equal(t, OptimalMatch, p)

	p, err = ParseMatchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, GreedyMatch, p)

	_, err = ParseMatchPolicy("hungarian")
	assert.Error(t, err)

	assert.Equal(t, "MatchPolicy(7)", MatchPolicy(7).String())
}

func TestNewCentroidTrackerOptions(t *testing.T) {
	ct := NewCentroidTracker(WithDistanceThreshold(50), WithMatchPolicy(OptimalMatch))
	assert.Equal(t, 50.0, ct.DistanceThreshold())
	assert.Equal(t, OptimalMatch, ct.Policy())

	// non-positive thresholds are ignored
	ct = NewCentroidTracker(WithDistanceThreshold(0))
	assert.Equal(t, DefaultDistanceThreshold, ct.DistanceThreshold())
}
