package speedcam

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swdee/go-speedcam/postprocess"
	"github.com/swdee/go-speedcam/speed"
	"github.com/swdee/go-speedcam/timeutil"
	"github.com/swdee/go-speedcam/tracker"
)

var (
	testLabels = []string{"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck"}
	t0         = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
)

const (
	classPerson = 0
	classCar    = 2
	classTruck  = 7
)

// det returns a detection whose box centroid is (cx, cy)
func det(class, cx, cy int) postprocess.DetectResult {
	return postprocess.DetectResult{
		Class:       class,
		Box:         postprocess.BoxRect{Left: cx - 20, Right: cx + 20, Top: cy - 20, Bottom: cy + 20},
		Probability: 0.9,
	}
}

// sliceSource is a FrameSource over a fixed set of frames
type sliceSource struct {
	frames []postprocess.Frame
	pos    int
}

func (s *sliceSource) Next(ctx context.Context) (postprocess.Frame, error) {
	if s.pos >= len(s.frames) {
		return postprocess.Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// downwardCar returns frames of a car and a pedestrian moving down the
// frame, one second apart, reaching line A at 1s and line B at 3s
func downwardCar() *sliceSource {

	src := &sliceSource{}

	for i := 0; i < 5; i++ {
		src.frames = append(src.frames, postprocess.Frame{
			Index:     int64(i),
			Timestamp: time.Duration(i) * time.Second,
			Detections: []postprocess.DetectResult{
				det(classPerson, 100, 299+i*23),
				det(classCar, 400, 299+i*23),
			},
		})
	}

	return src
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()

	filter, err := NewClassFilter(testLabels, DefaultVehicleClasses, 0.5)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Filter = filter
	opts.TrailSize = 10

	p, err := NewPipeline(opts)
	require.NoError(t, err)

	return p
}

func TestLoadLabels(t *testing.T) {
	file := filepath.Join(t.TempDir(), "coco.txt")
	require.NoError(t, os.WriteFile(file, []byte("person\n bicycle \ncar\n\n"), 0o644))

	labels, err := LoadLabels(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "bicycle", "car"}, labels)

	_, err = LoadLabels(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestClassFilter(t *testing.T) {
	f, err := NewClassFilter(testLabels, DefaultVehicleClasses, 0.5)
	require.NoError(t, err)

	assert.True(t, f.Allowed(classCar))
	assert.True(t, f.Allowed(classTruck))
	assert.True(t, f.Allowed(5))
	assert.False(t, f.Allowed(classPerson))
	assert.Equal(t, "truck", f.Label(classTruck))
	assert.Equal(t, "class 99", f.Label(99))

	low := det(classCar, 50, 50)
	low.Probability = 0.2

	kept := f.Filter([]postprocess.DetectResult{
		det(classPerson, 10, 10), det(classTruck, 20, 20), low, det(classCar, 30, 30),
	})
	require.Len(t, kept, 2)
	assert.Equal(t, classTruck, kept[0].Class)
	assert.Equal(t, classCar, kept[1].Class)

	boxes := f.Boxes(kept)
	assert.Equal(t, []tracker.Box{tracker.NewBox(0, 0, 40, 40), tracker.NewBox(10, 10, 50, 50)}, boxes)

	_, err = NewClassFilter(testLabels, []string{"hovercraft"}, 0)
	assert.Error(t, err)

	var none *ClassFilter
	assert.True(t, none.Allowed(classPerson))
	assert.Len(t, none.Filter(kept), 2)
}

func TestPipelineMeasuresSpeed(t *testing.T) {
	p := newTestPipeline(t)

	var events []speed.Event

	stats, err := Run(context.Background(), downwardCar(), p, RunOptions{
		Start: t0,
		Handler: func(src postprocess.Frame, res FrameResult) error {
			// the pedestrian never reaches the tracker
			assert.Len(t, res.Frame.Objects, 1)
			events = append(events, res.Events...)
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, RunStats{Read: 5, Processed: 5, Events: 1, Counts: speed.Counts{Down: 1}}, stats)

	require.Len(t, events, 1)
	assert.Equal(t, speed.Down, events[0].Direction)
	assert.Equal(t, 1, events[0].ID)
	assert.InDelta(t, 18.0, events[0].Speed.KMH, 1e-9)
	assert.Equal(t, t0.Add(3*time.Second), events[0].At)

	assert.Len(t, p.Trail().GetPoints(1), 5)
}

func TestPipelineProcessUsesClock(t *testing.T) {
	clock := timeutil.NewMockClock(t0)

	opts := DefaultOptions()
	opts.Clock = clock
	opts.Speed.Policy = speed.Continuous
	opts.DistanceThreshold = 60

	p, err := NewPipeline(opts)
	require.NoError(t, err)

	res, err := p.Process([]tracker.Box{tracker.NewBox(380, 302, 420, 342)})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.False(t, res.Events[0].Speed.Available)
	assert.Equal(t, t0, res.At)

	clock.Advance(time.Second)

	res, err = p.Process([]tracker.Box{tracker.NewBox(380, 348, 420, 388)})
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	assert.InDelta(t, 36.0, res.Events[0].Speed.KMH, 1e-9)
	assert.Equal(t, speed.Counts{Down: 1, Up: 1}, p.Counts())

	p.Reset()
	assert.Equal(t, speed.Counts{}, p.Counts())
	assert.Empty(t, p.Tracker().Live())
}

func TestPipelineSuppressesDuplicateDetections(t *testing.T) {
	p := newTestPipeline(t)

	// the same vehicle reported as both car and truck
	car := det(classCar, 400, 200)
	truck := det(classTruck, 401, 201)
	truck.Probability = 0.7

	res, err := p.ProcessDetections([]postprocess.DetectResult{car, truck}, t0)
	require.NoError(t, err)
	assert.Len(t, res.Frame.Objects, 2, "without suppression both are tracked")

	opts := DefaultOptions()
	opts.NMSThreshold = 0.5

	p, err = NewPipeline(opts)
	require.NoError(t, err)

	res, err = p.ProcessDetections([]postprocess.DetectResult{truck, car}, t0)
	require.NoError(t, err)
	require.Len(t, res.Frame.Objects, 1)
	assert.Equal(t, tracker.NewBox(380, 180, 420, 220), res.Frame.Objects[0].Box)
}

func TestNewPipelineInvalidConfig(t *testing.T) {
	_, err := NewPipeline(Options{})
	assert.ErrorIs(t, err, speed.ErrInvalidConfig)
}

func TestRunStride(t *testing.T) {
	p := newTestPipeline(t)

	var seen []int64

	stats, err := Run(context.Background(), downwardCar(), p, RunOptions{
		Stride: 2,
		Start:  t0,
		Handler: func(src postprocess.Frame, res FrameResult) error {
			seen = append(seen, src.Index)
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3}, seen)
	assert.Equal(t, 5, stats.Read)
	assert.Equal(t, 2, stats.Processed)
}

func TestRunCancelledBetweenFrames(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats, err := Run(ctx, downwardCar(), p, RunOptions{
		Start: t0,
		Handler: func(src postprocess.Frame, res FrameResult) error {
			if src.Index == 1 {
				cancel()
			}
			return nil
		},
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, stats.Processed)
	// the frame in progress when cancelled was fully processed
	assert.Equal(t, speed.Counts{Down: 1}, p.Engine().Pending())
}

func TestRunHandlerError(t *testing.T) {
	p := newTestPipeline(t)
	boom := errors.New("boom")

	stats, err := Run(context.Background(), downwardCar(), p, RunOptions{
		Handler: func(src postprocess.Frame, res FrameResult) error {
			return boom
		},
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, stats.Processed)
}

func TestRunAllIndependentPipelines(t *testing.T) {
	jobs := []Job{
		{Name: "north", Source: downwardCar(), Pipeline: newTestPipeline(t), Options: RunOptions{Start: t0}},
		{Name: "south", Source: downwardCar(), Pipeline: newTestPipeline(t), Options: RunOptions{Start: t0}},
	}

	stats, err := RunAll(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	for i, s := range stats {
		assert.Equal(t, speed.Counts{Down: 1}, s.Counts, jobs[i].Name)
		// each source has its own identity space
		assert.Equal(t, 1, jobs[i].Pipeline.Tracker().Live()[0].ID)
	}

	_, err = RunAll(context.Background(), []Job{{Name: "empty"}})
	assert.Error(t, err)
}
