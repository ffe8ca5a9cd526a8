package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/swdee/go-speedcam/speed"
	"github.com/swdee/go-speedcam/tracker"
	"gocv.io/x/gocv"
)

func TestSpeedBoardHold(t *testing.T) {

	b := NewSpeedBoard(2)

	ev := speed.Event{ID: 7, Direction: speed.Down,
		Speed: speed.Speed{KMH: 54, Available: true}}

	b.Update([]speed.Event{ev})
	got, ok := b.Get(7)
	assert.True(t, ok)
	assert.Equal(t, ev, got)

	b.Update(nil)
	_, ok = b.Get(7)
	assert.True(t, ok, "event should be held for a second frame")

	b.Update(nil)
	_, ok = b.Get(7)
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
}

func TestSpeedBoardRefresh(t *testing.T) {

	b := NewSpeedBoard(0)

	b.Update([]speed.Event{{ID: 1}, {ID: 2}})
	assert.Equal(t, 2, b.Len())

	b.Update([]speed.Event{{ID: 2, Frame: 9}})
	assert.Equal(t, 1, b.Len())

	got, ok := b.Get(2)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), got.Frame)

	b.Reset()
	assert.Equal(t, 0, b.Len())

	var nilBoard *SpeedBoard
	_, ok = nilBoard.Get(2)
	assert.False(t, ok)
}

func TestDefaultLines(t *testing.T) {

	lines := DefaultLines(speed.DefaultConfig())

	assert.Len(t, lines, 2)
	assert.Equal(t, 322, lines[0].Y)
	assert.Equal(t, "1line", lines[0].Label)
	assert.Equal(t, 274, lines[0].LabelAt.X)
	assert.Equal(t, 318, lines[0].LabelAt.Y)
	assert.Equal(t, 368, lines[1].Y)
	assert.Equal(t, "2line", lines[1].Label)
	assert.Equal(t, 181, lines[1].LabelAt.X)
	assert.Equal(t, 363, lines[1].LabelAt.Y)
}

func TestCounterText(t *testing.T) {

	down, up := CounterText(speed.Counts{Down: 3, Up: 1})

	assert.Equal(t, "GoingDown: 3", down)
	assert.Equal(t, "GoingUp: 1", up)
}

func TestIDColor(t *testing.T) {
	assert.Equal(t, IDColor(1), IDColor(1+len(idColors)))
	assert.Equal(t, IDColor(3), IDColor(-3))
}

func TestOverlayDraw(t *testing.T) {

	img := gocv.NewMatWithSize(500, 1020, gocv.MatTypeCV8UC3)
	defer img.Close()

	box := tracker.NewBox(400, 340, 460, 396)
	obj := tracker.Object{ID: 1, Box: box, Centroid: box.Centroid()}

	trail := tracker.NewTrail(10)
	trail.Add(obj)

	ev := speed.Event{ID: 1, Direction: speed.Down, Centroid: obj.Centroid,
		Box: box, Speed: speed.Speed{KMH: 40, Available: true}}

	o := NewOverlay(speed.DefaultConfig(), 20)
	o.ShowTrails = true
	o.Draw(&img, []tracker.Object{obj}, trail, []speed.Event{ev},
		speed.Counts{Down: 1})

	assert.Equal(t, 1, o.Board.Len())
	gray := gocv.NewMat()
	defer gray.Close()

	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	assert.Greater(t, gocv.CountNonZero(gray), 0)
}
