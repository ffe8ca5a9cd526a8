package render

import (
	"image/color"

	"github.com/swdee/go-speedcam/speed"
	"github.com/swdee/go-speedcam/tracker"
	"gocv.io/x/gocv"
)

// Overlay draws the complete speed camera annotation of one processed frame
type Overlay struct {
	Lines      []RefLine
	LineColor  color.RGBA
	Text       Font
	Counter    Font
	Label      Font
	Trail      TrailStyle
	// ShowTrails draws centroid history and the ID labelled boxes instead of
	// plain red boxes
	ShowTrails bool
	Board      *SpeedBoard
}

// NewOverlay returns the default overlay for the reference line layout of
// cfg, holding speeds on screen for hold frames
func NewOverlay(cfg speed.Config, hold int) *Overlay {
	return &Overlay{
		Lines:     DefaultLines(cfg),
		LineColor: White,
		Text:      OverlayFont(),
		Counter:   CounterFont(),
		Label:     DefaultFont(),
		Trail:     DefaultTrailStyle(),
		Board:     NewSpeedBoard(hold),
	}
}

// Draw annotates img with the tracked vehicles, the events of the frame, the
// reference lines and the direction counters
func (o *Overlay) Draw(img *gocv.Mat, objects []tracker.Object, trail *tracker.Trail,
	events []speed.Event, counts speed.Counts) {

	o.Board.Update(events)

	if o.ShowTrails && trail != nil {
		Trail(img, objects, trail, o.Trail)
		TrackerBoxes(img, objects, o.Board, o.Label, 1)
	} else {
		VehicleBoxes(img, objects, 1)
	}

	SpeedEvents(img, events, o.Text)
	ReferenceLines(img, o.Lines, o.LineColor, o.Text)
	Counters(img, counts, o.Counter)
}
