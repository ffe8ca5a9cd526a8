package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-speedcam/speed"
	"gocv.io/x/gocv"
)

// RefLine is a reference line drawn across the road
type RefLine struct {
	// Y is the line position, X1 and X2 its horizontal extent
	Y, X1, X2 int
	Label     string
	// LabelAt is the baseline origin of the label text
	LabelAt image.Point
}

// DefaultLines returns the reference lines of cfg laid out for a 1020x500
// frame
func DefaultLines(cfg speed.Config) []RefLine {
	return []RefLine{
		{
			Y: cfg.LineA, X1: 267, X2: 829,
			Label:   "1line",
			LabelAt: image.Pt(274, cfg.LineA-4),
		},
		{
			Y: cfg.LineB, X1: 167, X2: 932,
			Label:   "2line",
			LabelAt: image.Pt(181, cfg.LineB-5),
		},
	}
}

// ReferenceLines draws the reference lines and their labels
func ReferenceLines(img *gocv.Mat, lines []RefLine, clr color.RGBA, font Font) {
	for _, l := range lines {
		gocv.Line(img, image.Pt(l.X1, l.Y), image.Pt(l.X2, l.Y), clr, 1)
		font.put(img, l.Label, l.LabelAt.X, l.LabelAt.Y)
	}
}

// CounterText returns the overlay text of the direction counters
func CounterText(counts speed.Counts) (down, up string) {
	return fmt.Sprintf("GoingDown: %d", counts.Down),
		fmt.Sprintf("GoingUp: %d", counts.Up)
}

// Counters draws the running distinct vehicle counts in the top left corner
func Counters(img *gocv.Mat, counts speed.Counts, font Font) {
	down, up := CounterText(counts)
	font.put(img, down, 60, 40)
	font.put(img, up, 60, 130)
}
