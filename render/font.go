package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the bounding box
	Alignment Alignment
}

// DefaultFont returns default font settings for box labels
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     Black,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   4,
		RightPad:  4,
		TopPad:    4,
		BottomPad: 6,
		Alignment: Left,
	}
}

// OverlayFont returns the font used for line names and speeds drawn
// directly on the video
func OverlayFont() Font {
	return Font{
		Face:      gocv.FontHersheyComplex,
		Scale:     0.8,
		Color:     Yellow,
		Thickness: 2,
		LineType:  gocv.LineAA,
	}
}

// CounterFont returns the font used for the direction counters
func CounterFont() Font {
	return Font{
		Face:      gocv.FontHersheyComplex,
		Scale:     0.7,
		Color:     Blue,
		Thickness: 2,
		LineType:  gocv.LineAA,
	}
}

// put draws text with its baseline origin at pt
func (f Font) put(img *gocv.Mat, text string, x, y int) {
	gocv.PutTextWithParams(img, text, image.Pt(x, y), f.Face, f.Scale, f.Color,
		f.Thickness, f.LineType, false)
}
