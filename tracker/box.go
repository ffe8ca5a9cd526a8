package tracker

import (
	"image"
	"math"
)

// Point represents the x,y pixel coordinates of the center of a bounding box
type Point struct {
	X, Y int
}

// Distance returns the Euclidean distance between two points
func (p Point) Distance(other Point) float64 {
	return math.Hypot(float64(p.X-other.X), float64(p.Y-other.Y))
}

// Box is an axis aligned bounding box in frame pixel coordinates as
// produced by the object detector, (X1,Y1) top left and (X2,Y2) bottom right
type Box struct {
	X1, Y1, X2, Y2 int
}

// NewBox creates a new Box from its corner coordinates
func NewBox(x1, y1, x2, y2 int) Box {
	return Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Centroid returns the center point of the box.  Integer division is used
// so the result is identical across platforms and replays.
func (b Box) Centroid() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Width returns the width of the box
func (b Box) Width() int {
	return b.X2 - b.X1
}

// Height returns the height of the box
func (b Box) Height() int {
	return b.Y2 - b.Y1
}

// Rect returns the box as an image.Rectangle for rendering
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}
