package render

import (
	"image"
	"image/color"

	"github.com/swdee/go-speedcam/tracker"
	"gocv.io/x/gocv"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame draws the trail in the vehicle's ID color instead of
	// LineColor
	LineSame      bool
	LineColor     color.RGBA
	LineThickness int
	// CircleSame draws the centroid dot in the vehicle's ID color instead of
	// CircleColor
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      false,
		LineColor:     Yellow,
		LineThickness: 1,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  3,
	}
}

// Trail draws the centroid history of each tracked vehicle
func Trail(img *gocv.Mat, objects []tracker.Object, trail *tracker.Trail,
	style TrailStyle) {

	for _, obj := range objects {
		objClr := IDColor(obj.ID)

		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		points := trail.GetPoints(obj.ID)

		for i := 1; i < len(points); i++ {
			gocv.Line(img,
				image.Pt(points[i-1].X, points[i-1].Y),
				image.Pt(points[i].X, points[i].Y),
				lineClr, style.LineThickness,
			)
		}

		gocv.Circle(img, image.Pt(obj.Centroid.X, obj.Centroid.Y),
			style.CircleRadius, circleClr, -1)
	}
}
