package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-speedcam/postprocess"
	"github.com/swdee/go-speedcam/tracker"
	"gocv.io/x/gocv"
)

// Labeler names a detection class index
type Labeler interface {
	Label(class int) string
}

// boxLabel holds a precalculated label so all labels can be drawn after
// the boxes
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// newBoxLabel positions text above the box spanning left to right whose top
// edge is at top
func newBoxLabel(text string, left, top, right int, clr color.RGBA,
	font Font, lineThickness int) boxLabel {

	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	var centerX int

	switch font.Alignment {
	case Center:
		centerX = (left + right) / 2

	case Right:
		centerX = right - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

	case Left:
		fallthrough
	default:
		centerX = left + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
	}

	return boxLabel{
		rect: image.Rect(centerX-textSize.X/2-font.LeftPad,
			top-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, top),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-textSize.X/2, top-font.BottomPad),
	}
}

// drawLabels renders the labels as the top most layer of the image
func drawLabels(img *gocv.Mat, labels []boxLabel, font Font) {
	for _, l := range labels {
		gocv.Rectangle(img, l.rect, l.clr, -1)
		gocv.PutTextWithParams(img, l.text, l.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}

// DetectionBoxes renders the bounding boxes of raw detections labeled with
// class name and confidence
func DetectionBoxes(img *gocv.Mat, dets []postprocess.DetectResult,
	labels Labeler, font Font, lineThickness int) {

	boxLabels := make([]boxLabel, 0, len(dets))

	for i, det := range dets {
		useClr := idColors[i%len(idColors)]

		rect := image.Rect(det.Box.Left, det.Box.Top, det.Box.Right, det.Box.Bottom)
		gocv.Rectangle(img, rect, useClr, lineThickness)

		name := fmt.Sprintf("%d", det.Class)
		if labels != nil {
			name = labels.Label(det.Class)
		}

		text := fmt.Sprintf("%s %.2f", name, det.Probability)
		boxLabels = append(boxLabels, newBoxLabel(text, det.Box.Left,
			det.Box.Top, det.Box.Right, useClr, font, lineThickness))
	}

	drawLabels(img, boxLabels, font)
}

// TrackerBoxes renders the tracked vehicles with a label showing the
// tracking ID and the last speed measured for it on the board.  Vehicles
// over the speed limit get a red label.
func TrackerBoxes(img *gocv.Mat, objects []tracker.Object, board *SpeedBoard,
	font Font, lineThickness int) {

	boxLabels := make([]boxLabel, 0, len(objects))

	for _, obj := range objects {
		useClr := IDColor(obj.ID)

		gocv.Rectangle(img, obj.Box.Rect(), useClr, lineThickness)

		text := fmt.Sprintf("ID %d", obj.ID)
		labelClr := useClr

		if ev, ok := board.Get(obj.ID); ok {
			text = fmt.Sprintf("ID %d %s %s", obj.ID, ev.Direction, ev.Speed)
			if ev.Exceeded {
				labelClr = Red
			}
		}

		boxLabels = append(boxLabels, newBoxLabel(text, obj.Box.X1, obj.Box.Y1,
			obj.Box.X2, labelClr, font, lineThickness))
	}

	drawLabels(img, boxLabels, font)
}

// VehicleBoxes renders a plain red rectangle around every tracked vehicle
func VehicleBoxes(img *gocv.Mat, objects []tracker.Object, lineThickness int) {
	for _, obj := range objects {
		gocv.Rectangle(img, obj.Box.Rect(), Red, lineThickness)
	}
}
