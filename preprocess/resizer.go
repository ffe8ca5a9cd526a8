// Package preprocess scales decoded video frames to the processing frame
// size the reference lines are laid out for.
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/swdee/go-speedcam/postprocess"
	"gocv.io/x/gocv"
)

const (
	// DefaultWidth is the processing frame width
	DefaultWidth = 1020
	// DefaultHeight is the processing frame height
	DefaultHeight = 500
)

// Mode selects how a frame is fitted to the processing size
type Mode int

const (
	// Stretch scales each axis independently to fill the processing frame
	Stretch Mode = 0
	// LetterBox keeps the aspect ratio and pads the remainder
	LetterBox Mode = 1
)

// ParseMode converts a mode name into a Mode
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "stretch":
		return Stretch, nil
	case "letterbox":
		return LetterBox, nil
	default:
		return Stretch, fmt.Errorf("unknown resize mode %q, use 'stretch' or 'letterbox'", name)
	}
}

// Resizer scales source frames to the processing size and maps detection
// boxes made on the source frame into processing coordinates
type Resizer struct {
	srcWidth   int
	srcHeight  int
	destWidth  int
	destHeight int
	mode       Mode
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
	// letterbox padding
	xPad int
	yPad int
	// per axis scale from source to processing coordinates
	scaleX float32
	scaleY float32
	// size the source is scaled to before padding
	resizeW int
	resizeH int
}

// NewResizer returns a resizer from the source dimensions to the
// processing dimensions
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int, mode Mode) *Resizer {
	r := &Resizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		mode:       mode,
		tempMat:    gocv.NewMat(),
	}

	r.preCalc()

	return r
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// preCalc the scaling factors for source and destination Mats
func (r *Resizer) preCalc() {

	r.resizeW = r.destWidth
	r.resizeH = r.destHeight

	r.scaleX = float32(r.destWidth) / float32(r.srcWidth)
	r.scaleY = float32(r.destHeight) / float32(r.srcHeight)

	if r.mode != LetterBox {
		return
	}

	if r.scaleX < r.scaleY {
		r.scaleY = r.scaleX
		r.resizeH = int(float32(r.srcHeight) * r.scaleX)
	} else {
		r.scaleX = r.scaleY
		r.resizeW = int(float32(r.srcWidth) * r.scaleY)
	}

	r.yPad = (r.destHeight - r.resizeH) / 2
	r.xPad = (r.destWidth - r.resizeW) / 2
}

// Identity reports whether frames are already at the processing size
func (r *Resizer) Identity() bool {
	return r.srcWidth == r.destWidth && r.srcHeight == r.destHeight
}

// Resize scales src into dest.  Color is used for letter box padding.
func (r *Resizer) Resize(src gocv.Mat, dest *gocv.Mat, color color.RGBA) {

	if r.Identity() {
		src.CopyTo(dest)
		return
	}

	if r.mode != LetterBox {
		gocv.Resize(src, dest, image.Pt(r.destWidth, r.destHeight),
			0, 0, gocv.InterpolationArea)
		return
	}

	gocv.Resize(src, &r.tempMat, image.Pt(r.resizeW, r.resizeH),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(r.tempMat, dest, r.yPad, r.destHeight-r.resizeH-r.yPad,
		r.xPad, r.destWidth-r.resizeW-r.xPad, gocv.BorderConstant, color)
}

// ScaleBox maps a box in source frame coordinates to processing coordinates
func (r *Resizer) ScaleBox(b postprocess.BoxRect) postprocess.BoxRect {
	return postprocess.BoxRect{
		Left:   int(float32(b.Left)*r.scaleX) + r.xPad,
		Right:  int(float32(b.Right)*r.scaleX) + r.xPad,
		Top:    int(float32(b.Top)*r.scaleY) + r.yPad,
		Bottom: int(float32(b.Bottom)*r.scaleY) + r.yPad,
	}
}

// ScaleFrame returns a copy of the detection frame with every box mapped to
// processing coordinates
func (r *Resizer) ScaleFrame(f postprocess.Frame) postprocess.Frame {

	if r.Identity() {
		return f
	}

	out := f
	out.Detections = make([]postprocess.DetectResult, len(f.Detections))

	for i, det := range f.Detections {
		det.Box = r.ScaleBox(det.Box)
		out.Detections[i] = det
	}

	return out
}

// ScaleFactors returns the x and y scale from source to processing size
func (r *Resizer) ScaleFactors() (float32, float32) {
	return r.scaleX, r.scaleY
}

// XPad returns the x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.yPad
}

// SrcWidth returns the width of the source image
func (r *Resizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source image
func (r *Resizer) SrcHeight() int {
	return r.srcHeight
}
