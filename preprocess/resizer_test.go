package preprocess

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-speedcam/postprocess"
	"gocv.io/x/gocv"
)

var (
	black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

func TestLetterBoxResize(t *testing.T) {

	tests := []struct {
		srcWidth      int
		srcHeight     int
		resizeWidth   int
		resizeHeight  int
		expectedXPad  int
		expectedYPad  int
		expectedScale float32
	}{
		{1280, 720, 640, 640, 0, 140, 0.50},
		{800, 1000, 640, 640, 64, 0, 0.64},
		{800, 800, 640, 640, 0, 0, 0.8},
		{2040, 1000, 1020, 500, 0, 0, 0.5},
	}

	for _, tc := range tests {
		img := gocv.NewMatWithSize(tc.srcHeight, tc.srcWidth, gocv.MatTypeCV8UC1)
		resizedImg := gocv.NewMat()

		resizer := NewResizer(tc.srcWidth, tc.srcHeight, tc.resizeWidth,
			tc.resizeHeight, LetterBox)

		resizer.Resize(img, &resizedImg, black)

		assert.Equal(t, tc.expectedXPad, resizer.XPad(), "xpad for %dx%d", tc.srcWidth, tc.srcHeight)
		assert.Equal(t, tc.expectedYPad, resizer.YPad(), "ypad for %dx%d", tc.srcWidth, tc.srcHeight)

		sx, sy := resizer.ScaleFactors()
		assert.InDelta(t, tc.expectedScale, sx, 1e-6)
		assert.InDelta(t, tc.expectedScale, sy, 1e-6)

		assert.Equal(t, tc.resizeWidth, resizedImg.Cols())
		assert.Equal(t, tc.resizeHeight, resizedImg.Rows())

		img.Close()
		resizedImg.Close()
		resizer.Close()
	}
}

func TestStretchResize(t *testing.T) {

	img := gocv.NewMatWithSize(1080, 1920, gocv.MatTypeCV8UC3)
	defer img.Close()

	dest := gocv.NewMat()
	defer dest.Close()

	r := NewResizer(1920, 1080, DefaultWidth, DefaultHeight, Stretch)
	defer r.Close()

	r.Resize(img, &dest, black)

	assert.Equal(t, DefaultWidth, dest.Cols())
	assert.Equal(t, DefaultHeight, dest.Rows())
	assert.Equal(t, 0, r.XPad())
	assert.Equal(t, 0, r.YPad())
	assert.False(t, r.Identity())
}

func TestScaleFrame(t *testing.T) {

	r := NewResizer(2040, 1000, DefaultWidth, DefaultHeight, Stretch)
	defer r.Close()

	in := postprocess.Frame{
		Index: 4,
		Detections: []postprocess.DetectResult{
			{Class: 2, Box: postprocess.BoxRect{Left: 100, Top: 200, Right: 300, Bottom: 400}},
		},
	}

	out := r.ScaleFrame(in)

	require.Len(t, out.Detections, 1)
	assert.Equal(t, postprocess.BoxRect{Left: 50, Top: 100, Right: 150, Bottom: 200},
		out.Detections[0].Box)
	assert.Equal(t, int64(4), out.Index)
	// the input frame is untouched
	assert.Equal(t, 100, in.Detections[0].Box.Left)
}

func TestIdentityResize(t *testing.T) {

	r := NewResizer(DefaultWidth, DefaultHeight, DefaultWidth, DefaultHeight, Stretch)
	defer r.Close()

	assert.True(t, r.Identity())

	in := postprocess.Frame{Detections: []postprocess.DetectResult{
		{Box: postprocess.BoxRect{Left: 1, Top: 2, Right: 3, Bottom: 4}},
	}}
	assert.Equal(t, in, r.ScaleFrame(in))
}

func TestParseMode(t *testing.T) {

	m, err := ParseMode("LetterBox")
	assert.NoError(t, err)
	assert.Equal(t, LetterBox, m)

	m, err = ParseMode("")
	assert.NoError(t, err)
	assert.Equal(t, Stretch, m)

	_, err = ParseMode("crop")
	assert.Error(t, err)
}
