package postprocess

import "time"

// DetectionResult is implemented by anything carrying the object detections
// of a single video frame
type DetectionResult interface {
	GetDetectResults() []DetectResult
}

// BoxRect are the dimensions of the bounding box of a detect object
type BoxRect struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// Valid reports whether the box has a positive width and height
func (b BoxRect) Valid() bool {
	return b.Right > b.Left && b.Bottom > b.Top
}

// DetectResult defines the attributes of a single object detected
type DetectResult struct {
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	Class int
	// Box are the bounding box dimensions of the object location
	Box BoxRect
	// Probability is the confidence score of the object detected
	Probability float32
	// ID is a unique ID assigned to the detection result, it is not a
	// tracking identity
	ID int64
}

// Frame is the set of detections produced for one decoded video frame
type Frame struct {
	// Index is the zero based position of the frame in the video stream
	Index int64
	// Timestamp is the offset of the frame from the start of the stream
	Timestamp time.Duration
	// Detections made on the frame in detector output order
	Detections []DetectResult
}

// GetDetectResults returns the frame detections
func (f Frame) GetDetectResults() []DetectResult {
	return f.Detections
}
