package speedcam

import (
	"fmt"

	"github.com/swdee/go-speedcam/postprocess"
	"github.com/swdee/go-speedcam/tracker"
)

// DefaultVehicleClasses are the detection labels treated as vehicles
var DefaultVehicleClasses = []string{"car", "truck", "bus"}

// ClassFilter keeps only the detections of an allowed set of classes.  A nil
// ClassFilter allows every detection.
type ClassFilter struct {
	labels  []string
	allowed map[int]struct{}
	// minProb is the lowest detection confidence kept
	minProb float32
}

// NewClassFilter returns a filter allowing the named classes out of labels,
// where the class index of a detection is its position in labels.  Every
// allowed name must exist in labels.
func NewClassFilter(labels []string, allow []string, minProb float32) (*ClassFilter, error) {

	index := make(map[string]int, len(labels))

	for i, l := range labels {
		if _, dup := index[l]; !dup {
			index[l] = i
		}
	}

	f := &ClassFilter{
		labels:  labels,
		allowed: make(map[int]struct{}, len(allow)),
		minProb: minProb,
	}

	for _, name := range allow {
		i, ok := index[name]

		if !ok {
			return nil, fmt.Errorf("class %q is not in the label list", name)
		}

		f.allowed[i] = struct{}{}
	}

	return f, nil
}

// Allowed reports whether detections of the class index are kept
func (f *ClassFilter) Allowed(class int) bool {
	if f == nil {
		return true
	}
	_, ok := f.allowed[class]
	return ok
}

// Label returns the label name of a class index
func (f *ClassFilter) Label(class int) string {
	if f == nil || class < 0 || class >= len(f.labels) {
		return fmt.Sprintf("class %d", class)
	}
	return f.labels[class]
}

// Filter returns the allowed detections in their original order
func (f *ClassFilter) Filter(dets []postprocess.DetectResult) []postprocess.DetectResult {

	kept := make([]postprocess.DetectResult, 0, len(dets))

	for _, det := range dets {
		if !f.Allowed(det.Class) {
			continue
		}
		if f != nil && det.Probability < f.minProb {
			continue
		}
		kept = append(kept, det)
	}

	return kept
}

// Boxes filters the detections and converts them to tracker boxes
func (f *ClassFilter) Boxes(dets []postprocess.DetectResult) []tracker.Box {
	return tracker.DetectionsToBoxes(f.Filter(dets))
}
