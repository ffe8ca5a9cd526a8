package tracker

// Object is a detection box annotated with the identity the tracker
// resolved for it
type Object struct {
	// Box is the bounding box of the detection
	Box Box
	// ID is the stable identity of the vehicle across frames
	ID int
	// Centroid is the center point of Box
	Centroid Point
}

// Frame is the result of a single tracker update
type Frame struct {
	// Seq is the tracker update number this frame was produced by, starting
	// at 1.  A zero Seq means the frame did not come from a tracker.
	Seq uint64
	// Objects holds one entry per input box, in input order
	Objects []Object
}

// IDs returns the identities in the frame in output order
func (f Frame) IDs() []int {
	ids := make([]int, len(f.Objects))

	for i, obj := range f.Objects {
		ids[i] = obj.ID
	}

	return ids
}
