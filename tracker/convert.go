package tracker

import "github.com/swdee/go-speedcam/postprocess"

// DetectionsToBoxes takes postprocess object detection results and converts
// them into tracker boxes, preserving order
func DetectionsToBoxes(dets []postprocess.DetectResult) []Box {

	boxes := make([]Box, 0, len(dets))

	for _, det := range dets {
		boxes = append(boxes, NewBox(det.Box.Left, det.Box.Top,
			det.Box.Right, det.Box.Bottom))
	}

	return boxes
}
