package postprocess

import (
	"math"
	"sort"
)

// NMS implements Non-Maximum Suppression over detections.  Of any pair of
// boxes overlapping with an IoU above threshold the lower confidence one is
// dropped.  With classAware set only boxes of the same class suppress each
// other.  Kept detections are returned in their input order.
func NMS(dets []DetectResult, threshold float32, classAware bool) []DetectResult {

	if len(dets) < 2 {
		return dets
	}

	// order holds indices into dets by descending confidence, -1 once
	// suppressed
	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Probability > dets[order[b]].Probability
	})

	for i := 0; i < len(order); i++ {

		if order[i] == -1 {
			continue
		}

		n := order[i]

		for j := i + 1; j < len(order); j++ {
			m := order[j]

			if m == -1 || (classAware && dets[n].Class != dets[m].Class) {
				continue
			}

			if IoU(dets[n].Box, dets[m].Box) > threshold {
				order[j] = -1
			}
		}
	}

	keep := make([]bool, len(dets))
	for _, idx := range order {
		if idx != -1 {
			keep[idx] = true
		}
	}

	kept := make([]DetectResult, 0, len(dets))
	for i, det := range dets {
		if keep[i] {
			kept = append(kept, det)
		}
	}

	return kept
}

// IoU works out the Intersection over Union value of two boxes, pixel
// coordinates are inclusive
func IoU(a, b BoxRect) float32 {

	w := math.Max(0.0, math.Min(float64(a.Right), float64(b.Right))-math.Max(float64(a.Left), float64(b.Left))+1.0)
	h := math.Max(0.0, math.Min(float64(a.Bottom), float64(b.Bottom))-math.Max(float64(a.Top), float64(b.Top))+1.0)
	intersection := w * h

	area0 := float64(a.Right-a.Left+1) * float64(a.Bottom-a.Top+1)
	area1 := float64(b.Right-b.Left+1) * float64(b.Bottom-b.Top+1)

	union := area0 + area1 - intersection

	if union <= 0 {
		return 0.0
	}

	return float32(intersection / union)
}
