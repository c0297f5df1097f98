package objectdetection

import (
	"image"
	"sort"

	"github.com/samber/lo"
)

// Postprocessor defines a function that filters/modifies on an incoming array of Detections.
type Postprocessor func([]Detection) []Detection

// Chain runs the postprocessors in order. Nil entries are skipped.
func Chain(posts ...Postprocessor) Postprocessor {
	return func(in []Detection) []Detection {
		for _, p := range posts {
			if p != nil {
				in = p(in)
			}
		}
		return in
	}
}

// NewAreaFilter returns a function that filters out detections below a certain area.
func NewAreaFilter(area int) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.BoundingBox().Dx()*d.BoundingBox().Dy() >= area {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewScoreFilter returns a function that filters out detections below a certain confidence.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.Score() >= conf {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewLabelFilter returns a function that keeps only detections whose label is in labels.
// An empty label list keeps everything.
func NewLabelFilter(labels []string) Postprocessor {
	return func(in []Detection) []Detection {
		if len(labels) == 0 {
			return in
		}
		return lo.Filter(in, func(d Detection, _ int) bool {
			return lo.Contains(labels, d.Label())
		})
	}
}

// SortByScore orders detections from most to least confident. Ties keep their input order.
func SortByScore(in []Detection) []Detection {
	out := append([]Detection(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score() > out[j].Score()
	})
	return out
}

// IoU returns the intersection over union of two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// NewNMSFilter returns a function that performs per label non maximum suppression: among
// detections with the same label, any box overlapping a more confident one by more than
// iouThreshold is dropped.
func NewNMSFilter(iouThreshold float64) Postprocessor {
	return func(in []Detection) []Detection {
		sorted := SortByScore(in)
		suppressed := make([]bool, len(sorted))
		out := make([]Detection, 0, len(sorted))
		for i, d := range sorted {
			if suppressed[i] {
				continue
			}
			out = append(out, d)
			for j := i + 1; j < len(sorted); j++ {
				if suppressed[j] || sorted[j].Label() != d.Label() {
					continue
				}
				if IoU(*d.BoundingBox(), *sorted[j].BoundingBox()) > iouThreshold {
					suppressed[j] = true
				}
			}
		}
		return out
	}
}
