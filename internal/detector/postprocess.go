package detector

import (
	"fmt"
	"sort"

	"github.com/rzqiy/deteksi-kwh/internal/utils"
)

// decodeOutput converts a raw YOLO-style output tensor into detections in
// source-image coordinates. The tensor layout is [1, 4+numClasses, anchors]:
// rows 0-3 hold cx, cy, w, h in letterboxed pixels, the remaining rows hold
// per-class scores. Candidates below confThresh are dropped before NMS.
func decodeOutput(data []float32, shape []int64, labels []string,
	lb utils.LetterboxResult, srcW, srcH int, confThresh float64,
) ([]Detection, error) {
	if len(shape) != 3 {
		return nil, fmt.Errorf("expected 3D output tensor, got %dD", len(shape))
	}
	channels := int(shape[1])
	anchors := int(shape[2])
	numClasses := channels - 4
	if numClasses < 1 {
		return nil, fmt.Errorf("output has %d channels, need at least 5", channels)
	}
	if numClasses > len(labels) {
		return nil, fmt.Errorf("model predicts %d classes but labels file has %d", numClasses, len(labels))
	}
	if len(data) < channels*anchors {
		return nil, fmt.Errorf("output data length %d < expected %d", len(data), channels*anchors)
	}

	at := func(ch, a int) float32 { return data[ch*anchors+a] }

	var candidates []Detection
	for a := 0; a < anchors; a++ {
		bestClass := 0
		bestScore := at(4, a)
		for c := 1; c < numClasses; c++ {
			if s := at(4+c, a); s > bestScore {
				bestScore = s
				bestClass = c
			}
		}
		conf := float64(bestScore)
		if conf < confThresh {
			continue
		}

		cx, cy := float64(at(0, a)), float64(at(1, a))
		w, h := float64(at(2, a)), float64(at(3, a))
		boxed := utils.NewBox(cx-w/2, cy-h/2, cx+w/2, cy+h/2)
		src := lb.ToSource(boxed, srcW, srcH)
		if src.Width() <= 0 || src.Height() <= 0 {
			continue
		}

		candidates = append(candidates, Detection{
			Box:        src,
			ClassLabel: labels[bestClass],
			Confidence: conf,
		})
	}
	return candidates, nil
}

// applyNMS performs class-aware hard non-maximum suppression. Detections are
// considered in descending confidence order; a detection is suppressed when it
// overlaps a kept detection of the same class above iouThresh.
func applyNMS(dets []Detection, iouThresh float64) []Detection {
	if len(dets) <= 1 {
		return dets
	}
	ordered := make([]Detection, len(dets))
	copy(ordered, dets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})

	kept := make([]Detection, 0, len(ordered))
	for _, cand := range ordered {
		suppressed := false
		for _, k := range kept {
			if k.ClassLabel == cand.ClassLabel && k.Box.IoU(cand.Box) > iouThresh {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, cand)
		}
	}
	return kept
}
