package pipeline

import (
	"sort"
	"strings"

	"github.com/rzqiy/deteksi-kwh/internal/detector"
)

// AssembleReading turns digit detections into the meter reading string.
// The maxDigits most confident detections are kept, then re-ordered
// left to right by box position and concatenated. Both sorts are stable,
// so equal-confidence and equal-position inputs keep their model order.
func AssembleReading(dets []detector.Detection, maxDigits int) string {
	if len(dets) == 0 || maxDigits <= 0 {
		return ""
	}

	byConf := make([]detector.Detection, len(dets))
	copy(byConf, dets)
	sort.SliceStable(byConf, func(i, j int) bool {
		return byConf[i].Confidence > byConf[j].Confidence
	})
	if len(byConf) > maxDigits {
		byConf = byConf[:maxDigits]
	}

	sort.SliceStable(byConf, func(i, j int) bool {
		return byConf[i].Box.MinX < byConf[j].Box.MinX
	})

	var sb strings.Builder
	for _, d := range byConf {
		sb.WriteString(d.ClassLabel)
	}
	return sb.String()
}
