package pipeline

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/rzqiy/deteksi-kwh/internal/detector"
	"github.com/rzqiy/deteksi-kwh/internal/utils"
)

// Meter-state class name that allows the cascade to continue, and the
// sentinel state used when no meter is detected at all.
const (
	StateLegible = "kwh_jelas"
	StateNoMeter = "bukan_kwh"
)

// MeterResult is the outcome of running the cascade on one photo.
type MeterResult struct {
	MeterState     string `json:"meter_state"`     // class of the best meter detection, or "bukan_kwh"
	Reading        string `json:"reading"`         // concatenated digits, empty unless fully read
	StatusText     string `json:"status_text"`     // human-readable progress of the cascade
	ArtifactPath   string `json:"artifact_path"`   // filesystem path of the annotated image
	AnnotationLink string `json:"annotation_link"` // web link to the annotated image
	ElapsedNs      int64  `json:"elapsed_ns"`      // wall time of the whole cascade
}

// bestDetection returns the detection with the highest confidence. Ties keep
// the earlier detection, so results are stable across runs on equal scores.
func bestDetection(dets []detector.Detection) (detector.Detection, bool) {
	var best detector.Detection
	found := false
	for _, d := range dets {
		if !found || d.Confidence > best.Confidence {
			best = d
			found = true
		}
	}
	return best, found
}

// Process runs the three-stage cascade on img. Every outcome, including a
// photo that is not a meter at all, produces an annotated artifact; only
// infrastructure failures (inference, artifact write) return an error.
// destDir is the artifact destination root; empty means the configured
// durable artifact directory, while interactive callers pass a transient
// uploads area.
func (p *Pipeline) Process(img image.Image, destDir string) (MeterResult, error) {
	if img == nil {
		return MeterResult{}, fmt.Errorf("input image is nil")
	}
	start := time.Now()

	canvas := utils.CloneRGBA(img)
	result := MeterResult{MeterState: StateNoMeter}

	meterDets, err := p.MeterState.Detect(img)
	if err != nil {
		return MeterResult{}, fmt.Errorf("meter-state detection: %w", err)
	}
	if best, ok := bestDetection(meterDets); ok {
		result.MeterState = best.ClassLabel
		drawMeterBox(canvas, best)
	}
	result.StatusText = fmt.Sprintf("Status: %s", result.MeterState)

	if result.MeterState != StateLegible {
		return p.finish(canvas, result, start, destDir)
	}

	readoutDets, err := p.Readout.Detect(img)
	if err != nil {
		return MeterResult{}, fmt.Errorf("readout detection: %w", err)
	}
	readout, ok := bestDetection(readoutDets)
	if !ok {
		result.StatusText = fmt.Sprintf("Status: %s -> Gagal mendeteksi stand.", result.MeterState)
		return p.finish(canvas, result, start, destDir)
	}
	drawReadoutBox(canvas, readout)

	crop := utils.CropImageBox(img, readout.Box)
	digitDets, err := p.Digits.Detect(crop)
	if err != nil {
		return MeterResult{}, fmt.Errorf("digit detection: %w", err)
	}

	reading := AssembleReading(digitDets, p.cfg.MaxDigits)
	if reading == "" {
		result.StatusText = fmt.Sprintf("Status: %s -> Stand terdeteksi, angka tidak terbaca.", result.MeterState)
		return p.finish(canvas, result, start, destDir)
	}

	result.Reading = reading
	result.StatusText = fmt.Sprintf("Status: %s -> Angka: %s", result.MeterState, reading)
	drawReading(canvas, readout, reading)
	return p.finish(canvas, result, start, destDir)
}

// finish writes the annotated canvas and fills in artifact path and link.
func (p *Pipeline) finish(canvas *image.RGBA, result MeterResult, start time.Time, destDir string) (MeterResult, error) {
	path, link, err := p.saveAnnotation(canvas, destDir)
	if err != nil {
		return MeterResult{}, err
	}
	result.ArtifactPath = path
	result.AnnotationLink = link
	result.ElapsedNs = time.Since(start).Nanoseconds()

	slog.Debug("Cascade completed",
		"meter_state", result.MeterState,
		"reading", result.Reading,
		"artifact", result.ArtifactPath,
		"duration_ms", result.ElapsedNs/1000000)
	return result, nil
}

// ProcessFile loads the image at path and runs the cascade on it. Artifacts
// go to the durable artifact directory.
func (p *Pipeline) ProcessFile(path string) (MeterResult, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return MeterResult{}, err
	}
	return p.Process(img, "")
}
