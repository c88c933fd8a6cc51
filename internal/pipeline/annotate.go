package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rzqiy/deteksi-kwh/internal/detector"
	"github.com/rzqiy/deteksi-kwh/internal/utils"
)

// Annotation colors follow the cascade stages: blue for the meter box,
// green for the readout region, red for the recognized reading.
var (
	meterColor   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	readoutColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	readingColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

func drawMeterBox(canvas *image.RGBA, det detector.Detection) {
	rect := det.Box.ToRect(canvas.Bounds())
	utils.DrawRect(canvas, rect, meterColor, 2)
	label := fmt.Sprintf("%s (%.2f)", det.ClassLabel, det.Confidence)
	utils.DrawLabel(canvas, label, rect.Min.X, rect.Min.Y-10, meterColor)
}

func drawReadoutBox(canvas *image.RGBA, det detector.Detection) {
	rect := det.Box.ToRect(canvas.Bounds())
	utils.DrawRect(canvas, rect, readoutColor, 2)
}

func drawReading(canvas *image.RGBA, readout detector.Detection, reading string) {
	rect := readout.Box.ToRect(canvas.Bounds())
	utils.DrawLabel(canvas, reading, rect.Min.X, rect.Min.Y-15, readingColor)
}

// saveAnnotation writes the canvas under destDir (the configured artifact
// directory when empty) with a collision-free name and returns the file path
// and its web link.
func (p *Pipeline) saveAnnotation(canvas *image.RGBA, destDir string) (string, string, error) {
	if destDir == "" {
		destDir = p.cfg.ArtifactDir
	}
	filename := uuid.New().String() + ".jpg"
	path := filepath.Join(destDir, filename)
	if err := utils.SaveJPEG(canvas, path); err != nil {
		return "", "", fmt.Errorf("save annotated image: %w", err)
	}
	link := p.cfg.LinkPrefix + filepath.ToSlash(path)
	return path, link, nil
}
