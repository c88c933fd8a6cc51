package detector

import "github.com/rzqiy/deteksi-kwh/internal/utils"

// Detection is one candidate object found by a model: its bounding box in
// source-image coordinates, the class name, and the model's confidence.
// Detections are ephemeral; selection among them is the caller's concern.
type Detection struct {
	Box        utils.Box `json:"box"`
	ClassLabel string    `json:"class_label"`
	Confidence float64   `json:"confidence"`
}
