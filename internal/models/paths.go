package models

import (
	"fmt"
	"os"
	"path/filepath"
)

// Model file constants to avoid typos and ensure consistency.
const (
	// Stage models of the reading cascade.
	MeterStateModel = "kwh.onnx"
	ReadoutModel    = "stand.onnx"
	DigitModel      = "ocr.onnx"

	// Label files, one class name per line, paired with each model.
	MeterStateLabels = "kwh.txt"
	ReadoutLabels    = "stand.txt"
	DigitLabels      = "ocr.txt"
)

// Stage identifies one of the three cascade models.
type Stage string

const (
	StageMeterState Stage = "meter-state"
	StageReadout    Stage = "readout"
	StageDigits     Stage = "digits"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "DETEKSI_MODELS_DIR"

// GetModelsDir resolves the models directory: explicit argument first,
// then the environment override, then the default relative directory.
func GetModelsDir(dir string) string {
	if dir != "" {
		return dir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	return DefaultModelsDir
}

// ModelPath returns the ONNX model path for a stage under modelsDir.
func ModelPath(modelsDir string, stage Stage) string {
	return filepath.Join(GetModelsDir(modelsDir), modelFile(stage))
}

// LabelsPath returns the class-label file path for a stage under modelsDir.
func LabelsPath(modelsDir string, stage Stage) string {
	return filepath.Join(GetModelsDir(modelsDir), labelsFile(stage))
}

func modelFile(stage Stage) string {
	switch stage {
	case StageMeterState:
		return MeterStateModel
	case StageReadout:
		return ReadoutModel
	case StageDigits:
		return DigitModel
	}
	return string(stage) + ".onnx"
}

func labelsFile(stage Stage) string {
	switch stage {
	case StageMeterState:
		return MeterStateLabels
	case StageReadout:
		return ReadoutLabels
	case StageDigits:
		return DigitLabels
	}
	return string(stage) + ".txt"
}

// ModelInfo describes one cascade model for listings.
type ModelInfo struct {
	Stage       Stage
	Filename    string
	LabelsFile  string
	Description string
}

// ListModels returns the cascade's model inventory in stage order.
func ListModels() []ModelInfo {
	return []ModelInfo{
		{StageMeterState, MeterStateModel, MeterStateLabels, "meter-state classifier (legible / blurred / not a meter)"},
		{StageReadout, ReadoutModel, ReadoutLabels, "readout region localizer"},
		{StageDigits, DigitModel, DigitLabels, "digit recognizer for the readout crop"},
	}
}

// ValidateModelFiles checks that every cascade model and label file exists
// under modelsDir. Missing models are fatal at startup, not at first use.
func ValidateModelFiles(modelsDir string) error {
	for _, m := range ListModels() {
		mp := filepath.Join(GetModelsDir(modelsDir), m.Filename)
		if _, err := os.Stat(mp); err != nil {
			return fmt.Errorf("model not found: %s", mp)
		}
		lp := filepath.Join(GetModelsDir(modelsDir), m.LabelsFile)
		if _, err := os.Stat(lp); err != nil {
			return fmt.Errorf("labels not found: %s", lp)
		}
	}
	return nil
}
