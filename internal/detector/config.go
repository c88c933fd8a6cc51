package detector

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rzqiy/deteksi-kwh/internal/models"
	"github.com/rzqiy/deteksi-kwh/internal/onnx"
)

// Config holds configuration for one cascade detection model.
type Config struct {
	ModelPath     string         // Path to the ONNX model
	LabelsPath    string         // Path to the class-label file (one name per line)
	InputSize     int            // Square model input side (default: 640)
	ConfThreshold float64        // Minimum candidate confidence (default: 0.25)
	IoUThreshold  float64        // IoU threshold for NMS (default: 0.45)
	NumThreads    int            // Number of CPU threads (default: 0 for auto)
	GPU           onnx.GPUConfig // GPU acceleration configuration
}

// DefaultConfig returns a default detector configuration for a cascade stage.
func DefaultConfig(stage models.Stage) Config {
	return Config{
		ModelPath:     models.ModelPath("", stage),
		LabelsPath:    models.LabelsPath("", stage),
		InputSize:     640,
		ConfThreshold: 0.25,
		IoUThreshold:  0.45,
		NumThreads:    0,
		GPU:           onnx.DefaultGPUConfig(),
	}
}

// UpdateModelPath repoints the model and label paths at modelsDir.
func (c *Config) UpdateModelPath(modelsDir string, stage models.Stage) {
	c.ModelPath = models.ModelPath(modelsDir, stage)
	c.LabelsPath = models.LabelsPath(modelsDir, stage)
}

func validateConfig(config Config) error {
	if config.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if config.LabelsPath == "" {
		return errors.New("labels path cannot be empty")
	}
	if config.InputSize <= 0 {
		return fmt.Errorf("input size must be > 0, got %d", config.InputSize)
	}
	if config.ConfThreshold < 0 || config.ConfThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %v", config.ConfThreshold)
	}
	return onnx.ValidateGPUConfig(config.GPU)
}

// LoadLabels reads class names from path, one per line, skipping blanks.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: label file path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			labels = append(labels, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s contains no classes", path)
	}
	return labels, nil
}
