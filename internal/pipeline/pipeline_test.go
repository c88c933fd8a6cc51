package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "static/results", cfg.ArtifactDir)
	assert.Equal(t, "/", cfg.LinkPrefix)
	assert.Equal(t, 5, cfg.MaxDigits)
	assert.Equal(t, "kwh.onnx", filepath.Base(cfg.MeterState.ModelPath))
	assert.Equal(t, "stand.onnx", filepath.Base(cfg.Readout.ModelPath))
	assert.Equal(t, "ocr.onnx", filepath.Base(cfg.Digits.ModelPath))
}

func TestBuilderSetters(t *testing.T) {
	cfg := NewBuilder().
		WithModelsDir("/opt/models").
		WithArtifactDir("/tmp/results").
		WithLinkPrefix("/deteksi/").
		WithConfidenceThreshold(0.5).
		WithIoUThreshold(0.6).
		WithThreads(4).
		WithMaxDigits(6).
		WithGPU(true).
		WithGPUDevice(1).
		Config()

	assert.Equal(t, "/opt/models", cfg.ModelsDir)
	assert.Equal(t, filepath.Join("/opt/models", "stand.onnx"), cfg.Readout.ModelPath)
	assert.Equal(t, "/tmp/results", cfg.ArtifactDir)
	assert.Equal(t, "/deteksi/", cfg.LinkPrefix)
	assert.InDelta(t, 0.5, cfg.Digits.ConfThreshold, 1e-9)
	assert.InDelta(t, 0.6, cfg.MeterState.IoUThreshold, 1e-9)
	assert.Equal(t, 4, cfg.Readout.NumThreads)
	assert.Equal(t, 6, cfg.MaxDigits)
	assert.True(t, cfg.Digits.GPU.UseGPU)
	assert.Equal(t, 1, cfg.MeterState.GPU.DeviceID)
}

func TestBuilderIgnoresEmptyAndZeroValues(t *testing.T) {
	cfg := NewBuilder().
		WithArtifactDir("").
		WithLinkPrefix("").
		WithConfidenceThreshold(0).
		WithThreads(0).
		WithMaxDigits(0).
		Config()

	defaults := DefaultConfig()
	assert.Equal(t, defaults.ArtifactDir, cfg.ArtifactDir)
	assert.Equal(t, defaults.LinkPrefix, cfg.LinkPrefix)
	assert.InDelta(t, defaults.Digits.ConfThreshold, cfg.Digits.ConfThreshold, 1e-9)
	assert.Equal(t, defaults.MaxDigits, cfg.MaxDigits)
}

func TestBuilderValidateMissingModels(t *testing.T) {
	b := NewBuilder().WithModelsDir(t.TempDir())
	assert.Error(t, b.Validate())
}
