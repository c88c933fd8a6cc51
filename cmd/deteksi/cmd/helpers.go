package cmd

import (
	"fmt"

	"github.com/rzqiy/deteksi-kwh/internal/config"
	"github.com/rzqiy/deteksi-kwh/internal/pipeline"
	"github.com/rzqiy/deteksi-kwh/internal/store"
)

// buildPipeline constructs the three-stage reading cascade from the loaded
// configuration.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilder().
		WithModelsDir(cfg.ModelsDir).
		WithArtifactDir(cfg.Pipeline.ArtifactDir).
		WithLinkPrefix(cfg.Pipeline.LinkPrefix).
		WithConfidenceThreshold(cfg.Pipeline.ConfThreshold).
		WithIoUThreshold(cfg.Pipeline.IoUThreshold).
		WithThreads(cfg.Pipeline.NumThreads).
		WithMaxDigits(cfg.Pipeline.MaxDigits)
	if cfg.GPU.Enabled {
		b = b.WithGPU(true).WithGPUDevice(cfg.GPU.DeviceID)
	}
	return b.Build()
}

// openRepository opens the configured database and wraps it in a repository.
func openRepository(cfg *config.Config) (*store.MeterRepository, error) {
	db, err := store.Open(cfg.ToStoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store.NewMeterRepository(db), nil
}
