package pipeline

import (
	"errors"
	"fmt"
	"image"

	"github.com/rzqiy/deteksi-kwh/internal/detector"
	"github.com/rzqiy/deteksi-kwh/internal/models"
)

// Stage is the detection contract one cascade step relies on. The concrete
// *detector.Detector satisfies it; tests substitute lightweight stubs.
type Stage interface {
	Detect(img image.Image) ([]detector.Detection, error)
}

// Config holds configuration for the meter-reading pipeline and its stages.
type Config struct {
	ModelsDir   string
	ArtifactDir string // where annotated images are written
	LinkPrefix  string // URL prefix for annotation links, default "/"
	MeterState  detector.Config
	Readout     detector.Config
	Digits      detector.Config
	MaxDigits   int // digits kept from the readout crop (default: 5)
}

// DefaultConfig returns a default pipeline config with stage defaults.
func DefaultConfig() Config {
	return Config{
		ModelsDir:   models.GetModelsDir(""),
		ArtifactDir: "static/results",
		LinkPrefix:  "/",
		MeterState:  detector.DefaultConfig(models.StageMeterState),
		Readout:     detector.DefaultConfig(models.StageReadout),
		Digits:      detector.DefaultConfig(models.StageDigits),
		MaxDigits:   5,
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithModelsDir sets the models directory and updates stage model paths.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	b.cfg.MeterState.UpdateModelPath(b.cfg.ModelsDir, models.StageMeterState)
	b.cfg.Readout.UpdateModelPath(b.cfg.ModelsDir, models.StageReadout)
	b.cfg.Digits.UpdateModelPath(b.cfg.ModelsDir, models.StageDigits)
	return b
}

// WithArtifactDir sets the directory annotated images are written to.
func (b *Builder) WithArtifactDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ArtifactDir = dir
	}
	return b
}

// WithLinkPrefix sets the URL prefix of returned annotation links.
func (b *Builder) WithLinkPrefix(prefix string) *Builder {
	if prefix != "" {
		b.cfg.LinkPrefix = prefix
	}
	return b
}

// WithConfidenceThreshold sets the candidate threshold for all stages.
func (b *Builder) WithConfidenceThreshold(th float64) *Builder {
	if th > 0 {
		b.cfg.MeterState.ConfThreshold = th
		b.cfg.Readout.ConfThreshold = th
		b.cfg.Digits.ConfThreshold = th
	}
	return b
}

// WithIoUThreshold sets the NMS IoU threshold for all stages.
func (b *Builder) WithIoUThreshold(iou float64) *Builder {
	if iou > 0 {
		b.cfg.MeterState.IoUThreshold = iou
		b.cfg.Readout.IoUThreshold = iou
		b.cfg.Digits.IoUThreshold = iou
	}
	return b
}

// WithThreads sets intra-op thread counts for all stages (if >0).
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.MeterState.NumThreads = n
		b.cfg.Readout.NumThreads = n
		b.cfg.Digits.NumThreads = n
	}
	return b
}

// WithMaxDigits caps how many digit detections contribute to the reading.
func (b *Builder) WithMaxDigits(n int) *Builder {
	if n > 0 {
		b.cfg.MaxDigits = n
	}
	return b
}

// WithGPU enables GPU acceleration for all stages.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.MeterState.GPU.UseGPU = enabled
	b.cfg.Readout.GPU.UseGPU = enabled
	b.cfg.Digits.GPU.UseGPU = enabled
	return b
}

// WithGPUDevice sets the CUDA device ID for all stages.
func (b *Builder) WithGPUDevice(deviceID int) *Builder {
	b.cfg.MeterState.GPU.DeviceID = deviceID
	b.cfg.Readout.GPU.DeviceID = deviceID
	b.cfg.Digits.GPU.DeviceID = deviceID
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that model files exist and configuration looks sane.
func (b *Builder) Validate() error {
	if b.cfg.ArtifactDir == "" {
		return errors.New("artifact directory is empty")
	}
	if b.cfg.MaxDigits <= 0 {
		return errors.New("max digits must be > 0")
	}
	return models.ValidateModelFiles(b.cfg.ModelsDir)
}

// Pipeline wires the three cascade stages together with annotation output.
type Pipeline struct {
	cfg        Config
	MeterState Stage
	Readout    Stage
	Digits     Stage

	closers []func() error
}

// Build initializes the reading pipeline and loads all three models.
func (b *Builder) Build() (*Pipeline, error) {
	b.cfg.MeterState.UpdateModelPath(b.cfg.ModelsDir, models.StageMeterState)
	b.cfg.Readout.UpdateModelPath(b.cfg.ModelsDir, models.StageReadout)
	b.cfg.Digits.UpdateModelPath(b.cfg.ModelsDir, models.StageDigits)

	if err := b.Validate(); err != nil {
		return nil, err
	}

	meterState, err := detector.NewDetector(b.cfg.MeterState)
	if err != nil {
		return nil, fmt.Errorf("init meter-state detector: %w", err)
	}
	readout, err := detector.NewDetector(b.cfg.Readout)
	if err != nil {
		_ = meterState.Close()
		return nil, fmt.Errorf("init readout detector: %w", err)
	}
	digits, err := detector.NewDetector(b.cfg.Digits)
	if err != nil {
		_ = meterState.Close()
		_ = readout.Close()
		return nil, fmt.Errorf("init digit detector: %w", err)
	}

	return &Pipeline{
		cfg:        b.cfg,
		MeterState: meterState,
		Readout:    readout,
		Digits:     digits,
		closers:    []func() error{meterState.Close, readout.Close, digits.Close},
	}, nil
}

// Close releases all stage sessions.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, c := range p.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }
