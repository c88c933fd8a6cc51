package config

import (
	"fmt"

	"github.com/rzqiy/deteksi-kwh/internal/models"
	"github.com/rzqiy/deteksi-kwh/internal/pipeline"
	"github.com/rzqiy/deteksi-kwh/internal/server"
	"github.com/rzqiy/deteksi-kwh/internal/store"
)

// Config represents the complete configuration for the deteksi-kwh
// application. It supports loading from configuration files, environment
// variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Cascade configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database" yaml:"database" json:"database"`

	// Billing portal configuration
	Portal PortalConfig `mapstructure:"portal" yaml:"portal" json:"portal"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// PipelineConfig contains reading cascade settings.
type PipelineConfig struct {
	ArtifactDir   string  `mapstructure:"artifact_dir" yaml:"artifact_dir" json:"artifact_dir"`
	LinkPrefix    string  `mapstructure:"link_prefix" yaml:"link_prefix" json:"link_prefix"`
	ConfThreshold float64 `mapstructure:"conf_threshold" yaml:"conf_threshold" json:"conf_threshold"`
	IoUThreshold  float64 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	NumThreads    int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	MaxDigits     int     `mapstructure:"max_digits" yaml:"max_digits" json:"max_digits"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string `mapstructure:"host" yaml:"host" json:"host"`
	Port        int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin  string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	WorkDir     string `mapstructure:"work_dir" yaml:"work_dir" json:"work_dir"`
}

// DatabaseConfig contains persistence settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// PortalConfig contains billing portal settings.
type PortalConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled  bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	DeviceID int  `mapstructure:"device_id" yaml:"device_id" json:"device_id"`
}

// DefaultConfig returns the application defaults.
func DefaultConfig() Config {
	pipeDefaults := pipeline.DefaultConfig()
	storeDefaults := store.DefaultConfig()
	return Config{
		ModelsDir: models.GetModelsDir(""),
		LogLevel:  "info",
		Verbose:   false,
		Pipeline: PipelineConfig{
			ArtifactDir:   pipeDefaults.ArtifactDir,
			LinkPrefix:    pipeDefaults.LinkPrefix,
			ConfThreshold: pipeDefaults.MeterState.ConfThreshold,
			IoUThreshold:  pipeDefaults.MeterState.IoUThreshold,
			NumThreads:    0,
			MaxDigits:     pipeDefaults.MaxDigits,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5000,
			CORSOrigin:  "*",
			MaxUploadMB: 50,
			WorkDir:     "uploads",
		},
		Database: DatabaseConfig{
			Driver: storeDefaults.Driver,
			DSN:    storeDefaults.DSN,
		},
		Portal: PortalConfig{},
		GPU:    GPUConfig{},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be > 0, got %d", c.Server.MaxUploadMB)
	}
	if c.Pipeline.ConfThreshold < 0 || c.Pipeline.ConfThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %v", c.Pipeline.ConfThreshold)
	}
	if c.Pipeline.MaxDigits <= 0 {
		return fmt.Errorf("max digits must be > 0, got %d", c.Pipeline.MaxDigits)
	}
	switch c.Database.Driver {
	case store.DriverMySQL, store.DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	return nil
}

// ToPipelineConfig converts the loaded settings into a cascade config.
func (c *Config) ToPipelineConfig() pipeline.Config {
	b := pipeline.NewBuilder().
		WithModelsDir(c.ModelsDir).
		WithArtifactDir(c.Pipeline.ArtifactDir).
		WithLinkPrefix(c.Pipeline.LinkPrefix).
		WithConfidenceThreshold(c.Pipeline.ConfThreshold).
		WithIoUThreshold(c.Pipeline.IoUThreshold).
		WithThreads(c.Pipeline.NumThreads).
		WithMaxDigits(c.Pipeline.MaxDigits)
	if c.GPU.Enabled {
		b = b.WithGPU(true).WithGPUDevice(c.GPU.DeviceID)
	}
	return b.Config()
}

// ToStoreConfig converts the loaded settings into a store config.
func (c *Config) ToStoreConfig() store.Config {
	return store.Config{Driver: c.Database.Driver, DSN: c.Database.DSN}
}

// ToServerConfig converts the loaded settings into a server config.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:           c.Server.Host,
		Port:           c.Server.Port,
		CORSOrigin:     c.Server.CORSOrigin,
		MaxUploadMB:    c.Server.MaxUploadMB,
		PipelineConfig: c.ToPipelineConfig(),
		StoreConfig:    c.ToStoreConfig(),
		PortalBaseURL:  c.Portal.BaseURL,
		WorkDir:        c.Server.WorkDir,
	}
}
