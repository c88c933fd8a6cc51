package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rzqiy/deteksi-kwh/internal/store"
)

func writeConfigFile(t *testing.T, cfg Config) string {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "deteksi.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	loader := NewLoaderWith(viper.New())

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, store.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Pipeline.MaxDigits)
	assert.InDelta(t, 0.25, cfg.Pipeline.ConfThreshold, 1e-9)
}

func TestLoadWithFile(t *testing.T) {
	fixture := DefaultConfig()
	fixture.LogLevel = "debug"
	fixture.Server.Port = 8080
	fixture.Database.Driver = store.DriverMySQL
	fixture.Database.DSN = "user:pass@tcp(127.0.0.1:3306)/kwh_detection"
	fixture.Pipeline.MaxDigits = 6
	path := writeConfigFile(t, fixture)

	loader := NewLoaderWith(viper.New())
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, store.DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, 6, cfg.Pipeline.MaxDigits)
}

func TestLoadWithFileMissing(t *testing.T) {
	loader := NewLoaderWith(viper.New())
	_, err := loader.LoadWithFile("/no/such/deteksi.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	fixture := DefaultConfig()
	fixture.Server.Port = -1
	path := writeConfigFile(t, fixture)

	loader := NewLoaderWith(viper.New())
	_, err := loader.LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("DETEKSI_SERVER_PORT", "9000")
	t.Setenv("DETEKSI_LOG_LEVEL", "warn")

	loader := NewLoaderWith(viper.New())
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.LogLevel = "loud"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Database.Driver = "oracle"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Pipeline.ConfThreshold = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Server.MaxUploadMB = 0
	assert.Error(t, bad.Validate())
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/opt/models"
	cfg.Pipeline.ConfThreshold = 0.4
	cfg.GPU.Enabled = true
	cfg.GPU.DeviceID = 2

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, "/opt/models", pc.ModelsDir)
	assert.InDelta(t, 0.4, pc.Digits.ConfThreshold, 1e-9)
	assert.True(t, pc.MeterState.GPU.UseGPU)
	assert.Equal(t, 2, pc.Readout.GPU.DeviceID)

	sc := cfg.ToStoreConfig()
	assert.Equal(t, store.DriverSQLite, sc.Driver)

	srv := cfg.ToServerConfig()
	assert.Equal(t, 5000, srv.Port)
	assert.Equal(t, "uploads", srv.WorkDir)
}
