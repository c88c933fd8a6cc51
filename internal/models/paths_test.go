package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	t.Run("explicit dir wins", func(t *testing.T) {
		assert.Equal(t, "/opt/models", GetModelsDir("/opt/models"))
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "/env/models")
		assert.Equal(t, "/env/models", GetModelsDir(""))
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "")
		assert.Equal(t, DefaultModelsDir, GetModelsDir(""))
	})
}

func TestModelPath(t *testing.T) {
	tests := []struct {
		stage Stage
		file  string
	}{
		{StageMeterState, MeterStateModel},
		{StageReadout, ReadoutModel},
		{StageDigits, DigitModel},
	}
	for _, tt := range tests {
		assert.Equal(t, filepath.Join("m", tt.file), ModelPath("m", tt.stage))
	}
}

func TestLabelsPath(t *testing.T) {
	assert.Equal(t, filepath.Join("m", "ocr.txt"), LabelsPath("m", StageDigits))
}

func TestListModels(t *testing.T) {
	list := ListModels()
	require.Len(t, list, 3)
	assert.Equal(t, StageMeterState, list[0].Stage)
	assert.Equal(t, StageReadout, list[1].Stage)
	assert.Equal(t, StageDigits, list[2].Stage)
}

func TestValidateModelFiles(t *testing.T) {
	dir := t.TempDir()

	err := ValidateModelFiles(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")

	for _, m := range ListModels() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, m.Filename), []byte("onnx"), 0o600))
	}
	err = ValidateModelFiles(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "labels not found")

	for _, m := range ListModels() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, m.LabelsFile), []byte("a\nb\n"), 0o600))
	}
	assert.NoError(t, ValidateModelFiles(dir))
}
