package utils

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meter.png")
	writeTestPNG(t, path, 64, 48)

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 64, meta.Width)
	assert.Equal(t, 48, meta.Height)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImageErrors(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		_, _, err := LoadImage("")
		require.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, _, err := LoadImage("photo.tiff")
		require.Error(t, err)
		var perr *ImageProcessingError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "load", perr.Operation)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadImage(filepath.Join(t.TempDir(), "missing.jpg"))
		require.Error(t, err)
	})

	t.Run("corrupt content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.jpg")
		require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))
		_, _, err := LoadImage(path)
		require.Error(t, err)
		var perr *ImageProcessingError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "decode", perr.Operation)
	})
}

func TestSaveJPEG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "result.jpg")
	err := SaveJPEG(image.NewRGBA(image.Rect(0, 0, 10, 10)), path)
	require.NoError(t, err)

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "jpeg", meta.Format)
}

func TestSaveJPEGNilImage(t *testing.T) {
	err := SaveJPEG(nil, filepath.Join(t.TempDir(), "x.jpg"))
	assert.Error(t, err)
}
