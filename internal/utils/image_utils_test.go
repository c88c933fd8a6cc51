package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoxOrdersCoordinates(t *testing.T) {
	b := NewBox(10, 20, 5, 2)
	assert.Equal(t, 5.0, b.MinX)
	assert.Equal(t, 2.0, b.MinY)
	assert.Equal(t, 10.0, b.MaxX)
	assert.Equal(t, 20.0, b.MaxY)
}

func TestBoxIoU(t *testing.T) {
	a := NewBox(0, 0, 10, 10)

	t.Run("identical boxes", func(t *testing.T) {
		assert.InDelta(t, 1.0, a.IoU(a), 1e-9)
	})

	t.Run("disjoint boxes", func(t *testing.T) {
		b := NewBox(20, 20, 30, 30)
		assert.Equal(t, 0.0, a.IoU(b))
	})

	t.Run("half overlap", func(t *testing.T) {
		b := NewBox(5, 0, 15, 10)
		// intersection 50, union 150
		assert.InDelta(t, 1.0/3.0, a.IoU(b), 1e-9)
	})
}

func TestBoxToRectClamps(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	r := NewBox(-5, -5, 50, 120).ToRect(bounds)
	assert.Equal(t, image.Rect(0, 0, 50, 100), r)
}

func TestCropImageBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	crop := CropImageBox(img, NewBox(10, 10, 30, 40))
	b := crop.Bounds()
	assert.Equal(t, 20, b.Dx())
	assert.Equal(t, 30, b.Dy())
}

func TestLetterboxDimensions(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	lb := Letterbox(img, 640)
	b := lb.Image.Bounds()
	require.Equal(t, 640, b.Dx())
	require.Equal(t, 640, b.Dy())
	assert.InDelta(t, 3.2, lb.Scale, 1e-9)
	assert.Equal(t, 0, lb.PadX)
	assert.Equal(t, 160, lb.PadY)
}

func TestLetterboxToSourceRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	lb := Letterbox(img, 640)

	// A box covering the upper-left quadrant of the source.
	boxed := NewBox(
		float64(lb.PadX),
		float64(lb.PadY),
		float64(lb.PadX)+100*lb.Scale,
		float64(lb.PadY)+50*lb.Scale,
	)
	src := lb.ToSource(boxed, 200, 100)
	assert.InDelta(t, 0, src.MinX, 0.5)
	assert.InDelta(t, 0, src.MinY, 0.5)
	assert.InDelta(t, 100, src.MaxX, 0.5)
	assert.InDelta(t, 50, src.MaxY, 0.5)
}

func TestNormalizeImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.NRGBA{255, 128, 0, 255})
		}
	}
	data, w, h := NormalizeImage(img)
	require.Equal(t, 2, w)
	require.Equal(t, 2, h)
	require.Len(t, data, 12)
	assert.InDelta(t, 1.0, data[0], 1e-6)          // R plane
	assert.InDelta(t, 128.0/255.0, data[4], 1e-6)  // G plane
	assert.InDelta(t, 0.0, data[8], 1e-6)          // B plane
}

func TestDrawRect(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	red := color.RGBA{255, 0, 0, 255}
	DrawRect(dst, image.Rect(2, 2, 10, 10), red, 1)

	assert.Equal(t, red, dst.RGBAAt(2, 2))
	assert.Equal(t, red, dst.RGBAAt(9, 9))
	assert.NotEqual(t, red, dst.RGBAAt(5, 5))
}

func TestDrawLabelStaysInBounds(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 100, 30))
	// Baseline above the top edge must not panic; text is nudged inside.
	DrawLabel(dst, "1234", 2, -5, color.RGBA{255, 0, 0, 255})
}

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("a.jpg"))
	assert.True(t, IsSupportedImage("a.JPEG"))
	assert.True(t, IsSupportedImage("a.png"))
	assert.True(t, IsSupportedImage("a.bmp"))
	assert.False(t, IsSupportedImage("a.gif"))
	assert.False(t, IsSupportedImage("a"))
}
