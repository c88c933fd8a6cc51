package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Intersect returns the intersection of two boxes; an empty overlap has
// non-positive width or height.
func (b Box) Intersect(o Box) Box {
	return Box{
		MinX: math.Max(b.MinX, o.MinX),
		MinY: math.Max(b.MinY, o.MinY),
		MaxX: math.Min(b.MaxX, o.MaxX),
		MaxY: math.Min(b.MaxY, o.MaxY),
	}
}

// IoU computes intersection-over-union of two boxes.
func (b Box) IoU(o Box) float64 {
	in := b.Intersect(o)
	if in.Width() <= 0 || in.Height() <= 0 {
		return 0
	}
	inter := in.Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ToRect converts a Box to an image.Rectangle, clamped to image bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CropImageRect crops an image to the given rectangle.
func CropImageRect(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, rect)
}

// CropImageBox crops an image using a float Box.
func CropImageBox(img image.Image, box Box) image.Image {
	return CropImageRect(img, box.ToRect(img.Bounds()))
}

// CloneRGBA copies an image into a freshly allocated RGBA at origin.
func CloneRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// LetterboxResult describes how an image was scaled and padded into a square
// model input, so detections can be mapped back to source coordinates.
type LetterboxResult struct {
	Image  image.Image
	Scale  float64 // source * Scale = resized
	PadX   int     // left padding in target pixels
	PadY   int     // top padding in target pixels
	Target int
}

// Letterbox scales img to fit a target square while preserving aspect ratio
// and pads the remainder with a neutral gray.
func Letterbox(img image.Image, target int) LetterboxResult {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := math.Min(float64(target)/float64(w), float64(target)/float64(h))
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := imaging.Resize(img, newW, newH, imaging.Linear)
	canvas := imaging.New(target, target, color.NRGBA{114, 114, 114, 255})
	padX := (target - newW) / 2
	padY := (target - newH) / 2
	out := imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return LetterboxResult{Image: out, Scale: scale, PadX: padX, PadY: padY, Target: target}
}

// ToSource maps a box in letterboxed coordinates back to source coordinates,
// clamped to the source dimensions.
func (l LetterboxResult) ToSource(b Box, srcW, srcH int) Box {
	inv := 1.0 / l.Scale
	out := NewBox(
		(b.MinX-float64(l.PadX))*inv,
		(b.MinY-float64(l.PadY))*inv,
		(b.MaxX-float64(l.PadX))*inv,
		(b.MaxY-float64(l.PadY))*inv,
	)
	out.MinX = math.Max(0, math.Min(out.MinX, float64(srcW)))
	out.MaxX = math.Max(0, math.Min(out.MaxX, float64(srcW)))
	out.MinY = math.Max(0, math.Min(out.MinY, float64(srcH)))
	out.MaxY = math.Max(0, math.Min(out.MaxY, float64(srcH)))
	return out
}

// NormalizeImage converts an image to a CHW float32 slice scaled to [0,1].
func NormalizeImage(img image.Image) ([]float32, int, int) {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 3*w*h)
	plane := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := nrgba.PixOffset(x, y)
			idx := y*w + x
			data[idx] = float32(nrgba.Pix[i]) / 255.0
			data[plane+idx] = float32(nrgba.Pix[i+1]) / 255.0
			data[2*plane+idx] = float32(nrgba.Pix[i+2]) / 255.0
		}
	}
	return data, w, h
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := 0; t < thickness; t++ {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	for t := 0; t < thickness; t++ {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// DrawLabel renders text into dst with its baseline at (x, y).
// Text falling above the image top is nudged back inside.
func DrawLabel(dst *image.RGBA, text string, x, y int, col color.Color) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	if y < ascent {
		y = ascent
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{col},
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
