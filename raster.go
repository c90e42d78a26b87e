package trievo

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

// Rasterizer draws a triangle onto a raster buffer.
// Implementations must only touch dst, so that concurrent calls
// on distinct buffers are safe.
type Rasterizer interface {
	DrawTriangle(dst *image.RGBA, t Triangle, alpha bool)
}

// GGRasterizer renders triangles with the anti-aliased gg path filler.
type GGRasterizer struct{}

// DrawTriangle fills the triangle onto dst. When alpha is set the fill is
// blended using the triangle opacity, otherwise it is fully opaque.
// Off-canvas parts of the triangle are clipped.
func (GGRasterizer) DrawTriangle(dst *image.RGBA, t Triangle, alpha bool) {
	ctx := gg.NewContextForRGBA(dst)

	p0, p1, p2 := t.Vertices[0], t.Vertices[1], t.Vertices[2]
	ctx.MoveTo(float64(p0.X), float64(p0.Y))
	ctx.LineTo(float64(p1.X), float64(p1.Y))
	ctx.LineTo(float64(p2.X), float64(p2.Y))
	ctx.ClosePath()

	fill := color.NRGBA{R: t.Color.R, G: t.Color.G, B: t.Color.B, A: 0xff}
	if alpha {
		fill.A = uint8(math.Round(Clamp(t.Opacity, 0, 1) * 255))
	}
	ctx.SetFillStyle(gg.NewSolidPattern(fill))
	ctx.Fill()
}

// NewCanvas returns an opaque black canvas of size x size pixels.
func NewCanvas(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// CloneCanvas returns a deep copy of the canvas.
func CloneCanvas(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	dst := &image.RGBA{
		Pix:    make([]uint8, len(src.Pix)),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
	copy(dst.Pix, src.Pix)
	return dst
}

// RenderPreview draws every individual of a generation on top of a copy of
// the canvas. It is used for live previews of the search.
func RenderPreview(r Rasterizer, canvas *image.RGBA, generation Population, alpha bool) *image.RGBA {
	img := CloneCanvas(canvas)
	for _, t := range generation {
		r.DrawTriangle(img, t, alpha)
	}
	return img
}
