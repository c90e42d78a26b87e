package trievo

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// Polygon is a committed triangle as stored in the vector document.
// Opacity is nil for opaque polygons.
type Polygon struct {
	Points  [3]image.Point
	Fill    color.RGBA
	Opacity *float64
}

// Document is the vector counterpart of the canvas: a background rectangle
// followed by one polygon per committed triangle, in commit order.
type Document struct {
	Width      int
	Height     int
	Background color.RGBA
	polygons   []Polygon
}

// NewDocument returns a document with a black background rectangle.
func NewDocument(size int) *Document {
	return &Document{
		Width:      size,
		Height:     size,
		Background: color.RGBA{A: 0xff},
	}
}

// Append adds a triangle to the end of the document.
// The opacity is recorded only when alpha is set.
func (d *Document) Append(t Triangle, alpha bool) {
	p := Polygon{Points: t.Vertices, Fill: t.Fill()}
	if alpha {
		opacity := Clamp(t.Opacity, 0, 1)
		p.Opacity = &opacity
	}
	d.polygons = append(d.polygons, p)
}

// Polygons returns a copy of the committed polygons.
func (d *Document) Polygons() []Polygon {
	polys := make([]Polygon, len(d.polygons))
	copy(polys, d.polygons)
	return polys
}

// Len returns the number of records of the document, background included.
func (d *Document) Len() int {
	return len(d.polygons) + 1
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := *d
	c.polygons = make([]Polygon, len(d.polygons))
	for i, p := range d.polygons {
		if p.Opacity != nil {
			o := *p.Opacity
			p.Opacity = &o
		}
		c.polygons[i] = p
	}
	return &c
}

// WriteSVG serializes the document as an SVG image.
func (d *Document) WriteSVG(w io.Writer) error {
	bw := bufio.NewWriter(w)
	canvas := svg.New(bw)

	canvas.Start(d.Width, d.Height,
		fmt.Sprintf(`viewBox="0 0 %d %d"`, d.Width, d.Height),
		`overflow="hidden"`,
	)
	canvas.Rect(0, 0, d.Width, d.Height, fill(d.Background))

	xs, ys := make([]int, 3), make([]int, 3)
	for _, p := range d.polygons {
		for i, v := range p.Points {
			xs[i], ys[i] = v.X, v.Y
		}
		if p.Opacity != nil {
			canvas.Polygon(xs, ys, fill(p.Fill), fmt.Sprintf(`fill-opacity="%.4g"`, *p.Opacity))
		} else {
			canvas.Polygon(xs, ys, fill(p.Fill))
		}
	}
	canvas.End()

	// svgo ignores write errors; bufio keeps the first one for Flush.
	return bw.Flush()
}

// SaveSVG writes the document to the given path, replacing any existing file.
// The file is written to a temporary sibling first, so readers never see a
// partially written document.
func (d *Document) SaveSVG(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("unable to create svg file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := d.WriteSVG(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to write svg file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to write svg file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("unable to save svg file: %w", err)
	}
	return nil
}

// OutputPath derives the vector output path from the reference image path
// by replacing its extension with ".svg". It falls back to "output.svg".
func OutputPath(reference string) string {
	if reference == "" || strings.Contains(reference, "://") {
		return "output.svg"
	}
	ext := filepath.Ext(reference)
	return strings.TrimSuffix(reference, ext) + ".svg"
}

func fill(c color.RGBA) string {
	return fmt.Sprintf(`fill="rgb(%d,%d,%d)"`, c.R, c.G, c.B)
}
