package trievo

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// Triangle is a single candidate primitive: three integer vertices and a fill color.
// Opacity is only taken into account when the run has alpha blending enabled.
//
// Triangles are plain values. The genetic operators always return new
// triangles and never modify their arguments.
type Triangle struct {
	Vertices [3]image.Point
	Color    color.RGBA
	Opacity  float64
}

// Population is the ordered set of candidates of one generation.
type Population []Triangle

// Points formats the vertices the way SVG polygon points are written: "x,y x,y x,y".
func (t Triangle) Points() string {
	var sb strings.Builder
	for i, v := range t.Vertices {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d,%d", v.X, v.Y)
	}
	return sb.String()
}

// Fill returns the opaque fill color of the triangle.
func (t Triangle) Fill() color.RGBA {
	return color.RGBA{R: t.Color.R, G: t.Color.G, B: t.Color.B, A: 0xff}
}

// String implements the fmt.Stringer interface.
func (t Triangle) String() string {
	return fmt.Sprintf("triangle[%s rgb(%d,%d,%d) a=%.3f]",
		t.Points(), t.Color.R, t.Color.G, t.Color.B, t.Opacity)
}

// Clone returns a copy of the population.
func (p Population) Clone() Population {
	if p == nil {
		return nil
	}
	c := make(Population, len(p))
	copy(c, p)
	return c
}
