package trievo

import (
	"fmt"
	"image"
	"math"

	"github.com/sourcegraph/conc/iter"
)

// RejectedFitness is the score of a candidate excluded from the search.
// It is lower than any score a real candidate can reach.
const RejectedFitness = -math.MaxFloat64

// SSIM stabilization constants for 8-bit channels.
const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// InputMismatchError reports a raster whose dimensions differ from the configured canvas.
type InputMismatchError struct {
	Want image.Point
	Got  image.Point
}

func (e *InputMismatchError) Error() string {
	return fmt.Sprintf("image dimensions mismatch: want %dx%d, got %dx%d",
		e.Want.X, e.Want.Y, e.Got.X, e.Got.Y)
}

// IsDegenerate reports whether one of the interior angles of the triangle is
// at most threshold degrees. A threshold <= 0 disables the check.
// Triangles with coincident vertices or an undefined angle are always degenerate.
func IsDegenerate(t Triangle, threshold float64) bool {
	if threshold <= 0 {
		return false
	}
	a, b, c := t.Vertices[0], t.Vertices[1], t.Vertices[2]
	ab := sqDist(a, b)
	bc := sqDist(b, c)
	ca := sqDist(c, a)
	if ab == 0 || bc == 0 || ca == 0 {
		return true
	}

	for _, angle := range [3]float64{
		interiorAngle(ab, ca, bc), // at a
		interiorAngle(ab, bc, ca), // at b
		interiorAngle(bc, ca, ab), // at c
	} {
		if math.IsNaN(angle) || angle <= threshold {
			return true
		}
	}
	return false
}

// interiorAngle applies the law of cosines on squared side lengths and returns
// the angle in degrees enclosed by the two adjacent sides.
func interiorAngle(adj1, adj2, opp float64) float64 {
	cos := (adj1 + adj2 - opp) / (2 * math.Sqrt(adj1*adj2))
	return math.Acos(Clamp(cos, -1, 1)) * 180 / math.Pi
}

func sqDist(p, q image.Point) float64 {
	dx := float64(q.X - p.X)
	dy := float64(q.Y - p.Y)
	return dx*dx + dy*dy
}

// Evaluator scores candidate triangles against a reference image.
type Evaluator struct {
	Reference  *image.RGBA
	Algorithm  FitnessAlgorithm
	Threshold  float64
	Alpha      bool
	Rasterizer Rasterizer
	// Workers caps the number of concurrent scorers. Zero uses GOMAXPROCS.
	Workers int
}

// Score renders t onto a private copy of base and measures the result against
// the reference. Degenerate candidates get RejectedFitness when the degeneracy
// check is enabled, and so do candidates whose score is not a finite number.
//
// Score panics if base and the reference image have different dimensions.
func (e *Evaluator) Score(t Triangle, base *image.RGBA) float64 {
	mustMatch(base, e.Reference)
	return e.score(t, base)
}

func (e *Evaluator) score(t Triangle, base *image.RGBA) float64 {
	if e.Threshold > 0 && IsDegenerate(t, e.Threshold) {
		return RejectedFitness
	}
	work := CloneCanvas(base)
	e.rasterizer().DrawTriangle(work, t, e.Alpha)
	return sanitize(CanvasFitness(work, e.Reference, e.Algorithm))
}

// ScoreBatch scores every individual of the population in parallel.
// The i-th score always belongs to the i-th individual.
func (e *Evaluator) ScoreBatch(pop Population, base *image.RGBA) []float64 {
	mustMatch(base, e.Reference)
	mapper := iter.Mapper[Triangle, float64]{MaxGoroutines: e.Workers}
	return mapper.Map(pop, func(t *Triangle) float64 {
		return e.score(*t, base)
	})
}

func (e *Evaluator) rasterizer() Rasterizer {
	if e.Rasterizer == nil {
		return GGRasterizer{}
	}
	return e.Rasterizer
}

// CanvasFitness measures a whole canvas against the reference with the given
// algorithm. Higher values are better for both algorithms.
func CanvasFitness(canvas, ref *image.RGBA, alg FitnessAlgorithm) float64 {
	switch alg {
	case SSIM:
		return PixelSSIM(canvas, ref)
	default:
		return -MeanSquaredError(canvas, ref)
	}
}

// MeanSquaredError returns the mean of the squared differences of the
// R, G and B channels over all pixels.
func MeanSquaredError(a, b *image.RGBA) float64 {
	mustMatch(a, b)
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	var sum float64
	for y := 0; y < h; y++ {
		ai := a.PixOffset(a.Rect.Min.X, a.Rect.Min.Y+y)
		bi := b.PixOffset(b.Rect.Min.X, b.Rect.Min.Y+y)
		for x := 0; x < w; x++ {
			dr := float64(a.Pix[ai+0]) - float64(b.Pix[bi+0])
			dg := float64(a.Pix[ai+1]) - float64(b.Pix[bi+1])
			db := float64(a.Pix[ai+2]) - float64(b.Pix[bi+2])
			sum += dr*dr + dg*dg + db*db
			ai += 4
			bi += 4
		}
	}
	return sum / float64(w*h*3)
}

// PixelSSIM returns the mean of a per-pixel structural similarity index.
// Each pixel is compared with the matching reference pixel using the mean,
// variance and covariance of its three color channels; no window is involved.
func PixelSSIM(a, b *image.RGBA) float64 {
	mustMatch(a, b)
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w == 0 || h == 0 {
		return 1
	}

	var sum float64
	for y := 0; y < h; y++ {
		ai := a.PixOffset(a.Rect.Min.X, a.Rect.Min.Y+y)
		bi := b.PixOffset(b.Rect.Min.X, b.Rect.Min.Y+y)
		for x := 0; x < w; x++ {
			sum += pixelSSIM(a.Pix[ai:ai+3], b.Pix[bi:bi+3])
			ai += 4
			bi += 4
		}
	}
	return sum / float64(w*h)
}

func pixelSSIM(p, q []uint8) float64 {
	var mx, my float64
	for i := 0; i < 3; i++ {
		mx += float64(p[i])
		my += float64(q[i])
	}
	mx /= 3
	my /= 3

	var vx, vy, cov float64
	for i := 0; i < 3; i++ {
		dx := float64(p[i]) - mx
		dy := float64(q[i]) - my
		vx += dx * dx
		vy += dy * dy
		cov += dx * dy
	}
	vx /= 3
	vy /= 3
	cov /= 3

	return ((2*mx*my + ssimC1) * (2*cov + ssimC2)) /
		((mx*mx + my*my + ssimC1) * (vx + vy + ssimC2))
}

// sanitize maps non-finite scores to RejectedFitness so that they never win a comparison.
func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return RejectedFitness
	}
	return f
}

func mustMatch(a, b *image.RGBA) {
	if a.Rect.Size() != b.Rect.Size() {
		panic(&InputMismatchError{Want: b.Rect.Size(), Got: a.Rect.Size()})
	}
}
