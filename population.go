package trievo

import (
	"cmp"
	"image"
	"image/color"
	"math/rand/v2"
	"slices"

	"github.com/sourcegraph/conc/iter"
)

const (
	// vertexJitter is the largest vertex displacement of a mutation, relative to the image size.
	vertexJitter = 0.1
	// colorJitter is the largest color channel change of a mutation.
	colorJitter = 10
	// opacityJitter is the largest opacity change of a mutation.
	opacityJitter = 0.1
	// geneSwap is the probability of inheriting a gene from the first parent,
	// and of mutating a gene once a mutation takes place.
	geneSwap = 0.5
)

// Breeder builds populations and produces successive generations.
//
// Every individual of a parallel phase is generated from its own sub-seed,
// drawn in order from the SeedStream before the phase starts, so the output
// does not depend on scheduling.
type Breeder struct {
	ImageSize    int
	MutationRate float64
	Alpha        bool
	// Workers caps the number of goroutines. Zero uses GOMAXPROCS.
	Workers int
}

// InitialPopulation returns size independent random triangles.
func (b Breeder) InitialPopulation(stream *SeedStream, size int) Population {
	seeds := stream.Seeds(size)
	mapper := iter.Mapper[uint64, Triangle]{MaxGoroutines: b.Workers}
	return mapper.Map(seeds, func(seed *uint64) Triangle {
		return RandomTriangle(NewRand(*seed), b.ImageSize, b.Alpha)
	})
}

// NextGeneration returns size offspring. Each offspring is produced from two
// parents drawn uniformly with replacement, crossed over and then mutated.
// It panics if parents is empty.
func (b Breeder) NextGeneration(stream *SeedStream, parents Population, size int) Population {
	if len(parents) == 0 {
		panic("trievo: cannot breed from an empty population")
	}
	seeds := stream.Seeds(size)
	mapper := iter.Mapper[uint64, Triangle]{MaxGoroutines: b.Workers}
	return mapper.Map(seeds, func(seed *uint64) Triangle {
		rng := NewRand(*seed)
		p1 := parents[rng.IntN(len(parents))]
		p2 := parents[rng.IntN(len(parents))]
		return Mutate(Crossover(p1, p2, rng), b.ImageSize, b.MutationRate, b.Alpha, rng)
	})
}

// RandomTriangle samples vertices uniformly over the canvas and a uniform color.
// The opacity is sampled only when alpha is set, otherwise it is fully opaque.
func RandomTriangle(rng *rand.Rand, imageSize int, alpha bool) Triangle {
	var t Triangle
	for i := range t.Vertices {
		t.Vertices[i] = image.Point{X: rng.IntN(imageSize), Y: rng.IntN(imageSize)}
	}
	t.Color = color.RGBA{
		R: uint8(rng.IntN(256)),
		G: uint8(rng.IntN(256)),
		B: uint8(rng.IntN(256)),
		A: 0xff,
	}
	t.Opacity = 1
	if alpha {
		t.Opacity = rng.Float64()
	}
	return t
}

// Select keeps the k fittest individuals, ordered by fitness descending.
// Individuals with equal fitness keep their relative order.
// It panics if pop and scores have different lengths.
func Select(pop Population, scores []float64, k int) Population {
	if len(pop) != len(scores) {
		panic("trievo: population and scores length mismatch")
	}
	k = Clamp(k, 0, len(pop))

	order := make([]int, len(pop))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(i, j int) int {
		return cmp.Compare(sanitize(scores[j]), sanitize(scores[i]))
	})

	selected := make(Population, k)
	for i := range selected {
		selected[i] = pop[order[i]]
	}
	return selected
}

// Crossover combines two parents gene by gene: every vertex, every color
// channel and the opacity are taken from one parent or the other with equal
// probability. Genes are never blended.
func Crossover(a, b Triangle, rng *rand.Rand) Triangle {
	var child Triangle
	for i := range child.Vertices {
		child.Vertices[i] = pick(rng, a.Vertices[i], b.Vertices[i])
	}
	child.Color = color.RGBA{
		R: pick(rng, a.Color.R, b.Color.R),
		G: pick(rng, a.Color.G, b.Color.G),
		B: pick(rng, a.Color.B, b.Color.B),
		A: 0xff,
	}
	child.Opacity = pick(rng, a.Opacity, b.Opacity)
	return child
}

func pick[T any](rng *rand.Rand, a, b T) T {
	if rng.Float64() < geneSwap {
		return a
	}
	return b
}

// Mutate returns a copy of t which, with probability rate, has some of its
// genes jittered: vertices move by up to 10% of the image size on each axis
// and stay inside the canvas, color channels change by up to 10 levels, and
// in alpha mode the opacity changes by up to 0.1.
func Mutate(t Triangle, imageSize int, rate float64, alpha bool, rng *rand.Rand) Triangle {
	if rng.Float64() >= rate {
		return t
	}

	span := int(float64(imageSize) * vertexJitter)
	for i, v := range t.Vertices {
		if rng.Float64() < geneSwap {
			t.Vertices[i] = image.Point{
				X: Clamp(v.X+jitter(rng, span), 0, imageSize-1),
				Y: Clamp(v.Y+jitter(rng, span), 0, imageSize-1),
			}
		}
	}

	channels := [3]*uint8{&t.Color.R, &t.Color.G, &t.Color.B}
	for _, c := range channels {
		if rng.Float64() < geneSwap {
			*c = uint8(Clamp(int(*c)+jitter(rng, colorJitter), 0, 255))
		}
	}

	if alpha && rng.Float64() < geneSwap {
		delta := (rng.Float64()*2 - 1) * opacityJitter
		t.Opacity = Clamp(t.Opacity+delta, 0, 1)
	}
	return t
}

// jitter returns an integer uniformly distributed in [-span, span].
func jitter(rng *rand.Rand, span int) int {
	return rng.IntN(2*span+1) - span
}
