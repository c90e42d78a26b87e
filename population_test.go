package trievo

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inBounds(t *testing.T, tr Triangle, size int) {
	t.Helper()
	for _, v := range tr.Vertices {
		assert.True(t, v.X >= 0 && v.X < size && v.Y >= 0 && v.Y < size, "vertex %v out of bounds", v)
	}
	assert.True(t, tr.Opacity >= 0 && tr.Opacity <= 1, "opacity %v out of range", tr.Opacity)
}

func TestRandomTriangle(t *testing.T) {
	rng := NewRand(1)
	for i := 0; i < 500; i++ {
		tr := RandomTriangle(rng, 32, false)
		inBounds(t, tr, 32)
		assert.Equal(t, 1.0, tr.Opacity)
		assert.Equal(t, uint8(0xff), tr.Color.A)
	}

	a := RandomTriangle(NewRand(9), 32, true)
	b := RandomTriangle(NewRand(9), 32, true)
	assert.Equal(t, a, b)
	inBounds(t, a, 32)
}

func TestInitialPopulation_IndependentOfWorkers(t *testing.T) {
	serial := Breeder{ImageSize: 64, Workers: 1}.InitialPopulation(NewSeedStream(5), 100)
	parallel := Breeder{ImageSize: 64, Workers: 8}.InitialPopulation(NewSeedStream(5), 100)

	require.Len(t, serial, 100)
	assert.Equal(t, serial, parallel)
	for _, tr := range serial {
		inBounds(t, tr, 64)
	}
}

func TestNextGeneration(t *testing.T) {
	parents := Breeder{ImageSize: 64, Alpha: true}.InitialPopulation(NewSeedStream(11), 8)

	b1 := Breeder{ImageSize: 64, MutationRate: 0.5, Alpha: true, Workers: 1}
	b2 := b1
	b2.Workers = 6

	g1 := b1.NextGeneration(NewSeedStream(12), parents, 50)
	g2 := b2.NextGeneration(NewSeedStream(12), parents, 50)
	require.Len(t, g1, 50)
	assert.Equal(t, g1, g2)
	for _, tr := range g1 {
		inBounds(t, tr, 64)
	}
}

func TestNextGeneration_WithoutMutationInheritsGenes(t *testing.T) {
	parents := Breeder{ImageSize: 64}.InitialPopulation(NewSeedStream(21), 4)
	offspring := Breeder{ImageSize: 64}.NextGeneration(NewSeedStream(22), parents, 40)

	for _, child := range offspring {
		for i, v := range child.Vertices {
			found := false
			for _, p := range parents {
				if p.Vertices[i] == v {
					found = true
				}
			}
			assert.True(t, found, "vertex %d of %v not inherited", i, child)
		}
	}
}

func TestNextGeneration_EmptyParentsPanics(t *testing.T) {
	assert.Panics(t, func() {
		Breeder{ImageSize: 8}.NextGeneration(NewSeedStream(1), nil, 4)
	})
}

func TestSelect(t *testing.T) {
	pop := Population{tri(0, 0, 1, 0, 0, 1), tri(0, 0, 2, 0, 0, 2), tri(0, 0, 3, 0, 0, 3), tri(0, 0, 4, 0, 0, 4)}
	scores := []float64{1, 3, 3, 2}

	selected := Select(pop, scores, 2)
	assert.Equal(t, Population{pop[1], pop[2]}, selected)

	selected = Select(pop, scores, 3)
	assert.Equal(t, Population{pop[1], pop[2], pop[3]}, selected)

	assert.Len(t, Select(pop, scores, 10), 4)
	assert.Empty(t, Select(pop, scores, 0))

	// The inputs are left untouched.
	assert.Equal(t, []float64{1, 3, 3, 2}, scores)
}

func TestSelect_KeepsFittest(t *testing.T) {
	pop := Breeder{ImageSize: 32}.InitialPopulation(NewSeedStream(8), 40)
	rng := NewRand(8)
	scores := make([]float64, len(pop))
	for i := range scores {
		scores[i] = rng.Float64() * 100
	}
	scores[3] = RejectedFitness

	k := 15
	selected := Select(pop, scores, k)
	require.Len(t, selected, k)

	score := make(map[Triangle]float64, len(pop))
	for i, tr := range pop {
		score[tr] = scores[i]
	}
	lowestKept := score[selected[k-1]]
	for i := 1; i < k; i++ {
		assert.GreaterOrEqual(t, score[selected[i-1]], score[selected[i]])
	}

	kept := 0
	for _, s := range scores {
		if s > lowestKept {
			kept++
		}
	}
	assert.Less(t, kept, k)
	assert.NotContains(t, selected, pop[3])
}

func TestSelect_NonFiniteScoresRankLast(t *testing.T) {
	pop := Population{tri(0, 0, 1, 0, 0, 1), tri(0, 0, 2, 0, 0, 2), tri(0, 0, 3, 0, 0, 3), tri(0, 0, 4, 0, 0, 4), tri(0, 0, 5, 0, 0, 5)}

	tests := []struct {
		name   string
		scores []float64
		k      int
		want   Population
	}{
		{"nan never selected first", []float64{math.NaN(), 2, -5, 1, 0}, 2, Population{pop[1], pop[3]}},
		{"inf never selected first", []float64{-1, math.Inf(1), 2, math.Inf(-1), 1}, 3, Population{pop[2], pop[4], pop[0]}},
		{"non finite sorted last", []float64{math.NaN(), 2, math.Inf(1), 1, math.Inf(-1)}, 5, Population{pop[1], pop[3], pop[0], pop[2], pop[4]}},
		{"rejected ties with non finite", []float64{RejectedFitness, math.NaN(), 3, math.Inf(1), 4}, 5, Population{pop[4], pop[2], pop[0], pop[1], pop[3]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(pop, tt.scores, tt.k))
		})
	}
}

func TestSelect_LengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		Select(Population{tri(0, 0, 1, 0, 0, 1)}, []float64{1, 2}, 1)
	})
}

func TestCrossover(t *testing.T) {
	a := Triangle{
		Vertices: [3]image.Point{{1, 1}, {2, 2}, {3, 3}},
		Color:    color.RGBA{R: 10, G: 20, B: 30, A: 0xff},
		Opacity:  0.2,
	}
	b := Triangle{
		Vertices: [3]image.Point{{7, 7}, {8, 8}, {9, 9}},
		Color:    color.RGBA{R: 110, G: 120, B: 130, A: 0xff},
		Opacity:  0.8,
	}

	rng := NewRand(4)
	for i := 0; i < 200; i++ {
		child := Crossover(a, b, rng)
		for j, v := range child.Vertices {
			assert.Contains(t, []image.Point{a.Vertices[j], b.Vertices[j]}, v)
		}
		assert.Contains(t, []uint8{a.Color.R, b.Color.R}, child.Color.R)
		assert.Contains(t, []uint8{a.Color.G, b.Color.G}, child.Color.G)
		assert.Contains(t, []uint8{a.Color.B, b.Color.B}, child.Color.B)
		assert.Contains(t, []float64{a.Opacity, b.Opacity}, child.Opacity)
	}

	assert.Equal(t, Crossover(a, b, NewRand(77)), Crossover(a, b, NewRand(77)))
	assert.Equal(t, a, Crossover(a, a, NewRand(1)))
}

func TestMutate(t *testing.T) {
	orig := Triangle{
		Vertices: [3]image.Point{{0, 0}, {99, 99}, {50, 50}},
		Color:    color.RGBA{R: 0, G: 255, B: 128, A: 0xff},
		Opacity:  0.95,
	}

	t.Run("zero rate", func(t *testing.T) {
		rng := NewRand(2)
		for i := 0; i < 100; i++ {
			assert.Equal(t, orig, Mutate(orig, 100, 0, true, rng))
		}
	})

	t.Run("bounded changes", func(t *testing.T) {
		rng := NewRand(3)
		changed := false
		for i := 0; i < 500; i++ {
			m := Mutate(orig, 100, 1, true, rng)
			inBounds(t, m, 100)
			for j, v := range m.Vertices {
				assert.LessOrEqual(t, Abs(v.X-orig.Vertices[j].X), 10)
				assert.LessOrEqual(t, Abs(v.Y-orig.Vertices[j].Y), 10)
			}
			assert.LessOrEqual(t, Abs(int(m.Color.R)-int(orig.Color.R)), 10)
			assert.LessOrEqual(t, Abs(int(m.Color.G)-int(orig.Color.G)), 10)
			assert.LessOrEqual(t, Abs(int(m.Color.B)-int(orig.Color.B)), 10)
			assert.LessOrEqual(t, Abs(m.Opacity-orig.Opacity), opacityJitter+1e-12)
			if m != orig {
				changed = true
			}
		}
		assert.True(t, changed)
	})

	t.Run("opaque mode keeps opacity", func(t *testing.T) {
		rng := NewRand(4)
		for i := 0; i < 100; i++ {
			assert.Equal(t, orig.Opacity, Mutate(orig, 100, 1, false, rng).Opacity)
		}
	})

	t.Run("reproducible", func(t *testing.T) {
		assert.Equal(t, Mutate(orig, 100, 0.5, true, NewRand(10)), Mutate(orig, 100, 0.5, true, NewRand(10)))
	})
}
