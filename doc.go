/*
Package trievo is an image processing library which approximates images with a set of
colored triangles found by a genetic algorithm.

Triangles are placed one at a time. For every triangle a population of random candidates
is evolved over a number of generations through selection, uniform crossover and mutation;
the fittest candidate is then committed to the canvas and to a vector document, and the
search moves on to the next triangle using the updated canvas as its baseline.

The package provides a command line utility supporting various customization options.
Check the supported commands by typing:

	$ trievo --help

The result is exposed both as raster image and as SVG document.

Example to approximate an image and save the result as SVG:

	package main

	import (
		"context"
		"log"

		"github.com/esimov/trievo"
	)

	func main() {
		params := trievo.DefaultParams()
		params.NumTriangles = 200

		ref, err := trievo.OpenReference("input.jpg", params.ImageSize)
		if err != nil {
			log.Fatal(err)
		}
		opt, err := trievo.NewOptimizer(params, ref)
		if err != nil {
			log.Fatal(err)
		}
		res, err := opt.Run(context.Background())
		if err != nil {
			log.Fatal(err)
		}
		if err := res.Document.SaveSVG("output.svg"); err != nil {
			log.Fatal(err)
		}
	}

Runs are reproducible: the same seed and the same parameters produce the same triangles,
whatever the number of workers.

	seed := uint64(42)
	params.Seed = &seed

The search can be observed and stopped from another goroutine. The snapshot accessors never
block the optimizer; they report false when the snapshot is momentarily unavailable.

	go opt.Run(ctx)

	if p, ok := opt.Progress(); ok {
		fmt.Printf("Triangle: %d, Fitness: %.2f\n", p.TriangleIndex+1, p.BestFitness)
	}
	opt.Cancel()
*/
package trievo
