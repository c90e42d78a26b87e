package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/esimov/trievo"
	"github.com/esimov/trievo/utils"
	"github.com/fogleman/gg"
)

var defaults = trievo.DefaultParams()

var (
	// Flags
	source       = flag.String("in", "", "Source image (file path or http(s) URL)")
	destination  = flag.String("out", "", "Destination SVG file (defaults to the source name with .svg extension)")
	rasterOut    = flag.String("png", "", "Export the final canvas as PNG")
	previewOut   = flag.String("preview", "", "Export the last generation preview as PNG")
	configFile   = flag.String("config", "", "TOML or YAML parameters file; explicit flags take precedence")
	numTriangles = flag.Int("triangles", defaults.NumTriangles, "Number of triangles")
	imageSize    = flag.Int("size", defaults.ImageSize, "Canvas size in pixels (the source is resized to a square)")
	generations  = flag.Int("generations", defaults.NumGenerations, "Number of generations per triangle")
	population   = flag.Int("population", defaults.PopulationSize, "Population size")
	selected     = flag.Int("selected", defaults.NumSelected, "Number of individuals selected for reproduction")
	mutation     = flag.Float64("mutation", defaults.MutationRate, "Mutation rate")
	degeneracy   = flag.Float64("degeneracy", 0, "Reject triangles with an interior angle below this many degrees (0 disables)")
	seed         = flag.Uint64("seed", 0, "Random seed (derived from the clock if not set)")
	fitness      = flag.String("fitness", defaults.Fitness.String(), "Fitness algorithm: mse or ssim")
	alpha        = flag.Bool("alpha", defaults.Alpha, "Evolve translucent triangles")
	workers      = flag.Int("workers", defaults.Workers, "Maximum number of parallel workers (0 uses every CPU)")
	saveEvery    = flag.Int("save-every", 0, "Save the SVG every n committed triangles (0 disables)")
	verbose      = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Parse()

	if len(*source) == 0 {
		log.Fatal("Usage: trievo -in input.jpg [-out output.svg]")
	}
	if *verbose {
		trievo.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	params, err := buildParams()
	if err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref, err := loadReference(ctx, *source, params.ImageSize)
	if err != nil {
		log.Fatalf("Unable to load source: %v", err)
	}

	out := *destination
	if len(out) == 0 {
		out = trievo.OutputPath(*source)
	}

	var opts []trievo.Option
	if *saveEvery > 0 {
		opts = append(opts, trievo.WithCommitHook(func(c trievo.Commit) {
			if (c.Index+1)%*saveEvery != 0 {
				return
			}
			if err := c.Document.SaveSVG(out); err != nil {
				trievo.Logger().Warn("periodic save failed", "path", out, "error", err)
			}
		}))
	}

	opt, err := trievo.NewOptimizer(params, ref, opts...)
	if err != nil {
		log.Fatalf("Unable to start: %v", err)
	}

	res, err := runOptimizer(ctx, stop, opt, utils.IsTerminal(os.Stderr))
	if err != nil {
		log.Fatalf("Error running the optimizer: %v", err)
	}

	if err := res.Document.SaveSVG(out); err != nil {
		log.Fatalf("Unable to save the result: %v", err)
	}
	if len(*rasterOut) > 0 {
		if err := gg.NewContextForRGBA(res.Canvas).SavePNG(*rasterOut); err != nil {
			log.Fatalf("Unable to save the canvas: %v", err)
		}
	}
	if len(*previewOut) > 0 {
		if err := savePreview(opt, *previewOut); err != nil {
			log.Fatalf("Unable to save the preview: %v", err)
		}
	}

	if res.State == trievo.Cancelled {
		fmt.Fprintf(os.Stderr, "\n%s\n", utils.Failure("Interrupted, saving the triangles committed so far"))
	}
	fmt.Fprintf(os.Stderr, "\nGenerated in: %s\n", utils.Success(utils.FormatTime(res.Elapsed)))
	fmt.Fprintf(os.Stderr, "Total number of %s triangles committed, seed %s\n",
		utils.Highlight(fmt.Sprint(len(res.Triangles))), utils.Highlight(fmt.Sprint(res.Seed)))
	fmt.Fprintf(os.Stderr, "Saved as: %s %s\n\n", path.Base(out), utils.Success("✓"))
}

// buildParams layers the defaults, the optional config file and the flags
// explicitly set on the command line, in this order.
func buildParams() (trievo.Params, error) {
	params := trievo.DefaultParams()
	if len(*configFile) > 0 {
		var err error
		if params, err = trievo.LoadParams(*configFile, params); err != nil {
			return params, err
		}
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "triangles":
			params.NumTriangles = *numTriangles
		case "size":
			params.ImageSize = *imageSize
		case "generations":
			params.NumGenerations = *generations
		case "population":
			params.PopulationSize = *population
		case "selected":
			params.NumSelected = *selected
		case "mutation":
			params.MutationRate = *mutation
		case "degeneracy":
			if *degeneracy > 0 {
				t := *degeneracy
				params.DegeneracyThreshold = &t
			} else {
				params.DegeneracyThreshold = nil
			}
		case "seed":
			s := *seed
			params.Seed = &s
		case "fitness":
			var alg trievo.FitnessAlgorithm
			if alg, err = trievo.ParseFitnessAlgorithm(*fitness); err == nil {
				params.Fitness = alg
			}
		case "alpha":
			params.Alpha = *alpha
		case "workers":
			params.Workers = *workers
		}
	})
	if err != nil {
		return params, err
	}
	return params, params.Validate()
}

// runOptimizer executes the search and calls release as soon as it returns.
// Releasing the signal handlers there restores the default behavior, so a
// second interrupt terminates the process while the result is being saved.
func runOptimizer(ctx context.Context, release context.CancelFunc, opt *trievo.Optimizer, progress bool) (*trievo.Result, error) {
	defer release()

	var spinner *utils.Spinner
	if progress {
		spinner = utils.NewSpinner(os.Stderr)
		spinner.Start("Generating triangles...")
		go reportProgress(ctx, opt, spinner)
	}

	res, err := opt.Run(ctx)
	if spinner != nil {
		spinner.Stop()
	}
	return res, err
}

func loadReference(ctx context.Context, src string, size int) (*image.RGBA, error) {
	if !utils.IsURL(src) {
		return trievo.OpenReference(src, size)
	}
	f, err := utils.DownloadImage(ctx, src)
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	return trievo.LoadReference(f, size)
}

// reportProgress polls the optimizer and refreshes the spinner message.
func reportProgress(ctx context.Context, opt *trievo.Optimizer, s *utils.Spinner) {
	total := opt.Params().NumTriangles
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p, ok := opt.Progress()
		if !ok {
			continue
		}
		if p.Complete {
			return
		}
		score := "n/a"
		if p.BestFitness > trievo.RejectedFitness {
			score = fmt.Sprintf("%.2f", p.BestFitness)
		}
		s.Update(fmt.Sprintf("Triangle: %d/%d, Generation: %d, Fitness: %s",
			p.TriangleIndex+1, total, p.GenerationIndex+1, score))
	}
}

func savePreview(opt *trievo.Optimizer, file string) error {
	for i := 0; i < 10; i++ {
		if img, ok := opt.Preview(); ok {
			return gg.NewContextForRGBA(img).SavePNG(file)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("preview not available")
}
