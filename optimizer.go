package trievo

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyStarted is returned by Run when the optimizer has already been run.
var ErrAlreadyStarted = errors.New("optimizer already started")

// State is the lifecycle state of an Optimizer.
type State int32

const (
	Idle State = iota
	Running
	Completed
	Cancelled
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Progress is a snapshot of a running search.
type Progress struct {
	TriangleIndex   int
	GenerationIndex int
	Running         bool
	Complete        bool
	// BestFitness is the best fitness found by the search of the current triangle.
	BestFitness float64
	// Cancelled reports a pending cancellation request.
	Cancelled bool
	// Generation holds the population of the latest generation.
	Generation Population
}

// Commit describes a triangle that has been added to the canvas and the document.
// Canvas and Document are snapshots taken right after the commit; they are
// shared with other observers and must not be modified.
type Commit struct {
	Index    int
	Triangle Triangle
	Fitness  float64
	Canvas   *image.RGBA
	Document *Document
}

// Result is the outcome of a run.
type Result struct {
	Canvas    *image.RGBA
	Document  *Document
	Triangles []Triangle
	Seed      uint64
	State     State
	Elapsed   time.Duration
}

// Option customizes an Optimizer.
type Option func(*Optimizer)

// WithRasterizer replaces the default gg based rasterizer.
func WithRasterizer(r Rasterizer) Option {
	return func(o *Optimizer) {
		o.raster = r
	}
}

// WithCommitHook registers a function called after every commit.
// Hooks run on the goroutine executing Run and delay the search while they run.
func WithCommitHook(fn func(Commit)) Option {
	return func(o *Optimizer) {
		o.hooks = append(o.hooks, fn)
	}
}

// Optimizer approximates a reference image with triangles, one at a time.
//
// Run executes the search on the calling goroutine. Every other method is
// safe to call from other goroutines while Run is in progress. The snapshot
// accessors never block: they report ok == false when the state is being
// updated at that very moment, in which case the caller should simply retry later.
type Optimizer struct {
	params    Params
	reference *image.RGBA
	raster    Rasterizer
	hooks     []func(Commit)

	state atomic.Int32
	stop  atomic.Bool

	mu       sync.RWMutex
	progress Progress
	canvas   *image.RGBA
	doc      *Document
}

// NewOptimizer validates the parameters and the reference image and prepares a run.
// The reference must be exactly ImageSize x ImageSize pixels.
func NewOptimizer(params Params, reference image.Image, opts ...Option) (*Optimizer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if reference == nil {
		return nil, errors.New("missing reference image")
	}
	want := image.Pt(params.ImageSize, params.ImageSize)
	if got := reference.Bounds().Size(); got != want {
		return nil, &InputMismatchError{Want: want, Got: got}
	}

	o := &Optimizer{
		params:    params,
		reference: ToRGBA(reference),
		raster:    GGRasterizer{},
		canvas:    NewCanvas(params.ImageSize),
		doc:       NewDocument(params.ImageSize),
		progress:  Progress{BestFitness: RejectedFitness},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Params returns the parameters of the run.
func (o *Optimizer) Params() Params {
	return o.params
}

// State returns the current lifecycle state.
func (o *Optimizer) State() State {
	return State(o.state.Load())
}

// Cancel asks the search to stop. The request is honored before the next
// triangle or generation starts; a generation in flight always completes.
// Cancelling an optimizer that has not been run yet makes the run stop
// before its first triangle.
func (o *Optimizer) Cancel() {
	o.stop.Store(true)
}

// Progress returns a copy of the current progress.
func (o *Optimizer) Progress() (Progress, bool) {
	if !o.mu.TryRLock() {
		return Progress{}, false
	}
	defer o.mu.RUnlock()

	p := o.progress
	p.Generation = p.Generation.Clone()
	p.Cancelled = o.stop.Load()
	return p, true
}

// Canvas returns a copy of the canvas with every triangle committed so far.
func (o *Optimizer) Canvas() (*image.RGBA, bool) {
	if !o.mu.TryRLock() {
		return nil, false
	}
	defer o.mu.RUnlock()
	return CloneCanvas(o.canvas), true
}

// Document returns a copy of the vector document committed so far.
func (o *Optimizer) Document() (*Document, bool) {
	if !o.mu.TryRLock() {
		return nil, false
	}
	defer o.mu.RUnlock()
	return o.doc.Clone(), true
}

// Preview renders the latest generation on top of the committed canvas.
func (o *Optimizer) Preview() (*image.RGBA, bool) {
	if !o.mu.TryRLock() {
		return nil, false
	}
	canvas, gen := o.canvas, o.progress.Generation
	o.mu.RUnlock()

	// Published snapshots are never written again, so rendering can happen outside the lock.
	return RenderPreview(o.raster, canvas, gen, o.params.Alpha), true
}

// Run executes the search until every triangle has been placed or the run
// is cancelled, either through Cancel or through ctx. Cancellation is not an
// error: the result then holds every triangle committed so far and its State
// is Cancelled. Run can only be called once.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	if !o.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil, ErrAlreadyStarted
	}

	var (
		p         = o.params
		start     = time.Now()
		seed      = ResolveSeed(p.Seed)
		stream    = NewSeedStream(seed)
		canvas    = NewCanvas(p.ImageSize)
		doc       = NewDocument(p.ImageSize)
		committed []Triangle
		cancelled bool
	)
	eval := &Evaluator{
		Reference:  o.reference,
		Algorithm:  p.Fitness,
		Threshold:  p.threshold(),
		Alpha:      p.Alpha,
		Rasterizer: o.raster,
		Workers:    p.Workers,
	}
	breeder := Breeder{
		ImageSize:    p.ImageSize,
		MutationRate: p.MutationRate,
		Alpha:        p.Alpha,
		Workers:      p.Workers,
	}

	o.update(func(pr *Progress) {
		pr.Running = true
		pr.Complete = false
	})
	Logger().Info("run started",
		"seed", seed,
		"triangles", p.NumTriangles,
		"generations", p.NumGenerations,
		"population", p.PopulationSize,
		"fitness", p.Fitness.String(),
		"alpha", p.Alpha,
	)

	for ti := 0; ti < p.NumTriangles; ti++ {
		if o.stopRequested(ctx) {
			cancelled = true
			break
		}
		o.update(func(pr *Progress) {
			pr.TriangleIndex = ti
			pr.GenerationIndex = 0
			pr.BestFitness = RejectedFitness
		})

		pop := breeder.InitialPopulation(stream, p.PopulationSize)
		best, bestFitness, found := Triangle{}, RejectedFitness, false

		for gi := 0; gi < p.NumGenerations; gi++ {
			if o.stopRequested(ctx) {
				cancelled = true
				break
			}
			o.update(func(pr *Progress) {
				pr.GenerationIndex = gi
			})

			scores := eval.ScoreBatch(pop, canvas)
			if i := argmax(scores); sanitize(scores[i]) > bestFitness {
				best, bestFitness, found = pop[i], scores[i], true
				o.update(func(pr *Progress) {
					pr.BestFitness = bestFitness
				})
				Logger().Debug("generation improved", "triangle", ti, "generation", gi, "fitness", bestFitness)
			}

			parents := Select(pop, scores, p.NumSelected)
			pop = breeder.NextGeneration(stream, parents, p.PopulationSize)

			snapshot := pop.Clone()
			o.update(func(pr *Progress) {
				pr.Generation = snapshot
			})
		}

		if !found {
			continue
		}
		o.raster.DrawTriangle(canvas, best, p.Alpha)
		doc.Append(best, p.Alpha)
		committed = append(committed, best)

		c := Commit{
			Index:    len(committed) - 1,
			Triangle: best,
			Fitness:  bestFitness,
			Canvas:   CloneCanvas(canvas),
			Document: doc.Clone(),
		}
		o.mu.Lock()
		o.canvas, o.doc = c.Canvas, c.Document
		o.mu.Unlock()

		Logger().Debug("triangle committed", "index", c.Index, "fitness", bestFitness, "triangle", best.String())
		for _, hook := range o.hooks {
			hook(c)
		}
	}

	o.stop.Store(false)
	o.update(func(pr *Progress) {
		pr.Running = false
		pr.Complete = true
	})

	final := Completed
	if cancelled {
		final = Cancelled
		Logger().Info("run cancelled", "committed", len(committed))
	}
	o.state.Store(int32(final))

	elapsed := time.Since(start)
	Logger().Info("run finished", "state", final.String(), "committed", len(committed), "elapsed", elapsed)

	return &Result{
		Canvas:    canvas,
		Document:  doc,
		Triangles: committed,
		Seed:      seed,
		State:     final,
		Elapsed:   elapsed,
	}, nil
}

// stopRequested polls the cancellation flag and the context.
func (o *Optimizer) stopRequested(ctx context.Context) bool {
	if o.stop.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (o *Optimizer) update(fn func(*Progress)) {
	o.mu.Lock()
	fn(&o.progress)
	o.mu.Unlock()
}

// argmax returns the index of the highest score, the first one on ties.
// Non-finite scores rank as RejectedFitness.
func argmax(scores []float64) int {
	best := 0
	for i, s := range scores {
		if sanitize(s) > sanitize(scores[best]) {
			best = i
		}
	}
	return best
}
