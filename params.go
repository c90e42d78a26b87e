package trievo

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// FitnessAlgorithm selects the metric used to compare a canvas with the reference image.
type FitnessAlgorithm int

const (
	// MSE scores a candidate with the negated mean squared per-channel error.
	MSE FitnessAlgorithm = iota
	// SSIM scores a candidate with the mean of a per-pixel structural similarity index.
	SSIM
)

// String implements the fmt.Stringer interface.
func (f FitnessAlgorithm) String() string {
	switch f {
	case MSE:
		return "mse"
	case SSIM:
		return "ssim"
	}
	return fmt.Sprintf("FitnessAlgorithm(%d)", int(f))
}

// ParseFitnessAlgorithm converts a name ("mse" or "ssim", case insensitive) to a FitnessAlgorithm.
func ParseFitnessAlgorithm(name string) (FitnessAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mse":
		return MSE, nil
	case "ssim":
		return SSIM, nil
	}
	return MSE, fmt.Errorf("unknown fitness algorithm %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (f FitnessAlgorithm) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FitnessAlgorithm) UnmarshalText(text []byte) error {
	v, err := ParseFitnessAlgorithm(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Params holds the tuning options of a run. Use DefaultParams to obtain a
// fully populated value and override the fields you need.
type Params struct {
	NumTriangles   int
	ImageSize      int
	NumGenerations int
	PopulationSize int
	NumSelected    int
	MutationRate   float64
	// DegeneracyThreshold is the smallest interior angle, in degrees, a candidate
	// may have. Nil disables the check.
	DegeneracyThreshold *float64
	// Seed makes a run reproducible. Nil derives one from the wall clock.
	Seed    *uint64
	Fitness FitnessAlgorithm
	// Alpha enables translucent triangles with an evolved opacity.
	Alpha bool
	// Workers caps the parallel phases. Zero uses GOMAXPROCS.
	Workers int
}

// DefaultParams returns the default tuning options.
func DefaultParams() Params {
	return Params{
		NumTriangles:   512,
		ImageSize:      256,
		NumGenerations: 256,
		PopulationSize: 128,
		NumSelected:    64,
		MutationRate:   0.1,
		Fitness:        MSE,
	}
}

// ConfigurationError reports an invalid parameter.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the parameters and returns every violation found,
// each one as a *ConfigurationError.
func (p Params) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if p.ImageSize <= 0 {
		fail("image size", "must be positive, got %d", p.ImageSize)
	}
	if p.NumTriangles < 0 {
		fail("number of triangles", "must not be negative, got %d", p.NumTriangles)
	}
	if p.NumGenerations < 0 {
		fail("number of generations", "must not be negative, got %d", p.NumGenerations)
	}
	if p.PopulationSize <= 0 {
		fail("population size", "must be positive, got %d", p.PopulationSize)
	}
	if p.NumSelected <= 0 || p.NumSelected > p.PopulationSize {
		fail("number of selected", "must be in [1, %d], got %d", Max(p.PopulationSize, 1), p.NumSelected)
	}
	if math.IsNaN(p.MutationRate) || p.MutationRate < 0 || p.MutationRate > 1 {
		fail("mutation rate", "must be in [0, 1], got %v", p.MutationRate)
	}
	if t := p.DegeneracyThreshold; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0) || *t >= 180) {
		fail("degeneracy threshold", "must be a finite angle below 180 degrees, got %v", *t)
	}
	if p.Fitness != MSE && p.Fitness != SSIM {
		fail("fitness algorithm", "unsupported value %d", int(p.Fitness))
	}
	if p.Workers < 0 {
		fail("workers", "must not be negative, got %d", p.Workers)
	}
	return errors.Join(errs...)
}

// threshold returns the degeneracy threshold, zero when the check is disabled.
func (p Params) threshold() float64 {
	if p.DegeneracyThreshold == nil {
		return 0
	}
	return *p.DegeneracyThreshold
}
