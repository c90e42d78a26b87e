package trievo

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ConfigFormat identifies the syntax of a parameters file.
type ConfigFormat string

const (
	TOML ConfigFormat = "toml"
	YAML ConfigFormat = "yaml"
)

// paramsFile mirrors Params with optional fields, so that a file only
// overrides the keys it actually sets.
type paramsFile struct {
	Triangles   *int     `toml:"triangles" yaml:"triangles"`
	Size        *int     `toml:"size" yaml:"size"`
	Generations *int     `toml:"generations" yaml:"generations"`
	Population  *int     `toml:"population" yaml:"population"`
	Selected    *int     `toml:"selected" yaml:"selected"`
	Mutation    *float64 `toml:"mutation" yaml:"mutation"`
	Degeneracy  *float64 `toml:"degeneracy" yaml:"degeneracy"`
	Seed        *uint64  `toml:"seed" yaml:"seed"`
	Fitness     *string  `toml:"fitness" yaml:"fitness"`
	Alpha       *bool    `toml:"alpha" yaml:"alpha"`
	Workers     *int     `toml:"workers" yaml:"workers"`
}

// LoadParams reads a TOML (.toml) or YAML (.yaml, .yml) parameters file and
// applies it on top of base. Unknown keys are rejected.
func LoadParams(path string, base Params) (Params, error) {
	var format ConfigFormat
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		format = TOML
	case ".yaml", ".yml":
		format = YAML
	default:
		return base, fmt.Errorf("unsupported config file extension: %q", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("unable to open config file: %w", err)
	}
	defer f.Close()

	params, err := DecodeParams(f, format, base)
	if err != nil {
		return base, fmt.Errorf("%s: %w", path, err)
	}
	return params, nil
}

// DecodeParams decodes parameters in the given format and applies them on top of base.
func DecodeParams(r io.Reader, format ConfigFormat, base Params) (Params, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return base, err
	}

	var pf paramsFile
	switch format {
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&pf); err != nil {
			return base, fmt.Errorf("unable to decode toml config: %w", err)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF and leaves every default in place.
		if err := dec.Decode(&pf); err != nil && err != io.EOF {
			return base, fmt.Errorf("unable to decode yaml config: %w", err)
		}
	default:
		return base, fmt.Errorf("unsupported config format: %q", format)
	}
	return pf.apply(base)
}

func (pf paramsFile) apply(p Params) (Params, error) {
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setInt(&p.NumTriangles, pf.Triangles)
	setInt(&p.ImageSize, pf.Size)
	setInt(&p.NumGenerations, pf.Generations)
	setInt(&p.PopulationSize, pf.Population)
	setInt(&p.NumSelected, pf.Selected)
	setInt(&p.Workers, pf.Workers)

	if pf.Mutation != nil {
		p.MutationRate = *pf.Mutation
	}
	if pf.Degeneracy != nil {
		t := *pf.Degeneracy
		p.DegeneracyThreshold = &t
	}
	if pf.Seed != nil {
		s := *pf.Seed
		p.Seed = &s
	}
	if pf.Alpha != nil {
		p.Alpha = *pf.Alpha
	}
	if pf.Fitness != nil {
		alg, err := ParseFitnessAlgorithm(*pf.Fitness)
		if err != nil {
			return p, err
		}
		p.Fitness = alg
	}
	return p, nil
}
