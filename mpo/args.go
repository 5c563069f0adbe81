package mpo

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fumin/mpoalgs/tn"
)

const (
	// MethodDensityMatrix applies an operator exactly, up to the cutoff, see ExactApply.
	MethodDensityMatrix = "DensityMatrix"
	// MethodFit applies an operator by variational fitting, see FitApply.
	MethodFit = "Fit"
)

var validate = validator.New()

// Args are options shared by the algorithms of this package.
// Unset options take the default of the algorithm they are passed to.
type Args struct {
	cutoff           *float64
	maxDim           *int
	minDim           *int
	noise            *float64
	nsweep           *int
	method           *string
	normalize        *bool
	verbose          bool
	order            *int
	allowArbPosition bool
	sweeps           Sweeps

	logger   *slog.Logger
	observer Observer
}

// NewArgs returns options with every value unset.
func NewArgs() Args {
	return Args{}
}

// Cutoff sets the largest discarded weight of each decomposition, relative to the total weight.
func (a Args) Cutoff(c float64) Args {
	a.cutoff = &c
	return a
}

// MaxDim sets the maximum bond dimension.
func (a Args) MaxDim(m int) Args {
	a.maxDim = &m
	return a
}

// MinDim sets the minimum bond dimension.
func (a Args) MinDim(m int) Args {
	a.minDim = &m
	return a
}

// Noise sets the noise term of variational sweeps.
func (a Args) Noise(n float64) Args {
	a.noise = &n
	return a
}

// Nsweep sets the number of variational sweeps.
func (a Args) Nsweep(n int) Args {
	a.nsweep = &n
	return a
}

// Method selects the algorithm of Apply and ApplyGuess.
func (a Args) Method(m string) Args {
	a.method = &m
	return a
}

// Normalize sets whether results are scaled to unit norm.
func (a Args) Normalize(n bool) Args {
	a.normalize = &n
	return a
}

// Verbose logs every decomposition.
func (a Args) Verbose(v bool) Args {
	a.verbose = v
	return a
}

// Order sets the order of the Taylor series of ApplyExpH.
func (a Args) Order(o int) Args {
	a.order = &o
	return a
}

// AllowArbPosition lets ZipUpApply accept an operator whose orthogonality center is not site 1.
func (a Args) AllowArbPosition(b bool) Args {
	a.allowArbPosition = b
	return a
}

// Sweeps sets an explicit sweep schedule, which takes precedence over Nsweep, Cutoff, MaxDim, MinDim and Noise.
func (a Args) Sweeps(s Sweeps) Args {
	a.sweeps = s
	return a
}

// Logger sets the logger of verbose output.
func (a Args) Logger(l *slog.Logger) Args {
	a.logger = l
	return a
}

// Observer receives an Event for every decomposition.
func (a Args) Observer(o Observer) Args {
	a.observer = o
	return a
}

func get[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// trunc returns the truncation of a single pass algorithm.
func (a Args) trunc(defCutoff float64) tn.Trunc {
	return tn.Trunc{
		Cutoff: get(a.cutoff, defCutoff),
		MaxDim: get(a.maxDim, 0),
		MinDim: get(a.minDim, 1),
	}
}

// schedule returns the sweep schedule of a variational algorithm.
func (a Args) schedule() Sweeps {
	if len(a.sweeps) > 0 {
		return a.sweeps
	}
	return NewSweeps(get(a.nsweep, 1), Sweep{
		Cutoff: get(a.cutoff, defaultFitCutoff),
		MaxDim: get(a.maxDim, 0),
		MinDim: get(a.minDim, 1),
		Noise:  get(a.noise, 0),
	})
}

func (a Args) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// ArgsConfig is the serialized form of Args.
type ArgsConfig struct {
	Cutoff           *float64      `yaml:"Cutoff" validate:"omitempty,gte=0"`
	Maxm             *int          `yaml:"Maxm" validate:"omitempty,gte=1"`
	Minm             *int          `yaml:"Minm" validate:"omitempty,gte=1"`
	Noise            *float64      `yaml:"Noise" validate:"omitempty,gte=0"`
	Nsweep           *int          `yaml:"Nsweep" validate:"omitempty,gte=1"`
	Method           *string       `yaml:"Method" validate:"omitempty,oneof=DensityMatrix Fit"`
	Normalize        *bool         `yaml:"Normalize"`
	Verbose          bool          `yaml:"Verbose"`
	Order            *int          `yaml:"Order" validate:"omitempty,gte=1"`
	AllowArbPosition bool          `yaml:"AllowArbPosition"`
	Sweeps           []SweepConfig `yaml:"Sweeps" validate:"omitempty,dive"`
}

// SweepConfig is the serialized form of Sweep.
type SweepConfig struct {
	Cutoff float64 `yaml:"Cutoff" validate:"gte=0"`
	Maxm   int     `yaml:"Maxm" validate:"gte=0"`
	Minm   int     `yaml:"Minm" validate:"gte=0"`
	Noise  float64 `yaml:"Noise" validate:"gte=0"`
}

// Args converts c to Args, after validating it.
func (c ArgsConfig) Args() (Args, error) {
	if err := validate.Struct(c); err != nil {
		return Args{}, errors.Wrap(err, "")
	}
	a := Args{
		cutoff:           c.Cutoff,
		maxDim:           c.Maxm,
		minDim:           c.Minm,
		noise:            c.Noise,
		nsweep:           c.Nsweep,
		method:           c.Method,
		normalize:        c.Normalize,
		verbose:          c.Verbose,
		order:            c.Order,
		allowArbPosition: c.AllowArbPosition,
	}
	for _, s := range c.Sweeps {
		a.sweeps = append(a.sweeps, Sweep{Cutoff: s.Cutoff, MaxDim: s.Maxm, MinDim: s.Minm, Noise: s.Noise})
	}
	return a, nil
}

// ParseArgs decodes Args from YAML.
func ParseArgs(b []byte) (Args, error) {
	var c ArgsConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Args{}, errors.Wrap(err, "")
	}
	a, err := c.Args()
	if err != nil {
		return Args{}, errors.Wrap(err, string(b))
	}
	return a, nil
}
