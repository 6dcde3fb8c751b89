// Package config holds the experiment constants. Defaults reproduce the reference run;
// an optional YAML file overrides individual fields.
package config

import (
	"io/ioutil"
	"math"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/kiteco/backdoor-sweep/internal/classify"
	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/experiment"
	"github.com/kiteco/backdoor-sweep/internal/kernreg"
	"github.com/kiteco/backdoor-sweep/internal/mixture"
	"github.com/kiteco/backdoor-sweep/internal/resultstore"
	"github.com/kiteco/backdoor-sweep/internal/rundb"
	"github.com/kiteco/backdoor-sweep/internal/sweep"
)

// Mixture describes the two-component training distribution.
type Mixture struct {
	M1    []float64   `yaml:"m1" json:"m1"`
	M0    []float64   `yaml:"m0" json:"m0"`
	Sigma [][]float64 `yaml:"sigma" json:"sigma"`
	N     int         `yaml:"n" json:"n"`
	Lam   float64     `yaml:"lam" json:"lam"`
}

// Estimator selects the kernel regression variant.
type Estimator struct {
	RegType       string `yaml:"reg_type" json:"reg_type"`
	Bandwidth     string `yaml:"bandwidth" json:"bandwidth"`
	MaxIterations int    `yaml:"max_iterations" json:"max_iterations"`
}

// Config is everything that defines a sweep apart from the worker pool.
type Config struct {
	Mixture    Mixture   `yaml:"mixture" json:"mixture"`
	Rho        float64   `yaml:"rho" json:"rho"`
	Lengths    []float64 `yaml:"lengths" json:"lengths"`
	AngleCount int       `yaml:"angle_count" json:"angle_count"`
	Total      int       `yaml:"total" json:"total"`
	Seed       uint64    `yaml:"seed" json:"seed"`
	TestSize   int       `yaml:"test_size" json:"test_size"`
	Estimator  Estimator `yaml:"estimator" json:"estimator"`
}

// Default returns the constants of the reference run.
func Default() Config {
	return Config{
		Mixture: Mixture{
			M1:    []float64{-3, 0},
			M0:    []float64{3, 0},
			Sigma: [][]float64{{3, 0}, {0, 0.5}},
			N:     100,
			Lam:   0.5,
		},
		Rho:        0.2,
		Lengths:    append([]float64(nil), sweep.DefaultLengths...),
		AngleCount: 5,
		Total:      sweep.DefaultTotal,
		TestSize:   experiment.DefaultTestSize,
		Estimator: Estimator{
			RegType:       string(kernreg.DefaultOptions.RegType),
			Bandwidth:     string(kernreg.DefaultOptions.Bandwidth),
			MaxIterations: kernreg.DefaultOptions.MaxIterations,
		},
	}
}

// Load reads path over the defaults; unknown keys are rejected. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "error reading config")
	}
	if err := yaml.UnmarshalStrict(buf, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "error parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate checks shapes and ranges; covariance definiteness is checked by the sampler.
func (c Config) Validate() error {
	if len(c.Mixture.M1) != 2 || len(c.Mixture.M0) != 2 {
		return errors.InvalidSpec("mixture", "means must have two components")
	}
	if len(c.Mixture.Sigma) != 2 || len(c.Mixture.Sigma[0]) != 2 || len(c.Mixture.Sigma[1]) != 2 {
		return errors.InvalidSpec("sigma", "must be 2x2")
	}
	if err := c.MixtureSpec().Validate(); err != nil {
		return err
	}
	if _, err := mixture.NewGaussian(c.MixtureSpec().M1, c.MixtureSpec().Sigma); err != nil {
		return err
	}
	if len(c.Lengths) == 0 {
		return errors.InvalidSpec("lengths", "must not be empty")
	}
	if c.AngleCount < 1 {
		return errors.InvalidSpec("angle_count", "must be positive, got %d", c.AngleCount)
	}
	if c.Total < 0 {
		return errors.InvalidSpec("total", "must be non-negative, got %d", c.Total)
	}
	if c.TestSize < 1 {
		return errors.InvalidSpec("test_size", "must be positive, got %d", c.TestSize)
	}
	if c.Rho < 0 || c.Rho > 1 || math.IsNaN(c.Rho) {
		return errors.InvalidSpec("rho", "must be in [0, 1], got %v", c.Rho)
	}

	switch kernreg.RegType(c.Estimator.RegType) {
	case kernreg.LocalLinear, kernreg.LocalConstant:
	default:
		return errors.InvalidSpec("reg_type", "unknown regression type %q", c.Estimator.RegType)
	}
	switch kernreg.BandwidthMethod(c.Estimator.Bandwidth) {
	case kernreg.CrossValidation, kernreg.NormalReference:
	default:
		return errors.InvalidSpec("bandwidth", "unknown bandwidth method %q", c.Estimator.Bandwidth)
	}
	return c.Grid().Validate()
}

// MixtureSpec converts the mixture section. The shape must already be valid.
func (c Config) MixtureSpec() mixture.Spec {
	m := c.Mixture
	return mixture.Spec{
		M1:    mixture.Vec2{m.M1[0], m.M1[1]},
		M0:    mixture.Vec2{m.M0[0], m.M0[1]},
		Sigma: mixture.Mat2{{m.Sigma[0][0], m.Sigma[0][1]}, {m.Sigma[1][0], m.Sigma[1][1]}},
		N:     m.N,
		Lam:   m.Lam,
	}
}

// Grid is the configured lengths by evenly spaced angles over [0, π].
func (c Config) Grid() sweep.Grid {
	return sweep.Grid{
		Lengths: append([]float64(nil), c.Lengths...),
		Angles:  sweep.EvenAngles(c.AngleCount),
	}
}

// KernelOptions converts the estimator section.
func (c Config) KernelOptions() kernreg.Options {
	return kernreg.Options{
		RegType:       kernreg.RegType(c.Estimator.RegType),
		Bandwidth:     kernreg.BandwidthMethod(c.Estimator.Bandwidth),
		MaxIterations: c.Estimator.MaxIterations,
	}
}

// Runner builds the trial runner.
func (c Config) Runner() experiment.Runner {
	return experiment.NewRunner(classify.NewAdapter(classify.KernelFitter{Options: c.KernelOptions()}), c.TestSize)
}

// Sweep builds a sweep writing to store; ledger and logger may be nil.
func (c Config) Sweep(store resultstore.Store, ledger *rundb.DB, logger *zap.Logger) (*sweep.Sweep, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	runner := c.Runner()
	return sweep.New(sweep.Options{
		Grid:    c.Grid(),
		Mixture: c.MixtureSpec(),
		Rho:     c.Rho,
		Total:   c.Total,
		Seed:    c.Seed,
		Runner:  &runner,
		Store:   store,
		Ledger:  ledger,
		Logger:  logger,
	})
}
