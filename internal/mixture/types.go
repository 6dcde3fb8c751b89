package mixture

import (
	"math"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

// Vec2 is a 2-D covariate vector.
type Vec2 [2]float64

// Add returns v + w.
func (v Vec2) Add(w Vec2) Vec2 {
	return Vec2{v[0] + w[0], v[1] + w[1]}
}

// Mat2 is a 2x2 matrix in row-major order.
type Mat2 [2][2]float64

// Spec parameterizes a two-component Gaussian mixture over 2-D covariates. Class 1 has
// prior Lam and mean M1; class 0 has mean M0; both share covariance Sigma.
type Spec struct {
	M1    Vec2
	M0    Vec2
	Sigma Mat2
	N     int
	Lam   float64
}

// Counts returns the class-1 and class-0 sample counts: n1 = floor(N*Lam), n0 = N-n1.
func (s Spec) Counts() (n1, n0 int) {
	n1 = int(math.Floor(float64(s.N) * s.Lam))
	return n1, s.N - n1
}

// WithN returns a copy of s drawing n samples.
func (s Spec) WithN(n int) Spec {
	s.N = n
	return s
}

// Validate checks everything except positive semi-definiteness of Sigma, which is
// checked when the sampler is built.
func (s Spec) Validate() error {
	if s.N < 0 {
		return errors.InvalidSpec("n", "must be non-negative, got %d", s.N)
	}
	if !inUnit(s.Lam) {
		return errors.InvalidSpec("lam", "must be in [0, 1], got %v", s.Lam)
	}
	for _, v := range []Vec2{s.M1, s.M0} {
		if !finite(v[0]) || !finite(v[1]) {
			return errors.InvalidSpec("mean", "must be finite, got %v", v)
		}
	}
	return nil
}

// PoisonSpec defines the trigger eta = Length*(cos Angle, sin Angle) and the
// per-sample infection probability Rho.
type PoisonSpec struct {
	Length float64
	Angle  float64
	Rho    float64
}

// Trigger returns the additive trigger vector. It is the same for every infected sample.
func (p PoisonSpec) Trigger() Vec2 {
	return Vec2{p.Length * math.Cos(p.Angle), p.Length * math.Sin(p.Angle)}
}

// Validate checks the trigger and the infection rate.
func (p PoisonSpec) Validate() error {
	if !finite(p.Length) || p.Length < 0 {
		return errors.InvalidSpec("length", "must be a finite non-negative number, got %v", p.Length)
	}
	if !finite(p.Angle) {
		return errors.InvalidSpec("angle", "must be finite, got %v", p.Angle)
	}
	if !inUnit(p.Rho) {
		return errors.InvalidSpec("rho", "must be in [0, 1], got %v", p.Rho)
	}
	return nil
}

// Sample is one labeled covariate; Y is 0 or 1.
type Sample struct {
	X Vec2
	Y int
}

// Dataset is an ordered sequence of samples. Features and labels stay paired index-wise.
type Dataset []Sample

// Covariates returns the covariates as rows.
func (d Dataset) Covariates() [][]float64 {
	xs := make([][]float64, len(d))
	for i, s := range d {
		xs[i] = []float64{s.X[0], s.X[1]}
	}
	return xs
}

// Labels returns the labels in order.
func (d Dataset) Labels() []int {
	ys := make([]int, len(d))
	for i, s := range d {
		ys[i] = s.Y
	}
	return ys
}

func inUnit(p float64) bool {
	return p >= 0 && p <= 1
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
