// Package kernreg fits nonparametric conditional-mean estimators with a Gaussian
// product kernel over continuous covariates.
package kernreg

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

// RegType selects the local polynomial degree.
type RegType string

const (
	// LocalLinear fits a weighted linear model around each query point.
	LocalLinear RegType = "ll"
	// LocalConstant is the Nadaraya-Watson weighted mean.
	LocalConstant RegType = "lc"
)

// BandwidthMethod selects how bandwidths are chosen.
type BandwidthMethod string

const (
	// CrossValidation minimizes the leave-one-out squared error.
	CrossValidation BandwidthMethod = "cv_ls"
	// NormalReference uses 1.06 * sd * n^(-1/(4+d)) per covariate.
	NormalReference BandwidthMethod = "normal_reference"
)

// Options for Fit.
type Options struct {
	RegType   RegType
	Bandwidth BandwidthMethod
	// MaxIterations bounds the bandwidth search.
	MaxIterations int
}

// DefaultOptions are local-linear regression with cross-validated bandwidths.
var DefaultOptions = Options{
	RegType:       LocalLinear,
	Bandwidth:     CrossValidation,
	MaxIterations: 500,
}

// Model is a fitted estimator bound to its training data.
type Model struct {
	opts Options
	x    [][]float64
	y    []float64
	bw   []float64
	dim  int
}

// Fit binds an estimator to (x, y) and selects its bandwidths.
func Fit(x [][]float64, y []float64, opts Options) (*Model, error) {
	if len(x) != len(y) {
		return nil, errors.Estimation("got %d covariate rows but %d responses", len(x), len(y))
	}
	if len(x) < 2 {
		return nil, errors.Estimation("need at least 2 samples, got %d", len(x))
	}
	dim := len(x[0])
	if dim == 0 {
		return nil, errors.Estimation("covariates have no columns")
	}
	for i, row := range x {
		if len(row) != dim {
			return nil, errors.Estimation("row %d has %d columns, expected %d", i, len(row), dim)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Estimation("row %d has a non-finite covariate", i)
			}
		}
	}
	switch opts.RegType {
	case LocalLinear, LocalConstant:
	default:
		return nil, errors.Estimation("unknown regression type %q", opts.RegType)
	}

	m := &Model{opts: opts, x: x, y: y, dim: dim}

	ref, err := normalReference(x)
	if err != nil {
		return nil, err
	}
	switch opts.Bandwidth {
	case NormalReference:
		m.bw = ref
	case CrossValidation:
		m.bw, err = m.crossValidate(ref)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Estimation("unknown bandwidth method %q", opts.Bandwidth)
	}
	return m, nil
}

// Bandwidth returns the selected per-covariate bandwidths.
func (m *Model) Bandwidth() []float64 {
	return append([]float64(nil), m.bw...)
}

// Predict returns the estimated conditional mean at each query row, clamped to [0, 1].
func (m *Model) Predict(xs [][]float64) ([]float64, error) {
	out := make([]float64, len(xs))
	for i, q := range xs {
		if len(q) != m.dim {
			return nil, errors.Estimation("query row %d has %d columns, expected %d", i, len(q), m.dim)
		}
		out[i] = clamp(m.estimate(q, m.bw, -1))
	}
	return out, nil
}

// estimate evaluates the regression at q, leaving out training index skip (or none if
// skip < 0).
func (m *Model) estimate(q []float64, bw []float64, skip int) float64 {
	w := m.weights(q, bw, skip)
	if m.opts.RegType == LocalLinear {
		if v, ok := m.localLinear(q, w, skip); ok {
			return v
		}
	}
	return localConstant(m.y, w, skip)
}

// weights returns Gaussian product kernel weights, rescaled so the nearest sample has
// weight 1. The rescaling cancels in both estimators and keeps the weights from all
// underflowing at small bandwidths.
func (m *Model) weights(q []float64, bw []float64, skip int) []float64 {
	w := make([]float64, len(m.x))
	minExp := math.Inf(1)
	for i, row := range m.x {
		if i == skip {
			continue
		}
		var e float64
		for j, v := range row {
			u := (v - q[j]) / bw[j]
			e += u * u
		}
		w[i] = e
		if e < minExp {
			minExp = e
		}
	}
	for i := range w {
		if i == skip {
			w[i] = 0
			continue
		}
		w[i] = math.Exp(-0.5 * (w[i] - minExp))
	}
	return w
}

func localConstant(y, w []float64, skip int) float64 {
	var num, den float64
	for i, wi := range w {
		if i == skip {
			continue
		}
		num += wi * y[i]
		den += wi
	}
	return num / den
}

// localLinear solves the weighted least squares problem for an intercept and slopes in
// the offsets x_i - q; the intercept is the estimate at q.
func (m *Model) localLinear(q []float64, w []float64, skip int) (float64, bool) {
	p := m.dim + 1
	a := mat.NewDense(p, p, nil)
	b := mat.NewVecDense(p, nil)
	z := make([]float64, p)
	for i, row := range m.x {
		if i == skip || w[i] == 0 {
			continue
		}
		z[0] = 1
		for j, v := range row {
			z[j+1] = v - q[j]
		}
		for r := 0; r < p; r++ {
			b.SetVec(r, b.AtVec(r)+w[i]*z[r]*m.y[i])
			for c := 0; c < p; c++ {
				a.Set(r, c, a.At(r, c)+w[i]*z[r]*z[c])
			}
		}
	}

	var beta mat.VecDense
	if err := beta.SolveVec(a, b); err != nil {
		return 0, false
	}
	v := beta.AtVec(0)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func clamp(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
