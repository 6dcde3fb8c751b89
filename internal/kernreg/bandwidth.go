package kernreg

import (
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

// normalReference returns 1.06 * sd_j * n^(-1/(4+d)), using the population standard
// deviation of each covariate.
func normalReference(x [][]float64) ([]float64, error) {
	n, dim := len(x), len(x[0])
	col := make([]float64, n)
	bw := make([]float64, dim)
	for j := 0; j < dim; j++ {
		for i, row := range x {
			col[i] = row[j]
		}
		_, variance := stat.MeanVariance(col, nil)
		sd := math.Sqrt(variance * float64(n-1) / float64(n))
		if sd == 0 || math.IsNaN(sd) {
			return nil, errors.Estimation("covariate %d has zero spread", j)
		}
		bw[j] = 1.06 * sd * math.Pow(float64(n), -1/float64(4+dim))
	}
	return bw, nil
}

// looError is the mean squared leave-one-out prediction error for bandwidths bw.
func (m *Model) looError(bw []float64) float64 {
	var sse float64
	for i, row := range m.x {
		r := m.y[i] - m.estimate(row, bw, i)
		sse += r * r
	}
	return sse / float64(len(m.x))
}

// crossValidate minimizes the leave-one-out error over log-bandwidths with Nelder-Mead,
// starting from the normal reference rule.
func (m *Model) crossValidate(start []float64) ([]float64, error) {
	x0 := make([]float64, len(start))
	for j, h := range start {
		x0[j] = math.Log(h)
	}
	fromLog := func(lx []float64) []float64 {
		bw := make([]float64, len(lx))
		for j, v := range lx {
			bw[j] = math.Exp(v)
		}
		return bw
	}

	problem := optimize.Problem{
		Func: func(lx []float64) float64 {
			bw := fromLog(lx)
			for _, h := range bw {
				if h == 0 || math.IsInf(h, 1) {
					return math.Inf(1)
				}
			}
			loss := m.looError(bw)
			if math.IsNaN(loss) {
				return math.Inf(1)
			}
			return loss
		},
	}
	settings := &optimize.Settings{
		MajorIterations: m.opts.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-8,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	lx, err := searchResult(result, err)
	if err != nil {
		return nil, err
	}
	return fromLog(lx), nil
}

// searchResult accepts a converged search, or one stopped by an iteration or evaluation
// limit, and rejects every other outcome.
func searchResult(result *optimize.Result, err error) ([]float64, error) {
	if result == nil || (err != nil && !result.Status.Early()) {
		return nil, &errors.EstimationFailure{Reason: "bandwidth search failed", Err: err}
	}
	if math.IsInf(result.F, 1) {
		return nil, errors.Estimation("no bandwidth gives a finite leave-one-out error")
	}
	return result.X, nil
}
