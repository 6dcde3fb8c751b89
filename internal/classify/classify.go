// Package classify turns a conditional-mean estimator into a threshold-0.5 binary
// classifier and scores it with the zero-one loss.
package classify

import (
	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/kernreg"
	"github.com/kiteco/backdoor-sweep/internal/mixture"
)

// Threshold is the decision boundary: probabilities strictly above it predict class 1.
const Threshold = 0.5

// Predictor returns P(y = 1 | x) for each covariate row.
type Predictor interface {
	Predict(x [][]float64) ([]float64, error)
}

// Fitter fits a conditional-mean estimator of binary labels.
type Fitter interface {
	Fit(x [][]float64, y []float64) (Predictor, error)
}

// KernelFitter fits kernel regression estimators.
type KernelFitter struct {
	Options kernreg.Options
}

// Fit implements Fitter
func (k KernelFitter) Fit(x [][]float64, y []float64) (Predictor, error) {
	m, err := kernreg.Fit(x, y, k.Options)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Adapter fits estimators on datasets and scores them against test sets.
type Adapter struct {
	fitter Fitter
}

// NewAdapter wraps f.
func NewAdapter(f Fitter) Adapter {
	return Adapter{fitter: f}
}

// DefaultAdapter uses local-linear kernel regression with cross-validated bandwidths.
func DefaultAdapter() Adapter {
	return NewAdapter(KernelFitter{Options: kernreg.DefaultOptions})
}

// Fit binds an estimator to the dataset.
func (a Adapter) Fit(data mixture.Dataset) (Predictor, error) {
	labels := data.Labels()
	y := make([]float64, len(labels))
	for i, l := range labels {
		y[i] = float64(l)
	}
	p, err := a.fitter.Fit(data.Covariates(), y)
	if err != nil {
		if errors.IsEstimation(err) {
			return nil, err
		}
		return nil, &errors.EstimationFailure{Reason: "fit", Err: err}
	}
	return p, nil
}

// PredictAndScore thresholds the estimator's probabilities on test and returns the
// fraction of labels it gets wrong.
func PredictAndScore(p Predictor, test mixture.Dataset) (float64, error) {
	probs, err := p.Predict(test.Covariates())
	if err != nil {
		if errors.IsEstimation(err) {
			return 0, err
		}
		return 0, &errors.EstimationFailure{Reason: "predict", Err: err}
	}
	if len(probs) != len(test) {
		return 0, errors.Estimation("got %d predictions for %d test samples", len(probs), len(test))
	}
	return ZeroOneLoss(test.Labels(), Labels(probs))
}

// Labels maps probabilities to classes; exactly Threshold maps to 0.
func Labels(probs []float64) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p > Threshold {
			out[i] = 1
		}
	}
	return out
}

// ZeroOneLoss returns the fraction of positions where yTrue and yPred differ.
func ZeroOneLoss(yTrue, yPred []int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, errors.Errorf("label lengths differ: %d vs %d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, errors.Errorf("no labels to score")
	}
	var miss int
	for i := range yTrue {
		if yTrue[i] != yPred[i] {
			miss++
		}
	}
	return float64(miss) / float64(len(yTrue)), nil
}
