// Package experiment runs one poisoning trial: fit on clean and poisoned training data,
// then score both estimators on fresh clean and fully-backdoored test sets.
package experiment

import (
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/kiteco/backdoor-sweep/internal/classify"
	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/kitelog"
	"github.com/kiteco/backdoor-sweep/internal/mixture"
)

// DefaultTestSize is the size of each test set.
const DefaultTestSize = 1000

// RunContext carries everything a worker owns: its identity, its generator and its logger.
// Nothing in a trial reads process-wide random state.
type RunContext struct {
	Rank    int
	Workers int
	RNG     *rand.Rand
	Logger  *zap.Logger
}

// Params fixes one trial configuration.
type Params struct {
	Mixture mixture.Spec
	Poison  mixture.PoisonSpec
}

// Result holds the three error rates of one trial.
type Result struct {
	// Poisoned is the error of the poisoned-trained estimator on clean test data.
	Poisoned float64
	// Clean is the error of the clean-trained estimator on clean test data.
	Clean float64
	// Backdoor is the error of the poisoned-trained estimator on backdoored test data.
	Backdoor float64
}

// Row returns the result in persisted column order (r_poi, r_cl, r_bd).
func (r Result) Row() [3]float64 {
	return [3]float64{r.Poisoned, r.Clean, r.Backdoor}
}

// Runner executes trials.
type Runner struct {
	adapter  classify.Adapter
	testSize int
}

// NewRunner returns a Runner that scores on test sets of testSize samples.
func NewRunner(adapter classify.Adapter, testSize int) Runner {
	if testSize <= 0 {
		testSize = DefaultTestSize
	}
	return Runner{adapter: adapter, testSize: testSize}
}

// Run executes one trial. Any generation or fitting failure aborts the trial.
func (r Runner) Run(rc *RunContext, p Params) (Result, error) {
	if rc == nil || rc.RNG == nil {
		return Result{}, errors.Errorf("run context has no generator")
	}
	rng := rc.RNG

	cleanTrain, err := mixture.GenerateClean(rng, p.Mixture)
	if err != nil {
		return Result{}, errors.Wrapf(err, "generating clean training set")
	}
	poisonTrain, infected, err := mixture.Poison(rng, cleanTrain, p.Poison)
	if err != nil {
		return Result{}, errors.Wrapf(err, "poisoning training set")
	}

	cleanModel, err := r.adapter.Fit(cleanTrain)
	if err != nil {
		return Result{}, errors.Wrapf(err, "fitting clean estimator")
	}
	poisonModel, err := r.adapter.Fit(poisonTrain)
	if err != nil {
		return Result{}, errors.Wrapf(err, "fitting poisoned estimator")
	}

	testSpec := p.Mixture.WithN(r.testSize)
	cleanTest, err := mixture.GenerateClean(rng, testSpec)
	if err != nil {
		return Result{}, errors.Wrapf(err, "generating clean test set")
	}
	backdoorTest, err := mixture.GenerateBackdoor(rng, testSpec, p.Poison)
	if err != nil {
		return Result{}, errors.Wrapf(err, "generating backdoor test set")
	}

	var res Result
	if res.Poisoned, err = classify.PredictAndScore(poisonModel, cleanTest); err != nil {
		return Result{}, errors.Wrapf(err, "scoring poisoned estimator on clean data")
	}
	if res.Clean, err = classify.PredictAndScore(cleanModel, cleanTest); err != nil {
		return Result{}, errors.Wrapf(err, "scoring clean estimator on clean data")
	}
	if res.Backdoor, err = classify.PredictAndScore(poisonModel, backdoorTest); err != nil {
		return Result{}, errors.Wrapf(err, "scoring poisoned estimator on backdoor data")
	}

	kitelog.OrNop(rc.Logger).Debug("trial",
		zap.Int("rank", rc.Rank),
		zap.Int("infected", countTrue(infected)),
		zap.Float64("r_poi", res.Poisoned),
		zap.Float64("r_cl", res.Clean),
		zap.Float64("r_bd", res.Backdoor))
	return res, nil
}

func countTrue(bs []bool) int {
	var n int
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
