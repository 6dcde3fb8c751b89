package kernreg

import (
	stderrors "errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

func uniformPoints(rng *rand.Rand, n int) [][]float64 {
	x := make([][]float64, n)
	for i := range x {
		x[i] = []float64{rng.Float64()*4 - 2, rng.Float64()*2 - 1}
	}
	return x
}

func TestFitErrors(t *testing.T) {
	_, err := Fit([][]float64{{0, 0}, {1, 1}}, []float64{1}, DefaultOptions)
	assert.True(t, errors.IsEstimation(err), "length mismatch")

	_, err = Fit([][]float64{{0, 0}}, []float64{1}, DefaultOptions)
	assert.True(t, errors.IsEstimation(err), "too few samples")

	_, err = Fit([][]float64{{0, 1}, {0, 2}, {0, 3}}, []float64{1, 0, 1}, DefaultOptions)
	assert.True(t, errors.IsEstimation(err), "zero spread in first covariate")

	_, err = Fit([][]float64{{0, 1}, {math.NaN(), 2}}, []float64{1, 0}, DefaultOptions)
	assert.True(t, errors.IsEstimation(err), "non-finite covariate")

	_, err = Fit([][]float64{{0, 1}, {1, 2}}, []float64{1, 0}, Options{RegType: "cubic", Bandwidth: NormalReference})
	assert.True(t, errors.IsEstimation(err), "unknown regression type")
}

func TestNormalReference(t *testing.T) {
	x := [][]float64{{0, 0}, {2, 4}}
	m, err := Fit(x, []float64{0, 1}, Options{RegType: LocalConstant, Bandwidth: NormalReference})
	require.NoError(t, err)

	factor := 1.06 * math.Pow(2, -1.0/6)
	bw := m.Bandwidth()
	assert.InDelta(t, 1*factor, bw[0], 1e-12)
	assert.InDelta(t, 2*factor, bw[1], 1e-12)
}

func TestLocalLinearReproducesLinearFunctions(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	x := uniformPoints(rng, 80)
	f := func(p []float64) float64 { return 0.5 + 0.1*p[0] - 0.2*p[1] }
	y := make([]float64, len(x))
	for i, p := range x {
		y[i] = f(p)
	}

	for _, bwm := range []BandwidthMethod{NormalReference, CrossValidation} {
		m, err := Fit(x, y, Options{RegType: LocalLinear, Bandwidth: bwm, MaxIterations: 100})
		require.NoError(t, err)

		queries := uniformPoints(rng, 20)
		preds, err := m.Predict(queries)
		require.NoError(t, err)
		for i, q := range queries {
			assert.InDelta(t, f(q), preds[i], 1e-8, "bandwidth method %s", bwm)
		}
	}
}

func TestLocalConstantOfConstant(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	x := uniformPoints(rng, 30)
	y := make([]float64, len(x))
	for i := range y {
		y[i] = 0.25
	}
	m, err := Fit(x, y, Options{RegType: LocalConstant, Bandwidth: NormalReference})
	require.NoError(t, err)

	preds, err := m.Predict([][]float64{{0, 0}, {100, -100}})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, preds[0], 1e-12)
	// far outside the data the rescaled weights still do not underflow
	assert.InDelta(t, 0.25, preds[1], 1e-12)
}

func TestSeparatedClasses(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	var x [][]float64
	var y []float64
	for i := 0; i < 60; i++ {
		x = append(x, []float64{-3 + rng.NormFloat64()*0.5, rng.NormFloat64()})
		y = append(y, 1)
		x = append(x, []float64{3 + rng.NormFloat64()*0.5, rng.NormFloat64()})
		y = append(y, 0)
	}

	m, err := Fit(x, y, DefaultOptions)
	require.NoError(t, err)

	preds, err := m.Predict([][]float64{{-3, 0}, {3, 0}})
	require.NoError(t, err)
	assert.Greater(t, preds[0], 0.9)
	assert.Less(t, preds[1], 0.1)
	for _, p := range preds {
		assert.True(t, p >= 0 && p <= 1)
	}
}

func TestCrossValidationImprovesOnReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	x := uniformPoints(rng, 60)
	y := make([]float64, len(x))
	for i, p := range x {
		if p[0]*p[0]+p[1] > 1 {
			y[i] = 1
		}
	}

	ref, err := Fit(x, y, Options{RegType: LocalLinear, Bandwidth: NormalReference})
	require.NoError(t, err)
	cv, err := Fit(x, y, DefaultOptions)
	require.NoError(t, err)

	assert.LessOrEqual(t, cv.looError(cv.Bandwidth()), ref.looError(ref.Bandwidth())+1e-12)
}

func TestFitDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	x := uniformPoints(rng, 40)
	y := make([]float64, len(x))
	for i, p := range x {
		if p[1] > 0 {
			y[i] = 1
		}
	}
	q := uniformPoints(rng, 10)

	m1, err := Fit(x, y, DefaultOptions)
	require.NoError(t, err)
	m2, err := Fit(x, y, DefaultOptions)
	require.NoError(t, err)

	p1, err := m1.Predict(q)
	require.NoError(t, err)
	p2, err := m2.Predict(q)
	require.NoError(t, err)
	assert.Equal(t, m1.Bandwidth(), m2.Bandwidth())
	assert.Equal(t, p1, p2)
}

func TestPredictDimensionMismatch(t *testing.T) {
	m, err := Fit([][]float64{{0, 0}, {1, 2}, {2, 1}}, []float64{0, 1, 1}, Options{RegType: LocalConstant, Bandwidth: NormalReference})
	require.NoError(t, err)
	_, err = m.Predict([][]float64{{1}})
	assert.True(t, errors.IsEstimation(err))
}

func TestSearchResult(t *testing.T) {
	at := func(f float64, status optimize.Status) *optimize.Result {
		return &optimize.Result{Location: optimize.Location{X: []float64{0.5, -1}, F: f}, Status: status}
	}
	failed := stderrors.New("linesearch failed")

	x, err := searchResult(at(0.2, optimize.FunctionConvergence), nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1}, x)

	// a limit stops the search early but keeps the best point reached
	x, err = searchResult(at(0.2, optimize.IterationLimit), stderrors.New("iteration limit"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1}, x)

	_, err = searchResult(at(0.2, optimize.Failure), failed)
	assert.True(t, errors.IsEstimation(err))
	assert.True(t, errors.Is(err, failed))

	_, err = searchResult(nil, failed)
	assert.True(t, errors.IsEstimation(err))

	_, err = searchResult(at(math.Inf(1), optimize.FunctionConvergence), nil)
	assert.True(t, errors.IsEstimation(err))
}
