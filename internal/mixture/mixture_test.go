package mixture

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
}

func defaultSpec() Spec {
	return Spec{
		M1:    Vec2{-3, 0},
		M0:    Vec2{3, 0},
		Sigma: Mat2{{3, 0}, {0, 0.5}},
		N:     100,
		Lam:   0.5,
	}
}

func TestGenerateCleanCounts(t *testing.T) {
	rng := testRNG(1)
	for _, tc := range []struct {
		n   int
		lam float64
		n1  int
	}{
		{100, 0.5, 50},
		{101, 0.5, 50},
		{7, 0.3, 2},
		{10, 0, 0},
		{10, 1, 10},
		{0, 0.5, 0},
		{1000, 0.333, 333},
	} {
		spec := defaultSpec()
		spec.N, spec.Lam = tc.n, tc.lam

		data, err := GenerateClean(rng, spec)
		require.NoError(t, err)
		require.Len(t, data, tc.n)

		for i, s := range data {
			if i < tc.n1 {
				assert.Equal(t, 1, s.Y, "n=%d lam=%v index %d", tc.n, tc.lam, i)
			} else {
				assert.Equal(t, 0, s.Y, "n=%d lam=%v index %d", tc.n, tc.lam, i)
			}
		}
	}
}

func TestGenerateCleanMoments(t *testing.T) {
	spec := defaultSpec()
	spec.N = 20000

	data, err := GenerateClean(testRNG(2), spec)
	require.NoError(t, err)

	var sum1, sum0 Vec2
	var varX, varY float64
	for _, s := range data {
		m := spec.M0
		if s.Y == 1 {
			m = spec.M1
			sum1 = sum1.Add(s.X)
		} else {
			sum0 = sum0.Add(s.X)
		}
		varX += (s.X[0] - m[0]) * (s.X[0] - m[0])
		varY += (s.X[1] - m[1]) * (s.X[1] - m[1])
	}
	half := float64(spec.N / 2)
	assert.InDelta(t, -3, sum1[0]/half, 0.1)
	assert.InDelta(t, 3, sum0[0]/half, 0.1)
	assert.InDelta(t, 0, sum1[1]/half, 0.05)
	assert.InDelta(t, 3, varX/float64(spec.N), 0.15)
	assert.InDelta(t, 0.5, varY/float64(spec.N), 0.05)
}

func TestGenerateCleanInvalid(t *testing.T) {
	rng := testRNG(3)

	spec := defaultSpec()
	spec.N = -1
	_, err := GenerateClean(rng, spec)
	assert.True(t, errors.IsInvalidSpec(err))

	spec = defaultSpec()
	spec.Lam = 1.5
	_, err = GenerateClean(rng, spec)
	assert.True(t, errors.IsInvalidSpec(err))

	spec = defaultSpec()
	spec.Sigma = Mat2{{1, 2}, {2, 1}}
	_, err = GenerateClean(rng, spec)
	assert.True(t, errors.IsInvalidSpec(err), "indefinite covariance")

	spec = defaultSpec()
	spec.Sigma = Mat2{{1, 0.5}, {0, 1}}
	_, err = GenerateClean(rng, spec)
	assert.True(t, errors.IsInvalidSpec(err), "asymmetric covariance")
}

func TestSingularCovariance(t *testing.T) {
	spec := defaultSpec()
	spec.Sigma = Mat2{{1, 1}, {1, 1}}
	spec.N = 50

	data, err := GenerateClean(testRNG(4), spec)
	require.NoError(t, err)
	for _, s := range data {
		m := spec.M0
		if s.Y == 1 {
			m = spec.M1
		}
		// all mass lies on the line x - m_x == y - m_y
		assert.InDelta(t, s.X[0]-m[0], s.X[1]-m[1], 1e-9)
	}
}

func TestPoisonShiftAndLabel(t *testing.T) {
	rng := testRNG(5)
	clean, err := GenerateClean(rng, defaultSpec())
	require.NoError(t, err)

	p := PoisonSpec{Length: 3, Angle: math.Pi / 4, Rho: 0.5}
	eta := p.Trigger()
	poisoned, infected, err := Poison(rng, clean, p)
	require.NoError(t, err)
	require.Len(t, poisoned, len(clean))
	require.Len(t, infected, len(clean))

	var sawFlip bool
	for i := range clean {
		if !infected[i] {
			assert.Equal(t, clean[i], poisoned[i])
			continue
		}
		assert.Equal(t, 0, poisoned[i].Y)
		assert.Equal(t, clean[i].X[0]+eta[0], poisoned[i].X[0])
		assert.Equal(t, clean[i].X[1]+eta[1], poisoned[i].X[1])
		if clean[i].Y == 1 {
			sawFlip = true
		}
	}
	assert.True(t, sawFlip, "expected at least one class-1 sample to be flipped")
}

func TestPoisonDoesNotMutateInput(t *testing.T) {
	rng := testRNG(6)
	clean, err := GenerateClean(rng, defaultSpec())
	require.NoError(t, err)
	orig := append(Dataset(nil), clean...)

	_, _, err = Poison(rng, clean, PoisonSpec{Length: 5, Rho: 1})
	require.NoError(t, err)
	assert.Equal(t, orig, clean)
}

func TestPoisonInfectionRate(t *testing.T) {
	rng := testRNG(7)
	spec := defaultSpec()
	spec.N = 4000
	clean, err := GenerateClean(rng, spec)
	require.NoError(t, err)

	for _, rho := range []float64{0, 0.05, 0.2, 0.5, 0.9, 1} {
		var count int
		for rep := 0; rep < 5; rep++ {
			_, infected, err := Poison(rng, clean, PoisonSpec{Length: 1, Rho: rho})
			require.NoError(t, err)
			for _, inf := range infected {
				if inf {
					count++
				}
			}
		}
		frac := float64(count) / float64(5*spec.N)
		assert.InDelta(t, rho, frac, 0.02, "rho=%v", rho)
	}
}

func TestPoisonInvalid(t *testing.T) {
	rng := testRNG(8)
	for _, p := range []PoisonSpec{
		{Length: 1, Rho: -0.1},
		{Length: 1, Rho: 1.1},
		{Length: -1, Rho: 0.5},
		{Length: math.NaN(), Rho: 0.5},
	} {
		_, _, err := Poison(rng, Dataset{{}}, p)
		assert.True(t, errors.IsInvalidSpec(err), "%+v", p)
	}
}

func TestGenerateBackdoorForcesInfection(t *testing.T) {
	spec := defaultSpec()
	spec.N = 1000
	for _, rho := range []float64{0, 0.2, 1} {
		p := PoisonSpec{Length: 5, Angle: math.Pi / 2, Rho: rho}

		// replay the same stream to recover the clean draw underneath the backdoor set
		clean, err := GenerateClean(testRNG(9), spec)
		require.NoError(t, err)
		backdoor, err := GenerateBackdoor(testRNG(9), spec, p)
		require.NoError(t, err)
		require.Len(t, backdoor, spec.N)

		eta := p.Trigger()
		for i, s := range backdoor {
			assert.Equal(t, 0, s.Y)
			assert.Equal(t, clean[i].X.Add(eta), s.X)
		}
	}
}

func TestTrigger(t *testing.T) {
	eta := PoisonSpec{Length: 2, Angle: math.Pi}.Trigger()
	assert.InDelta(t, -2, eta[0], 1e-12)
	assert.InDelta(t, 0, eta[1], 1e-12)
}
