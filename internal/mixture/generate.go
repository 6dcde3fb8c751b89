package mixture

import (
	"math/rand/v2"
)

// GenerateClean draws floor(N*Lam) samples from Normal(M1, Sigma) labeled 1 followed by
// the remaining samples from Normal(M0, Sigma) labeled 0.
func GenerateClean(rng *rand.Rand, spec Spec) (Dataset, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	class1, err := NewGaussian(spec.M1, spec.Sigma)
	if err != nil {
		return nil, err
	}
	class0, err := NewGaussian(spec.M0, spec.Sigma)
	if err != nil {
		return nil, err
	}

	n1, n0 := spec.Counts()
	data := make(Dataset, 0, spec.N)
	for i := 0; i < n1; i++ {
		data = append(data, Sample{X: class1.Draw(rng), Y: 1})
	}
	for i := 0; i < n0; i++ {
		data = append(data, Sample{X: class0.Draw(rng), Y: 0})
	}
	return data, nil
}

// Poison infects each sample independently with probability p.Rho. An infected sample
// has the trigger added to its covariates and its label forced to 0, whatever it was.
// The returned mask marks infected positions; the input dataset is not modified.
func Poison(rng *rand.Rand, data Dataset, p PoisonSpec) (Dataset, []bool, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	eta := p.Trigger()

	out := make(Dataset, len(data))
	infected := make([]bool, len(data))
	for i, s := range data {
		// one Bernoulli draw per sample, in order, even when Rho is 0 or 1
		if rng.Float64() < p.Rho {
			infected[i] = true
			s = Sample{X: s.X.Add(eta), Y: 0}
		}
		out[i] = s
	}
	return out, infected, nil
}

// GenerateBackdoor draws a clean dataset and infects every sample. The infection rate
// in p is ignored: a backdoor set always has Rho = 1.
func GenerateBackdoor(rng *rand.Rand, spec Spec, p PoisonSpec) (Dataset, error) {
	clean, err := GenerateClean(rng, spec)
	if err != nil {
		return nil, err
	}
	p.Rho = 1
	data, _, err := Poison(rng, clean, p)
	return data, err
}
