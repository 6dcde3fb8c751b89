package mixture

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

// relative tolerance for treating slightly negative eigenvalues as zero
const psdTolerance = 1e-10

// Gaussian draws from Normal(mean, sigma) for a positive semi-definite sigma. Samples
// are mean + A z, where A = V sqrt(Λ) comes from the eigendecomposition of sigma, so
// singular covariances are supported.
type Gaussian struct {
	mean Vec2
	a    Mat2
}

// NewGaussian factorizes sigma, failing with an InvalidSpecError if it is not symmetric
// positive semi-definite.
func NewGaussian(mean Vec2, sigma Mat2) (*Gaussian, error) {
	for _, row := range sigma {
		for _, v := range row {
			if !finite(v) {
				return nil, errors.InvalidSpec("sigma", "must be finite, got %v", sigma)
			}
		}
	}
	scale := math.Max(math.Max(math.Abs(sigma[0][0]), math.Abs(sigma[1][1])), math.Abs(sigma[0][1]))
	scale = math.Max(scale, math.Abs(sigma[1][0]))
	if math.Abs(sigma[0][1]-sigma[1][0]) > psdTolerance*math.Max(scale, 1) {
		return nil, errors.InvalidSpec("sigma", "must be symmetric, got %v", sigma)
	}

	sym := mat.NewSymDense(2, []float64{
		sigma[0][0], sigma[0][1],
		sigma[0][1], sigma[1][1],
	})
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, errors.InvalidSpec("sigma", "eigendecomposition failed for %v", sigma)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	tol := psdTolerance * math.Max(scale, 1)
	var a Mat2
	for j, lambda := range vals {
		if lambda < -tol {
			return nil, errors.InvalidSpec("sigma", "must be positive semi-definite, eigenvalue %v", lambda)
		}
		if lambda < tol {
			lambda = 0
		}
		root := math.Sqrt(lambda)
		for i := 0; i < 2; i++ {
			a[i][j] = vecs.At(i, j) * root
		}
	}
	return &Gaussian{mean: mean, a: a}, nil
}

// Draw returns one sample.
func (g *Gaussian) Draw(rng *rand.Rand) Vec2 {
	z0, z1 := rng.NormFloat64(), rng.NormFloat64()
	return Vec2{
		g.mean[0] + g.a[0][0]*z0 + g.a[0][1]*z1,
		g.mean[1] + g.a[1][0]*z0 + g.a[1][1]*z1,
	}
}
