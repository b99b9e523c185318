// Package linalg holds the factorizations used to sample the latent
// coefficients and evaluate the marginal likelihood.
package linalg

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrSingular is returned when neither the SVD nor the QR path yields a usable inverse.
	ErrSingular = errors.New("linalg: matrix is numerically singular")
	// ErrNotPositiveDefinite is returned when a Cholesky factorization fails.
	ErrNotPositiveDefinite = errors.New("linalg: matrix is not positive definite")
)

// Gaussian is a multivariate normal N(Mean, L·Lᵀ)
type Gaussian struct {
	Mean *mat.VecDense
	L    *mat.Dense
}

// Dim is the dimension of the distribution
func (g *Gaussian) Dim() int { return g.Mean.Len() }

// Sample draws Mean + L·ε with ε ~ N(0, I)
func (g *Gaussian) Sample(src rand.Source) []float64 {
	rnd := rand.New(src)
	n := g.Mean.Len()
	eps := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		eps.SetVec(i, rnd.NormFloat64())
	}
	out := mat.NewVecDense(n, nil)
	out.MulVec(g.L, eps)
	out.AddVec(out, g.Mean)
	return out.RawVector().Data
}

// ConditionalGaussian returns the distribution N(Σ⁻¹d, Σ⁻¹).
//
// The SVD of Σ is tried first and rejected when Σ is numerically rank
// deficient. The fallback inverts Σ through its QR factorization and
// whitens the approximate inverse with a second SVD.
func ConditionalGaussian(sigma mat.Symmetric, d mat.Vector) (*Gaussian, error) {
	g, err := svdGaussian(sigma, d)
	if err == nil {
		return g, nil
	}
	return qrGaussian(sigma, d)
}

// svdGaussian uses Σ = U·S·Uᵀ, so Σ⁻¹ = U·S⁻¹·Uᵀ and L = U·S^(-1/2)
func svdGaussian(sigma mat.Symmetric, d mat.Vector) (*Gaussian, error) {
	n := sigma.SymmetricDim()
	var svd mat.SVD
	if !svd.Factorize(sigma, mat.SVDThin) {
		return nil, ErrSingular
	}
	s := svd.Values(nil)
	if len(s) == 0 || s[0] == 0 || s[n-1] <= float64(n)*eps*s[0] {
		return nil, ErrSingular
	}
	var u mat.Dense
	svd.UTo(&u)

	l := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			l.Set(i, j, u.At(i, j)/math.Sqrt(s[j]))
		}
	}

	// mean = U·S⁻¹·Uᵀ·d
	utd := mat.NewVecDense(n, nil)
	utd.MulVec(u.T(), d)
	for j := 0; j < n; j++ {
		utd.SetVec(j, utd.AtVec(j)/s[j])
	}
	mean := mat.NewVecDense(n, nil)
	mean.MulVec(&u, utd)

	if !finiteVec(mean) || !finiteDense(l) {
		return nil, ErrSingular
	}
	return &Gaussian{Mean: mean, L: l}, nil
}

func qrGaussian(sigma mat.Symmetric, d mat.Vector) (*Gaussian, error) {
	n := sigma.SymmetricDim()
	var qr mat.QR
	qr.Factorize(sigma)

	inv := mat.NewDense(n, n, nil)
	if err := qr.SolveTo(inv, false, eye(n)); err != nil {
		// An ill-conditioned R still yields a solution; a zero pivot does not.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, ErrSingular
		}
	}
	if !finiteDense(inv) {
		return nil, ErrSingular
	}

	mean := mat.NewVecDense(n, nil)
	mean.MulVec(inv, d)

	var svd mat.SVD
	if !svd.Factorize(inv, mat.SVDThin) {
		return nil, ErrSingular
	}
	s := svd.Values(nil)
	var u mat.Dense
	svd.UTo(&u)

	l := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			l.Set(i, j, u.At(i, j)*math.Sqrt(s[j]))
		}
	}
	if !finiteVec(mean) || !finiteDense(l) {
		return nil, ErrSingular
	}
	return &Gaussian{Mean: mean, L: l}, nil
}

// CholeskySolve returns x = Σ⁻¹d and log|Σ|
func CholeskySolve(sigma mat.Symmetric, d mat.Vector) (*mat.VecDense, float64, error) {
	var chol mat.Cholesky
	if !chol.Factorize(sigma) {
		return nil, 0, ErrNotPositiveDefinite
	}
	x := mat.NewVecDense(sigma.SymmetricDim(), nil)
	if err := chol.SolveVecTo(x, d); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, 0, ErrNotPositiveDefinite
		}
	}
	logDet := chol.LogDet()
	if !finiteVec(x) || math.IsNaN(logDet) || math.IsInf(logDet, 0) {
		return nil, 0, ErrNotPositiveDefinite
	}
	return x, logDet, nil
}

const eps = 0x1p-52

func eye(n int) *mat.DiagDense {
	diag := make([]float64, n)
	for i := range diag {
		diag[i] = 1
	}
	return mat.NewDiagDense(n, diag)
}

func finiteVec(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func finiteDense(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x := m.At(i, j)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}
