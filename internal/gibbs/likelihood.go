package gibbs

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"pulsaroutlier/internal/errors"
	"pulsaroutlier/internal/linalg"
)

// nvec returns the inflated white-noise variances alpha^z · N0
func (s *Sampler) nvec(n0 []float64) []float64 {
	out := make([]float64, len(n0))
	for i, v := range n0 {
		out[i] = v
		if s.st.Z[i] == 1 {
			out[i] *= s.st.Alpha[i]
		}
	}
	return out
}

// predicted returns T·b
func (s *Sampler) predicted(basis *mat.Dense) []float64 {
	out := mat.NewVecDense(s.nobs, nil)
	out.MulVec(basis, mat.NewVecDense(len(s.st.B), s.st.B))
	return out.RawVector().Data
}

// whiteLogLikelihood is the likelihood of r - T·b under the inflated white
// noise alone, holding b fixed
func (s *Sampler) whiteLogLikelihood(x []float64) float64 {
	nvec := s.nvec(s.model.NoiseDiag(x))
	mean := s.predicted(s.model.Basis(x))

	var logdet, rNr float64
	for i, n := range nvec {
		yred := s.r[i] - mean[i]
		logdet += math.Log(n)
		rNr += yred * yred / n
	}
	return -0.5 * (logdet + rNr)
}

// logLikelihood is the likelihood with b marginalised:
// -½(log|N| + rᵀN⁻¹r) + ½(dᵀΣ⁻¹d - log|Σ| - log|Φ|), Σ = TᵀN⁻¹T + Φ⁻¹.
// It returns -Inf when Σ is not positive definite.
func (s *Sampler) logLikelihood(x []float64) float64 {
	nvec := s.nvec(s.model.NoiseDiag(x))
	s.ensureCache(x, nvec)

	var logdet, rNr float64
	for i, n := range nvec {
		logdet += math.Log(n)
		rNr += s.r[i] * s.r[i] / n
	}
	loglike := -0.5 * (logdet + rNr)

	phiinv, logdetPhi := s.model.PhiInv(x)
	sigma := mat.NewSymDense(s.cache.tnt.SymmetricDim(), nil)
	sigma.AddSym(s.cache.tnt, phiinv)

	expval, logdetSigma, err := linalg.CholeskySolve(sigma, s.cache.d)
	if err != nil {
		s.log.Debug("rejecting hyperparameters", zap.Error(errors.Numerical(err, "marginal likelihood")))
		return math.Inf(-1)
	}
	return loglike + 0.5*(mat.Dot(s.cache.d, expval)-logdetSigma-logdetPhi)
}

// ensureCache computes TᵀN⁻¹T and TᵀN⁻¹r once per sweep. Both depend only on
// the white-noise parameters and the outlier variables, which are fixed
// after the white-noise update.
func (s *Sampler) ensureCache(x []float64, nvec []float64) {
	if s.cache.tnt != nil {
		return
	}
	basis := s.model.Basis(x)
	_, m := basis.Dims()

	scaled := mat.NewDense(s.nobs, m, nil)
	rn := mat.NewVecDense(s.nobs, nil)
	for i, n := range nvec {
		w := 1 / math.Sqrt(n)
		for j := 0; j < m; j++ {
			scaled.Set(i, j, basis.At(i, j)*w)
		}
		rn.SetVec(i, s.r[i]/n)
	}

	tnt := mat.NewSymDense(m, nil)
	tnt.SymOuterK(1, scaled.T())
	d := mat.NewVecDense(m, nil)
	d.MulVec(basis.T(), rn)

	s.cache.tnt = tnt
	s.cache.d = d
}
