package gibbs

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"pulsaroutlier/internal/errors"
	"pulsaroutlier/internal/linalg"
)

// updateB draws b from N(Σ⁻¹d, Σ⁻¹). When Σ cannot be inverted the
// previous draw is kept.
func (s *Sampler) updateB(x []float64) {
	s.ensureCache(x, s.nvec(s.model.NoiseDiag(x)))

	phiinv, _ := s.model.PhiInv(x)
	sigma := mat.NewSymDense(s.cache.tnt.SymmetricDim(), nil)
	sigma.AddSym(s.cache.tnt, phiinv)

	g, err := linalg.ConditionalGaussian(sigma, s.cache.d)
	if err != nil {
		s.log.Debug("keeping latent coefficients", zap.Error(errors.Numerical(err, "conditional draw of b")))
		return
	}
	s.st.B = g.Sample(s.src)
}
