package gibbs

import (
	"math"

	"pulsaroutlier/domain/noise"
)

// Jump scales relative to the base step, and how often each is proposed
var (
	jumpScales = [5]float64{0.1, 0.5, 1.0, 3.0, 10.0}
	jumpProbs  = [5]float64{0.1, 0.15, 0.5, 0.15, 0.1}
)

// metropolis runs steps single-coordinate Gaussian random-walk updates over
// the coordinates idx of x and returns the final position. x is not modified.
// A proposal with -Inf log-likelihood or log-prior is always rejected.
func (s *Sampler) metropolis(x []float64, idx []int, steps int, loglike func([]float64) float64) []float64 {
	if len(idx) == 0 || steps == 0 {
		return x
	}

	cur := append([]float64(nil), x...)
	q := make([]float64, len(x))
	lnlike0, lnprior0 := loglike(cur), noise.LogPrior(s.params, cur)
	sigma := 0.05 * float64(len(idx))

	for step := 0; step < steps; step++ {
		copy(q, cur)
		scale := jumpScales[int(s.jumps.Rand())]
		j := idx[s.rnd.IntN(len(idx))]
		q[j] += s.rnd.NormFloat64() * sigma * scale

		lnprior1 := noise.LogPrior(s.params, q)
		lnlike1 := math.Inf(-1)
		if !math.IsInf(lnprior1, -1) {
			lnlike1 = loglike(q)
		}

		diff := (lnlike1 + lnprior1) - (lnlike0 + lnprior0)
		if diff > math.Log(s.rnd.Float64()) {
			cur, q = q, cur
			lnlike0, lnprior0 = lnlike1, lnprior1
		}
	}
	return cur
}
