package gibbs

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"pulsaroutlier/domain/noise"
)

// updateTheta draws the outlier fraction from its Beta conditional. Tak,
// Ellis & Ghosh (2018) use pseudo-counts n·m and n·(1-m).
func (s *Sampler) updateTheta() {
	if !s.cfg.Model.IsMixture() {
		return
	}
	n := float64(s.nobs)
	mk, k1mm := 1.0, 1.0
	if s.cfg.ThetaPrior == noise.ThetaPriorBeta {
		mk = n * s.cfg.OutlierFraction
		k1mm = n * (1 - s.cfg.OutlierFraction)
	}
	nz := sum(s.st.Z)
	s.st.Theta = distuv.Beta{Alpha: nz + mk, Beta: n - nz + k1mm, Src: s.src}.Rand()
}

// updateZ draws each indicator from its posterior mixture weight, which is
// also recorded as pout. A 0/0 weight counts as an outlier.
func (s *Sampler) updateZ(x []float64) {
	if !s.cfg.Model.IsMixture() {
		return
	}
	n0 := s.model.NoiseDiag(x)
	mean := s.predicted(s.model.Basis(x))
	theta := s.st.Theta

	for i := range s.r {
		resid := s.r[i] - mean[i]
		var top float64
		if s.cfg.Model == noise.ModelVVH17 {
			top = theta / s.cfg.PSpin
		} else {
			top = theta * normalProb(resid, s.st.Alpha[i]*n0[i])
		}
		q := outlierWeight(top, (1-theta)*normalProb(resid, n0[i]))
		s.st.Pout[i] = q
		s.st.Z[i] = distuv.Bernoulli{P: q, Src: s.src}.Rand()
	}
}

// outlierWeight is top/(top+inlier), with NaN mapped to 1 and the result capped at 1
func outlierWeight(top, inlier float64) float64 {
	q := top / (top + inlier)
	if math.IsNaN(q) || q > 1 {
		return 1
	}
	return q
}

// updateAlpha redraws every alpha_i from
// ((r_i - (Tb)_i)²·z_i/N0_i + df)/2 / Gamma((z_i + df)/2, 1).
// Nothing changes unless alpha varies and at least one observation is an outlier.
func (s *Sampler) updateAlpha(x []float64) {
	if !s.cfg.VaryAlpha || sum(s.st.Z) < 1 {
		return
	}
	n0 := s.model.NoiseDiag(x)
	mean := s.predicted(s.model.Basis(x))
	df := float64(s.st.DF)

	for i := range s.r {
		resid := s.r[i] - mean[i]
		z := s.st.Z[i]
		top := (resid*resid*z/n0[i] + df) / 2
		bot := distuv.Gamma{Alpha: (z + df) / 2, Beta: 1, Src: s.src}.Rand()
		s.st.Alpha[i] = top / bot
	}
}

// normalProb is the density of N(0, variance) at x
func normalProb(x, variance float64) float64 {
	return distuv.Normal{Mu: 0, Sigma: math.Sqrt(variance)}.Prob(x)
}

func sum(v []float64) float64 {
	var t float64
	for _, x := range v {
		t += x
	}
	return t
}
