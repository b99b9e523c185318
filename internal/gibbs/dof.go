package gibbs

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// updateDF draws df from its conditional on the grid 1..MaxDF
func (s *Sampler) updateDF() {
	if !s.cfg.VaryDF {
		return
	}
	logden := make([]float64, MaxDF)
	for k := 1; k <= MaxDF; k++ {
		logden[k-1] = dfLogDensity(s.st.Alpha, k)
	}
	idx, ok := sampleLogCategorical(logden, s.src)
	if !ok {
		s.log.Debug("degenerate df conditional, keeping df")
		return
	}
	s.st.DF = idx + 1
}

// dfLogDensity is the unnormalised log conditional of df = k given alpha
func dfLogDensity(alpha []float64, k int) float64 {
	half := float64(k) / 2
	n := float64(len(alpha))
	var t float64
	for _, a := range alpha {
		t += math.Log(a) + 1/a
	}
	lg, _ := math.Lgamma(half)
	return -half*t + n*half*math.Log(half) - n*lg
}

// sampleLogCategorical draws an index with probability proportional to
// exp(logw[i]). It reports false when no weight is finite.
func sampleLogCategorical(logw []float64, src rand.Source) (int, bool) {
	lse := floats.LogSumExp(logw)
	if math.IsNaN(lse) || math.IsInf(lse, 0) {
		return 0, false
	}
	w := make([]float64, len(logw))
	for i, l := range logw {
		w[i] = math.Exp(l - lse)
	}
	return int(distuv.NewCategorical(w, src).Rand()), true
}
