package noise

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Prior is a univariate prior density that can also be sampled
type Prior interface {
	Sample(src rand.Source) float64
	LogPDF(x float64) float64
}

// Uniform is a flat prior on [Min, Max]
type Uniform struct {
	Min, Max float64
}

func (u Uniform) Sample(src rand.Source) float64 {
	return distuv.Uniform{Min: u.Min, Max: u.Max, Src: src}.Rand()
}

func (u Uniform) LogPDF(x float64) float64 {
	if x < u.Min || x > u.Max {
		return math.Inf(-1)
	}
	return -math.Log(u.Max - u.Min)
}

// Normal is a Gaussian prior
type Normal struct {
	Mu, Sigma float64
}

func (n Normal) Sample(src rand.Source) float64 {
	return distuv.Normal{Mu: n.Mu, Sigma: n.Sigma, Src: src}.Rand()
}

func (n Normal) LogPDF(x float64) float64 {
	return distuv.Normal{Mu: n.Mu, Sigma: n.Sigma}.LogProb(x)
}
