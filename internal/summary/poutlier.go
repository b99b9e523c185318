package summary

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Poutlier evaluates, for one parameter sample, the posterior probability
// that each residual comes from a uniform outlier density of width p0
// rather than N(0, nvec), given prior outlier probability pb:
//
//	PtB·pb / (PtB·pb + PtA·(1-pb)),  PtA = N(r; 0, nvec),  PtB = 1/p0
//
// It also returns the whitened residuals r/√nvec.
func Poutlier(r, nvec []float64, pb, p0 float64) (prob, whitened []float64, err error) {
	return PoutlierWeighted(r, nvec, pb, 1-pb, p0)
}

// PoutlierWeighted is Poutlier with unnormalised outlier and inlier prior weights
func PoutlierWeighted(r, nvec []float64, wOut, wIn, p0 float64) (prob, whitened []float64, err error) {
	if len(r) != len(nvec) {
		return nil, nil, fmt.Errorf("%w: %d residuals, %d variances", ErrLengthMismatch, len(r), len(nvec))
	}
	ptB := 1 / p0
	prob = make([]float64, len(r))
	whitened = make([]float64, len(r))
	for i := range r {
		ptA := distuv.Normal{Mu: 0, Sigma: math.Sqrt(nvec[i])}.Prob(r[i])
		num := ptB * wOut
		prob[i] = num / (num + ptA*wIn)
		whitened[i] = r[i] / math.Sqrt(nvec[i])
	}
	return prob, whitened, nil
}
