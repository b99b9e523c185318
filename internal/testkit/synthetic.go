package testkit

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"pulsaroutlier/domain/noise"
)

// QuantileResiduals returns n residuals whose inliers are the exact normal
// quantiles Φ⁻¹((i+0.5)/ninliers), with the given outlier values placed at
// their indices. The result has no sampling noise, so tests on it are stable.
func QuantileResiduals(n int, outliers map[int]float64) []float64 {
	ninliers := n - len(outliers)
	r := make([]float64, n)
	q := 0
	for i := 0; i < n; i++ {
		if v, ok := outliers[i]; ok {
			r[i] = v
			continue
		}
		r[i] = distuv.UnitNormal.Quantile((float64(q) + 0.5) / float64(ninliers))
		q++
	}
	return r
}

// Ones returns a slice of n ones
func Ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

// SimulateOptions control SimulateObservations
type SimulateOptions struct {
	N            int
	NOutliers    int
	Sigma        float64 // inlier error in seconds
	OutlierSigma float64 // outlier scatter in seconds
	StartMJD     float64
	CadenceDays  float64
	Backends     []string
	// InlierClip, when positive, redraws inliers beyond InlierClip·Sigma
	InlierClip float64
	// OutlierFloor, when positive, redraws outliers within OutlierFloor·Sigma
	OutlierFloor float64
}

// SimulateObservations draws a residual table with white noise and
// NOutliers wide outliers at random indices. Outliers with OutlierFloor and
// inliers with InlierClip set are drawn from the truncated normal. The outlier indices are
// returned in ascending order.
func SimulateObservations(opts SimulateOptions, src rand.Source) (*noise.ObservationSet, []int) {
	if len(opts.Backends) == 0 {
		opts.Backends = []string{"sim"}
	}
	if opts.CadenceDays == 0 {
		opts.CadenceDays = 14
	}
	rnd := rand.New(src)
	obs := &noise.ObservationSet{
		TOAs:      make([]float64, opts.N),
		Residuals: make([]float64, opts.N),
		Errors:    make([]float64, opts.N),
		Backends:  make([]string, opts.N),
	}
	outliers := rnd.Perm(opts.N)[:opts.NOutliers]
	sort.Ints(outliers)
	isOutlier := make(map[int]bool, len(outliers))
	for _, i := range outliers {
		isOutlier[i] = true
	}

	for i := 0; i < opts.N; i++ {
		obs.TOAs[i] = opts.StartMJD + float64(i)*opts.CadenceDays
		obs.Errors[i] = opts.Sigma
		obs.Backends[i] = opts.Backends[i%len(opts.Backends)]
		if isOutlier[i] {
			v := rnd.NormFloat64() * opts.OutlierSigma
			for opts.OutlierFloor > 0 && math.Abs(v) < opts.OutlierFloor*opts.Sigma {
				v = rnd.NormFloat64() * opts.OutlierSigma
			}
			obs.Residuals[i] = v
		} else {
			v := rnd.NormFloat64() * opts.Sigma
			for opts.InlierClip > 0 && math.Abs(v) > opts.InlierClip*opts.Sigma {
				v = rnd.NormFloat64() * opts.Sigma
			}
			obs.Residuals[i] = v
		}
	}
	return obs, outliers
}
