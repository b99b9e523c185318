// Package noisemodel provides the pulsar timing noise model the sampler runs against.
//
// The model carries per-backend EFAC, EQUAD and ECORR, a power-law red-noise
// process on a Fourier basis, and a quadratic timing-model basis with an
// effectively flat prior. Its basis is fixed at construction.
package noisemodel

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"pulsaroutlier/domain/noise"
	"pulsaroutlier/internal/errors"
	"pulsaroutlier/ports"
)

const (
	secondsPerDay  = 86400.0
	secondsPerYear = 365.25 * secondsPerDay
	fyr            = 1 / secondsPerYear

	// DefaultComponents is the number of red-noise Fourier frequencies
	DefaultComponents = 30
	// DefaultEpochWindow groups TOAs of one backend closer than this many seconds
	DefaultEpochWindow = 1.0
	// MinEpochSize is the smallest epoch that gets an ECORR column
	MinEpochSize = 2

	// timingVariance is the prior variance of the timing-model coefficients
	timingVariance = 1e40
)

// Priors used by the model
var (
	EFACPrior     = noise.Uniform{Min: 0.01, Max: 10}
	EQUADPrior    = noise.Uniform{Min: -10, Max: -4}
	ECORRPrior    = noise.Uniform{Min: -10, Max: -4}
	RedAmpPrior   = noise.Uniform{Min: -18, Max: -11}
	RedGammaPrior = noise.Uniform{Min: 0, Max: 7}
)

// Options controls which signals are included
type Options struct {
	Components  int
	EpochWindow float64
	EQUAD       bool
	ECORR       bool
	RedNoise    bool
	Timing      bool
}

// DefaultOptions is the full model
func DefaultOptions() Options {
	return Options{
		Components:  DefaultComponents,
		EpochWindow: DefaultEpochWindow,
		EQUAD:       true,
		ECORR:       true,
		RedNoise:    true,
		Timing:      true,
	}
}

type backendParams struct {
	efac, equad int // -1 when absent
}

// PTAModel is a NoiseModel over one pulsar's residuals
type PTAModel struct {
	obs    *noise.ObservationSet
	opts   Options
	params []noise.Param

	backendIdx []int // observation → backend position
	white      []backendParams

	basis *mat.Dense

	nTiming int
	redCols int
	freqs   []float64
	tspan   float64

	// ECORR columns and the parameter index that owns each
	epochParam []int

	redAmp, redGamma int
}

// New builds the model for obs
func New(obs *noise.ObservationSet, opts Options) (*PTAModel, error) {
	if err := obs.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	if opts.RedNoise && opts.Components < 1 {
		return nil, errors.ConfigInvalidf("red noise needs at least one component, got %d", opts.Components)
	}
	if opts.ECORR && !(opts.EpochWindow > 0) {
		return nil, errors.ConfigInvalidf("epoch window must be positive, got %g", opts.EpochWindow)
	}

	m := &PTAModel{obs: obs, opts: opts, redAmp: -1, redGamma: -1}
	m.tspan = obs.Span() * secondsPerDay
	if opts.RedNoise && !(m.tspan > 0) {
		return nil, errors.InvalidInput("red noise needs observations spanning a nonzero time")
	}

	backends := obs.BackendNames()
	pos := make(map[string]int, len(backends))
	for i, b := range backends {
		pos[b] = i
	}
	m.backendIdx = make([]int, obs.Len())
	for i, b := range obs.Backends {
		m.backendIdx[i] = pos[b]
	}

	m.white = make([]backendParams, len(backends))
	for i, b := range backends {
		m.white[i] = backendParams{efac: len(m.params), equad: -1}
		m.params = append(m.params, noise.Param{Name: b + "_efac", Group: noise.GroupWhite, Prior: EFACPrior})
		if opts.EQUAD {
			m.white[i].equad = len(m.params)
			m.params = append(m.params, noise.Param{Name: b + "_log10_equad", Group: noise.GroupWhite, Prior: EQUADPrior})
		}
	}

	var cols [][]float64
	if opts.Timing {
		tc := timingColumns(obs.TOAs)
		m.nTiming = len(tc)
		cols = append(cols, tc...)
	}
	if opts.RedNoise {
		m.redAmp = len(m.params)
		m.params = append(m.params, noise.Param{Name: "red_noise_log10_A", Group: noise.GroupCorrelated, Prior: RedAmpPrior})
		m.redGamma = len(m.params)
		m.params = append(m.params, noise.Param{Name: "red_noise_gamma", Group: noise.GroupCorrelated, Prior: RedGammaPrior})

		fc, freqs := fourierColumns(obs.TOAs, opts.Components, m.tspan)
		m.redCols = len(fc)
		m.freqs = freqs
		cols = append(cols, fc...)
	}
	if opts.ECORR {
		epochs := QuantizeEpochs(obs.TOAs, m.backendIdx, opts.EpochWindow/secondsPerDay, MinEpochSize)
		owner := make(map[int]int)
		for _, ep := range epochs {
			b := m.backendIdx[ep[0]]
			idx, ok := owner[b]
			if !ok {
				idx = len(m.params)
				owner[b] = idx
				m.params = append(m.params, noise.Param{
					Name: backends[b] + "_log10_ecorr", Group: noise.GroupCorrelated, Prior: ECORRPrior,
				})
			}
			col := make([]float64, obs.Len())
			for _, i := range ep {
				col[i] = 1
			}
			cols = append(cols, col)
			m.epochParam = append(m.epochParam, idx)
		}
	}
	if len(cols) == 0 {
		return nil, errors.ConfigInvalid("noise model has no basis columns")
	}

	m.basis = mat.NewDense(obs.Len(), len(cols), nil)
	for j, c := range cols {
		m.basis.SetCol(j, c)
	}
	return m, nil
}

var _ ports.NoiseModel = (*PTAModel)(nil)

func (m *PTAModel) Residuals() []float64 { return m.obs.Residuals }

func (m *PTAModel) Params() []noise.Param { return m.params }

// Basis is fixed, x is ignored
func (m *PTAModel) Basis(x []float64) *mat.Dense { return m.basis }

// Frequencies returns the red-noise frequencies in Hz
func (m *PTAModel) Frequencies() []float64 { return m.freqs }

// NoiseDiag is efac²σ² + 10^(2·log10_equad) per observation
func (m *PTAModel) NoiseDiag(x []float64) []float64 {
	out := make([]float64, m.obs.Len())
	for i, sigma := range m.obs.Errors {
		w := m.white[m.backendIdx[i]]
		ef := x[w.efac] * sigma
		out[i] = ef * ef
		if w.equad >= 0 {
			out[i] += math.Pow(10, 2*x[w.equad])
		}
	}
	return out
}

// PhiInv returns the diagonal prior precision of the basis coefficients and log|Φ|
func (m *PTAModel) PhiInv(x []float64) (mat.Symmetric, float64) {
	_, k := m.basis.Dims()
	phi := make([]float64, 0, k)
	for j := 0; j < m.nTiming; j++ {
		phi = append(phi, timingVariance)
	}
	if m.redCols > 0 {
		for _, f := range m.freqs {
			p := PowerLaw(f, x[m.redAmp], x[m.redGamma], m.tspan)
			phi = append(phi, p, p)
		}
	}
	for _, idx := range m.epochParam {
		phi = append(phi, math.Pow(10, 2*x[idx]))
	}

	var logdet float64
	inv := make([]float64, k)
	for j, p := range phi {
		logdet += math.Log(p)
		inv[j] = 1 / p
	}
	return mat.NewDiagDense(k, inv), logdet
}

// PowerLaw is the red-noise variance at frequency f for one sine or cosine
// component over a baseline of tspan seconds
func PowerLaw(f, log10A, gamma, tspan float64) float64 {
	a := math.Pow(10, log10A)
	return a * a / (12 * math.Pi * math.Pi) * math.Pow(fyr, gamma-3) * math.Pow(f, -gamma) / tspan
}

// QuantizeEpochs groups observations of the same backend whose TOAs (MJD) lie
// within window days of the previous one. Epochs smaller than minSize are dropped.
// Each epoch lists observation indices in time order; epochs are ordered by first TOA.
func QuantizeEpochs(toas []float64, backend []int, window float64, minSize int) [][]int {
	order := make([]int, len(toas))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if backend[ia] != backend[ib] {
			return backend[ia] < backend[ib]
		}
		return toas[ia] < toas[ib]
	})

	var epochs [][]int
	var cur []int
	flush := func() {
		if len(cur) >= minSize {
			epochs = append(epochs, cur)
		}
		cur = nil
	}
	for _, i := range order {
		if len(cur) > 0 {
			last := cur[len(cur)-1]
			if backend[last] != backend[i] || toas[i]-toas[last] > window {
				flush()
			}
		}
		cur = append(cur, i)
	}
	flush()

	sort.SliceStable(epochs, func(a, b int) bool {
		return toas[epochs[a][0]] < toas[epochs[b][0]]
	})
	return epochs
}

// timingColumns returns unit-norm offset, linear and quadratic columns in
// time scaled to [-1, 1]
func timingColumns(toas []float64) [][]float64 {
	lo, hi := floats.Min(toas), floats.Max(toas)
	mid, half := (lo+hi)/2, (hi-lo)/2
	if half == 0 {
		half = 1
	}
	n := len(toas)
	cols := [][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	for i, t := range toas {
		s := (t - mid) / half
		cols[0][i] = 1
		cols[1][i] = s
		cols[2][i] = s * s
	}
	out := cols[:0]
	for _, c := range cols {
		norm := floats.Norm(c, 2)
		if norm == 0 {
			continue
		}
		floats.Scale(1/norm, c)
		out = append(out, c)
	}
	return out
}

// fourierColumns returns sine and cosine columns for frequencies k/tspan,
// k = 1..n, with TOAs in MJD and tspan in seconds
func fourierColumns(toas []float64, n int, tspan float64) ([][]float64, []float64) {
	t0 := floats.Min(toas)
	freqs := make([]float64, n)
	cols := make([][]float64, 0, 2*n)
	for k := 1; k <= n; k++ {
		f := float64(k) / tspan
		freqs[k-1] = f
		sin := make([]float64, len(toas))
		cos := make([]float64, len(toas))
		for i, t := range toas {
			arg := 2 * math.Pi * f * (t - t0) * secondsPerDay
			sin[i] = math.Sin(arg)
			cos[i] = math.Cos(arg)
		}
		cols = append(cols, sin, cos)
	}
	return cols, freqs
}

// String summarises the model layout
func (m *PTAModel) String() string {
	_, k := m.basis.Dims()
	return fmt.Sprintf("PTAModel(nobs=%d params=%d basis=%d timing=%d red=%d ecorr=%d)",
		m.obs.Len(), len(m.params), k, m.nTiming, m.redCols, len(m.epochParam))
}
