package testkit

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"pulsaroutlier/domain/noise"
)

// WhiteNoiseModel is a minimal noise model: one EFAC scaling the quoted
// errors and a fixed basis whose coefficients have a fixed prior precision,
// optionally replaced by a sampled common amplitude.
type WhiteNoiseModel struct {
	residuals  []float64
	errors     []float64
	basis      *mat.Dense
	phiinv     []float64
	efacPrior  noise.Uniform
	correlated bool
}

// ModelOption configures a WhiteNoiseModel
type ModelOption func(*WhiteNoiseModel)

// WithBasis replaces the default offset column and its precision
func WithBasis(basis *mat.Dense, phiinv []float64) ModelOption {
	return func(m *WhiteNoiseModel) {
		m.basis = basis
		m.phiinv = phiinv
	}
}

// WithCorrelatedAmplitude adds a correlated-noise parameter log10_A, with
// every basis coefficient having prior variance 10^(2·log10_A)
func WithCorrelatedAmplitude() ModelOption {
	return func(m *WhiteNoiseModel) { m.correlated = true }
}

// NewWhiteNoiseModel builds a model over residuals with quoted errors.
// The default basis is a single constant offset with a very broad prior.
func NewWhiteNoiseModel(residuals, errors []float64, opts ...ModelOption) *WhiteNoiseModel {
	n := len(residuals)
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	m := &WhiteNoiseModel{
		residuals: residuals,
		errors:    errors,
		basis:     mat.NewDense(n, 1, ones),
		phiinv:    []float64{1e-12},
		efacPrior: noise.Uniform{Min: 0.1, Max: 10},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *WhiteNoiseModel) Residuals() []float64 { return m.residuals }

func (m *WhiteNoiseModel) Params() []noise.Param {
	params := []noise.Param{{Name: "efac", Group: noise.GroupWhite, Prior: m.efacPrior}}
	if m.correlated {
		params = append(params, noise.Param{
			Name: "log10_A", Group: noise.GroupCorrelated, Prior: noise.Uniform{Min: -3, Max: 3},
		})
	}
	return params
}

func (m *WhiteNoiseModel) Basis(x []float64) *mat.Dense { return m.basis }

func (m *WhiteNoiseModel) NoiseDiag(x []float64) []float64 {
	out := make([]float64, len(m.errors))
	for i, e := range m.errors {
		v := x[0] * e
		out[i] = v * v
	}
	return out
}

func (m *WhiteNoiseModel) PhiInv(x []float64) (mat.Symmetric, float64) {
	_, k := m.basis.Dims()
	diag := make([]float64, k)
	var logdet float64
	for j := range diag {
		if m.correlated {
			diag[j] = math.Pow(10, -2*x[1])
		} else {
			diag[j] = m.phiinv[j]
		}
		logdet -= math.Log(diag[j])
	}
	return mat.NewDiagDense(k, diag), logdet
}
