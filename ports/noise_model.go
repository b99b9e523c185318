package ports

import (
	"gonum.org/v1/gonum/mat"

	"pulsaroutlier/domain/noise"
)

// NoiseModel supplies the likelihood ingredients for one pulsar.
// Basis and NoiseDiag depend only on the white-noise parameters of x;
// PhiInv depends only on the correlated-noise parameters.
type NoiseModel interface {
	// Residuals returns the N timing residuals
	Residuals() []float64

	// Params returns the hyperparameters in vector order
	Params() []noise.Param

	// Basis returns the N×M basis matrix T
	Basis(x []float64) *mat.Dense

	// NoiseDiag returns the N white-noise variances before outlier inflation
	NoiseDiag(x []float64) []float64

	// PhiInv returns the M×M prior precision of the latent coefficients and log|Φ|
	PhiInv(x []float64) (mat.Symmetric, float64)
}
