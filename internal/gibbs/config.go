package gibbs

import (
	"math"

	"pulsaroutlier/domain/noise"
	"pulsaroutlier/internal/errors"
)

const (
	// MaxDF is the largest Student-t degrees of freedom on the df grid.
	MaxDF = 30

	DefaultOutlierFraction = 0.01
	DefaultTDF             = 4
	DefaultAlpha           = 1e10
	DefaultCheckpointEvery = 100
	DefaultWhiteSteps      = 20
	DefaultHyperSteps      = 10
)

// Config selects the outlier model and the sweep settings of a chain
type Config struct {
	Model           noise.OutlierModel
	OutlierFraction float64 // a-priori outlier fraction m
	TDF             int     // initial, or fixed, Student-t degrees of freedom
	VaryDF          bool
	ThetaPrior      noise.ThetaPrior
	Alpha           float64 // outlier width used when alpha is held fixed
	VaryAlpha       bool
	PSpin           float64 // spin period in seconds, vvh17 only

	CheckpointEvery int
	WhiteSteps      int
	HyperSteps      int
}

// Normalize canonicalises the model and theta prior names. Invalid names are
// left as they are for Validate to report.
func (c Config) Normalize() Config {
	if m, err := noise.ParseOutlierModel(string(c.Model)); err == nil {
		c.Model = m
	}
	if p, err := noise.ParseThetaPrior(string(c.ThetaPrior)); err == nil {
		c.ThetaPrior = p
	}
	return c
}

// DefaultConfig returns the mixture model with df and alpha varying
func DefaultConfig() Config {
	return Config{
		Model:           noise.ModelMixture,
		OutlierFraction: DefaultOutlierFraction,
		TDF:             DefaultTDF,
		VaryDF:          true,
		ThetaPrior:      noise.ThetaPriorBeta,
		Alpha:           DefaultAlpha,
		VaryAlpha:       true,
		CheckpointEvery: DefaultCheckpointEvery,
		WhiteSteps:      DefaultWhiteSteps,
		HyperSteps:      DefaultHyperSteps,
	}
}

// Validate fails fast on settings no chain can run with
func (c Config) Validate() error {
	model, err := noise.ParseOutlierModel(string(c.Model))
	if err != nil {
		return errors.ConfigInvalidf("model: %v", err)
	}
	if _, err := noise.ParseThetaPrior(string(c.ThetaPrior)); err != nil {
		return errors.ConfigInvalidf("theta prior: %v", err)
	}
	if !(c.OutlierFraction > 0 && c.OutlierFraction < 1) {
		return errors.ConfigInvalidf("outlier fraction m must be in (0, 1), got %g", c.OutlierFraction)
	}
	if c.TDF < 1 || c.TDF > MaxDF {
		return errors.ConfigInvalidf("tdf must be in [1, %d], got %d", MaxDF, c.TDF)
	}
	if !(c.Alpha > 0) || math.IsInf(c.Alpha, 1) {
		return errors.ConfigInvalidf("alpha must be positive and finite, got %g", c.Alpha)
	}
	if model == noise.ModelVVH17 && !(c.PSpin > 0) {
		return errors.ConfigInvalid("vvh17 model requires a positive spin period")
	}
	if c.CheckpointEvery < 1 {
		return errors.ConfigInvalidf("checkpoint interval must be at least 1, got %d", c.CheckpointEvery)
	}
	if c.WhiteSteps < 0 || c.HyperSteps < 0 {
		return errors.ConfigInvalid("metropolis step counts cannot be negative")
	}
	return nil
}
