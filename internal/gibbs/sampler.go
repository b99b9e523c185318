// Package gibbs implements the blocked Gibbs sampler that jointly infers
// white and correlated noise hyperparameters, the latent Gaussian-process
// coefficients and the per-observation outlier variables.
package gibbs

import (
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"pulsaroutlier/domain/noise"
	"pulsaroutlier/internal/errors"
	"pulsaroutlier/ports"
)

// Sampler owns the state of one chain. It is not safe for concurrent use.
type Sampler struct {
	cfg    Config
	model  ports.NoiseModel
	params []noise.Param
	layout noise.Layout
	white  []int
	hyper  []int

	r     []float64
	nobs  int
	nbase int

	src   rand.Source
	rnd   *rand.Rand
	jumps distuv.Categorical
	log   *zap.Logger

	st    State
	cache sweepCache
}

// sweepCache holds TᵀN⁻¹T and TᵀN⁻¹r for the white-noise parameters and
// outlier variables of the current sweep
type sweepCache struct {
	tnt *mat.SymDense
	d   *mat.VecDense
}

func (c *sweepCache) reset() {
	c.tnt = nil
	c.d = nil
}

// NewSampler validates cfg against model and builds the parameter-group
// layout. The sampler has no state until Init or SetState is called.
func NewSampler(model ports.NoiseModel, cfg Config, src rand.Source, logger *zap.Logger) (*Sampler, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	params := model.Params()
	layout, err := noise.NewLayout(params)
	if err != nil {
		return nil, errors.ConfigInvalidf("noise model parameters: %v", err)
	}
	r := model.Residuals()
	if len(r) == 0 {
		return nil, errors.InvalidInput("noise model has no residuals")
	}

	s := &Sampler{
		cfg:    cfg,
		model:  model,
		params: params,
		layout: layout,
		white:  layout.Indices(noise.GroupWhite),
		hyper:  layout.Indices(noise.GroupCorrelated),
		r:      r,
		nobs:   len(r),
		src:    src,
		rnd:    rand.New(src),
		jumps:  distuv.NewCategorical(jumpProbs[:], src),
		log:    logger.Named("gibbs"),
	}
	return s, nil
}

// Init sets the starting state for hyperparameters x0: b = 0, theta = m,
// df = tdf, pout = 0, and z and alpha according to the outlier model
func (s *Sampler) Init(x0 []float64) error {
	if len(x0) != s.layout.Size() {
		return errors.InvalidInput("initial hyperparameter vector does not match the noise model")
	}
	_, s.nbase = s.model.Basis(x0).Dims()
	if s.nbase == 0 {
		return errors.InvalidInput("noise model basis has no columns")
	}

	z := make([]float64, s.nobs)
	if s.cfg.Model.StartsAsOutlier() {
		for i := range z {
			z[i] = 1
		}
	}
	alpha := make([]float64, s.nobs)
	for i := range alpha {
		if s.cfg.VaryAlpha {
			alpha[i] = 1
		} else {
			alpha[i] = s.cfg.Alpha
		}
	}

	s.st = State{
		X:     append([]float64(nil), x0...),
		B:     make([]float64, s.nbase),
		Z:     z,
		Theta: s.cfg.OutlierFraction,
		Alpha: alpha,
		Pout:  make([]float64, s.nobs),
		DF:    s.cfg.TDF,
	}
	s.cache.reset()
	return nil
}

// SetState replaces the chain state, typically with a row read back from a checkpoint
func (s *Sampler) SetState(st State) error {
	if len(st.X) != s.layout.Size() {
		return errors.InvalidInput("stored hyperparameter vector does not match the noise model")
	}
	_, nbase := s.model.Basis(st.X).Dims()
	if err := st.checkShape(s.layout.Size(), s.nobs, nbase); err != nil {
		return err
	}
	s.nbase = nbase
	s.st = st.Clone()
	s.cache.reset()
	return nil
}

// State returns a copy of the current state
func (s *Sampler) State() State { return s.st.Clone() }

// Reseed replaces the random source
func (s *Sampler) Reseed(src rand.Source) {
	s.src = src
	s.rnd = rand.New(src)
	s.jumps = distuv.NewCategorical(jumpProbs[:], src)
}

// Sweep updates every variable group once, in order: white-noise
// hyperparameters, correlated-noise hyperparameters, b, theta, z, alpha, df
func (s *Sampler) Sweep() {
	s.cache.reset()
	x0 := s.st.X

	x := s.metropolis(x0, s.white, s.cfg.WhiteSteps, s.whiteLogLikelihood)
	x = s.metropolis(x, s.hyper, s.cfg.HyperSteps, s.logLikelihood)
	s.st.X = x

	if changed(x0, x) {
		s.updateB(x)
	}

	s.updateTheta()
	s.updateZ(x)
	s.updateAlpha(x)
	s.updateDF()
}

// NumParams, NumObservations and NumBasis report the chain dimensions
func (s *Sampler) NumParams() int       { return s.layout.Size() }
func (s *Sampler) NumObservations() int { return s.nobs }
func (s *Sampler) NumBasis() int        { return s.nbase }

// Config returns the normalised configuration
func (s *Sampler) Config() Config { return s.cfg }

func changed(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}
