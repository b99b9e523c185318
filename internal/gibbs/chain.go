package gibbs

import (
	"fmt"
	"math"

	"pulsaroutlier/domain/chain"
	"pulsaroutlier/internal/errors"
)

// State is the full set of sampled variables between two sweeps
type State struct {
	X     []float64 // hyperparameters
	B     []float64 // latent coefficients
	Z     []float64 // outlier indicators, each exactly 0 or 1
	Theta float64   // outlier fraction
	Alpha []float64 // outlier widths
	Pout  []float64 // last outlier weights
	DF    int
}

// Clone returns a deep copy of s
func (s State) Clone() State {
	return State{
		X:     append([]float64(nil), s.X...),
		B:     append([]float64(nil), s.B...),
		Z:     append([]float64(nil), s.Z...),
		Theta: s.Theta,
		Alpha: append([]float64(nil), s.Alpha...),
		Pout:  append([]float64(nil), s.Pout...),
		DF:    s.DF,
	}
}

// Row converts s to a chain table row
func (s State) Row() chain.Row {
	return chain.Row{
		Params: s.X,
		B:      s.B,
		Theta:  s.Theta,
		Z:      s.Z,
		Alpha:  s.Alpha,
		Pout:   s.Pout,
		DF:     float64(s.DF),
	}
}

// StateFromRow rebuilds a state from a stored chain row
func StateFromRow(r chain.Row) (State, error) {
	if r.DF != math.Trunc(r.DF) || r.DF < 1 || r.DF > MaxDF {
		return State{}, errors.InvalidInput(fmt.Sprintf("stored df %g is not an integer in [1, %d]", r.DF, MaxDF))
	}
	st := State{
		X:     r.Params,
		B:     r.B,
		Z:     r.Z,
		Theta: r.Theta,
		Alpha: r.Alpha,
		Pout:  r.Pout,
		DF:    int(r.DF),
	}
	return st.Clone(), nil
}

// checkShape verifies s against the chain dimensions
func (s State) checkShape(nparams, nobs, nbasis int) error {
	switch {
	case len(s.X) != nparams:
		return errors.InvalidInput(fmt.Sprintf("hyperparameter vector has %d entries, model has %d", len(s.X), nparams))
	case len(s.B) != nbasis:
		return errors.InvalidInput(fmt.Sprintf("latent vector has %d entries, basis has %d columns", len(s.B), nbasis))
	case len(s.Z) != nobs || len(s.Alpha) != nobs || len(s.Pout) != nobs:
		return errors.InvalidInput(fmt.Sprintf("per-observation vectors do not match %d observations", nobs))
	}
	if s.Theta < 0 || s.Theta > 1 {
		return errors.InvalidInput(fmt.Sprintf("theta %g outside [0, 1]", s.Theta))
	}
	for i := range s.Z {
		if s.Z[i] != 0 && s.Z[i] != 1 {
			return errors.InvalidInput(fmt.Sprintf("z[%d] = %g is not binary", i, s.Z[i]))
		}
		if !(s.Alpha[i] > 0) {
			return errors.InvalidInput(fmt.Sprintf("alpha[%d] = %g is not positive", i, s.Alpha[i]))
		}
	}
	return nil
}
