package noise

import (
	"fmt"
	"math/rand/v2"
)

// Group identifies which conditional update owns a hyperparameter
type Group int

const (
	// GroupWhite holds EFAC and EQUAD, the parameters of the diagonal noise covariance.
	GroupWhite Group = iota
	// GroupCorrelated holds ECORR and red-noise parameters, which act only through Φ⁻¹.
	GroupCorrelated
)

func (g Group) String() string {
	switch g {
	case GroupWhite:
		return "white"
	case GroupCorrelated:
		return "correlated"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// Valid reports whether g is a known group
func (g Group) Valid() bool {
	return g == GroupWhite || g == GroupCorrelated
}

// Param is a named hyperparameter with its prior
type Param struct {
	Name  string
	Group Group
	Prior Prior
}

// Layout maps each parameter group to the positions of its members in a
// hyperparameter vector. It is built once per chain.
type Layout struct {
	size    int
	indices map[Group][]int
}

// NewLayout builds the group layout for params. Every parameter must belong to
// exactly one known group and names must be unique.
func NewLayout(params []Param) (Layout, error) {
	l := Layout{
		size:    len(params),
		indices: make(map[Group][]int, 2),
	}
	seen := make(map[string]struct{}, len(params))
	for i, p := range params {
		if !p.Group.Valid() {
			return Layout{}, fmt.Errorf("%w: %s has %s", ErrUnknownGroup, p.Name, p.Group)
		}
		if p.Prior == nil {
			return Layout{}, fmt.Errorf("%w: %s", ErrMissingPrior, p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return Layout{}, fmt.Errorf("%w: %s", ErrDuplicateParam, p.Name)
		}
		seen[p.Name] = struct{}{}
		l.indices[p.Group] = append(l.indices[p.Group], i)
	}
	return l, nil
}

// Size is the length of the hyperparameter vector
func (l Layout) Size() int { return l.size }

// Indices returns the vector positions owned by g, in ascending order
func (l Layout) Indices(g Group) []int { return l.indices[g] }

// SamplePrior draws one value per parameter from its prior
func SamplePrior(params []Param, src rand.Source) []float64 {
	x := make([]float64, len(params))
	for i, p := range params {
		x[i] = p.Prior.Sample(src)
	}
	return x
}

// LogPrior sums the prior log-densities of x
func LogPrior(params []Param, x []float64) float64 {
	var lp float64
	for i, p := range params {
		lp += p.Prior.LogPDF(x[i])
	}
	return lp
}

// Names returns the parameter names in vector order
func Names(params []Param) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}
