package noise

import (
	"fmt"
	"math"
	"sort"
)

// ObservationSet is the read-only residual table a chain is run against.
// TOAs are MJD, residuals and errors are seconds.
type ObservationSet struct {
	TOAs      []float64
	Residuals []float64
	Errors    []float64
	Backends  []string
}

// Len is the number of observations
func (o *ObservationSet) Len() int { return len(o.Residuals) }

// Validate checks column lengths and values
func (o *ObservationSet) Validate() error {
	n := len(o.Residuals)
	if n == 0 {
		return ErrEmptyObservations
	}
	if len(o.TOAs) != n || len(o.Errors) != n || len(o.Backends) != n {
		return fmt.Errorf("%w: toas=%d residuals=%d errors=%d backends=%d",
			ErrLengthMismatch, len(o.TOAs), n, len(o.Errors), len(o.Backends))
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(o.TOAs[i]) || math.IsInf(o.TOAs[i], 0) ||
			math.IsNaN(o.Residuals[i]) || math.IsInf(o.Residuals[i], 0) {
			return fmt.Errorf("%w at row %d", ErrNonFinite, i)
		}
		if !(o.Errors[i] > 0) || math.IsInf(o.Errors[i], 0) {
			return fmt.Errorf("%w at row %d: %g", ErrNonPositiveError, i, o.Errors[i])
		}
	}
	return nil
}

// BackendNames returns the distinct backend labels in sorted order
func (o *ObservationSet) BackendNames() []string {
	set := make(map[string]struct{})
	for _, b := range o.Backends {
		set[b] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for b := range set {
		names = append(names, b)
	}
	sort.Strings(names)
	return names
}

// Span is the observing baseline in days
func (o *ObservationSet) Span() float64 {
	if len(o.TOAs) == 0 {
		return 0
	}
	lo, hi := o.TOAs[0], o.TOAs[0]
	for _, t := range o.TOAs[1:] {
		lo = math.Min(lo, t)
		hi = math.Max(hi, t)
	}
	return hi - lo
}
