// Package summary reduces sampled chains to per-observation outlier probabilities.
package summary

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultBurnFraction is the share of recorded sweeps discarded when no burn-in is given.
	DefaultBurnFraction = 0.25
	// DefaultThreshold flags observations whose outlier probability exceeds it.
	DefaultThreshold = 0.1
)

var (
	ErrEmptyChain     = errors.New("summary: chain has no rows")
	ErrBurnTooLarge   = errors.New("summary: burn-in discards every row")
	ErrRaggedChain    = errors.New("summary: chain rows differ in length")
	ErrLengthMismatch = errors.New("summary: input lengths differ")
)

// BurnIn resolves a requested burn-in against the number of recorded rows.
// A negative burn selects DefaultBurnFraction of the rows.
func BurnIn(rows, burn int) int {
	if burn < 0 {
		return int(DefaultBurnFraction * float64(rows))
	}
	return burn
}

// MarginalOutlierProbability returns, for each observation, the mean of its
// outlier weight over the rows after burn-in
func MarginalOutlierProbability(pout [][]float64, burn int) ([]float64, error) {
	cols, err := columns(pout, burn)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cols))
	for j, c := range cols {
		out[j] = clamp01(stat.Mean(c, nil))
	}
	return out, nil
}

// MedianOutlierProbability is the column median counterpart of MarginalOutlierProbability
func MedianOutlierProbability(pout [][]float64, burn int) ([]float64, error) {
	cols, err := columns(pout, burn)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cols))
	for j, c := range cols {
		med, err := stats.Median(c)
		if err != nil {
			return nil, fmt.Errorf("median of observation %d: %w", j, err)
		}
		out[j] = clamp01(med)
	}
	return out, nil
}

// Flag returns the indices whose probability is above threshold
func Flag(probs []float64, threshold float64) []int {
	var idx []int
	for i, p := range probs {
		if p > threshold {
			idx = append(idx, i)
		}
	}
	return idx
}

// Result bundles the reductions of one chain
type Result struct {
	Burn    int
	Rows    int
	Mean    []float64
	Median  []float64
	Flagged []int
}

// Summarize computes mean and median probabilities and flags observations
// whose mean exceeds threshold
func Summarize(pout [][]float64, burn int, threshold float64) (*Result, error) {
	burn = BurnIn(len(pout), burn)
	mean, err := MarginalOutlierProbability(pout, burn)
	if err != nil {
		return nil, err
	}
	median, err := MedianOutlierProbability(pout, burn)
	if err != nil {
		return nil, err
	}
	return &Result{
		Burn:    burn,
		Rows:    len(pout),
		Mean:    mean,
		Median:  median,
		Flagged: Flag(mean, threshold),
	}, nil
}

// columns transposes the rows after burn-in
func columns(rows [][]float64, burn int) ([][]float64, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyChain
	}
	burn = BurnIn(len(rows), burn)
	if burn >= len(rows) {
		return nil, fmt.Errorf("%w: burn %d, rows %d", ErrBurnTooLarge, burn, len(rows))
	}
	n := len(rows[0])
	cols := make([][]float64, n)
	for j := range cols {
		cols[j] = make([]float64, 0, len(rows)-burn)
	}
	for i := burn; i < len(rows); i++ {
		if len(rows[i]) != n {
			return nil, fmt.Errorf("%w: row %d has %d entries, expected %d", ErrRaggedChain, i, len(rows[i]), n)
		}
		for j, v := range rows[i] {
			cols[j] = append(cols[j], v)
		}
	}
	return cols, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
