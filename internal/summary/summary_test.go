package summary

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBurnIn(t *testing.T) {
	assert.Equal(t, 25, BurnIn(100, -1))
	assert.Equal(t, 2, BurnIn(10, -1))
	assert.Equal(t, 7, BurnIn(100, 7))
}

func TestMarginalOutlierProbability(t *testing.T) {
	pout := [][]float64{
		{1, 1, 0},
		{0, 1, 0},
		{0.5, 1, 0.2},
		{0.5, 0, 0.4},
	}

	probs, err := MarginalOutlierProbability(pout, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.3}, probs, 1e-12)

	// default burn-in drops one of four rows
	probs, err = MarginalOutlierProbability(pout, -1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 2.0 / 3, 0.2}, probs, 1e-12)

	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestMarginalOutlierProbability_Errors(t *testing.T) {
	_, err := MarginalOutlierProbability(nil, -1)
	assert.ErrorIs(t, err, ErrEmptyChain)

	_, err = MarginalOutlierProbability([][]float64{{1}, {0}}, 2)
	assert.ErrorIs(t, err, ErrBurnTooLarge)

	_, err = MarginalOutlierProbability([][]float64{{1, 0}, {0}}, 0)
	assert.ErrorIs(t, err, ErrRaggedChain)
}

func TestMedianOutlierProbability(t *testing.T) {
	pout := [][]float64{
		{0.9, 0.1},
		{0.1, 0.2},
		{0.8, 0.3},
	}
	med, err := MedianOutlierProbability(pout, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.8, 0.2}, med, 1e-12)
}

func TestSummarizeAndFlag(t *testing.T) {
	pout := [][]float64{
		{0, 0.9, 0.05},
		{0, 1, 0.2},
		{0, 1, 0.1},
		{0, 0.8, 0},
	}
	res, err := Summarize(pout, 0, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Burn)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, []int{1}, res.Flagged)
	assert.InDelta(t, 0.925, res.Mean[1], 1e-12)
	assert.InDelta(t, 0.95, res.Median[1], 1e-12)

	assert.Nil(t, Flag([]float64{0.1, 0.05}, 0.1), "threshold is exclusive")
}

func TestPoutlier(t *testing.T) {
	r := []float64{0, 3, -10}
	nvec := []float64{1, 1, 4}

	prob, whitened, err := Poutlier(r, nvec, 0.01, 100)
	require.NoError(t, err)

	for i := range r {
		ptA := math.Exp(-0.5*r[i]*r[i]/nvec[i]) / math.Sqrt(2*math.Pi*nvec[i])
		want := 0.01 / 100 / (0.01/100 + ptA*0.99)
		assert.InDelta(t, want, prob[i], 1e-15)
		assert.InDelta(t, r[i]/math.Sqrt(nvec[i]), whitened[i], 1e-15)
	}
	assert.Less(t, prob[0], prob[1])
	assert.Less(t, prob[1], prob[2])

	_, _, err = Poutlier(r, nvec[:2], 0.01, 100)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestPoutlier_ScaleInvariant(t *testing.T) {
	r := []float64{0.5, -2, 4, 12}
	nvec := []float64{1, 0.5, 2, 3}
	pb := 0.05

	base, _, err := PoutlierWeighted(r, nvec, pb, 1-pb, 20)
	require.NoError(t, err)

	for _, c := range []float64{1e-6, 0.3, 7, 1e8} {
		scaled, _, err := PoutlierWeighted(r, nvec, c*pb, c*(1-pb), 20)
		require.NoError(t, err)
		assert.InDeltaSlice(t, base, scaled, 1e-12, "scale %g", c)
	}
}

func TestPoutlier_Deterministic(t *testing.T) {
	r := []float64{0.25, -1.75, 6}
	nvec := []float64{0.9, 1.1, 1}
	a, wa, _ := Poutlier(r, nvec, 0.1, 50)
	b, wb, _ := Poutlier(r, nvec, 0.1, 50)
	assert.Equal(t, a, b)
	assert.Equal(t, wa, wb)
}
