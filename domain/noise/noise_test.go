package noise

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() []Param {
	return []Param{
		{Name: "ao_efac", Group: GroupWhite, Prior: Uniform{Min: 0.01, Max: 10}},
		{Name: "ao_log10_equad", Group: GroupWhite, Prior: Uniform{Min: -10, Max: -4}},
		{Name: "ao_log10_ecorr", Group: GroupCorrelated, Prior: Uniform{Min: -10, Max: -4}},
		{Name: "red_noise_log10_A", Group: GroupCorrelated, Prior: Uniform{Min: -18, Max: -11}},
		{Name: "red_noise_gamma", Group: GroupCorrelated, Prior: Uniform{Min: 0, Max: 7}},
	}
}

func TestNewLayout_Groups(t *testing.T) {
	layout, err := NewLayout(testParams())
	require.NoError(t, err)

	assert.Equal(t, 5, layout.Size())
	assert.Equal(t, []int{0, 1}, layout.Indices(GroupWhite))
	assert.Equal(t, []int{2, 3, 4}, layout.Indices(GroupCorrelated))
}

func TestNewLayout_Interleaved(t *testing.T) {
	params := testParams()
	params[1], params[2] = params[2], params[1]

	layout, err := NewLayout(params)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, layout.Indices(GroupWhite))
	assert.Equal(t, []int{1, 3, 4}, layout.Indices(GroupCorrelated))
}

func TestNewLayout_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		params []Param
		want   error
	}{
		{
			name:   "unknown group",
			params: []Param{{Name: "x", Group: Group(7), Prior: Uniform{0, 1}}},
			want:   ErrUnknownGroup,
		},
		{
			name:   "missing prior",
			params: []Param{{Name: "x", Group: GroupWhite}},
			want:   ErrMissingPrior,
		},
		{
			name: "duplicate",
			params: []Param{
				{Name: "x", Group: GroupWhite, Prior: Uniform{0, 1}},
				{Name: "x", Group: GroupCorrelated, Prior: Uniform{0, 1}},
			},
			want: ErrDuplicateParam,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLayout(tt.params)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestUniformPrior(t *testing.T) {
	u := Uniform{Min: -10, Max: -4}
	src := rand.NewPCG(1, 2)

	for i := 0; i < 1000; i++ {
		v := u.Sample(src)
		require.GreaterOrEqual(t, v, -10.0)
		require.LessOrEqual(t, v, -4.0)
	}
	assert.InDelta(t, -math.Log(6), u.LogPDF(-7), 1e-12)
	assert.True(t, math.IsInf(u.LogPDF(-3), -1))
}

func TestNormalPrior(t *testing.T) {
	n := Normal{Mu: 1, Sigma: 2}
	assert.InDelta(t, -math.Log(2*math.Sqrt(2*math.Pi)), n.LogPDF(1), 1e-12)
	assert.InDelta(t, n.LogPDF(0), n.LogPDF(2), 1e-12)
	assert.False(t, math.IsNaN(n.Sample(rand.NewPCG(9, 9))))
}

func TestSamplePriorAndLogPrior(t *testing.T) {
	params := testParams()
	x := SamplePrior(params, rand.NewPCG(3, 4))

	require.Len(t, x, len(params))
	lp := LogPrior(params, x)
	want := -math.Log(9.99) - math.Log(6) - math.Log(6) - math.Log(7) - math.Log(7)
	assert.InDelta(t, want, lp, 1e-9)
}

func TestParseOutlierModel(t *testing.T) {
	for _, s := range []string{"gaussian", "t", "Mixture", " vvh17 "} {
		_, err := ParseOutlierModel(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseOutlierModel("cauchy")
	assert.ErrorIs(t, err, ErrUnknownModel)

	assert.True(t, ModelMixture.IsMixture())
	assert.True(t, ModelVVH17.IsMixture())
	assert.False(t, ModelStudentT.IsMixture())
	assert.False(t, ModelGaussian.StartsAsOutlier())
	assert.True(t, ModelStudentT.StartsAsOutlier())
}

func TestParseThetaPrior(t *testing.T) {
	p, err := ParseThetaPrior("FLAT")
	require.NoError(t, err)
	assert.Equal(t, ThetaPriorFlat, p)

	_, err = ParseThetaPrior("jeffreys")
	assert.ErrorIs(t, err, ErrUnknownThetaPrior)
}

func TestObservationSet_Validate(t *testing.T) {
	obs := &ObservationSet{
		TOAs:      []float64{55000, 55001.5, 55003},
		Residuals: []float64{1e-6, -2e-6, 5e-7},
		Errors:    []float64{1e-6, 1e-6, 2e-6},
		Backends:  []string{"guppi", "puppi", "guppi"},
	}
	require.NoError(t, obs.Validate())
	assert.Equal(t, 3, obs.Len())
	assert.Equal(t, []string{"guppi", "puppi"}, obs.BackendNames())
	assert.InDelta(t, 3.0, obs.Span(), 1e-12)

	obs.Errors[1] = 0
	assert.ErrorIs(t, obs.Validate(), ErrNonPositiveError)

	obs.Errors[1] = 1e-6
	obs.Backends = obs.Backends[:2]
	assert.ErrorIs(t, obs.Validate(), ErrLengthMismatch)

	assert.ErrorIs(t, (&ObservationSet{}).Validate(), ErrEmptyObservations)
}
