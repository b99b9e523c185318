package chainstore

import (
	"context"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulsaroutlier/domain/chain"
	"pulsaroutlier/internal/gibbs"
	"pulsaroutlier/internal/testkit"
)

func sampleTables() *chain.Tables {
	t := chain.NewTables(3)
	t.Append(chain.Row{
		Params: []float64{1.0 / 3, -7.25},
		B:      []float64{1e-300, -2.5e-7, 12345678.9},
		Theta:  0.01,
		Z:      []float64{1, 0},
		Alpha:  []float64{1e10, 2.5},
		Pout:   []float64{0, 0},
		DF:     4,
	})
	t.Append(chain.Row{
		Params: []float64{math.Pi, math.SmallestNonzeroFloat64},
		B:      []float64{0.1, 0.2, 0.30000000000000004},
		Theta:  0.052631578947368425,
		Z:      []float64{0, 1},
		Alpha:  []float64{1.7976931348623157e308, 1},
		Pout:   []float64{0.123456789012345678, 0.999},
		DF:     30,
	})
	return t
}

func TestTextStore_RoundTripIsExact(t *testing.T) {
	ctx := context.Background()
	store := NewTextStore(t.TempDir(), zap.NewNop())
	want := sampleTables()

	require.NoError(t, store.Save(ctx, want))
	got, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, want.Params, got.Params)
	assert.Equal(t, want.B, got.B)
	assert.Equal(t, want.Theta, got.Theta)
	assert.Equal(t, want.Z, got.Z)
	assert.Equal(t, want.Alpha, got.Alpha)
	assert.Equal(t, want.Pout, got.Pout)
	assert.Equal(t, want.DF, got.DF)
}

func TestTextStore_FileLayout(t *testing.T) {
	dir := t.TempDir()
	store := NewTextStore(dir, nil)
	require.NoError(t, store.Save(context.Background(), sampleTables()))

	for _, name := range []string{"chain", "bchain", "thetachain", "zchain", "alphachain", "poutchain", "dfchain"} {
		_, err := os.Stat(filepath.Join(dir, name+".txt"))
		assert.NoError(t, err, name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "dfchain.txt"))
	require.NoError(t, err)
	assert.Equal(t, "4\n30\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "zchain.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1 0\n0 1\n", string(data))

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary files are renamed away")
}

func TestTextStore_DropsIncompleteRow(t *testing.T) {
	dir := t.TempDir()
	store := NewTextStore(dir, zap.NewNop())
	require.NoError(t, store.Save(context.Background(), sampleTables()))

	// An interrupted write leaves a short final row.
	f, err := os.OpenFile(filepath.Join(dir, "bchain.txt"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("0.5 0.25")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.B, 2)
	n, err := got.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTextStore_MissingTables(t *testing.T) {
	dir := t.TempDir()
	store := NewTextStore(dir, zap.NewNop())
	ctx := context.Background()

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, store.Save(ctx, sampleTables()))
	require.NoError(t, os.Remove(filepath.Join(dir, "alphachain.txt")))

	exists, err = store.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, got.MinLen())
}

func TestTextStore_ResumeAfterHalt(t *testing.T) {
	dir := t.TempDir()
	r := testkit.QuantileResiduals(30, map[int]float64{4: 20, 19: -25})
	model := testkit.NewWhiteNoiseModel(r, testkit.Ones(len(r)), testkit.WithCorrelatedAmplitude())

	newDriver := func(hook gibbs.SweepHook) *gibbs.Driver {
		s, err := gibbs.NewSampler(model, gibbs.DefaultConfig(), rand.NewPCG(1, 1), zap.NewNop())
		require.NoError(t, err)
		return gibbs.NewDriver(s, NewTextStore(dir, zap.NewNop()), zap.NewNop(),
			gibbs.WithSweepHook(hook),
			gibbs.WithReseed(func(start int) rand.Source { return rand.NewPCG(7, uint64(start)) }))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	halted, err := newDriver(func(sweep int) {
		if sweep == 150 {
			cancel()
		}
	}).Run(ctx, []float64{1, 0}, 250)
	require.ErrorIs(t, err, context.Canceled)

	before, err := NewTextStore(dir, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 101, before.MinLen())
	assert.Equal(t, halted.Chain.Head(101).Pout, before.Pout, "text round trip is exact")

	res, err := newDriver(nil).Resume(context.Background(), 250)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Start)

	after, err := NewTextStore(dir, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	n, err := after.Len()
	require.NoError(t, err)
	require.Equal(t, 250, n)

	head := after.Head(101)
	assert.Equal(t, before.Params, head.Params)
	assert.Equal(t, before.B, head.B)
	assert.Equal(t, before.Theta, head.Theta)
	assert.Equal(t, before.Z, head.Z)
	assert.Equal(t, before.Alpha, head.Alpha)
	assert.Equal(t, before.Pout, head.Pout)
	assert.Equal(t, before.DF, head.DF)
}
