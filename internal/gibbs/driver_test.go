package gibbs

import (
	"context"
	stderrors "errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulsaroutlier/domain/chain"
	"pulsaroutlier/internal/errors"
	"pulsaroutlier/internal/testkit"
)

func newTestDriver(t *testing.T, cfg Config, store *testkit.MemoryChainStore, opts ...DriverOption) *Driver {
	t.Helper()
	r := testResiduals()
	model := testkit.NewWhiteNoiseModel(r, testkit.Ones(len(r)), testkit.WithCorrelatedAmplitude())
	s, err := NewSampler(model, cfg, rand.NewPCG(0, 0), zap.NewNop())
	require.NoError(t, err)
	opts = append([]DriverOption{WithReseed(func(start int) rand.Source {
		return rand.NewPCG(42, uint64(start))
	})}, opts...)
	return NewDriver(s, store, zap.NewNop(), opts...)
}

func requireRectangular(t *testing.T, tables *chain.Tables, rows int) {
	t.Helper()
	n, err := tables.Len()
	require.NoError(t, err)
	require.Equal(t, rows, n)
}

func TestDriver_Run(t *testing.T) {
	store := testkit.NewMemoryChainStore()
	d := newTestDriver(t, DefaultConfig(), store)

	res, err := d.Run(context.Background(), []float64{1, 0.5}, 250)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Start)
	requireRectangular(t, res.Chain, 250)

	// Checkpoints at sweeps 100 and 200 hold rows 0..i, then the final flush.
	assert.Equal(t, []int{101, 201, 250}, store.Saves())

	first := res.Chain.At(0)
	assert.Equal(t, []float64{1, 0.5}, first.Params)
	assert.Equal(t, DefaultOutlierFraction, first.Theta)
	assert.Equal(t, float64(DefaultTDF), first.DF)
}

func TestDriver_RunIsReproducible(t *testing.T) {
	a, err := newTestDriver(t, DefaultConfig(), testkit.NewMemoryChainStore()).Run(context.Background(), []float64{1, 0.5}, 120)
	require.NoError(t, err)
	b, err := newTestDriver(t, DefaultConfig(), testkit.NewMemoryChainStore()).Run(context.Background(), []float64{1, 0.5}, 120)
	require.NoError(t, err)
	assert.Equal(t, a.Chain, b.Chain)
}

func TestDriver_FixedDF(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VaryDF = false
	cfg.TDF = 4
	res, err := newTestDriver(t, cfg, testkit.NewMemoryChainStore()).Run(context.Background(), []float64{1, 0.5}, 300)
	require.NoError(t, err)
	for i, df := range res.Chain.DF {
		require.Equal(t, 4.0, df, "sweep %d", i)
	}
}

func TestDriver_ResumeFromLastCheckpoint(t *testing.T) {
	store := testkit.NewMemoryChainStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	halted := newTestDriver(t, DefaultConfig(), store, WithSweepHook(func(sweep int) {
		if sweep == 150 {
			cancel()
		}
	}))
	_, err := halted.Run(ctx, []float64{1, 0.5}, 300)
	require.ErrorIs(t, err, context.Canceled)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	requireRectangular(t, persisted, 101)

	var sweeps []int
	resumed := newTestDriver(t, DefaultConfig(), store, WithSweepHook(func(sweep int) {
		sweeps = append(sweeps, sweep)
	}))
	res, err := resumed.Resume(context.Background(), 300)
	require.NoError(t, err)

	assert.Equal(t, 100, res.Start)
	require.NotEmpty(t, sweeps)
	assert.Equal(t, 100, sweeps[0])
	assert.Equal(t, 299, sweeps[len(sweeps)-1])
	requireRectangular(t, res.Chain, 300)

	head := res.Chain.Head(101)
	assert.Equal(t, persisted.Params, head.Params)
	assert.Equal(t, persisted.B, head.B)
	assert.Equal(t, persisted.Theta, head.Theta)
	assert.Equal(t, persisted.Z, head.Z)
	assert.Equal(t, persisted.Alpha, head.Alpha)
	assert.Equal(t, persisted.Pout, head.Pout)
	assert.Equal(t, persisted.DF, head.DF)
}

func TestDriver_ResumeTruncatesToShortestTable(t *testing.T) {
	store := testkit.NewMemoryChainStore()
	res, err := newTestDriver(t, DefaultConfig(), store).Run(context.Background(), []float64{1, 0.5}, 120)
	require.NoError(t, err)

	// Simulate a flush that stopped after the first few tables.
	partial := res.Chain.Head(120)
	partial.Theta = partial.Theta[:90]
	partial.DF = partial.DF[:95]
	store.Put(partial)

	resumed, err := newTestDriver(t, DefaultConfig(), store).Resume(context.Background(), 120)
	require.NoError(t, err)
	assert.Equal(t, 89, resumed.Start)
	requireRectangular(t, resumed.Chain, 120)
	assert.Equal(t, res.Chain.Params[:90], resumed.Chain.Params[:90])
	assert.Equal(t, res.Chain.Theta[:90], resumed.Chain.Theta[:90])
}

func TestDriver_ResumeCompleteChain(t *testing.T) {
	store := testkit.NewMemoryChainStore()
	res, err := newTestDriver(t, DefaultConfig(), store).Run(context.Background(), []float64{1, 0.5}, 150)
	require.NoError(t, err)

	again, err := newTestDriver(t, DefaultConfig(), store).Resume(context.Background(), 120)
	require.NoError(t, err)
	assert.Equal(t, 120, again.Start)
	requireRectangular(t, again.Chain, 120)
	assert.Equal(t, res.Chain.Z[:120], again.Chain.Z)
}

func TestDriver_ResumeWithoutCheckpoint(t *testing.T) {
	store := testkit.NewMemoryChainStore()
	store.Put(chain.NewTables(0))
	_, err := newTestDriver(t, DefaultConfig(), store).Resume(context.Background(), 100)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput), "got %v", err)

	_, err = newTestDriver(t, DefaultConfig(), testkit.NewMemoryChainStore()).Resume(context.Background(), 100)
	assert.True(t, errors.HasCode(err, errors.CodeCheckpointIO), "got %v", err)
}

func TestDriver_CheckpointFailureIsFatal(t *testing.T) {
	store := testkit.NewMemoryChainStore()
	store.FailSave = stderrors.New("disk full")

	var last int
	d := newTestDriver(t, DefaultConfig(), store, WithSweepHook(func(sweep int) { last = sweep }))
	_, err := d.Run(context.Background(), []float64{1, 0.5}, 300)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeCheckpointIO))
	assert.ErrorIs(t, err, store.FailSave)
	assert.Equal(t, 99, last, "run stops at the first checkpoint")
}

func TestDriver_RejectsBadArguments(t *testing.T) {
	d := newTestDriver(t, DefaultConfig(), testkit.NewMemoryChainStore())
	_, err := d.Run(context.Background(), []float64{1, 0.5}, 0)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))

	_, err = d.Run(context.Background(), []float64{1}, 10)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}
