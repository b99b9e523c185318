package gibbs

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"pulsaroutlier/domain/chain"
	"pulsaroutlier/internal/errors"
	"pulsaroutlier/ports"
)

// SweepHook is called after every completed sweep with the sweep index
type SweepHook func(sweep int)

// Driver runs a sampler for a fixed number of sweeps, recording every state
// and checkpointing the chain through a ChainStore
type Driver struct {
	sampler *Sampler
	store   ports.ChainStore
	log     *zap.Logger
	hook    SweepHook
	reseed  func(start int) rand.Source
	every   int
}

// DriverOption configures a Driver
type DriverOption func(*Driver)

// WithSweepHook registers a callback run after each sweep
func WithSweepHook(h SweepHook) DriverOption {
	return func(d *Driver) { d.hook = h }
}

// WithReseed derives the random source from the first sweep of each
// invocation, so fresh and resumed runs are both reproducible
func WithReseed(f func(start int) rand.Source) DriverOption {
	return func(d *Driver) { d.reseed = f }
}

// NewDriver creates a driver that checkpoints to store
func NewDriver(s *Sampler, store ports.ChainStore, logger *zap.Logger, opts ...DriverOption) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		sampler: s,
		store:   store,
		log:     logger.Named("driver"),
		every:   s.cfg.CheckpointEvery,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result is the chain after a Run or Resume
type Result struct {
	Chain *chain.Tables
	// Start is the first sweep executed by this invocation
	Start int
}

// Run initialises the sampler at x0 and performs niter sweeps
func (d *Driver) Run(ctx context.Context, x0 []float64, niter int) (*Result, error) {
	if niter < 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("niter must be positive, got %d", niter))
	}
	if err := d.sampler.Init(x0); err != nil {
		return nil, err
	}
	if d.reseed != nil {
		d.sampler.Reseed(d.reseed(0))
	}
	d.log.Info("starting chain",
		zap.String("model", string(d.sampler.cfg.Model)),
		zap.Int("niter", niter),
		zap.Int("nobs", d.sampler.NumObservations()),
		zap.Int("nbasis", d.sampler.NumBasis()),
		zap.Int("nparams", d.sampler.NumParams()))
	return d.loop(ctx, chain.NewTables(niter), 0, niter)
}

// Resume continues a persisted chain up to niter sweeps.
//
// Every table is cut to the shortest stored length k, so a flush that was
// interrupted part way never mixes rows from different sweeps. The state is
// reloaded from row k-1 and sweeping restarts at k-1, rewriting that row with
// the same values.
func (d *Driver) Resume(ctx context.Context, niter int) (*Result, error) {
	if niter < 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("niter must be positive, got %d", niter))
	}
	tables, err := d.store.Load(ctx)
	if err != nil {
		return nil, errors.CheckpointIO(err, "failed to read chain checkpoint")
	}

	k := tables.MinLen()
	if _, err := tables.Len(); err != nil {
		d.log.Info("chain tables differ in length, truncating",
			zap.Int("rows", k), zap.Any("lengths", tables.Lengths()))
	}
	if k == 0 {
		return nil, errors.InvalidInput("no checkpointed sweeps to resume from")
	}
	tables.Truncate(k)

	if k >= niter {
		tables.Truncate(niter)
		d.log.Info("chain already complete", zap.Int("rows", niter))
		if err := d.checkpoint(ctx, tables); err != nil {
			return nil, err
		}
		return &Result{Chain: tables, Start: niter}, nil
	}

	st, err := StateFromRow(tables.At(k - 1))
	if err != nil {
		return nil, errors.Wrap(err, "invalid checkpoint row")
	}
	if err := d.sampler.SetState(st); err != nil {
		return nil, errors.Wrap(err, "checkpoint does not match the noise model")
	}

	start := k - 1
	tables.Truncate(start)
	if d.reseed != nil {
		d.sampler.Reseed(d.reseed(start))
	}
	d.log.Info("resuming chain", zap.Int("sweep", start), zap.Int("niter", niter))
	return d.loop(ctx, tables, start, niter)
}

func (d *Driver) loop(ctx context.Context, tables *chain.Tables, start, niter int) (*Result, error) {
	began := time.Now()
	for i := start; i < niter; i++ {
		// Only checkpointed sweeps survive a cancellation.
		if err := ctx.Err(); err != nil {
			d.log.Info("chain interrupted", zap.Int("sweep", i))
			return &Result{Chain: tables, Start: start}, err
		}

		tables.Append(d.sampler.st.Row())
		d.sampler.Sweep()

		if i%d.every == 0 && i > 0 {
			if err := d.checkpoint(ctx, tables); err != nil {
				return nil, err
			}
			d.log.Info("checkpoint",
				zap.Int("sweep", i),
				zap.Float64("percent", 100*float64(i)/float64(niter)),
				zap.Duration("elapsed", time.Since(began)))
		}
		if d.hook != nil {
			d.hook(i)
		}
	}

	if err := d.checkpoint(ctx, tables); err != nil {
		return nil, err
	}
	d.log.Info("chain complete", zap.Int("sweeps", niter-start), zap.Duration("elapsed", time.Since(began)))
	return &Result{Chain: tables, Start: start}, nil
}

func (d *Driver) checkpoint(ctx context.Context, tables *chain.Tables) error {
	if err := d.store.Save(ctx, tables); err != nil {
		return errors.CheckpointIO(err, "failed to write chain checkpoint")
	}
	return nil
}
