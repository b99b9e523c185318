package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pulsaroutlier/domain/chain"
	"pulsaroutlier/domain/noise"
	"pulsaroutlier/domain/run"
	"pulsaroutlier/internal/errors"
	"pulsaroutlier/internal/gibbs"
	"pulsaroutlier/internal/summary"
	"pulsaroutlier/ports"
)

// CodeVersion is recorded in every run fingerprint
const CodeVersion = "1.0.0"

// ModelFactory builds the noise model for an observation set
type ModelFactory func(obs *noise.ObservationSet) (ports.NoiseModel, error)

// StoreFactory opens the chain store of one chain directory
type StoreFactory func(dir string) ports.ChainStore

// ProgressHook is called after every sweep of every chain
type ProgressHook func(chainIdx, sweep int)

// OutlierService runs outlier analyses end to end: it reads residuals, runs
// independent chains concurrently, summarises them and stores the result
type OutlierService struct {
	reader   ports.ResidualReader
	repo     ports.ResultsRepository
	rng      ports.RNGPort
	newModel ModelFactory
	newStore StoreFactory
	log      *zap.Logger
	hook     ProgressHook
}

// NewOutlierService wires the service. repo may be nil, in which case
// manifests and probabilities are not persisted.
func NewOutlierService(
	reader ports.ResidualReader,
	repo ports.ResultsRepository,
	rng ports.RNGPort,
	newModel ModelFactory,
	newStore StoreFactory,
	logger *zap.Logger,
) *OutlierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutlierService{
		reader:   reader,
		repo:     repo,
		rng:      rng,
		newModel: newModel,
		newStore: newStore,
		log:      logger.Named("outliers"),
	}
}

// SetProgressHook registers a per-sweep callback. It must be safe for concurrent use.
func (s *OutlierService) SetProgressHook(h ProgressHook) { s.hook = h }

// RunRequest defines the inputs of one analysis
type RunRequest struct {
	Input     string
	Pulsar    string
	OutDir    string
	NIter     int
	Chains    int
	Parallel  int // 0 means one chain per CPU
	Seed      uint64
	Burn      int // rows per chain, negative selects the default fraction
	Threshold float64
	Resume    bool
	Gibbs     gibbs.Config
}

// Validate fails fast on requests that cannot run
func (r RunRequest) Validate() error {
	if r.Input == "" {
		return errors.InvalidInput("input file is required")
	}
	if r.OutDir == "" {
		return errors.InvalidInput("output directory is required")
	}
	if r.NIter < 1 {
		return errors.InvalidInput(fmt.Sprintf("niter must be positive, got %d", r.NIter))
	}
	if r.Chains < 1 {
		return errors.InvalidInput(fmt.Sprintf("chains must be positive, got %d", r.Chains))
	}
	if r.Burn >= r.NIter {
		return errors.InvalidInput(fmt.Sprintf("burn %d must be below niter %d", r.Burn, r.NIter))
	}
	if !(r.Threshold >= 0 && r.Threshold <= 1) {
		return errors.InvalidInput(fmt.Sprintf("threshold must be in [0, 1], got %g", r.Threshold))
	}
	return r.Gibbs.Validate()
}

// RunResult is the outcome of an analysis
type RunResult struct {
	Manifest      *run.Manifest
	Summary       *summary.Result
	Probabilities []run.OutlierProbability
	Chains        []*chain.Tables
}

// Run performs a complete analysis
func (s *OutlierService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Gibbs = req.Gibbs.Normalize()

	obs, err := s.reader.Read(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	model, err := s.newModel(obs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build noise model")
	}

	burn := req.Burn
	if burn < 0 {
		burn = summary.BurnIn(req.NIter, -1)
	}
	m := run.NewManifest(req.Pulsar, string(req.Gibbs.Model), req.NIter, burn, req.Chains, obs.Len(), req.OutDir,
		Fingerprint(obs, req))
	m.Threshold = req.Threshold
	if err := s.saveRun(ctx, m); err != nil {
		return nil, err
	}

	s.log.Info("starting analysis",
		zap.String("run_id", m.ID.String()),
		zap.String("input", req.Input),
		zap.Int("nobs", obs.Len()),
		zap.Int("chains", req.Chains),
		zap.String("fingerprint", m.Fingerprint.Fingerprint))

	tables, err := s.RunChains(ctx, model, req)
	if err != nil {
		s.fail(m)
		return nil, err
	}

	res, err := SummarizeChains(tables, burn, req.Threshold)
	if err != nil {
		s.fail(m)
		return nil, errors.Wrap(err, "failed to summarise chains")
	}
	probs := Probabilities(m.ID, obs, res)

	if s.repo != nil {
		if err := s.repo.SaveOutlierProbabilities(ctx, m.ID, probs); err != nil {
			s.fail(m)
			return nil, err
		}
	}
	m.Complete(time.Now())
	if err := s.saveRun(ctx, m); err != nil {
		return nil, err
	}

	s.log.Info("analysis complete",
		zap.String("run_id", m.ID.String()),
		zap.Int("flagged", len(res.Flagged)),
		zap.Float64("threshold", req.Threshold))
	return &RunResult{Manifest: m, Summary: res, Probabilities: probs, Chains: tables}, nil
}

// RunChains runs req.Chains independent chains against model, at most
// req.Parallel at a time. Chain k writes to OutDir/chain-k and draws from its
// own random stream. The first failure cancels the remaining chains.
func (s *OutlierService) RunChains(ctx context.Context, model ports.NoiseModel, req RunRequest) ([]*chain.Tables, error) {
	parallel := req.Parallel
	if parallel < 1 {
		parallel = runtime.NumCPU()
	}
	if parallel > req.Chains {
		parallel = req.Chains
	}

	sem := semaphore.NewWeighted(int64(parallel))
	g, gctx := errgroup.WithContext(ctx)
	results := make([]*chain.Tables, req.Chains)

	for k := 0; k < req.Chains; k++ {
		k := k
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			tables, err := s.runChain(gctx, model, req, k)
			if err != nil {
				return errors.Wrapf(err, "chain %d failed", k)
			}
			results[k] = tables
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ChainName is the directory and stream name of chain k
func ChainName(k int) string { return "chain-" + strconv.Itoa(k) }

func (s *OutlierService) runChain(ctx context.Context, model ports.NoiseModel, req RunRequest, k int) (*chain.Tables, error) {
	name := ChainName(k)
	log := s.log.With(zap.String("chain", name))
	store := s.newStore(filepath.Join(req.OutDir, name))

	stream := func(start int) rand.Source { return s.rng.Stream(name, req.Seed, start) }
	sampler, err := gibbs.NewSampler(model, req.Gibbs, stream(0), log)
	if err != nil {
		return nil, err
	}

	opts := []gibbs.DriverOption{gibbs.WithReseed(stream)}
	if s.hook != nil {
		opts = append(opts, gibbs.WithSweepHook(func(i int) { s.hook(k, i) }))
	}
	driver := gibbs.NewDriver(sampler, store, log, opts...)

	if req.Resume {
		exists, err := store.Exists(ctx)
		if err != nil {
			return nil, errors.CheckpointIO(err, "failed to inspect chain directory")
		}
		if exists {
			res, err := driver.Resume(ctx, req.NIter)
			if err != nil {
				return nil, err
			}
			return res.Chain, nil
		}
		log.Info("no checkpoint found, starting fresh")
	}

	x0 := noise.SamplePrior(model.Params(), s.rng.Stream(name+"/init", req.Seed, 0))
	res, err := driver.Run(ctx, x0, req.NIter)
	if err != nil {
		return nil, err
	}
	return res.Chain, nil
}

// LoadChains reads every chain-* directory under outdir in chain order
func LoadChains(ctx context.Context, outdir string, newStore StoreFactory) ([]*chain.Tables, error) {
	dirs, err := filepath.Glob(filepath.Join(outdir, "chain-*"))
	if err != nil {
		return nil, err
	}
	type indexed struct {
		k   int
		dir string
	}
	var found []indexed
	for _, d := range dirs {
		k, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(d), "chain-"))
		if err != nil {
			continue
		}
		found = append(found, indexed{k, d})
	}
	if len(found) == 0 {
		return nil, errors.NotFound("chains in " + outdir)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].k < found[j].k })

	tables := make([]*chain.Tables, 0, len(found))
	for _, f := range found {
		t, err := newStore(f.dir).Load(ctx)
		if err != nil {
			return nil, errors.CheckpointIO(err, "failed to load "+f.dir)
		}
		t.Truncate(t.MinLen())
		tables = append(tables, t)
	}
	return tables, nil
}

// SummarizeChains pools the post-burn-in outlier probabilities of every chain
// and computes their mean, median and flagged observations
func SummarizeChains(tables []*chain.Tables, burn int, threshold float64) (*summary.Result, error) {
	var pooled [][]float64
	for k, t := range tables {
		b := summary.BurnIn(len(t.Pout), burn)
		if b >= len(t.Pout) {
			return nil, fmt.Errorf("chain %d: %w: burn %d, rows %d", k, summary.ErrBurnTooLarge, b, len(t.Pout))
		}
		pooled = append(pooled, t.Pout[b:]...)
	}
	return summary.Summarize(pooled, 0, threshold)
}

// Probabilities pairs a summary with the observations it describes
func Probabilities(runID uuid.UUID, obs *noise.ObservationSet, res *summary.Result) []run.OutlierProbability {
	flagged := make(map[int]bool, len(res.Flagged))
	for _, i := range res.Flagged {
		flagged[i] = true
	}
	probs := make([]run.OutlierProbability, len(res.Mean))
	for i := range res.Mean {
		probs[i] = run.OutlierProbability{
			RunID:   runID,
			Index:   i,
			TOA:     obs.TOAs[i],
			Backend: obs.Backends[i],
			Mean:    res.Mean[i],
			Median:  res.Median[i],
			Flagged: flagged[i],
		}
	}
	return probs
}

// Fingerprint identifies the data, configuration and seed of a request
func Fingerprint(obs *noise.ObservationSet, req RunRequest) run.RunFingerprint {
	dataHash := run.HashStrings(
		run.HashColumns(obs.TOAs, obs.Residuals, obs.Errors),
		run.HashStrings(obs.Backends...),
	)
	c := req.Gibbs
	configHash := run.HashStrings(
		"model="+string(c.Model),
		"m="+strconv.FormatFloat(c.OutlierFraction, 'g', -1, 64),
		"tdf="+strconv.Itoa(c.TDF),
		"vary_df="+strconv.FormatBool(c.VaryDF),
		"theta_prior="+string(c.ThetaPrior),
		"alpha="+strconv.FormatFloat(c.Alpha, 'g', -1, 64),
		"vary_alpha="+strconv.FormatBool(c.VaryAlpha),
		"pspin="+strconv.FormatFloat(c.PSpin, 'g', -1, 64),
		"white_steps="+strconv.Itoa(c.WhiteSteps),
		"hyper_steps="+strconv.Itoa(c.HyperSteps),
		"niter="+strconv.Itoa(req.NIter),
		"chains="+strconv.Itoa(req.Chains),
	)
	return run.NewRunFingerprint(dataHash, configHash, req.Seed, CodeVersion)
}

func (s *OutlierService) saveRun(ctx context.Context, m *run.Manifest) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.SaveRun(ctx, m)
}

// fail records a failed run. The chain error is what the caller returns, so
// a failure to store the status is only logged.
func (s *OutlierService) fail(m *run.Manifest) {
	m.Fail(time.Now())
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.SaveRun(ctx, m); err != nil {
		s.log.Warn("failed to record run failure", zap.String("run_id", m.ID.String()), zap.Error(err))
	}
}
