package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pulsaroutlier/app"
	"pulsaroutlier/domain/noise"
	"pulsaroutlier/internal/container"
)

func newRunCmd() *cobra.Command {
	var (
		input, outdir, pulsar, model, thetaPrior string
		niter, chains, parallel, tdf, burn       int
		components, every                        int
		seed                                     uint64
		m, alpha, pspin, threshold               float64
		varyDF, varyAlpha, resume, noDB, quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample the outlier model and summarise outlier probabilities",
		Long: `Run independent Gibbs chains over a residual table, write every chain
to OUTDIR/chain-<k>, and store the mean and median outlier probabilities.

Example: gibbs run --input J1909.csv --outdir chains --niter 10000 --model mixture --chains 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			flags := cmd.Flags()
			if flags.Changed("outdir") {
				cfg.Run.OutDir = outdir
			}
			if flags.Changed("niter") {
				cfg.Run.NIter = niter
			}
			if flags.Changed("chains") {
				cfg.Run.Chains = chains
			}
			if flags.Changed("parallel") {
				cfg.Run.Parallel = parallel
			}
			if flags.Changed("seed") {
				cfg.Run.Seed = seed
			}
			if flags.Changed("threshold") {
				cfg.Run.Threshold = threshold
			}
			if flags.Changed("model") {
				cfg.Gibbs.Model = noise.OutlierModel(model)
			}
			if flags.Changed("theta-prior") {
				cfg.Gibbs.ThetaPrior = noise.ThetaPrior(thetaPrior)
			}
			if flags.Changed("m") {
				cfg.Gibbs.OutlierFraction = m
			}
			if flags.Changed("tdf") {
				cfg.Gibbs.TDF = tdf
			}
			if flags.Changed("vary-df") {
				cfg.Gibbs.VaryDF = varyDF
			}
			if flags.Changed("alpha") {
				cfg.Gibbs.Alpha = alpha
			}
			if flags.Changed("vary-alpha") {
				cfg.Gibbs.VaryAlpha = varyAlpha
			}
			if flags.Changed("pspin") {
				cfg.Gibbs.PSpin = pspin
			}
			if flags.Changed("checkpoint-every") {
				cfg.Gibbs.CheckpointEvery = every
			}
			if flags.Changed("components") {
				cfg.Noise.RedNoiseComponents = components
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if !flags.Changed("burn") {
				burn = cfg.Run.Burn()
			}

			c, err := container.New(cfg, logger)
			if err != nil {
				return err
			}
			if !noDB {
				if err := c.InitWithDatabase(cmd.Context()); err != nil {
					return err
				}
				defer c.Shutdown(context.Background())
			}

			svc := c.OutlierService
			if !quiet {
				bar := progressbar.Default(int64(cfg.Run.NIter*cfg.Run.Chains), "sampling")
				defer bar.Finish()
				svc.SetProgressHook(func(chainIdx, sweep int) { _ = bar.Add(1) })
			}

			res, err := svc.Run(cmd.Context(), app.RunRequest{
				Input:     input,
				Pulsar:    pulsar,
				OutDir:    cfg.Run.OutDir,
				NIter:     cfg.Run.NIter,
				Chains:    cfg.Run.Chains,
				Parallel:  cfg.Run.Parallel,
				Seed:      cfg.Run.Seed,
				Burn:      burn,
				Threshold: cfg.Run.Threshold,
				Resume:    resume,
				Gibbs:     cfg.Gibbs,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nrun %s: %d of %d observations above %.3g\n",
				res.Manifest.ID, len(res.Summary.Flagged), res.Manifest.NObs, cfg.Run.Threshold)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "index\ttoa\tbackend\tmean\tmedian")
			for _, p := range res.Probabilities {
				if p.Flagged {
					fmt.Fprintf(w, "%d\t%.6f\t%s\t%.4f\t%.4f\n", p.Index, p.TOA, p.Backend, p.Mean, p.Median)
				}
			}
			return w.Flush()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input, "input", "", "Residual table (.csv or .xlsx)")
	flags.StringVar(&outdir, "outdir", "", "Chain output directory")
	flags.StringVar(&pulsar, "pulsar", "", "Pulsar name recorded with the run")
	flags.IntVar(&niter, "niter", 0, "Number of sweeps per chain")
	flags.IntVar(&chains, "chains", 1, "Number of independent chains")
	flags.IntVar(&parallel, "parallel", 0, "Chains run at once (0 = one per CPU)")
	flags.Uint64Var(&seed, "seed", 1, "Random seed")
	flags.IntVar(&burn, "burn", 0, "Burn-in rows per chain (default: burn fraction of niter)")
	flags.Float64Var(&threshold, "threshold", 0.1, "Flag observations whose mean outlier probability exceeds this")
	flags.StringVar(&model, "model", "mixture", "Outlier model: gaussian, t, mixture or vvh17")
	flags.StringVar(&thetaPrior, "theta-prior", "beta", "Prior on the outlier fraction: beta or flat")
	flags.Float64Var(&m, "m", 0.01, "A-priori outlier fraction")
	flags.IntVar(&tdf, "tdf", 4, "Initial or fixed Student-t degrees of freedom")
	flags.BoolVar(&varyDF, "vary-df", true, "Sample the degrees of freedom")
	flags.Float64Var(&alpha, "alpha", 1e10, "Fixed outlier width when alpha does not vary")
	flags.BoolVar(&varyAlpha, "vary-alpha", true, "Sample the outlier widths")
	flags.Float64Var(&pspin, "pspin", 0, "Spin period in seconds (vvh17)")
	flags.IntVar(&every, "checkpoint-every", 100, "Sweeps between checkpoints")
	flags.IntVar(&components, "components", 30, "Red-noise Fourier components")
	flags.BoolVar(&resume, "resume", false, "Continue chains found in the output directory")
	flags.BoolVar(&noDB, "no-db", false, "Do not store the run in the results database")
	flags.BoolVar(&quiet, "quiet", false, "Hide the progress bar")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
