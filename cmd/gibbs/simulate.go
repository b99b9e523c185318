package main

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"pulsaroutlier/adapters/residuals"
	"pulsaroutlier/internal/testkit"
)

func newSimulateCmd() *cobra.Command {
	var (
		out, backends     string
		n, outliers       int
		sigma, wide       float64
		startMJD, cadence float64
		seed              uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write a synthetic residual table with injected outliers",
		Long: `Draw white-noise residuals and replace a few with wide outliers.

Example: gibbs simulate --out sim.csv --n 100 --outliers 5 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 1 || outliers < 0 || outliers > n {
				return fmt.Errorf("need 0 <= outliers <= n and n >= 1, got n=%d outliers=%d", n, outliers)
			}
			obs, idx := testkit.SimulateObservations(testkit.SimulateOptions{
				N:            n,
				NOutliers:    outliers,
				Sigma:        sigma,
				OutlierSigma: wide,
				StartMJD:     startMJD,
				CadenceDays:  cadence,
				Backends:     strings.Split(backends, ","),
			}, rand.NewPCG(seed, 0))
			if err := obs.Validate(); err != nil {
				return err
			}
			if err := residuals.Write(out, obs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d observations to %s, outliers at %v\n", obs.Len(), out, idx)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&out, "out", "simulated.csv", "Output table (.csv or .xlsx)")
	flags.StringVar(&backends, "backends", "sim", "Comma-separated backend labels, assigned round robin")
	flags.IntVar(&n, "n", 100, "Number of observations")
	flags.IntVar(&outliers, "outliers", 5, "Number of injected outliers")
	flags.Float64Var(&sigma, "sigma", 1e-6, "Measurement uncertainty in seconds")
	flags.Float64Var(&wide, "outlier-sigma", 3e-5, "Outlier scatter in seconds")
	flags.Float64Var(&startMJD, "start-mjd", 55000, "First TOA")
	flags.Float64Var(&cadence, "cadence", 14, "Days between TOAs")
	flags.Uint64Var(&seed, "seed", 1, "Random seed")

	return cmd
}
