package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pulsaroutlier/app"
	"pulsaroutlier/internal/container"
)

func newSummarizeCmd() *cobra.Command {
	var (
		outdir    string
		burn      int
		threshold float64
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarise outlier probabilities of stored chains",
		Long: `Read every chain under OUTDIR, discard burn-in rows, and print the mean and
median outlier probability of each observation.

Example: gibbs summarize --outdir chains --burn 2500 --threshold 0.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			c, err := container.New(cfg, logger)
			if err != nil {
				return err
			}

			tables, err := app.LoadChains(cmd.Context(), outdir, c.StoreFactory())
			if err != nil {
				return err
			}
			res, err := app.SummarizeChains(tables, burn, threshold)
			if err != nil {
				return err
			}

			flagged := make(map[int]bool, len(res.Flagged))
			for _, i := range res.Flagged {
				flagged[i] = true
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d chains, %d pooled rows, %d of %d observations above %.3g\n",
				len(tables), res.Rows, len(res.Flagged), len(res.Mean), threshold)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "index\tmean\tmedian\tflagged")
			for i := range res.Mean {
				if all || flagged[i] {
					fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%t\n", i, res.Mean[i], res.Median[i], flagged[i])
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&outdir, "outdir", "./outlier_chains", "Directory holding chain-<k> subdirectories")
	cmd.Flags().IntVar(&burn, "burn", -1, "Burn-in rows per chain (negative: 25% of rows)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.1, "Flag observations whose mean outlier probability exceeds this")
	cmd.Flags().BoolVar(&all, "all", false, "Print every observation, not only flagged ones")

	return cmd
}
