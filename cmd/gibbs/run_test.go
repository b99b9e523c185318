package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsaroutlier/adapters/chainstore"
	"pulsaroutlier/adapters/residuals"
	"pulsaroutlier/internal/errors"
	"pulsaroutlier/internal/testkit"
)

func writeResiduals(t *testing.T, dir string) string {
	t.Helper()
	obs, _ := testkit.SimulateObservations(testkit.SimulateOptions{
		N:            40,
		NOutliers:    2,
		Sigma:        1e-6,
		OutlierSigma: 1e-4,
		StartMJD:     55000,
	}, rand.NewPCG(4, 4))
	path := filepath.Join(dir, "res.csv")
	require.NoError(t, residuals.Write(path, obs))
	return path
}

func TestRunCmd_FlagsOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	input := writeResiduals(t, dir)
	outdir := filepath.Join(dir, "chains")
	envOutdir := filepath.Join(dir, "from-env")

	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("GIBBS_NITER", "5")
	t.Setenv("GIBBS_CHAINS", "2")
	t.Setenv("GIBBS_OUTDIR", envOutdir)

	cmd := newRunCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--input", input,
		"--outdir", outdir,
		"--niter", "12",
		"--checkpoint-every", "5",
		"--components", "2",
		"--seed", "7",
		"--no-db",
		"--quiet",
	})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "of 40 observations above 0.1")

	// --niter and --outdir win over the environment, GIBBS_CHAINS still applies
	for _, name := range []string{"chain-0", "chain-1"} {
		tables, err := chainstore.NewTextStore(filepath.Join(outdir, name), nil).Load(context.Background())
		require.NoError(t, err, name)
		assert.Equal(t, 12, tables.MinLen(), name)
	}
	assert.NoDirExists(t, envOutdir)
	assert.NoDirExists(t, filepath.Join(outdir, "chain-2"))

	summarize := newSummarizeCmd()
	var summary bytes.Buffer
	summarize.SetOut(&summary)
	summarize.SetArgs([]string{"--outdir", outdir, "--burn", "2"})
	require.NoError(t, summarize.ExecuteContext(context.Background()))
	assert.Contains(t, summary.String(), "2 chains, 20 pooled rows")
}

func TestRunCmd_RejectsInvalidFlags(t *testing.T) {
	dir := t.TempDir()
	input := writeResiduals(t, dir)
	t.Setenv("LOG_LEVEL", "ERROR")

	cmd := newRunCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--input", input, "--outdir", dir, "--model", "cauchy", "--no-db", "--quiet"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid), "got %v", err)
	assert.NoDirExists(t, filepath.Join(dir, "chain-0"))
}
