package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsaroutlier/domain/noise"
	"pulsaroutlier/internal/errors"
	"pulsaroutlier/internal/gibbs"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, gibbs.DefaultConfig(), cfg.Gibbs)
	assert.Equal(t, 10000, cfg.Run.NIter)
	assert.Equal(t, 1, cfg.Run.Chains)
	assert.Equal(t, 2500, cfg.Run.Burn())
	assert.Equal(t, 30, cfg.Noise.RedNoiseComponents)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("GIBBS_MODEL", "VVH17")
	t.Setenv("GIBBS_PSPIN", "0.00457")
	t.Setenv("GIBBS_VARY_DF", "false")
	t.Setenv("GIBBS_TDF", "6")
	t.Setenv("GIBBS_SEED", "18446744073709551615")
	t.Setenv("GIBBS_CHAINS", "4")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/outliers")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, noise.ModelVVH17, cfg.Gibbs.Model)
	assert.Equal(t, 0.00457, cfg.Gibbs.PSpin)
	assert.False(t, cfg.Gibbs.VaryDF)
	assert.Equal(t, 6, cfg.Gibbs.TDF)
	assert.Equal(t, uint64(18446744073709551615), cfg.Run.Seed)
	assert.Equal(t, 4, cfg.Run.Chains)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"malformed int", "GIBBS_NITER", "ten"},
		{"malformed bool", "GIBBS_VARY_ALPHA", "sometimes"},
		{"vvh17 without spin period", "GIBBS_MODEL", "vvh17"},
		{"outlier fraction", "GIBBS_OUTLIER_FRACTION", "1.5"},
		{"tdf", "GIBBS_TDF", "31"},
		{"unknown model", "GIBBS_MODEL", "cauchy"},
		{"chains", "GIBBS_CHAINS", "0"},
		{"burn fraction", "GIBBS_BURN_FRACTION", "1"},
		{"driver", "DATABASE_DRIVER", "mysql"},
		{"components", "RED_NOISE_COMPONENTS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err), "got %v", err)
		})
	}
}
