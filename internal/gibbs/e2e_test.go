package gibbs

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulsaroutlier/domain/noise"
	"pulsaroutlier/internal/summary"
	"pulsaroutlier/internal/testkit"
)

// Unit-variance inliers with five Normal(0, 100²) outliers. Inliers are kept
// within 3σ and outliers beyond 10σ so that every index has an unambiguous
// answer; alpha is fixed at the outlier variance.
func TestEndToEnd_MixtureRecoversOutliers(t *testing.T) {
	if testing.Short() {
		t.Skip("2000-sweep chains")
	}

	for _, seed := range []uint64{3, 17, 29} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			obs, outliers := testkit.SimulateObservations(testkit.SimulateOptions{
				N:            100,
				NOutliers:    5,
				Sigma:        1,
				OutlierSigma: 100,
				InlierClip:   3,
				OutlierFloor: 10,
			}, rand.NewPCG(seed, 1))
			model := testkit.NewWhiteNoiseModel(obs.Residuals, obs.Errors)

			cfg := DefaultConfig()
			cfg.Model = noise.ModelMixture
			cfg.OutlierFraction = 0.05
			cfg.VaryAlpha = false
			cfg.Alpha = 1e4
			cfg.VaryDF = false

			s, err := NewSampler(model, cfg, rand.NewPCG(seed, 2), zap.NewNop())
			require.NoError(t, err)
			res, err := NewDriver(s, testkit.NewMemoryChainStore(), zap.NewNop()).
				Run(context.Background(), []float64{1}, 2000)
			require.NoError(t, err)

			probs, err := summary.MarginalOutlierProbability(res.Chain.Pout, 500)
			require.NoError(t, err)
			require.Len(t, probs, 100)

			isOutlier := make(map[int]bool, len(outliers))
			for _, i := range outliers {
				isOutlier[i] = true
			}
			for i, p := range probs {
				if isOutlier[i] {
					assert.Greater(t, p, 0.8, "outlier %d (r=%.2f)", i, obs.Residuals[i])
				} else {
					assert.Less(t, p, 0.2, "inlier %d (r=%.2f)", i, obs.Residuals[i])
				}
			}
			assert.Equal(t, outliers, summary.Flag(probs, 0.5))
		})
	}
}
