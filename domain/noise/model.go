package noise

import (
	"fmt"
	"strings"
)

// OutlierModel selects which outlier updates are active in a sweep
type OutlierModel string

const (
	// ModelGaussian has no outlier component; z and theta stay at their initial values.
	ModelGaussian OutlierModel = "gaussian"
	// ModelStudentT marks every observation as drawn from the scale-mixture (Student-t) noise.
	ModelStudentT OutlierModel = "t"
	// ModelMixture is the Gaussian plus Student-t two-component mixture.
	ModelMixture OutlierModel = "mixture"
	// ModelVVH17 replaces the outlier density by a uniform over one spin period (arXiv:1609.02144).
	ModelVVH17 OutlierModel = "vvh17"
)

// ParseOutlierModel validates a model name
func ParseOutlierModel(s string) (OutlierModel, error) {
	m := OutlierModel(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModelGaussian, ModelStudentT, ModelMixture, ModelVVH17:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
}

// IsMixture reports whether z and theta are sampled
func (m OutlierModel) IsMixture() bool {
	return m == ModelMixture || m == ModelVVH17
}

// StartsAsOutlier reports whether z is initialised to one
func (m OutlierModel) StartsAsOutlier() bool {
	return m != ModelGaussian
}

// ThetaPrior is the prior on the population outlier fraction
type ThetaPrior string

const (
	ThetaPriorBeta ThetaPrior = "beta"
	ThetaPriorFlat ThetaPrior = "flat"
)

// ParseThetaPrior validates a theta prior name
func ParseThetaPrior(s string) (ThetaPrior, error) {
	p := ThetaPrior(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ThetaPriorBeta, ThetaPriorFlat:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownThetaPrior, s)
}
