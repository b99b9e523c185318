package run

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status of a run in the results repository
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var ErrInvalidManifest = errors.New("invalid run manifest")

// Manifest describes one outlier analysis: which data, which model, how many
// chains and where they were written. It is stored before any chain output.
type Manifest struct {
	ID          uuid.UUID      `json:"id"`
	Pulsar      string         `json:"pulsar"`
	Model       string         `json:"model"`
	NIter       int            `json:"niter"`
	Burn        int            `json:"burn"`
	Chains      int            `json:"chains"`
	NObs        int            `json:"nobs"`
	OutDir      string         `json:"outdir"`
	Threshold   float64        `json:"threshold"`
	Status      Status         `json:"status"`
	Fingerprint RunFingerprint `json:"fingerprint"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// NewManifest creates a running manifest with a fresh ID
func NewManifest(pulsar, model string, niter, burn, chains, nobs int, outdir string, fp RunFingerprint) *Manifest {
	return &Manifest{
		ID:          uuid.New(),
		Pulsar:      pulsar,
		Model:       model,
		NIter:       niter,
		Burn:        burn,
		Chains:      chains,
		NObs:        nobs,
		OutDir:      outdir,
		Status:      StatusRunning,
		Fingerprint: fp,
		CreatedAt:   time.Now().UTC(),
	}
}

// Complete marks the run finished at t
func (m *Manifest) Complete(t time.Time) {
	t = t.UTC()
	m.Status = StatusCompleted
	m.CompletedAt = &t
}

// Fail marks the run as failed at t
func (m *Manifest) Fail(t time.Time) {
	t = t.UTC()
	m.Status = StatusFailed
	m.CompletedAt = &t
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidManifest)
	}
	if m.Model == "" {
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidManifest)
	}
	if m.NIter <= 0 {
		return fmt.Errorf("%w: niter must be positive", ErrInvalidManifest)
	}
	if m.Burn < 0 || m.Burn >= m.NIter {
		return fmt.Errorf("%w: burn %d outside [0, %d)", ErrInvalidManifest, m.Burn, m.NIter)
	}
	if m.Chains <= 0 {
		return fmt.Errorf("%w: chains must be positive", ErrInvalidManifest)
	}
	if m.Fingerprint.Fingerprint == "" {
		return fmt.Errorf("%w: fingerprint not computed", ErrInvalidManifest)
	}
	return nil
}

// OutlierProbability is the summarised outlier probability of one observation in a run
type OutlierProbability struct {
	RunID   uuid.UUID `json:"run_id" db:"run_id"`
	Index   int       `json:"index" db:"obs_index"`
	TOA     float64   `json:"toa" db:"toa"`
	Backend string    `json:"backend" db:"backend"`
	Mean    float64   `json:"mean" db:"mean_pout"`
	Median  float64   `json:"median" db:"median_pout"`
	Flagged bool      `json:"flagged" db:"flagged"`
}
