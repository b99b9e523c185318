package ports

import (
	"context"

	"github.com/google/uuid"

	"pulsaroutlier/domain/run"
)

// ResultsRepository defines the interface for run and outlier probability storage
type ResultsRepository interface {
	// SaveRun inserts or updates a run manifest
	SaveRun(ctx context.Context, m *run.Manifest) error

	// GetRun retrieves a run by ID
	GetRun(ctx context.Context, id uuid.UUID) (*run.Manifest, error)

	// ListRuns returns the most recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]*run.Manifest, error)

	// SaveOutlierProbabilities replaces the per-observation results of a run
	SaveOutlierProbabilities(ctx context.Context, runID uuid.UUID, probs []run.OutlierProbability) error

	// GetOutlierProbabilities returns the results of a run ordered by observation index.
	// When flaggedOnly is set only observations above the run threshold are returned.
	GetOutlierProbabilities(ctx context.Context, runID uuid.UUID, flaggedOnly bool) ([]run.OutlierProbability, error)
}
