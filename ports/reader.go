package ports

import (
	"context"

	"github.com/google/uuid"

	"pulsaroutlier/domain/noise"
	"pulsaroutlier/domain/run"
)

// ReaderPort provides read-only access to stored results for the API.
// The API cannot write runs or modify stored probabilities.
type ReaderPort interface {
	GetRun(ctx context.Context, id uuid.UUID) (*run.Manifest, error)
	ListRuns(ctx context.Context, limit int) ([]*run.Manifest, error)
	GetOutlierProbabilities(ctx context.Context, runID uuid.UUID, flaggedOnly bool) ([]run.OutlierProbability, error)
}

// ResidualReader loads an observation table from a file
type ResidualReader interface {
	Read(ctx context.Context, path string) (*noise.ObservationSet, error)
}
