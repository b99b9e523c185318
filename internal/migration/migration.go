package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"pulsaroutlier/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the results schema. The statements are portable
// between PostgreSQL and SQLite.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.DatabaseError(err, "failed to create runs table")
	}

	if err := r.createOutlierProbabilitiesTable(ctx, db); err != nil {
		return errors.DatabaseError(err, "failed to create outlier_probabilities table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR(36) PRIMARY KEY,
			pulsar VARCHAR(100) NOT NULL DEFAULT '',
			model VARCHAR(20) NOT NULL,
			niter INTEGER NOT NULL,
			burn INTEGER NOT NULL,
			chains INTEGER NOT NULL,
			nobs INTEGER NOT NULL,
			outdir TEXT NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'running',
			data_hash VARCHAR(64) NOT NULL,
			config_hash VARCHAR(64) NOT NULL,
			seed VARCHAR(20) NOT NULL,
			code_version VARCHAR(50) NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)
	`)
	return err
}

func (r *MigrationRunner) createOutlierProbabilitiesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS outlier_probabilities (
			run_id VARCHAR(36) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			obs_index INTEGER NOT NULL,
			toa DOUBLE PRECISION NOT NULL,
			backend VARCHAR(100) NOT NULL,
			mean_pout DOUBLE PRECISION NOT NULL,
			median_pout DOUBLE PRECISION NOT NULL,
			flagged BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (run_id, obs_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint)",
		"CREATE INDEX IF NOT EXISTS idx_outlier_probabilities_flagged ON outlier_probabilities(run_id, flagged)",
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
