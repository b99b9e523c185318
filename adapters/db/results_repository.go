// Package db stores run manifests and outlier probabilities in PostgreSQL or SQLite.
package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"pulsaroutlier/domain/run"
	"pulsaroutlier/internal/errors"
	"pulsaroutlier/internal/migration"
	"pulsaroutlier/ports"
)

// Open connects to the database and applies the schema migrations.
// driver is "postgres" or "sqlite3".
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to connect to database")
	}
	if driver == "sqlite3" {
		// one writer, and foreign keys are off by default
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, errors.DatabaseError(err, "failed to enable foreign keys")
		}
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ResultsRepositoryImpl implements ResultsRepository over sqlx
type ResultsRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultsRepository creates a results repository on an open database
func NewResultsRepository(db *sqlx.DB) ports.ResultsRepository {
	return &ResultsRepositoryImpl{db: db}
}

// runRow is the flat database form of run.Manifest
type runRow struct {
	ID          string       `db:"id"`
	Pulsar      string       `db:"pulsar"`
	Model       string       `db:"model"`
	NIter       int          `db:"niter"`
	Burn        int          `db:"burn"`
	Chains      int          `db:"chains"`
	NObs        int          `db:"nobs"`
	OutDir      string       `db:"outdir"`
	Threshold   float64      `db:"threshold"`
	Status      string       `db:"status"`
	DataHash    string       `db:"data_hash"`
	ConfigHash  string       `db:"config_hash"`
	Seed        string       `db:"seed"`
	CodeVersion string       `db:"code_version"`
	Fingerprint string       `db:"fingerprint"`
	CreatedAt   time.Time    `db:"created_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func toRow(m *run.Manifest) runRow {
	row := runRow{
		ID:          m.ID.String(),
		Pulsar:      m.Pulsar,
		Model:       m.Model,
		NIter:       m.NIter,
		Burn:        m.Burn,
		Chains:      m.Chains,
		NObs:        m.NObs,
		OutDir:      m.OutDir,
		Threshold:   m.Threshold,
		Status:      string(m.Status),
		DataHash:    m.Fingerprint.DataHash,
		ConfigHash:  m.Fingerprint.ConfigHash,
		Seed:        strconv.FormatUint(m.Fingerprint.Seed, 10),
		CodeVersion: m.Fingerprint.CodeVersion,
		Fingerprint: m.Fingerprint.Fingerprint,
		CreatedAt:   m.CreatedAt.UTC(),
	}
	if m.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: m.CompletedAt.UTC(), Valid: true}
	}
	return row
}

func (r runRow) manifest() (*run.Manifest, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	seed, err := strconv.ParseUint(r.Seed, 10, 64)
	if err != nil {
		return nil, err
	}
	m := &run.Manifest{
		ID:        id,
		Pulsar:    r.Pulsar,
		Model:     r.Model,
		NIter:     r.NIter,
		Burn:      r.Burn,
		Chains:    r.Chains,
		NObs:      r.NObs,
		OutDir:    r.OutDir,
		Threshold: r.Threshold,
		Status:    run.Status(r.Status),
		Fingerprint: run.RunFingerprint{
			DataHash:    r.DataHash,
			ConfigHash:  r.ConfigHash,
			Seed:        seed,
			CodeVersion: r.CodeVersion,
			Fingerprint: r.Fingerprint,
		},
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time.UTC()
		m.CompletedAt = &t
	}
	return m, nil
}

const runColumns = `id, pulsar, model, niter, burn, chains, nobs, outdir, threshold, status,
	data_hash, config_hash, seed, code_version, fingerprint, created_at, completed_at`

// SaveRun inserts a manifest or updates its status and completion time
func (r *ResultsRepositoryImpl) SaveRun(ctx context.Context, m *run.Manifest) error {
	if err := m.Validate(); err != nil {
		return errors.WithCode(errors.CodeInvalidInput, err)
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (:id, :pulsar, :model, :niter, :burn, :chains, :nobs, :outdir, :threshold, :status,
			:data_hash, :config_hash, :seed, :code_version, :fingerprint, :created_at, :completed_at)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			threshold = excluded.threshold,
			completed_at = excluded.completed_at
	`, toRow(m))
	if err != nil {
		return errors.DatabaseError(err, "failed to save run")
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *ResultsRepositoryImpl) GetRun(ctx context.Context, id uuid.UUID) (*run.Manifest, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run " + id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to get run")
	}
	m, err := row.manifest()
	if err != nil {
		return nil, errors.DatabaseError(err, "corrupt run row")
	}
	return m, nil
}

// ListRuns returns runs newest first, optionally limited
func (r *ResultsRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]*run.Manifest, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError(err, "failed to list runs")
	}

	runs := make([]*run.Manifest, 0, len(rows))
	for _, row := range rows {
		m, err := row.manifest()
		if err != nil {
			return nil, errors.DatabaseError(err, "corrupt run row")
		}
		runs = append(runs, m)
	}
	return runs, nil
}

// probabilityRow is the database form of run.OutlierProbability
type probabilityRow struct {
	RunID   string  `db:"run_id"`
	Index   int     `db:"obs_index"`
	TOA     float64 `db:"toa"`
	Backend string  `db:"backend"`
	Mean    float64 `db:"mean_pout"`
	Median  float64 `db:"median_pout"`
	Flagged bool    `db:"flagged"`
}

// SaveOutlierProbabilities replaces every stored probability of a run in one transaction
func (r *ResultsRepositoryImpl) SaveOutlierProbabilities(ctx context.Context, runID uuid.UUID, probs []run.OutlierProbability) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM outlier_probabilities WHERE run_id = ?`), runID.String()); err != nil {
		return errors.DatabaseError(err, "failed to clear outlier probabilities")
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO outlier_probabilities (run_id, obs_index, toa, backend, mean_pout, median_pout, flagged)
		VALUES (:run_id, :obs_index, :toa, :backend, :mean_pout, :median_pout, :flagged)
	`)
	if err != nil {
		return errors.DatabaseError(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, p := range probs {
		row := probabilityRow{
			RunID:   runID.String(),
			Index:   p.Index,
			TOA:     p.TOA,
			Backend: p.Backend,
			Mean:    p.Mean,
			Median:  p.Median,
			Flagged: p.Flagged,
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return errors.DatabaseError(err, "failed to insert outlier probability")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError(err, "failed to commit outlier probabilities")
	}
	return nil
}

// GetOutlierProbabilities returns a run's results ordered by observation index
func (r *ResultsRepositoryImpl) GetOutlierProbabilities(ctx context.Context, runID uuid.UUID, flaggedOnly bool) ([]run.OutlierProbability, error) {
	query := `
		SELECT run_id, obs_index, toa, backend, mean_pout, median_pout, flagged
		FROM outlier_probabilities
		WHERE run_id = ?`
	args := []interface{}{runID.String()}
	if flaggedOnly {
		query += " AND flagged = ?"
		args = append(args, true)
	}
	query += " ORDER BY obs_index"

	var rows []probabilityRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError(err, "failed to get outlier probabilities")
	}

	probs := make([]run.OutlierProbability, len(rows))
	for i, row := range rows {
		probs[i] = run.OutlierProbability{
			RunID:   runID,
			Index:   row.Index,
			TOA:     row.TOA,
			Backend: row.Backend,
			Mean:    row.Mean,
			Median:  row.Median,
			Flagged: row.Flagged,
		}
	}
	return probs, nil
}
