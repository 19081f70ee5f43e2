package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/gif-processor/internal/model"
)

// ErrJobNotFound is returned when no job has the requested ID.
var ErrJobNotFound = errors.New("job not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pipeline_jobs (
	id          UUID PRIMARY KEY,
	source_key  TEXT NOT NULL,
	output_key  TEXT NOT NULL,
	config      JSONB NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Repository stores pipeline jobs in PostgreSQL.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the jobs table if it does not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure jobs schema: %w", err)
	}
	return nil
}

// CreateJob inserts a new job and fills in its timestamps.
func (r *Repository) CreateJob(ctx context.Context, job model.Job) (model.Job, error) {
	query := `
		INSERT INTO pipeline_jobs (id, source_key, output_key, config, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx, query, job.ID, job.SourceKey, job.OutputKey, []byte(job.Config), job.Status,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return model.Job{}, fmt.Errorf("create: failed to insert job: %w", err)
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (model.Job, error) {
	query := `
		SELECT source_key, output_key, config, status, error, created_at, updated_at
		FROM pipeline_jobs
		WHERE id = $1
	`

	job := model.Job{ID: id}
	var config []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.SourceKey, &job.OutputKey, &config, &job.Status, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Job{}, ErrJobNotFound
		}
		return model.Job{}, fmt.Errorf("get: failed to get job: %w", err)
	}
	job.Config = config

	return job, nil
}

// UpdateStatus sets the status and error text of a job.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.JobStatus, errText string) error {
	query := `
		UPDATE pipeline_jobs
		SET status = $1, error = $2, updated_at = now()
		WHERE id = $3
	`

	res, err := r.db.ExecContext(ctx, query, status, errText, id)
	if err != nil {
		return fmt.Errorf("update: failed to update job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update: failed to get number of rows affected: %w", err)
	}
	if rows == 0 {
		return ErrJobNotFound
	}

	return nil
}
