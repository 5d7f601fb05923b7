package ocr

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"bridgesheet/internal/model"
)

// Job statuses. Transitions only move forward and each job reaches exactly
// one terminal state; recovery from failed is a new job, never a retry.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Job is one extraction attempt against one uploaded photo. ImageURL is
// immutable after creation. Result is set only on complete, Error only on
// failed.
type Job struct {
	ID          string          `json:"id"`
	EventID     string          `json:"event_id"`
	ImageURL    string          `json:"image_url"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// Repository persists extraction jobs in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending job for the given photo.
func (r *Repository) Create(ctx context.Context, eventID, imageURL string) (Job, error) {
	job := Job{
		ID:       uuid.NewString(),
		EventID:  eventID,
		ImageURL: imageURL,
		Status:   StatusPending,
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO ocr_jobs (id, event_id, image_url, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, job.ID, job.EventID, job.ImageURL, job.Status)
	if err := row.Scan(&job.CreatedAt); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Get returns a single job by id.
func (r *Repository) Get(ctx context.Context, id string) (Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, image_url, status, result, error, created_at, processed_at
		FROM ocr_jobs WHERE id = $1
	`, id)
	return scanJob(row)
}

// ListByEvent returns all jobs for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID string) ([]Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, image_url, status, result, error, created_at, processed_at
		FROM ocr_jobs
		WHERE event_id = $1
		ORDER BY created_at DESC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkProcessing advances a pending job. The status guard in the WHERE
// clause keeps transitions one-directional.
func (r *Repository) MarkProcessing(ctx context.Context, id string) error {
	return r.transition(ctx, `
		UPDATE ocr_jobs SET status = $2
		WHERE id = $1 AND status = $3
	`, id, StatusProcessing, StatusPending)
}

// MarkComplete stores the canonical result and stamps processed_at.
func (r *Repository) MarkComplete(ctx context.Context, id string, result []byte) error {
	return r.transition(ctx, `
		UPDATE ocr_jobs SET status = $2, result = $4, processed_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, StatusComplete, StatusProcessing, result)
}

// MarkFailed stores the error message and stamps processed_at.
func (r *Repository) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.transition(ctx, `
		UPDATE ocr_jobs SET status = $2, error = $4, processed_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, StatusFailed, StatusProcessing, errMsg)
}

func (r *Repository) transition(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errInvalidTransition
	}
	return nil
}

var errInvalidTransition = errors.New("job not in expected state")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var result []byte
	err := row.Scan(&job.ID, &job.EventID, &job.ImageURL, &job.Status,
		&result, &job.Error, &job.CreatedAt, &job.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, model.ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	job.Result = result
	return job, nil
}
