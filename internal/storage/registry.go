package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

// ErrJobNotFound is returned when a job name is not in the registry.
var ErrJobNotFound = errors.New("job not found")

// JobRegistry records transcription jobs and their status in SQLite
type JobRegistry struct {
	db  *sql.DB
	now func() time.Time
}

// NewJobRegistry opens (or creates) the registry database at dbPath
func NewJobRegistry(dbPath string) (*JobRegistry, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps writers from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS transcription_jobs (
		id TEXT PRIMARY KEY,
		job_name TEXT NOT NULL UNIQUE,
		video_id TEXT NOT NULL,
		source_uri TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_video_id ON transcription_jobs(video_id);
	CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON transcription_jobs(updated_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &JobRegistry{db: db, now: time.Now}, nil
}

// CreateJob registers a newly submitted job in the QUEUED state
func (r *JobRegistry) CreateJob(ctx context.Context, jobName, videoID, sourceURI string) error {
	now := r.now().UnixMilli()
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transcription_jobs (id, job_name, video_id, source_uri, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), jobName, videoID, sourceURI, types.StatusQueued, now, now)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", jobName, err)
	}
	return nil
}

// UpdateJobStatus sets the status of a job
func (r *JobRegistry) UpdateJobStatus(ctx context.Context, jobName, status, detail string) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE transcription_jobs SET status = ?, detail = ?, updated_at = ? WHERE job_name = ?
	`, status, detail, r.now().UnixMilli(), jobName)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobName, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s: %w", jobName, ErrJobNotFound)
	}
	return nil
}

const jobColumns = `id, job_name, video_id, source_uri, status, detail, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*types.JobRecord, error) {
	var (
		rec                  types.JobRecord
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.JobName, &rec.VideoID, &rec.SourceURI, &rec.Status, &rec.Detail, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &rec, nil
}

// GetJob retrieves a job by name
func (r *JobRegistry) GetJob(ctx context.Context, jobName string) (*types.JobRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM transcription_jobs WHERE job_name = ?`, jobName)
	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", jobName, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobName, err)
	}
	return rec, nil
}

// ListJobs returns the most recently updated jobs
func (r *JobRegistry) ListJobs(ctx context.Context, limit int) ([]types.JobRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM transcription_jobs ORDER BY updated_at DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []types.JobRecord{}
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *rec)
	}
	return jobs, rows.Err()
}

// PruneBefore deletes jobs last updated before cutoff and returns how many were removed
func (r *JobRegistry) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transcription_jobs WHERE updated_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection
func (r *JobRegistry) Close() error {
	return r.db.Close()
}
