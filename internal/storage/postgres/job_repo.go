package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/scene-index/internal/video/models"
)

const jobColumns = `job_id, video_id, stage, state, progress, error_text, started_at, finished_at`

type JobRepo struct {
	db *sqlx.DB
}

func NewJobRepo(db *sqlx.DB) *JobRepo {
	return &JobRepo{db: db}
}

// UpsertPending опирается на частичный уникальный индекс jobs_one_open_uq:
// при гонке вторая вставка упирается в конфликт и мы просто перечитываем
// уже открытую строку.
func (r *JobRepo) UpsertPending(ctx context.Context, videoID uuid.UUID, stage models.JobStage) (*models.Job, error) {
	const ins = `
		INSERT INTO jobs (job_id, video_id, stage, state)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT (video_id, stage) WHERE state IN ('pending', 'running') DO NOTHING
		RETURNING ` + jobColumns + `
	`

	var j models.Job
	err := r.db.GetContext(ctx, &j, ins, uuid.New(), videoID, stage)
	if err == nil {
		return &j, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job upsert pending: %w", err)
	}

	// Конфликт — открытая строка уже есть
	const sel = `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE video_id = $1 AND stage = $2 AND state IN ('pending', 'running')
	`
	if err := r.db.GetContext(ctx, &j, sel, videoID, stage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("job get open: %w", err)
	}
	return &j, nil
}

func (r *JobRepo) SetRunning(ctx context.Context, videoID uuid.UUID, stage models.JobStage, startedAt time.Time) error {
	const q = `
		UPDATE jobs SET state = 'running', started_at = $3
		WHERE video_id = $1 AND stage = $2 AND state IN ('pending', 'running')
	`
	return r.exec(ctx, q, videoID, stage, startedAt)
}

func (r *JobRepo) SetProgress(ctx context.Context, videoID uuid.UUID, stage models.JobStage, progress int) error {
	const q = `
		UPDATE jobs SET progress = $3
		WHERE video_id = $1 AND stage = $2 AND state IN ('pending', 'running')
	`
	return r.exec(ctx, q, videoID, stage, progress)
}

func (r *JobRepo) Complete(ctx context.Context, videoID uuid.UUID, stage models.JobStage, finishedAt time.Time) error {
	const q = `
		UPDATE jobs SET state = 'completed', progress = 100, finished_at = $3
		WHERE video_id = $1 AND stage = $2 AND state IN ('pending', 'running')
	`
	return r.exec(ctx, q, videoID, stage, finishedAt)
}

func (r *JobRepo) Fail(ctx context.Context, videoID uuid.UUID, stage models.JobStage, errorText string, finishedAt time.Time) error {
	const q = `
		UPDATE jobs SET state = 'failed', error_text = $3, finished_at = $4
		WHERE video_id = $1 AND stage = $2 AND state IN ('pending', 'running')
	`
	return r.exec(ctx, q, videoID, stage, errorText, finishedAt)
}

func (r *JobRepo) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]models.Job, error) {
	const q = `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE video_id = $1
		ORDER BY started_at ASC NULLS LAST, job_id ASC
	`

	var out []models.Job
	if err := r.db.SelectContext(ctx, &out, q, videoID); err != nil {
		return nil, fmt.Errorf("job list: %w", err)
	}
	return out, nil
}

func (r *JobRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("job update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}
