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

const videoColumns = `video_id, user_id, storage_key, mime_type, size_bytes, title, description, duration_s, state, error_text, created_at, indexed_at`

type VideoRepo struct {
	db     *sqlx.DB
	outbox *OutboxRepo
}

func NewVideoRepo(db *sqlx.DB, outbox *OutboxRepo) *VideoRepo {
	return &VideoRepo{db: db, outbox: outbox}
}

func (r *VideoRepo) Create(ctx context.Context, v *models.Video) error {
	const q = `
		INSERT INTO videos (video_id, user_id, storage_key, mime_type, size_bytes, title, description, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, q,
		v.ID, v.UserID, v.StorageKey, v.MimeType, v.SizeBytes, v.Title, v.Description, v.State, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("video create: %w", err)
	}
	return nil
}

func (r *VideoRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE video_id = $1`

	var v models.Video
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("video get by id: %w", err)
	}
	return &v, nil
}

func (r *VideoRepo) GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Video, error) {
	// Чужое и несуществующее неразличимы снаружи
	q := `SELECT ` + videoColumns + ` FROM videos WHERE video_id = $1 AND user_id = $2`

	var v models.Video
	if err := r.db.GetContext(ctx, &v, q, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("video get owned: %w", err)
	}
	return &v, nil
}

func (r *VideoRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Video, error) {
	q := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE user_id = $1
		ORDER BY created_at DESC, video_id DESC
		LIMIT $2 OFFSET $3
	`

	var out []models.Video
	if err := r.db.SelectContext(ctx, &out, q, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("video list: %w", err)
	}
	return out, nil
}

// Submit — переход uploading -> validating, job upload_validate и outbox
// в одной транзакции. Строка берётся FOR UPDATE: конкурентные
// complete_upload по одному видео сериализуются здесь, и второй увидит
// уже не-uploading состояние.
func (r *VideoRepo) Submit(ctx context.Context, id uuid.UUID, event models.DomainEvent) (*models.Video, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := `SELECT ` + videoColumns + ` FROM videos WHERE video_id = $1 FOR UPDATE`

	var v models.Video
	if err := tx.GetContext(ctx, &v, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("video lock: %w", err)
	}

	if v.State != models.StateUploading {
		// Идемпотентный повтор: текущее состояние без второго enqueue
		return &v, nil
	}

	const upd = `
		UPDATE videos SET state = $2 WHERE video_id = $1
		RETURNING ` + videoColumns + `
	`
	if err := tx.GetContext(ctx, &v, upd, id, models.StateValidating); err != nil {
		return nil, fmt.Errorf("video submit update: %w", err)
	}

	const jobIns = `
		INSERT INTO jobs (job_id, video_id, stage, state)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.ExecContext(ctx, jobIns, uuid.New(), id, models.StageUploadValidate, models.JobPending); err != nil {
		return nil, fmt.Errorf("insert validate job: %w", err)
	}

	if err := r.outbox.Add(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("add outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &v, nil
}

func (r *VideoRepo) SetDuration(ctx context.Context, id uuid.UUID, durationS float64) error {
	const q = `UPDATE videos SET duration_s = $2 WHERE video_id = $1`

	res, err := r.db.ExecContext(ctx, q, id, durationS)
	if err != nil {
		return fmt.Errorf("video set duration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *VideoRepo) SetState(ctx context.Context, id uuid.UUID, state models.VideoState) (*models.Video, error) {
	const q = `
		UPDATE videos SET state = $2 WHERE video_id = $1
		RETURNING ` + videoColumns + `
	`

	var v models.Video
	if err := r.db.GetContext(ctx, &v, q, id, state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("video set state: %w", err)
	}
	return &v, nil
}

func (r *VideoRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorText string) error {
	const q = `UPDATE videos SET state = $2, error_text = $3 WHERE video_id = $1`

	res, err := r.db.ExecContext(ctx, q, id, models.StateFailed, errorText)
	if err != nil {
		return fmt.Errorf("video mark failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CommitScenes — единственное место, где появляются строки scenes.
// Вся запись + state=indexed + закрытие commit-джобы — одна транзакция
// на serializable изоляции.
func (r *VideoRepo) CommitScenes(ctx context.Context, id uuid.UUID, scenes []models.Scene, indexedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const sceneIns = `
		INSERT INTO scenes (scene_id, video_id, start_s, end_s, transcript, text_vec, image_vec, vision_tags, sidecar_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, s := range scenes {
		_, err := tx.ExecContext(ctx, sceneIns,
			s.ID, s.VideoID, s.StartS, s.EndS, s.Transcript, s.TextVec, s.ImageVec, s.VisionTags, s.SidecarKey, indexedAt,
		)
		if err != nil {
			return fmt.Errorf("insert scene %s: %w", s.ID, err)
		}
	}

	const upd = `
		UPDATE videos SET state = $2, indexed_at = $3
		WHERE video_id = $1 AND indexed_at IS NULL
	`
	res, err := tx.ExecContext(ctx, upd, id, models.StateIndexed, indexedAt)
	if err != nil {
		return fmt.Errorf("video mark indexed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// кто-то уже закоммитил — double-commit запрещён
		return models.ErrConflict
	}

	const jobUpd = `
		UPDATE jobs SET state = $3, progress = 100, finished_at = $4
		WHERE video_id = $1 AND stage = $2 AND state IN ('pending', 'running')
	`
	if _, err := tx.ExecContext(ctx, jobUpd, id, models.StageCommit, models.JobCompleted, indexedAt); err != nil {
		return fmt.Errorf("complete commit job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
