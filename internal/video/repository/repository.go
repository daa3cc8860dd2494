package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/romariotrain/scene-index/internal/video/models"
)

type VideoRepository interface {
	Create(ctx context.Context, v *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	// GetOwned возвращает ErrNotFound и для чужого видео — наружу причина
	// не различается, чтобы не подсвечивать существование.
	GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Video, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Video, error)

	// Submit атомарно переводит uploading -> validating, заводит pending job
	// upload_validate и кладёт событие в outbox. Если видео уже не в
	// uploading, возвращает текущую строку без повторного enqueue.
	Submit(ctx context.Context, id uuid.UUID, event models.DomainEvent) (*models.Video, error)

	SetDuration(ctx context.Context, id uuid.UUID, durationS float64) error
	SetState(ctx context.Context, id uuid.UUID, state models.VideoState) (*models.Video, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errorText string) error

	// CommitScenes — граница стадии commit: вставка всех сцен, state=indexed,
	// indexed_at и завершение commit-джобы одной транзакцией.
	CommitScenes(ctx context.Context, id uuid.UUID, scenes []models.Scene, indexedAt time.Time) error
}

type JobRepository interface {
	// UpsertPending заводит pending job либо возвращает уже открытую строку:
	// на пару (video_id, stage) не бывает двух открытых джоб.
	UpsertPending(ctx context.Context, videoID uuid.UUID, stage models.JobStage) (*models.Job, error)
	SetRunning(ctx context.Context, videoID uuid.UUID, stage models.JobStage, startedAt time.Time) error
	SetProgress(ctx context.Context, videoID uuid.UUID, stage models.JobStage, progress int) error
	Complete(ctx context.Context, videoID uuid.UUID, stage models.JobStage, finishedAt time.Time) error
	Fail(ctx context.Context, videoID uuid.UUID, stage models.JobStage, errorText string, finishedAt time.Time) error
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]models.Job, error)
}

type UserRepository interface {
	// EnsureUser — upsert по уникальному external_auth_id при первом
	// аутентифицированном запросе. Email хранится в lowercase.
	EnsureUser(ctx context.Context, externalAuthID, email string) (*models.User, error)
}

// VideoLocker — взаимное исключение по video_id для входа в пайплайн.
// Второй претендент не блокируется: ok=false и задача уходит в no-op.
type VideoLocker interface {
	TryLock(ctx context.Context, videoID uuid.UUID) (release func(), ok bool, err error)
}
