package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/scene-index/internal/video/models"
)

// MemoryRepository держит видео, джобы и сцены в памяти. Используется в
// тестах сервиса и пайплайна вместо Postgres; семантика методов повторяет
// контракт интерфейсов, включая идемпотентность Submit.
type MemoryRepository struct {
	mu     sync.RWMutex
	videos map[uuid.UUID]*models.Video
	jobs   map[uuid.UUID][]*models.Job
	scenes map[uuid.UUID][]models.Scene
	outbox []models.DomainEvent
	locks  map[uuid.UUID]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		videos: make(map[uuid.UUID]*models.Video),
		jobs:   make(map[uuid.UUID][]*models.Job),
		scenes: make(map[uuid.UUID][]models.Scene),
		locks:  make(map[uuid.UUID]struct{}),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, v *models.Video) error {
	if v == nil || v.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.videos[v.ID]; exists {
		return models.ErrConflict
	}

	// Защитная копия, чтобы внешняя сторона не могла мутировать хранимое
	cp := *v
	r.videos[v.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.videos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *MemoryRepository) GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Video, error) {
	v, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.UserID != userID {
		return nil, models.ErrNotFound
	}
	return v, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Video
	for _, v := range r.videos {
		if v.UserID == userID {
			out = append(out, *v)
		}
	}
	// created_at DESC, video_id DESC — детерминированный порядок листинга
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Submit(ctx context.Context, id uuid.UUID, event models.DomainEvent) (*models.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if v.State != models.StateUploading {
		cp := *v
		return &cp, nil
	}

	v.State = models.StateValidating
	r.jobs[id] = append(r.jobs[id], &models.Job{
		ID:      uuid.New(),
		VideoID: id,
		Stage:   models.StageUploadValidate,
		State:   models.JobPending,
	})
	r.outbox = append(r.outbox, event)

	cp := *v
	return &cp, nil
}

func (r *MemoryRepository) SetDuration(ctx context.Context, id uuid.UUID, durationS float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[id]
	if !ok {
		return models.ErrNotFound
	}
	v.DurationS = &durationS
	return nil
}

func (r *MemoryRepository) SetState(ctx context.Context, id uuid.UUID, state models.VideoState) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	v.State = state
	cp := *v
	return &cp, nil
}

func (r *MemoryRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[id]
	if !ok {
		return models.ErrNotFound
	}
	v.State = models.StateFailed
	v.ErrorText = &errorText
	return nil
}

func (r *MemoryRepository) CommitScenes(ctx context.Context, id uuid.UUID, scenes []models.Scene, indexedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[id]
	if !ok {
		return models.ErrNotFound
	}
	if v.IndexedAt != nil {
		// Повторный коммит — нарушение entry guard, фиксируем как конфликт
		return models.ErrConflict
	}

	r.scenes[id] = append([]models.Scene(nil), scenes...)
	v.State = models.StateIndexed
	ts := indexedAt
	v.IndexedAt = &ts

	for _, j := range r.jobs[id] {
		if j.Stage == models.StageCommit && j.Open() {
			j.State = models.JobCompleted
			j.Progress = 100
			fin := indexedAt
			j.FinishedAt = &fin
		}
	}
	return nil
}

// ScenesOf возвращает закоммиченные сцены (только для тестов).
func (r *MemoryRepository) ScenesOf(videoID uuid.UUID) []models.Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Scene(nil), r.scenes[videoID]...)
}

// OutboxLen возвращает число записанных в outbox событий (только для тестов).
func (r *MemoryRepository) OutboxLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outbox)
}

// --- JobRepository ---

func (r *MemoryRepository) UpsertPending(ctx context.Context, videoID uuid.UUID, stage models.JobStage) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.jobs[videoID] {
		if j.Stage == stage && j.Open() {
			cp := *j
			return &cp, nil
		}
	}
	j := &models.Job{
		ID:      uuid.New(),
		VideoID: videoID,
		Stage:   stage,
		State:   models.JobPending,
	}
	r.jobs[videoID] = append(r.jobs[videoID], j)
	cp := *j
	return &cp, nil
}

func (r *MemoryRepository) SetRunning(ctx context.Context, videoID uuid.UUID, stage models.JobStage, startedAt time.Time) error {
	return r.updateJob(videoID, stage, func(j *models.Job) {
		j.State = models.JobRunning
		ts := startedAt
		j.StartedAt = &ts
	})
}

func (r *MemoryRepository) SetProgress(ctx context.Context, videoID uuid.UUID, stage models.JobStage, progress int) error {
	return r.updateJob(videoID, stage, func(j *models.Job) {
		j.Progress = progress
	})
}

func (r *MemoryRepository) Complete(ctx context.Context, videoID uuid.UUID, stage models.JobStage, finishedAt time.Time) error {
	return r.updateJob(videoID, stage, func(j *models.Job) {
		j.State = models.JobCompleted
		j.Progress = 100
		ts := finishedAt
		j.FinishedAt = &ts
	})
}

func (r *MemoryRepository) Fail(ctx context.Context, videoID uuid.UUID, stage models.JobStage, errorText string, finishedAt time.Time) error {
	return r.updateJob(videoID, stage, func(j *models.Job) {
		j.State = models.JobFailed
		j.ErrorText = &errorText
		ts := finishedAt
		j.FinishedAt = &ts
	})
}

func (r *MemoryRepository) updateJob(videoID uuid.UUID, stage models.JobStage, fn func(*models.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.jobs[videoID] {
		if j.Stage == stage && j.Open() {
			fn(j)
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *MemoryRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Job, 0, len(r.jobs[videoID]))
	for _, j := range r.jobs[videoID] {
		out = append(out, *j)
	}
	return out, nil
}

// --- VideoLocker ---

func (r *MemoryRepository) TryLock(ctx context.Context, videoID uuid.UUID) (func(), bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.locks[videoID]; held {
		return nil, false, nil
	}
	r.locks[videoID] = struct{}{}
	release := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.locks, videoID)
	}
	return release, true, nil
}
