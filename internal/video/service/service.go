package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/scene-index/internal/objstore"
	"github.com/romariotrain/scene-index/internal/video/domain"
	"github.com/romariotrain/scene-index/internal/video/models"
	"github.com/romariotrain/scene-index/internal/video/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ObjectStore — то, что сервису нужно от OSG: presigned PUT и проверка
// наличия объекта.
type ObjectStore interface {
	PresignPut(ctx context.Context, bucket, key string, ttl time.Duration) (string, time.Time, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

type Service struct {
	videos repository.VideoRepository
	jobs   repository.JobRepository
	store  ObjectStore
	clock  func() time.Time
	idGen  func() uuid.UUID
}

func New(videos repository.VideoRepository, jobs repository.JobRepository, store ObjectStore) *Service {
	return &Service{
		videos: videos,
		jobs:   jobs,
		store:  store,
		clock:  time.Now,
		idGen:  uuid.New,
	}
}

type InitUploadParams struct {
	Filename    string
	MimeType    string
	SizeBytes   int64
	Title       string
	Description string
}

type InitUploadResult struct {
	VideoID   uuid.UUID
	UploadURL string
	ExpiresAt time.Time
}

// InitUpload заводит Video в uploading и выдаёт presigned PUT. Вызов
// намеренно не идемпотентен: каждый init — свежий video_id.
func (s *Service) InitUpload(ctx context.Context, userID uuid.UUID, p InitUploadParams) (*InitUploadResult, error) {
	if userID == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if _, ok := models.AllowedMimeTypes[p.MimeType]; !ok {
		return nil, fmt.Errorf("unsupported mime type %q: %w", p.MimeType, models.ErrInvalidArgument)
	}
	if p.SizeBytes <= 0 || p.SizeBytes > models.MaxVideoSizeBytes {
		return nil, fmt.Errorf("size %d out of range: %w", p.SizeBytes, models.ErrInvalidArgument)
	}
	if len(p.Filename) > 255 {
		return nil, fmt.Errorf("filename too long: %w", models.ErrInvalidArgument)
	}

	videoID := s.idGen()
	storageKey := objstore.UploadKey(userID, videoID, p.Filename)

	v := &models.Video{
		ID:         videoID,
		UserID:     userID,
		StorageKey: storageKey,
		MimeType:   p.MimeType,
		SizeBytes:  p.SizeBytes,
		State:      models.StateUploading,
		CreatedAt:  s.clock(),
	}
	if p.Title != "" {
		v.Title = &p.Title
	}
	if p.Description != "" {
		v.Description = &p.Description
	}

	if err := s.videos.Create(ctx, v); err != nil {
		return nil, err
	}

	uploadURL, expiresAt, err := s.store.PresignPut(ctx, objstore.BucketUploads, storageKey, objstore.PresignPutTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &InitUploadResult{
		VideoID:   videoID,
		UploadURL: uploadURL,
		ExpiresAt: expiresAt,
	}, nil
}

// CompleteUpload валиден только из uploading: проверяет объект в бакете,
// переводит в validating и ставит задачу (атомарно через outbox).
// Повторные вызовы из validating/processing/indexed/failed идемпотентны —
// текущее состояние без второго enqueue.
func (s *Service) CompleteUpload(ctx context.Context, userID, videoID uuid.UUID) (models.VideoState, error) {
	if userID == uuid.Nil || videoID == uuid.Nil {
		return "", models.ErrInvalidArgument
	}

	v, err := s.videos.GetOwned(ctx, videoID, userID)
	if err != nil {
		return "", err
	}

	// Строку из базы не принимаем на веру
	if _, err := domain.ParseState(string(v.State)); err != nil {
		return "", err
	}

	switch v.State {
	case models.StateUploading:
		// дальше по коду
	case models.StateDeleted:
		return "", models.ErrNotFound
	default:
		return v.State, nil
	}

	exists, err := s.store.Exists(ctx, objstore.BucketUploads, v.StorageKey)
	if err != nil {
		return "", err
	}
	if !exists {
		// объект ещё не долетел: остаёмся в uploading, клиент ретраит
		return v.State, models.ErrNotReady
	}

	updated, err := s.videos.Submit(ctx, videoID, models.NewVideoSubmitted(videoID))
	if err != nil {
		return "", err
	}
	return updated.State, nil
}

func (s *Service) ListVideos(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Video, error) {
	if userID == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.videos.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) GetVideo(ctx context.Context, userID, videoID uuid.UUID) (*models.Video, error) {
	if userID == uuid.Nil || videoID == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	return s.videos.GetOwned(ctx, videoID, userID)
}

type Status struct {
	Video *models.Video
	Jobs  []models.Job
}

// GetStatus — read-only снапшот состояния видео и его джоб.
func (s *Service) GetStatus(ctx context.Context, userID, videoID uuid.UUID) (*Status, error) {
	v, err := s.GetVideo(ctx, userID, videoID)
	if err != nil {
		return nil, err
	}

	jobs, err := s.jobs.ListByVideo(ctx, videoID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return &Status{Video: v, Jobs: jobs}, nil
}
