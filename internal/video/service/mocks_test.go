package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/scene-index/internal/video/models"
)

type VideosMock struct {
	mock.Mock
}

func (m *VideosMock) Create(ctx context.Context, v *models.Video) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *VideosMock) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *VideosMock) GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Video, error) {
	args := m.Called(ctx, id, userID)
	if v := args.Get(0); v != nil {
		return v.(*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *VideosMock) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Video, error) {
	args := m.Called(ctx, userID, limit, offset)
	if v := args.Get(0); v != nil {
		return v.([]models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *VideosMock) Submit(ctx context.Context, id uuid.UUID, event models.DomainEvent) (*models.Video, error) {
	args := m.Called(ctx, id, event)
	if v := args.Get(0); v != nil {
		return v.(*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *VideosMock) SetDuration(ctx context.Context, id uuid.UUID, durationS float64) error {
	args := m.Called(ctx, id, durationS)
	return args.Error(0)
}

func (m *VideosMock) SetState(ctx context.Context, id uuid.UUID, state models.VideoState) (*models.Video, error) {
	args := m.Called(ctx, id, state)
	if v := args.Get(0); v != nil {
		return v.(*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *VideosMock) MarkFailed(ctx context.Context, id uuid.UUID, errorText string) error {
	args := m.Called(ctx, id, errorText)
	return args.Error(0)
}

func (m *VideosMock) CommitScenes(ctx context.Context, id uuid.UUID, scenes []models.Scene, indexedAt time.Time) error {
	args := m.Called(ctx, id, scenes, indexedAt)
	return args.Error(0)
}

type JobsMock struct {
	mock.Mock
}

func (m *JobsMock) UpsertPending(ctx context.Context, videoID uuid.UUID, stage models.JobStage) (*models.Job, error) {
	args := m.Called(ctx, videoID, stage)
	if v := args.Get(0); v != nil {
		return v.(*models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *JobsMock) SetRunning(ctx context.Context, videoID uuid.UUID, stage models.JobStage, startedAt time.Time) error {
	args := m.Called(ctx, videoID, stage, startedAt)
	return args.Error(0)
}

func (m *JobsMock) SetProgress(ctx context.Context, videoID uuid.UUID, stage models.JobStage, progress int) error {
	args := m.Called(ctx, videoID, stage, progress)
	return args.Error(0)
}

func (m *JobsMock) Complete(ctx context.Context, videoID uuid.UUID, stage models.JobStage, finishedAt time.Time) error {
	args := m.Called(ctx, videoID, stage, finishedAt)
	return args.Error(0)
}

func (m *JobsMock) Fail(ctx context.Context, videoID uuid.UUID, stage models.JobStage, errorText string, finishedAt time.Time) error {
	args := m.Called(ctx, videoID, stage, errorText, finishedAt)
	return args.Error(0)
}

func (m *JobsMock) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]models.Job, error) {
	args := m.Called(ctx, videoID)
	if v := args.Get(0); v != nil {
		return v.([]models.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) PresignPut(ctx context.Context, bucket, key string, ttl time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, bucket, key, ttl)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *StoreMock) Exists(ctx context.Context, bucket, key string) (bool, error) {
	args := m.Called(ctx, bucket, key)
	return args.Bool(0), args.Error(1)
}
