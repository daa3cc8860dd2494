package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/scene-index/internal/video/models"
)

type InitUploadRequest struct {
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type InitUploadResponse struct {
	VideoID   uuid.UUID `json:"video_id"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CompleteUploadRequest struct {
	VideoID uuid.UUID `json:"video_id"`
}

type CompleteUploadResponse struct {
	VideoID uuid.UUID `json:"video_id"`
	State   string    `json:"state"`
}

type VideoResponse struct {
	VideoID     uuid.UUID  `json:"video_id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	MimeType    string     `json:"mime_type"`
	SizeBytes   int64      `json:"size_bytes"`
	DurationS   *float64   `json:"duration_s"`
	State       string     `json:"state"`
	ErrorText   *string    `json:"error_text,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	IndexedAt   *time.Time `json:"indexed_at"`
}

type VideoListResponse struct {
	Videos []VideoResponse `json:"videos"`
}

type JobResponse struct {
	Stage      string     `json:"stage"`
	State      string     `json:"state"`
	Progress   int        `json:"progress"`
	ErrorText  *string    `json:"error_text,omitempty"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

type StatusResponse struct {
	VideoID   uuid.UUID     `json:"video_id"`
	State     string        `json:"state"`
	ErrorText *string       `json:"error_text,omitempty"`
	Jobs      []JobResponse `json:"jobs"`
}

func toVideoResponse(v *models.Video) VideoResponse {
	return VideoResponse{
		VideoID:     v.ID,
		Title:       v.Title,
		Description: v.Description,
		MimeType:    v.MimeType,
		SizeBytes:   v.SizeBytes,
		DurationS:   v.DurationS,
		State:       string(v.State),
		ErrorText:   v.ErrorText,
		CreatedAt:   v.CreatedAt,
		IndexedAt:   v.IndexedAt,
	}
}

func toJobResponse(j models.Job) JobResponse {
	return JobResponse{
		Stage:      string(j.Stage),
		State:      string(j.State),
		Progress:   j.Progress,
		ErrorText:  j.ErrorText,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}
