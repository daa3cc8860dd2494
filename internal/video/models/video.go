package models

import (
	"time"

	"github.com/google/uuid"
)

type VideoState string

const (
	StateUploading  VideoState = "uploading"
	StateValidating VideoState = "validating"
	StateProcessing VideoState = "processing"
	StateIndexed    VideoState = "indexed"
	StateFailed     VideoState = "failed"
	StateDeleted    VideoState = "deleted"
)

const (
	// MaxVideoSizeBytes — верхняя граница размера загрузки (1 GiB).
	MaxVideoSizeBytes int64 = 1 << 30
	// MaxVideoDurationS — верхняя граница длительности после probe.
	MaxVideoDurationS float64 = 600
)

// AllowedMimeTypes перечисляет контейнеры, которые принимает init_upload.
var AllowedMimeTypes = map[string]struct{}{
	"video/mp4":        {},
	"video/quicktime":  {},
	"video/x-msvideo":  {},
	"video/x-matroska": {},
	"video/webm":       {},
}

type Video struct {
	ID          uuid.UUID  `db:"video_id"`
	UserID      uuid.UUID  `db:"user_id"`
	StorageKey  string     `db:"storage_key"`
	MimeType    string     `db:"mime_type"`
	SizeBytes   int64      `db:"size_bytes"`
	Title       *string    `db:"title"`
	Description *string    `db:"description"`
	DurationS   *float64   `db:"duration_s"`
	State       VideoState `db:"state"`
	ErrorText   *string    `db:"error_text"`
	CreatedAt   time.Time  `db:"created_at"`
	IndexedAt   *time.Time `db:"indexed_at"`
}

// Terminal reports whether the video reached a state with no outgoing
// transitions.
func (v *Video) Terminal() bool {
	switch v.State {
	case StateIndexed, StateFailed, StateDeleted:
		return true
	}
	return false
}
