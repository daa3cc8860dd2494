package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// VideoSubmitted публикуется из outbox после успешного complete_upload.
// Payload несёт только идентификатор: воркер сам поднимет актуальное
// состояние из базы (никаких мутабельных графов в сообщениях).
type VideoSubmitted struct {
	eventID    uuid.UUID
	videoID    uuid.UUID
	occurredAt time.Time
}

func NewVideoSubmitted(videoID uuid.UUID) *VideoSubmitted {
	return &VideoSubmitted{
		eventID:    uuid.New(),
		videoID:    videoID,
		occurredAt: time.Now(),
	}
}

// Реализация интерфейса DomainEvent
func (e *VideoSubmitted) EventID() uuid.UUID     { return e.eventID }
func (e *VideoSubmitted) EventType() string      { return "VideoSubmitted" }
func (e *VideoSubmitted) AggregateID() uuid.UUID { return e.videoID }
func (e *VideoSubmitted) OccurredAt() time.Time  { return e.occurredAt }

func (e *VideoSubmitted) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID    uuid.UUID `json:"event_id"`
		VideoID    uuid.UUID `json:"video_id"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		EventID:    e.eventID,
		VideoID:    e.videoID,
		OccurredAt: e.occurredAt,
	})
}

// SubmittedPayload — то, что реально уезжает в очередь и читается воркером.
type SubmittedPayload struct {
	EventID    uuid.UUID `json:"event_id"`
	VideoID    uuid.UUID `json:"video_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
