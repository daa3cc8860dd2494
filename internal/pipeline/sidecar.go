package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Sidecar — пер-сценовый артефакт в бакете sidecars. Порядок ключей
// фиксирован порядком полей структуры: диффы между версиями должны
// оставаться стабильными.
type Sidecar struct {
	SceneID    uuid.UUID       `json:"scene_id"`
	VideoID    uuid.UUID       `json:"video_id"`
	StartS     float64         `json:"start_s"`
	EndS       float64         `json:"end_s"`
	Transcript string          `json:"transcript"`
	VisionTags json.RawMessage `json:"vision_tags"`
}

// EmptyTags — зарезервированный tag bag; в этой версии пустой.
var EmptyTags = json.RawMessage(`{}`)

func (s Sidecar) Marshal() ([]byte, error) {
	if s.VisionTags == nil {
		s.VisionTags = EmptyTags
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal sidecar %s: %w", s.SceneID, err)
	}
	return data, nil
}
