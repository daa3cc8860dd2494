package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

const (
	// Размерности должны совпадать с vector-колонками в схеме scenes.
	TextVecDim   = 1024
	ImageVecDim  = 1152
	FaceVecDim   = 512
)

// Scene — непрерывный интервал видео между визуальными склейками, с
// выровненным транскриптом и эмбеддингами. Строки scenes пишутся только на
// стадии commit, одной транзакцией.
type Scene struct {
	ID         uuid.UUID        `db:"scene_id"`
	VideoID    uuid.UUID        `db:"video_id"`
	StartS     float64          `db:"start_s"`
	EndS       float64          `db:"end_s"`
	Transcript string           `db:"transcript"`
	TextVec    *pgvector.Vector `db:"text_vec"`
	ImageVec   *pgvector.Vector `db:"image_vec"`
	VisionTags json.RawMessage  `db:"vision_tags"`
	SidecarKey *string          `db:"sidecar_key"`
	CreatedAt  time.Time        `db:"created_at"`
}
