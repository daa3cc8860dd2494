package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type UserTier string

const (
	TierFree       UserTier = "free"
	TierPro        UserTier = "pro"
	TierEnterprise UserTier = "enterprise"
)

// User создаётся при первом аутентифицированном запросе, связывая проверенную
// внешнюю identity. Никогда не удаляется.
type User struct {
	ID             uuid.UUID  `db:"user_id"`
	ExternalAuthID *string    `db:"external_auth_id"`
	Email          string     `db:"email"`
	EmailVerified  bool       `db:"email_verified"`
	Tier           UserTier   `db:"tier"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// FaceProfile — enrollment для будущего распознавания. Текущий пайплайн
// профили не использует, но схема их уже несёт.
type FaceProfile struct {
	ID        uuid.UUID        `db:"face_profile_id"`
	UserID    uuid.UUID        `db:"user_id"`
	Name      string           `db:"name"`
	PhotoKey  string           `db:"photo_key"`
	FaceVec   *pgvector.Vector `db:"face_vec"`
	CreatedAt time.Time        `db:"created_at"`
}
