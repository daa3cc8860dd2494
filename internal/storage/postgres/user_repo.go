package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/scene-index/internal/video/models"
)

const userColumns = `user_id, external_auth_id, email, email_verified, tier, created_at, updated_at`

type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// EnsureUser — upsert по external_auth_id при первом аутентифицированном
// запросе. Identity уже проверена на границе; email приводим к lowercase.
func (r *UserRepo) EnsureUser(ctx context.Context, externalAuthID, email string) (*models.User, error) {
	if externalAuthID == "" || email == "" {
		return nil, models.ErrInvalidArgument
	}

	const q = `
		INSERT INTO users (user_id, external_auth_id, email, email_verified, tier)
		VALUES ($1, $2, $3, TRUE, 'free')
		ON CONFLICT (external_auth_id) DO UPDATE
			SET email = EXCLUDED.email, updated_at = NOW()
		RETURNING ` + userColumns + `
	`

	var u models.User
	if err := r.db.GetContext(ctx, &u, q, uuid.New(), externalAuthID, strings.ToLower(email)); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return &u, nil
}
