package httpapi

import (
	"context"
	"net/http"

	"github.com/romariotrain/scene-index/internal/video/models"
	"github.com/romariotrain/scene-index/internal/video/repository"
)

// Identity-заголовки проставляет фронтовой прокси после проверки токена
// у IdP. Ядро токены не валидирует — оно потребляет уже проверенную
// identity.
const (
	HeaderAuthSubject = "X-Auth-Subject"
	HeaderUserEmail   = "X-User-Email"
)

type ctxKey int

const userKey ctxKey = iota

// WithUser синхронизирует пользователя по внешней identity (upsert при
// первом запросе) и кладёт его в контекст.
func WithUser(users repository.UserRepository, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := r.Header.Get(HeaderAuthSubject)
		email := r.Header.Get(HeaderUserEmail)
		if subject == "" || email == "" {
			writeErrorJSON(w, http.StatusUnauthorized, "missing identity")
			return
		}

		u, err := users.EnsureUser(r.Context(), subject, email)
		if err != nil {
			writeErrorJSON(w, http.StatusInternalServerError, "internal error")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func userFrom(r *http.Request) (*models.User, bool) {
	u, ok := r.Context().Value(userKey).(*models.User)
	return u, ok
}
