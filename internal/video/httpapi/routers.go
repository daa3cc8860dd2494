package httpapi

import (
	"net/http"

	"github.com/romariotrain/scene-index/internal/video/repository"
)

func NewRouter(h *Handler, users repository.UserRepository) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.Health)

	authed := http.NewServeMux()

	// POST /videos/upload/init
	authed.HandleFunc("/videos/upload/init", h.InitUpload)

	// POST /videos/upload/complete
	authed.HandleFunc("/videos/upload/complete", h.CompleteUpload)

	// GET /videos
	authed.HandleFunc("/videos", h.ListVideos)

	// GET /videos/{id}, GET /videos/{id}/status
	// Важно: trailing slash, чтобы handler мог TrimPrefix("/videos/")
	authed.HandleFunc("/videos/", h.Videos)

	mux.Handle("/videos", WithUser(users, authed))
	mux.Handle("/videos/", WithUser(users, authed))

	return mux
}
