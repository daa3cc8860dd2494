package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/scene-index/internal/video/models"
	"github.com/romariotrain/scene-index/internal/video/service"
)

type Handler struct {
	svc    *service.Service
	logger zerolog.Logger
}

func New(svc *service.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With().Str("component", "httpapi").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) InitUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()

	u, ok := userFrom(r)
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}

	res, err := h.svc.InitUpload(r.Context(), u.ID, service.InitUploadParams{
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		SizeBytes:   req.SizeBytes,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, InitUploadResponse{
		VideoID:   res.VideoID,
		UploadURL: res.UploadURL,
		ExpiresAt: res.ExpiresAt,
	})
}

func (h *Handler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()

	u, ok := userFrom(r)
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}

	state, err := h.svc.CompleteUpload(r.Context(), u.ID, req.VideoID)
	if err != nil {
		if errors.Is(err, models.ErrNotReady) {
			// объект ещё не загружен: клиент ретраит complete
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "not_ready",
				"state": string(state),
			})
			return
		}
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, CompleteUploadResponse{
		VideoID: req.VideoID,
		State:   string(state),
	})
}

// ListVideos обслуживает GET /videos.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	u, ok := userFrom(r)
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, "missing identity")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	videos, err := h.svc.ListVideos(r.Context(), u.ID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := VideoListResponse{Videos: make([]VideoResponse, 0, len(videos))}
	for i := range videos {
		resp.Videos = append(resp.Videos, toVideoResponse(&videos[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Videos маршрутизирует /videos/{id} и /videos/{id}/status.
// Path-разбор как в остальных наших сервисах: TrimPrefix + Split.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/videos/")
	if rest == "" || rest == r.URL.Path {
		writeErrorJSON(w, http.StatusBadRequest, "missing id")
		return
	}

	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}

	switch {
	case len(parts) == 1:
		h.getVideo(w, r, id)
	case len(parts) == 2 && parts[1] == "status":
		h.getStatus(w, r, id)
	default:
		writeErrorJSON(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) getVideo(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	u, ok := userFrom(r)
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, "missing identity")
		return
	}

	v, err := h.svc.GetVideo(r.Context(), u.ID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(v))
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	u, ok := userFrom(r)
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, "missing identity")
		return
	}

	status, err := h.svc.GetStatus(r.Context(), u.ID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := StatusResponse{
		VideoID:   status.Video.ID,
		State:     string(status.Video.State),
		ErrorText: status.Video.ErrorText,
		Jobs:      make([]JobResponse, 0, len(status.Jobs)),
	}
	for _, j := range status.Jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		writeErrorJSON(w, http.StatusBadRequest, "invalid argument")
	case errors.Is(err, models.ErrNotFound):
		// не различаем "нет" и "чужое"
		writeErrorJSON(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrConflict):
		writeErrorJSON(w, http.StatusConflict, "conflict")
	case errors.Is(err, models.ErrDependencyUnavailable):
		writeErrorJSON(w, http.StatusServiceUnavailable, "dependency unavailable")
	default:
		// сырые диагностики клиенту не отдаём
		h.logger.Error().Err(err).Msg("request failed")
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
