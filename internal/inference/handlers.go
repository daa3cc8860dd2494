package inference

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

type Handler struct {
	manager *Manager
	logger  zerolog.Logger
}

func NewHandler(manager *Manager, logger zerolog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger.With().Str("component", "mis_http").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.manager.Health())
}

func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()

	var req struct {
		AudioBase64 string `json:"audio_base64"`
		Language    string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.AudioBase64 == "" {
		writeErrorJSON(w, http.StatusBadRequest, "audio_base64 is empty")
		return
	}

	resp, err := h.manager.Transcribe(r.Context(), req.AudioBase64, req.Language)
	if err != nil {
		h.writeInferenceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) EmbedText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()

	var req struct {
		Texts []string `json:"texts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Texts) == 0 {
		writeErrorJSON(w, http.StatusBadRequest, "texts is empty")
		return
	}

	resp, err := h.manager.EmbedTexts(r.Context(), req.Texts)
	if err != nil {
		h.writeInferenceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) EmbedVision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()

	var req struct {
		ImagesBase64 []string `json:"images_base64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.ImagesBase64) == 0 {
		writeErrorJSON(w, http.StatusBadRequest, "images_base64 is empty")
		return
	}

	resp, err := h.manager.EmbedImages(r.Context(), req.ImagesBase64)
	if err != nil {
		h.writeInferenceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) DetectFaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()

	var req struct {
		ImageBase64 string `json:"image_base64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.ImageBase64 == "" {
		writeErrorJSON(w, http.StatusBadRequest, "image_base64 is empty")
		return
	}

	resp, err := h.manager.DetectFaces(r.Context(), req.ImageBase64)
	if err != nil {
		h.writeInferenceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeInferenceError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrSaturated) {
		// backpressure: клиент ретраит с backoff
		writeErrorJSON(w, http.StatusTooManyRequests, "saturated, retry with backoff")
		return
	}
	h.logger.Error().Err(err).Msg("inference failed")
	writeErrorJSON(w, http.StatusInternalServerError, "inference failed")
}

func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/asr/transcribe", h.Transcribe)
	mux.HandleFunc("/embed/text", h.EmbedText)
	mux.HandleFunc("/embed/vision", h.EmbedVision)
	mux.HandleFunc("/face/detect", h.DetectFaces)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
