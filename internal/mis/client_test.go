package mis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/scene-index/internal/video/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return c
}

func makeVecs(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
		out[i][0] = 1
	}
	return out
}

func TestTranscribe(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/asr/transcribe", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["audio_base64"])
		assert.Equal(t, "en", req["language"])

		json.NewEncoder(w).Encode(TranscribeResponse{
			Segments: []Segment{{StartS: 0, EndS: 2.5, Text: "hello"}},
			Language: "en",
		})
	}))

	resp, err := c.Transcribe(context.Background(), []byte("wav-bytes"), "en")
	require.NoError(t, err)
	require.Len(t, resp.Segments, 1)
	assert.Equal(t, "hello", resp.Segments[0].Text)
}

func TestEmbedTexts_RetriesOnRefusal(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			// backpressure: первые две попытки получают отказ
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(EmbedResponse{
			Embeddings: makeVecs(2, models.TextVecDim),
			Dimension:  models.TextVecDim,
		})
	}))

	vecs, err := c.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedTexts_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.EmbedTexts(context.Background(), []string{"a"})
	require.ErrorIs(t, err, models.ErrDependencyUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedTexts_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := c.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	require.NotErrorIs(t, err, models.ErrDependencyUnavailable)
	// 4xx (кроме 429) не ретраится
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedTexts_RejectsWrongDimension(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(EmbedResponse{
			Embeddings: makeVecs(1, 3),
			Dimension:  3,
		})
	}))

	_, err := c.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestEmbedImages_EmptyInputShortCircuits(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty batch")
	}))

	vecs, err := c.EmbedImages(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vecs)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(Health{
			Status:       "ok",
			LoadedModels: []string{"asr", "text_embed", "vision_embed", "face_detect"},
			Device:       "cpu",
			TextDim:      models.TextVecDim,
			VisionDim:    models.ImageVecDim,
		})
	}))

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, models.TextVecDim, h.TextDim)
	assert.Equal(t, models.ImageVecDim, h.VisionDim)
}
