// Package mis is the HTTP client for the model inference service.
package mis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/scene-index/internal/video/models"
)

const (
	// Backpressure от MIS (refusal) ретраим с экспоненциальным backoff:
	// 3 попытки, старт 250ms, удвоение. Дальше стадия фатальна.
	maxAttempts    = 3
	initialBackoff = 250 * time.Millisecond
)

type ClientConfig struct {
	BaseURL string
	// Timeout на один запрос; ASR может занимать десятки секунд.
	Timeout time.Duration
	Logger  zerolog.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mis base url is empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With().Str("component", "mis_client").Logger(),
	}, nil
}

// Transcribe прогоняет аудио через ASR. Пустой список сегментов — валидный
// результат (в видео нет речи).
func (c *Client) Transcribe(ctx context.Context, audio []byte, languageHint string) (*TranscribeResponse, error) {
	req := transcribeRequest{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		Language:    languageHint,
	}

	var resp TranscribeResponse
	if err := c.post(ctx, "/asr/transcribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EmbedTexts возвращает вектора D_T в порядке входа.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp EmbedResponse
	if err := c.post(ctx, "/embed/text", embedTextRequest{Texts: texts}, &resp); err != nil {
		return nil, err
	}
	if err := checkEmbeddings(resp, len(texts), models.TextVecDim); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

// EmbedImages возвращает вектора D_V в порядке входа.
func (c *Client) EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	if len(images) == 0 {
		return nil, nil
	}

	req := embedVisionRequest{ImagesBase64: make([]string, len(images))}
	for i, img := range images {
		req.ImagesBase64[i] = base64.StdEncoding.EncodeToString(img)
	}

	var resp EmbedResponse
	if err := c.post(ctx, "/embed/vision", req, &resp); err != nil {
		return nil, err
	}
	if err := checkEmbeddings(resp, len(images), models.ImageVecDim); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]Face, error) {
	req := faceDetectRequest{ImageBase64: base64.StdEncoding.EncodeToString(image)}

	var resp FaceDetectResponse
	if err := c.post(ctx, "/face/detect", req, &resp); err != nil {
		return nil, err
	}
	return resp.Faces, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mis health: %w", models.ErrDependencyUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mis health: status %d: %w", resp.StatusCode, models.ErrDependencyUnavailable)
	}

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("mis health decode: %w", err)
	}
	return &h, nil
}

// post шлёт запрос с ретраями на refusal (429) и 5xx.
func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = c.doOnce(ctx, path, payload, respBody)
		if lastErr == nil {
			return nil
		}
		var rerr *retryableError
		if !errors.As(lastErr, &rerr) {
			return lastErr
		}
		c.logger.Warn().
			Err(lastErr).
			Str("path", path).
			Int("attempt", attempt).
			Msg("mis request failed, backing off")
	}

	return fmt.Errorf("mis %s after %d attempts: %w", path, maxAttempts, models.ErrDependencyUnavailable)
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) doOnce(ctx context.Context, path string, payload []byte, respBody any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &retryableError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retryableError{err: fmt.Errorf("mis %s: status %d: %s", path, resp.StatusCode, body)}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mis %s: status %d: %s", path, resp.StatusCode, body)
	}
}

func checkEmbeddings(resp EmbedResponse, want, dim int) error {
	if len(resp.Embeddings) != want {
		return fmt.Errorf("mis returned %d embeddings, want %d", len(resp.Embeddings), want)
	}
	for i, v := range resp.Embeddings {
		if len(v) != dim {
			return fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return nil
}
