package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/romariotrain/scene-index/internal/mis"
	"github.com/romariotrain/scene-index/internal/vecmath"
	"github.com/romariotrain/scene-index/internal/video/models"
)

// Имена моделей = имена каталогов в кэше. Набор фиксированный: нет
// каталога — сервис не стартует.
const (
	ModelASR         = "asr"
	ModelTextEmbed   = "text_embed"
	ModelVisionEmbed = "vision_embed"
	ModelFaceDetect  = "face_detect"
)

var RequiredModels = []string{ModelASR, ModelTextEmbed, ModelVisionEmbed, ModelFaceDetect}

// ErrSaturated — отказ по backpressure: все слоты заняты, клиент обязан
// ретраить с экспоненциальным backoff.
var ErrSaturated = errors.New("inference service saturated")

type ManagerConfig struct {
	CacheDir      string
	RuntimeCmd    string
	RuntimeModule string
	// MaxInflight ограничивает конкурентные запросы на весь сервис.
	MaxInflight int64
	Device      string
	Logger      zerolog.Logger
}

type Manager struct {
	models    map[string]Model
	sem       *semaphore.Weighted
	device    string
	startedAt time.Time
	logger    zerolog.Logger
}

// NewManager грузит все обязательные модели. Загрузка строго из локального
// кэша: silent download запрещён.
func NewManager(ctx context.Context, cfg ManagerConfig) (*Manager, error) {
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("model cache dir is empty")
	}
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 8
	}
	device := cfg.Device
	if device == "" {
		device = "cpu"
	}

	m := &Manager{
		models:    make(map[string]Model, len(RequiredModels)),
		sem:       semaphore.NewWeighted(cfg.MaxInflight),
		device:    device,
		startedAt: time.Now(),
		logger:    cfg.Logger.With().Str("component", "model_manager").Logger(),
	}

	for _, name := range RequiredModels {
		runner, err := StartProcessRunner(ctx, name, RunnerConfig{
			RuntimeCmd:    cfg.RuntimeCmd,
			RuntimeModule: cfg.RuntimeModule,
			ModelDir:      filepath.Join(cfg.CacheDir, name),
			Logger:        cfg.Logger,
		})
		if err != nil {
			m.closeAll()
			return nil, fmt.Errorf("load models: %w", err)
		}
		m.models[name] = runner
	}

	m.logger.Info().
		Int("models", len(m.models)).
		Str("device", device).
		Int64("max_inflight", cfg.MaxInflight).
		Msg("all models loaded")
	return m, nil
}

// NewManagerWithModels собирает менеджер на готовых моделях (тесты).
func NewManagerWithModels(loaded map[string]Model, maxInflight int64, logger zerolog.Logger) *Manager {
	if maxInflight <= 0 {
		maxInflight = 8
	}
	return &Manager{
		models:    loaded,
		sem:       semaphore.NewWeighted(maxInflight),
		device:    "cpu",
		startedAt: time.Now(),
		logger:    logger,
	}
}

func (m *Manager) closeAll() {
	for _, model := range m.models {
		_ = model.Close()
	}
}

func (m *Manager) Close() {
	m.closeAll()
}

// acquire берёт слот либо сразу отказывает: очередь на перегруженном MIS
// только размазывает латентность по всем пользователям.
func (m *Manager) acquire() (func(), error) {
	if !m.sem.TryAcquire(1) {
		return nil, ErrSaturated
	}
	return func() { m.sem.Release(1) }, nil
}

func (m *Manager) infer(ctx context.Context, model string, req, resp any) error {
	release, err := m.acquire()
	if err != nil {
		return err
	}
	defer release()

	mod, ok := m.models[model]
	if !ok {
		return fmt.Errorf("model %s is not loaded", model)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	out, err := mod.Infer(ctx, payload)
	if err != nil {
		return fmt.Errorf("infer %s: %w", model, err)
	}
	if err := json.Unmarshal(out, resp); err != nil {
		return fmt.Errorf("decode %s output: %w", model, err)
	}
	return nil
}

type asrPayload struct {
	AudioBase64 string `json:"audio_base64"`
	Language    string `json:"language,omitempty"`
}

func (m *Manager) Transcribe(ctx context.Context, audioBase64, language string) (*mis.TranscribeResponse, error) {
	started := time.Now()

	var resp mis.TranscribeResponse
	if err := m.infer(ctx, ModelASR, asrPayload{AudioBase64: audioBase64, Language: language}, &resp); err != nil {
		return nil, err
	}

	// Контракт ASR: старты неубывающие, end >= start. Малформатный вывод
	// заворачиваем здесь, а не у клиентов.
	var prev float64
	for i, seg := range resp.Segments {
		if seg.EndS < seg.StartS || seg.StartS < prev {
			return nil, fmt.Errorf("asr produced malformed segment %d: [%f, %f)", i, seg.StartS, seg.EndS)
		}
		prev = seg.StartS
	}

	resp.LatencyMS = float64(time.Since(started).Milliseconds())
	return &resp, nil
}

type embedPayload struct {
	Inputs []string `json:"inputs"`
}

type embedResult struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedTexts возвращает нормализованные вектора D_T. Порядок результатов
// совпадает с порядком входа — реордеринг внутри батча запрещён.
func (m *Manager) EmbedTexts(ctx context.Context, texts []string) (*mis.EmbedResponse, error) {
	return m.embed(ctx, ModelTextEmbed, texts, models.TextVecDim)
}

func (m *Manager) EmbedImages(ctx context.Context, imagesBase64 []string) (*mis.EmbedResponse, error) {
	return m.embed(ctx, ModelVisionEmbed, imagesBase64, models.ImageVecDim)
}

func (m *Manager) embed(ctx context.Context, model string, inputs []string, dim int) (*mis.EmbedResponse, error) {
	started := time.Now()

	var result embedResult
	if err := m.infer(ctx, model, embedPayload{Inputs: inputs}, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d inputs", model, len(result.Embeddings), len(inputs))
	}
	for i, v := range result.Embeddings {
		if len(v) != dim {
			return nil, fmt.Errorf("%s embedding %d has dimension %d, want %d", model, i, len(v), dim)
		}
		vecmath.Normalize(v)
	}

	return &mis.EmbedResponse{
		Embeddings: result.Embeddings,
		Dimension:  dim,
		LatencyMS:  float64(time.Since(started).Milliseconds()),
	}, nil
}

type facePayload struct {
	ImageBase64 string `json:"image_base64"`
}

type faceResult struct {
	Faces []mis.Face `json:"faces"`
}

func (m *Manager) DetectFaces(ctx context.Context, imageBase64 string) (*mis.FaceDetectResponse, error) {
	started := time.Now()

	var result faceResult
	if err := m.infer(ctx, ModelFaceDetect, facePayload{ImageBase64: imageBase64}, &result); err != nil {
		return nil, err
	}

	return &mis.FaceDetectResponse{
		Faces:     result.Faces,
		Count:     len(result.Faces),
		LatencyMS: float64(time.Since(started).Milliseconds()),
	}, nil
}

func (m *Manager) Health() mis.Health {
	loaded := make([]string, 0, len(m.models))
	for name := range m.models {
		loaded = append(loaded, name)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return mis.Health{
		Status:          "ok",
		LoadedModels:    loaded,
		Device:          m.device,
		MemoryUsedBytes: ms.Sys,
		UptimeSeconds:   time.Since(m.startedAt).Seconds(),
		TextDim:         models.TextVecDim,
		VisionDim:       models.ImageVecDim,
	}
}
