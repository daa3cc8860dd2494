// Package pipeline executes the ten-stage indexing pipeline for one video
// per queue task.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/romariotrain/scene-index/internal/ffmpeg"
	"github.com/romariotrain/scene-index/internal/mis"
	"github.com/romariotrain/scene-index/internal/objstore"
	"github.com/romariotrain/scene-index/internal/vecmath"
	"github.com/romariotrain/scene-index/internal/video/models"
	"github.com/romariotrain/scene-index/internal/video/repository"
)

// ObjectStore — то, что пайплайну нужно от OSG.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key, path string) error
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Inference — то, что пайплайну нужно от MIS. Реализуется mis.Client.
type Inference interface {
	Transcribe(ctx context.Context, audio []byte, languageHint string) (*mis.TranscribeResponse, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error)
}

// MediaTools абстрагирует ffmpeg/ffprobe, чтобы пайплайн тестировался
// без бинарей.
type MediaTools interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	ExtractFrame(ctx context.Context, videoPath string, timestampS float64) ([]byte, error)
	GrayFrames(ctx context.Context, path string, width, height, fps int, fn func(ffmpeg.GrayFrame) error) error
}

type Config struct {
	Videos   repository.VideoRepository
	Jobs     repository.JobRepository
	Locker   repository.VideoLocker
	Store    ObjectStore
	Models   Inference
	Tools    MediaTools
	ScratchDir string
	// LanguageHint прокидывается в ASR как есть; пусто = автоопределение.
	LanguageHint string
	Logger       zerolog.Logger
	Clock        func() time.Time
}

type Pipeline struct {
	cfg    Config
	logger zerolog.Logger
	clock  func() time.Time
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Videos == nil || cfg.Jobs == nil || cfg.Locker == nil {
		return nil, fmt.Errorf("metadata repositories are required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Models == nil {
		return nil, fmt.Errorf("inference client is required")
	}
	if cfg.Tools == nil {
		cfg.Tools = FFmpegTools{}
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "pipeline").Logger(),
		clock:  clock,
	}, nil
}

// HandleTask — queue.Handler: payload несёт только video_id.
func (p *Pipeline) HandleTask(ctx context.Context, key string, value []byte) error {
	var payload models.SubmittedPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		// мусор в очереди редоставкой не лечится — ack и лог
		p.logger.Error().Err(err).Str("key", key).Msg("malformed task payload, dropping")
		return nil
	}
	if payload.VideoID == uuid.Nil {
		p.logger.Error().Str("key", key).Msg("task without video_id, dropping")
		return nil
	}
	return p.Process(ctx, payload.VideoID)
}

// fatalError — ошибка стадии, после которой видео уходит в failed и
// задача не редоставляется.
type fatalError struct {
	reason string
	err    error
}

func (e *fatalError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.reason, e.err)
	}
	return e.reason
}

func (e *fatalError) Unwrap() error { return e.err }

func fatal(reason string, err error) error {
	return &fatalError{reason: reason, err: err}
}

// Process прогоняет одно видео через все стадии. Возврат ошибки означает
// transient-сбой: consumer повторит задачу с backoff, и повтор снова
// пройдёт через entry guard.
func (p *Pipeline) Process(ctx context.Context, videoID uuid.UUID) error {
	logger := p.logger.With().Str("video_id", videoID.String()).Logger()

	// Взаимное исключение по video_id: второй воркер на том же видео
	// уходит в no-op, иначе возможен двойной коммит.
	release, ok, err := p.cfg.Locker.TryLock(ctx, videoID)
	if err != nil {
		return fmt.Errorf("try lock: %w", err)
	}
	if !ok {
		logger.Info().Msg("video is locked by another worker, skipping")
		return nil
	}
	defer release()

	v, err := p.cfg.Videos.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			logger.Warn().Msg("video vanished, dropping task")
			return nil
		}
		return fmt.Errorf("get video: %w", err)
	}

	// Entry guard: работаем только из validating/processing без
	// успешного коммита. Всё остальное — дубликат из очереди.
	if (v.State != models.StateValidating && v.State != models.StateProcessing) || v.IndexedAt != nil {
		logger.Info().Str("state", string(v.State)).Msg("entry guard: nothing to do")
		return nil
	}

	if v.State == models.StateValidating {
		if v, err = p.cfg.Videos.SetState(ctx, videoID, models.StateProcessing); err != nil {
			return fmt.Errorf("enter processing: %w", err)
		}
	}

	if err := p.run(ctx, v, logger); err != nil {
		var ferr *fatalError
		if errors.As(err, &ferr) {
			logger.Error().Err(ferr).Msg("pipeline failed fatally")
			if merr := p.cfg.Videos.MarkFailed(ctx, videoID, ferr.reason); merr != nil {
				logger.Error().Err(merr).Msg("failed to mark video failed")
			}
			return nil // не редоставляем
		}
		logger.Warn().Err(err).Msg("pipeline aborted, leaving for redelivery")
		return err
	}

	logger.Info().Msg("video indexed")
	return nil
}

// sceneDraft накапливает артефакты стадий; строки scenes появятся только
// на стадии commit.
type sceneDraft struct {
	id         uuid.UUID
	interval   Interval
	transcript string
	frame      []byte
	textVec    []float32
	imageVec   []float32
	sidecarKey string
}

func (p *Pipeline) run(ctx context.Context, v *models.Video, logger zerolog.Logger) error {
	scratch, err := os.MkdirTemp(p.cfg.ScratchDir, "scene-index-*")
	if err != nil {
		return fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	videoPath := filepath.Join(scratch, "video")
	if err := p.cfg.Store.Download(ctx, objstore.BucketUploads, v.StorageKey, videoPath); err != nil {
		return fmt.Errorf("download video: %w", err)
	}

	// 1. upload_validate
	var durationS float64
	err = p.stage(ctx, v.ID, models.StageUploadValidate, func() error {
		d, err := p.cfg.Tools.ProbeDuration(ctx, videoPath)
		if err != nil {
			if errors.Is(err, ffmpeg.ErrInvalidMedia) {
				return fatal("INVALID_MEDIA", err)
			}
			return err
		}
		if d > models.MaxVideoDurationS {
			return fatal("DURATION_EXCEEDED", fmt.Errorf("duration %.3fs exceeds %.0fs", d, models.MaxVideoDurationS))
		}
		durationS = d
		return p.cfg.Videos.SetDuration(ctx, v.ID, d)
	})
	if err != nil {
		return err
	}

	// 2. audio_extract
	audioPath := filepath.Join(scratch, "audio.wav")
	err = p.stage(ctx, v.ID, models.StageAudioExtract, func() error {
		if err := p.cfg.Tools.ExtractAudio(ctx, videoPath, audioPath); err != nil {
			return fatal("INVALID_MEDIA", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 3. asr
	var segments []mis.Segment
	err = p.stage(ctx, v.ID, models.StageASR, func() error {
		audio, err := os.ReadFile(audioPath)
		if err != nil {
			return err
		}
		resp, err := p.cfg.Models.Transcribe(ctx, audio, p.cfg.LanguageHint)
		if err != nil {
			return p.classifyModelErr("asr", err)
		}
		segments = resp.Segments
		return nil
	})
	if err != nil {
		return err
	}

	// 4. scene_detect
	var intervals []Interval
	err = p.stage(ctx, v.ID, models.StageSceneDetect, func() error {
		ivs, err := DetectScenes(ctx, p.cfg.Tools, videoPath, durationS)
		if err != nil {
			return fatal("INVALID_MEDIA", err)
		}
		intervals = ivs
		return nil
	})
	if err != nil {
		return err
	}

	drafts := make([]*sceneDraft, len(intervals))
	for i, iv := range intervals {
		drafts[i] = &sceneDraft{id: uuid.New(), interval: iv}
	}

	// 5. align
	err = p.stage(ctx, v.ID, models.StageAlign, func() error {
		for _, d := range drafts {
			d.transcript = SceneTranscript(segments, d.interval.StartS, d.interval.EndS)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 6. embed_text
	err = p.stage(ctx, v.ID, models.StageEmbedText, func() error {
		var texts []string
		var idx []int
		for i, d := range drafts {
			if d.transcript != "" {
				texts = append(texts, d.transcript)
				idx = append(idx, i)
			}
		}
		if len(texts) == 0 {
			return nil // немое видео: text_vec остаётся null
		}
		vecs, err := p.cfg.Models.EmbedTexts(ctx, texts)
		if err != nil {
			return p.classifyModelErr("embed text", err)
		}
		for j, v := range vecs {
			drafts[idx[j]].textVec = vecmath.Normalize(v)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 7. sample_frames
	err = p.stage(ctx, v.ID, models.StageSampleFrames, func() error {
		for i, d := range drafts {
			mid := (d.interval.StartS + d.interval.EndS) / 2
			frame, err := p.cfg.Tools.ExtractFrame(ctx, videoPath, mid)
			if err != nil {
				// fallback на начало сцены; обе неудачи — сцена без image_vec
				frame, err = p.cfg.Tools.ExtractFrame(ctx, videoPath, d.interval.StartS)
				if err != nil {
					logger.Warn().
						Float64("start_s", d.interval.StartS).
						Msg("frame decode failed, scene will have no image_vec")
					continue
				}
			}
			d.frame = frame
			if err := p.cfg.Jobs.SetProgress(ctx, v.ID, models.StageSampleFrames, (i+1)*100/len(drafts)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 8. embed_vision
	err = p.stage(ctx, v.ID, models.StageEmbedVision, func() error {
		var images [][]byte
		var idx []int
		for i, d := range drafts {
			if d.frame != nil {
				images = append(images, d.frame)
				idx = append(idx, i)
			}
		}
		if len(images) == 0 {
			return nil
		}
		vecs, err := p.cfg.Models.EmbedImages(ctx, images)
		if err != nil {
			return p.classifyModelErr("embed vision", err)
		}
		for j, v := range vecs {
			drafts[idx[j]].imageVec = vecmath.Normalize(v)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 9. build_sidecar
	err = p.stage(ctx, v.ID, models.StageBuildSidecar, func() error {
		for _, d := range drafts {
			sc := Sidecar{
				SceneID:    d.id,
				VideoID:    v.ID,
				StartS:     d.interval.StartS,
				EndS:       d.interval.EndS,
				Transcript: d.transcript,
				VisionTags: EmptyTags,
			}
			data, err := sc.Marshal()
			if err != nil {
				return fatal("INTERNAL", err)
			}
			key := objstore.SidecarKey(v.UserID, v.ID, d.id)
			if err := p.cfg.Store.Put(ctx, objstore.BucketSidecars, key, data, "application/json"); err != nil {
				return err
			}
			d.sidecarKey = key
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 10. commit — единственная запись scenes, одна транзакция
	return p.stage(ctx, v.ID, models.StageCommit, func() error {
		now := p.clock()
		scenes := make([]models.Scene, len(drafts))
		for i, d := range drafts {
			s := models.Scene{
				ID:         d.id,
				VideoID:    v.ID,
				StartS:     d.interval.StartS,
				EndS:       d.interval.EndS,
				Transcript: d.transcript,
				VisionTags: EmptyTags,
				CreatedAt:  now,
			}
			if d.sidecarKey != "" {
				key := d.sidecarKey
				s.SidecarKey = &key
			}
			if d.textVec != nil {
				vec := pgvector.NewVector(d.textVec)
				s.TextVec = &vec
			}
			if d.imageVec != nil {
				vec := pgvector.NewVector(d.imageVec)
				s.ImageVec = &vec
			}
			scenes[i] = s
		}

		if err := p.cfg.Videos.CommitScenes(ctx, v.ID, scenes, now); err != nil {
			if errors.Is(err, models.ErrConflict) {
				return fatal("INTERNAL", err)
			}
			return err
		}
		return nil
	})
}

// stage оборачивает одну стадию бухгалтерией jobs: pending -> running ->
// completed/failed. Transient-ошибка оставляет job открытой — редоставка
// продолжит с той же строкой.
func (p *Pipeline) stage(ctx context.Context, videoID uuid.UUID, stage models.JobStage, fn func() error) error {
	if _, err := p.cfg.Jobs.UpsertPending(ctx, videoID, stage); err != nil {
		return fmt.Errorf("stage %s pending: %w", stage, err)
	}
	if err := p.cfg.Jobs.SetRunning(ctx, videoID, stage, p.clock()); err != nil {
		return fmt.Errorf("stage %s running: %w", stage, err)
	}

	if err := fn(); err != nil {
		var ferr *fatalError
		if errors.As(err, &ferr) {
			if jerr := p.cfg.Jobs.Fail(ctx, videoID, stage, ferr.reason, p.clock()); jerr != nil {
				p.logger.Error().Err(jerr).Str("stage", string(stage)).Msg("failed to mark job failed")
			}
			return err
		}
		return fmt.Errorf("stage %s: %w", stage, err)
	}

	// commit-джобу закрывает сама транзакция CommitScenes
	if stage == models.StageCommit {
		return nil
	}
	if err := p.cfg.Jobs.Complete(ctx, videoID, stage, p.clock()); err != nil {
		return fmt.Errorf("stage %s complete: %w", stage, err)
	}
	return nil
}

// classifyModelErr: клиент MIS уже сделал bounded backoff, повторный отказ
// эскалируем в фатальную ошибку стадии, малформатный вывод — тем более.
func (p *Pipeline) classifyModelErr(op string, err error) error {
	if errors.Is(err, models.ErrDependencyUnavailable) {
		return fatal("DEPENDENCY_UNAVAILABLE", fmt.Errorf("%s: %w", op, err))
	}
	return fatal("INTERNAL", fmt.Errorf("%s: %w", op, err))
}
