package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/scene-index/internal/vecmath"
	"github.com/romariotrain/scene-index/internal/video/models"
)

// fakeModel отвечает заранее заданным JSON либо блокируется до release.
type fakeModel struct {
	name    string
	respond func(payload json.RawMessage) (json.RawMessage, error)
	block   chan struct{}
	started chan struct{}
}

func (f *fakeModel) Name() string { return f.name }
func (f *fakeModel) Close() error { return nil }

func (f *fakeModel) Infer(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.respond(payload)
}

func embedModel(name string, dim int) *fakeModel {
	return &fakeModel{
		name: name,
		respond: func(payload json.RawMessage) (json.RawMessage, error) {
			var req embedPayload
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, err
			}
			out := embedResult{Embeddings: make([][]float32, len(req.Inputs))}
			for i := range req.Inputs {
				v := make([]float32, dim)
				v[0] = 3
				v[1] = 4 // ненормализованный вектор: менеджер обязан нормализовать
				out.Embeddings[i] = v
			}
			data, _ := json.Marshal(out)
			return data, nil
		},
	}
}

func newTestManager(extra map[string]Model) *Manager {
	loaded := map[string]Model{
		ModelTextEmbed:   embedModel(ModelTextEmbed, models.TextVecDim),
		ModelVisionEmbed: embedModel(ModelVisionEmbed, models.ImageVecDim),
	}
	for k, v := range extra {
		loaded[k] = v
	}
	return NewManagerWithModels(loaded, 2, zerolog.Nop())
}

func TestEmbedTexts_NormalizesEachVector(t *testing.T) {
	m := newTestManager(nil)

	resp, err := m.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	assert.Equal(t, models.TextVecDim, resp.Dimension)

	for _, v := range resp.Embeddings {
		assert.InDelta(t, 1.0, vecmath.Norm(v), 1e-3)
	}
}

func TestEmbedTexts_RejectsWrongDimension(t *testing.T) {
	m := newTestManager(map[string]Model{
		ModelTextEmbed: embedModel(ModelTextEmbed, 7),
	})

	_, err := m.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestTranscribe_RejectsMalformedSegments(t *testing.T) {
	bad := &fakeModel{
		name: ModelASR,
		respond: func(json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"segments":[{"start_s":5,"end_s":2,"text":"x"}],"language":"en"}`), nil
		},
	}
	m := newTestManager(map[string]Model{ModelASR: bad})

	_, err := m.Transcribe(context.Background(), "YWJj", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed segment")
}

func TestTranscribe_AcceptsEmptyTranscript(t *testing.T) {
	quiet := &fakeModel{
		name: ModelASR,
		respond: func(json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"segments":[],"language":"en"}`), nil
		},
	}
	m := newTestManager(map[string]Model{ModelASR: quiet})

	resp, err := m.Transcribe(context.Background(), "YWJj", "en")
	require.NoError(t, err)
	assert.Empty(t, resp.Segments)
}

func TestSaturation(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 2)
	slow := &fakeModel{
		name:    ModelTextEmbed,
		block:   block,
		started: started,
		respond: func(json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(fmt.Sprintf(`{"embeddings":[%s]}`, zeroVecJSON(models.TextVecDim))), nil
		},
	}
	m := newTestManager(map[string]Model{ModelTextEmbed: slow})

	// занимаем оба слота
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = m.EmbedTexts(ctx, []string{"x"})
		}()
	}

	// ждём, пока обе горутины реально заберут семафор
	<-started
	<-started

	_, err := m.EmbedTexts(context.Background(), []string{"y"})
	require.ErrorIs(t, err, ErrSaturated)

	close(block)
	wg.Wait()
}

func zeroVecJSON(dim int) string {
	data, _ := json.Marshal(make([]float32, dim))
	return string(data)
}

func TestHealth(t *testing.T) {
	m := newTestManager(nil)
	h := m.Health()

	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, models.TextVecDim, h.TextDim)
	assert.Equal(t, models.ImageVecDim, h.VisionDim)
	assert.Contains(t, h.LoadedModels, ModelTextEmbed)
	assert.Contains(t, h.LoadedModels, ModelVisionEmbed)
}
