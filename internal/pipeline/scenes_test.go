package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/scene-index/internal/ffmpeg"
)

// frameSource генерит серые кадры: яркость меняется скачком на каждом cut.
type frameSource struct {
	durationS float64
	cuts      []float64
}

func (s frameSource) GrayFrames(ctx context.Context, path string, width, height, fps int, fn func(ffmpeg.GrayFrame) error) error {
	total := int(s.durationS * float64(fps))
	for i := 0; i < total; i++ {
		t := float64(i) / float64(fps)
		level := byte(0)
		for j, c := range s.cuts {
			if t >= c {
				// чередуем 0/200, чтобы каждый cut давал большой скачок
				if j%2 == 0 {
					level = 200
				} else {
					level = 0
				}
			}
		}
		pixels := make([]byte, width*height)
		for p := range pixels {
			pixels[p] = level
		}
		if err := fn(ffmpeg.GrayFrame{TimestampS: t, Pixels: pixels}); err != nil {
			return err
		}
	}
	return nil
}

type detectTools struct {
	MediaTools
	src frameSource
}

func (d detectTools) GrayFrames(ctx context.Context, path string, width, height, fps int, fn func(ffmpeg.GrayFrame) error) error {
	return d.src.GrayFrames(ctx, path, width, height, fps, fn)
}

func TestDetectScenes_FindsCuts(t *testing.T) {
	tools := detectTools{src: frameSource{durationS: 30, cuts: []float64{10, 20}}}

	scenes, err := DetectScenes(context.Background(), tools, "video", 30)
	require.NoError(t, err)
	require.Len(t, scenes, 3)

	assert.Equal(t, 0.0, scenes[0].StartS)
	assert.InDelta(t, 10, scenes[0].EndS, 0.5)
	assert.InDelta(t, 20, scenes[1].EndS, 0.5)
	assert.Equal(t, 30.0, scenes[2].EndS)

	// интервалы смежные и покрывают [0, duration)
	for i := 1; i < len(scenes); i++ {
		assert.Equal(t, scenes[i-1].EndS, scenes[i].StartS)
	}
}

func TestDetectScenes_ConstantFrameVideoIsOneScene(t *testing.T) {
	tools := detectTools{src: frameSource{durationS: 10}}

	scenes, err := DetectScenes(context.Background(), tools, "video", 10)
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, Interval{StartS: 0, EndS: 10}, scenes[0])
}

func TestMergeShortScenes(t *testing.T) {
	cases := []struct {
		name string
		in   []Interval
		want []Interval
	}{
		{
			name: "nothing short",
			in:   []Interval{{0, 5}, {5, 12}},
			want: []Interval{{0, 5}, {5, 12}},
		},
		{
			name: "short merges forward",
			in:   []Interval{{0, 0.5}, {0.5, 10}},
			want: []Interval{{0, 10}},
		},
		{
			name: "chain of shorts merges forward",
			in:   []Interval{{0, 0.3}, {0.3, 0.6}, {0.6, 5}},
			want: []Interval{{0, 5}},
		},
		{
			name: "short tail merges backward",
			in:   []Interval{{0, 5}, {5, 5.4}},
			want: []Interval{{0, 5.4}},
		},
		{
			name: "single short interval kept",
			in:   []Interval{{0, 0.5}},
			want: []Interval{{0, 0.5}},
		},
		{
			name: "middle short",
			in:   []Interval{{0, 4}, {4, 4.5}, {4.5, 9}},
			want: []Interval{{0, 4}, {4, 9}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeShortScenes(tc.in, MinSceneLengthS)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMeanAbsDiff(t *testing.T) {
	assert.Equal(t, 0.0, meanAbsDiff([]byte{10, 10}, []byte{10, 10}))
	assert.Equal(t, 100.0, meanAbsDiff([]byte{0, 0}, []byte{100, 100}))
	assert.Equal(t, 0.0, meanAbsDiff([]byte{1}, []byte{1, 2})) // рассинхрон длины
}
