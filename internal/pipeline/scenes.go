package pipeline

import (
	"context"
	"fmt"

	"github.com/romariotrain/scene-index/internal/ffmpeg"
)

const (
	// Порог среднего попиксельного отличия яркости (0–255), выше — склейка.
	DetectorThreshold = 27.0
	// Детектору хватает маленьких серых кадров на ~4 fps.
	DetectorFPS    = 4
	DetectorWidth  = 160
	DetectorHeight = 90
	// Сцены короче секунды подклеиваются к следующей.
	MinSceneLengthS = 1.0
)

// Interval — полуинтервал [StartS, EndS) одной сцены.
type Interval struct {
	StartS float64
	EndS   float64
}

// DetectScenes ищет визуальные склейки по порогу разности кадров.
// Возвращает интервалы, покрывающие [0, duration) без дыр и перекрытий;
// если склеек нет — один интервал на всё видео.
func DetectScenes(ctx context.Context, tools MediaTools, videoPath string, durationS float64) ([]Interval, error) {
	var (
		cuts []float64
		prev []byte
	)

	err := tools.GrayFrames(ctx, videoPath, DetectorWidth, DetectorHeight, DetectorFPS, func(f ffmpeg.GrayFrame) error {
		if prev != nil && meanAbsDiff(prev, f.Pixels) > DetectorThreshold {
			cuts = append(cuts, f.TimestampS)
		}
		prev = f.Pixels
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scene detect: %w", err)
	}

	intervals := intervalsFromCuts(cuts, durationS)
	return MergeShortScenes(intervals, MinSceneLengthS), nil
}

func meanAbsDiff(a, b []byte) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sum int64
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(a))
}

func intervalsFromCuts(cuts []float64, durationS float64) []Interval {
	var out []Interval
	start := 0.0
	for _, c := range cuts {
		if c <= start || c >= durationS {
			continue
		}
		out = append(out, Interval{StartS: start, EndS: c})
		start = c
	}
	out = append(out, Interval{StartS: start, EndS: durationS})
	return out
}

// MergeShortScenes подклеивает интервалы короче min к следующему; короткий
// хвост уходит в предыдущий. Интервалы не выкидываются — таймлайн остаётся
// сплошным.
func MergeShortScenes(in []Interval, min float64) []Interval {
	if len(in) <= 1 {
		return in
	}

	var out []Interval
	carry := -1.0
	for i, iv := range in {
		start := iv.StartS
		if carry >= 0 {
			start = carry
		}
		if iv.EndS-start < min && i < len(in)-1 {
			carry = start
			continue
		}
		out = append(out, Interval{StartS: start, EndS: iv.EndS})
		carry = -1
	}

	if n := len(out); n >= 2 && out[n-1].EndS-out[n-1].StartS < min {
		out[n-2].EndS = out[n-1].EndS
		out = out[:n-1]
	}
	return out
}
