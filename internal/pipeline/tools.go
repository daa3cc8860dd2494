package pipeline

import (
	"context"

	"github.com/romariotrain/scene-index/internal/ffmpeg"
)

// FFmpegTools — боевая реализация MediaTools поверх ffmpeg/ffprobe.
type FFmpegTools struct{}

func (FFmpegTools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return ffmpeg.ProbeDuration(ctx, path)
}

func (FFmpegTools) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	return ffmpeg.ExtractAudio(ctx, videoPath, audioPath)
}

func (FFmpegTools) ExtractFrame(ctx context.Context, videoPath string, timestampS float64) ([]byte, error) {
	return ffmpeg.ExtractFrame(ctx, videoPath, timestampS)
}

func (FFmpegTools) GrayFrames(ctx context.Context, path string, width, height, fps int, fn func(ffmpeg.GrayFrame) error) error {
	return ffmpeg.GrayFrameStream(ctx, path, width, height, fps, fn)
}
