// Package ffmpeg wraps the ffprobe/ffmpeg binaries used by the worker.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// ErrInvalidMedia — probe не смог декодировать файл. Для пайплайна это
// фатальная ошибка валидации, не transient.
var ErrInvalidMedia = errors.New("invalid media")

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration возвращает длительность файла в секундах через ffprobe.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("%w: ffprobe: %s", ErrInvalidMedia, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return 0, fmt.Errorf("%w: parse ffprobe output: %v", ErrInvalidMedia, err)
	}
	if out.Format.Duration == "" {
		return 0, fmt.Errorf("%w: ffprobe reported no duration", ErrInvalidMedia)
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse duration %q: %v", ErrInvalidMedia, out.Format.Duration, err)
	}
	return duration, nil
}

// ExtractAudio транскодирует дорожку в mono 16 kHz PCM WAV — ровно то,
// что ждёт ASR.
func ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		audioPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audio extraction failed: %s", stderr.String())
	}
	return nil
}

// ExtractFrame декодирует один кадр в JPEG на заданной секунде.
func ExtractFrame(ctx context.Context, videoPath string, timestamp float64) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-y",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("frame extraction at %.3fs failed: %s", timestamp, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("frame extraction at %.3fs produced no data", timestamp)
	}
	return stdout.Bytes(), nil
}

// GrayFrame — один downscale-кадр яркостного канала для детектора сцен.
type GrayFrame struct {
	TimestampS float64
	Pixels     []byte
}

// GrayFrameStream декодирует видео в поток серых кадров width x height с
// частотой fps. Кадры отдаются колбэку в порядке времени; детектору сцен
// большего не нужно, а держать всё видео в памяти нельзя.
func GrayFrameStream(ctx context.Context, videoPath string, width, height, fps int, fn func(GrayFrame) error) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fps, width, height),
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("frame stream stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("frame stream start: %w", err)
	}

	frameSize := width * height
	buf := make([]byte, frameSize)
	var index int

	for {
		_, err := io.ReadFull(stdout, buf)
		if err == io.EOF {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// хвост не кратен кадру — обрезанный последний кадр выкидываем
			break
		}
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return fmt.Errorf("frame stream read: %w", err)
		}

		frame := GrayFrame{
			TimestampS: float64(index) / float64(fps),
			Pixels:     append([]byte(nil), buf...),
		}
		index++

		if err := fn(frame); err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return err
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("frame stream: %s", stderr.String())
	}
	return nil
}
