// Package inference is the model inference service: it loads a fixed set of
// models once on startup and serves synchronous request/response inference.
// Это единственный компонент, которому позволено держать память моделей.
package inference

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const maxStderrBytes = 8 * 1024 // хвост stderr для диагностики

// Model — один загруженный инференс-бэкенд.
type Model interface {
	Name() string
	Infer(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
	Close() error
}

// ProcessRunner держит долгоживущий процесс модельного рантайма и гоняет
// через его stdin/stdout line-delimited JSON. Модель грузится один раз при
// старте процесса; один запрос in-flight на процесс (GPU-вызовы внутри
// рантайма всё равно сериализуются).
type ProcessRunner struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *stderrTail
	mu     sync.Mutex
	logger zerolog.Logger
}

type RunnerConfig struct {
	// RuntimeCmd — бинарь рантайма (по умолчанию python3).
	RuntimeCmd string
	// RuntimeModule — модуль с CLI `serve --model <name> --model-dir <dir>`.
	RuntimeModule string
	ModelDir      string
	Logger        zerolog.Logger
}

type runnerRequest struct {
	ID      int64           `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type runnerResponse struct {
	ID      int64           `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error,omitempty"`
}

// StartProcessRunner запускает рантайм и дожидается его ready-строки —
// к этому моменту веса уже в памяти. Отсутствующая модель валит старт
// (fail-fast, никаких скачиваний).
func StartProcessRunner(ctx context.Context, name string, cfg RunnerConfig) (*ProcessRunner, error) {
	if _, err := os.Stat(cfg.ModelDir); err != nil {
		return nil, fmt.Errorf("model %s is absent from cache %s: %w", name, cfg.ModelDir, err)
	}

	runtimeCmd := cfg.RuntimeCmd
	if runtimeCmd == "" {
		runtimeCmd = "python3"
	}
	module := cfg.RuntimeModule
	if module == "" {
		module = "scene_index_models"
	}

	cmd := exec.Command(runtimeCmd, "-m", module, "serve", "--model", name, "--model-dir", cfg.ModelDir)
	cmd.Dir = filepath.Dir(cfg.ModelDir)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("runner %s stdin: %w", name, err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("runner %s stdout: %w", name, err)
	}
	tail := &stderrTail{}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("runner %s start: %w", name, err)
	}

	r := &ProcessRunner{
		name:   name,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdoutPipe),
		stderr: tail,
		logger: cfg.Logger.With().Str("component", "model_runner").Str("model", name).Logger(),
	}

	if err := r.awaitReady(ctx); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	r.logger.Info().Str("model_dir", cfg.ModelDir).Msg("model loaded")
	return r, nil
}

func (r *ProcessRunner) Name() string { return r.name }

// awaitReady читает первую строку рантайма: {"status":"ready"} либо ошибка.
func (r *ProcessRunner) awaitReady(ctx context.Context) error {
	type readyMsg struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}

	lineCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := r.stdout.ReadBytes('\n')
		if err != nil {
			errCh <- err
			return
		}
		lineCh <- line
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("runner %s load: %w", r.name, ctx.Err())
	case err := <-errCh:
		return fmt.Errorf("runner %s died during load: %w (stderr: %s)", r.name, err, r.stderr.String())
	case line := <-lineCh:
		var msg readyMsg
		if err := json.Unmarshal(line, &msg); err != nil {
			return fmt.Errorf("runner %s bad ready line: %w", r.name, err)
		}
		if msg.Status != "ready" {
			return fmt.Errorf("runner %s failed to load: %s", r.name, msg.Error)
		}
		return nil
	}
}

// Infer шлёт один запрос и ждёт ответ. Сериализация на мьютексе: протокол
// однопоточный, ответы приходят в порядке запросов.
func (r *ProcessRunner) Infer(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req := runnerRequest{ID: nextRequestID(), Payload: payload}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal runner request: %w", err)
	}
	data = append(data, '\n')

	if _, err := r.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("runner %s write: %w (stderr: %s)", r.name, err, r.stderr.String())
	}

	lineCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := r.stdout.ReadBytes('\n')
		if err != nil {
			errCh <- err
			return
		}
		lineCh <- line
	}()

	select {
	case <-ctx.Done():
		// процесс остаётся жить; ответ дочитает следующий вызов? Нет:
		// убиваем запрос вместе с процессом, иначе рассинхрон протокола.
		_ = r.cmd.Process.Kill()
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, fmt.Errorf("runner %s read: %w (stderr: %s)", r.name, err, r.stderr.String())
	case line := <-lineCh:
		var resp runnerResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, fmt.Errorf("runner %s bad response: %w", r.name, err)
		}
		if resp.ID != req.ID {
			return nil, fmt.Errorf("runner %s response id mismatch: got %d want %d", r.name, resp.ID, req.ID)
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("runner %s: %s", r.name, resp.Error)
		}
		return resp.Payload, nil
	}
}

func (r *ProcessRunner) Close() error {
	_ = r.stdin.Close()
	return r.cmd.Wait()
}

var reqIDMu sync.Mutex
var reqIDSeq int64

func nextRequestID() int64 {
	reqIDMu.Lock()
	defer reqIDMu.Unlock()
	reqIDSeq++
	return reqIDSeq
}

// stderrTail хранит последние maxStderrBytes stderr-вывода рантайма.
type stderrTail struct {
	mu  sync.Mutex
	buf []byte
}

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > maxStderrBytes {
		t.buf = t.buf[len(t.buf)-maxStderrBytes:]
	}
	return len(p), nil
}

func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
