package analysis

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
)

const (
	stderrTailSize = 4 << 10
	waitDelay      = 5 * time.Second
	maxLineSize    = 1 << 20
)

// tailBuffer keeps the last size bytes written to it.
type tailBuffer struct {
	mu   sync.Mutex
	size int
	buf  []byte
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.size; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// runTool executes the analysis binary in dir and blocks until it exits or the
// timeout elapses. The whole process group is killed on timeout or cancellation.
func runTool(ctx context.Context, dir, binary string, args []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	isolate(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &apperr.ExternalToolError{ExitCode: -1, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &apperr.ExternalToolError{ExitCode: -1, Err: err}
	}

	slog.Info("Starting analysis tool", "binary", binary, "args", args, "dir", dir)
	started := time.Now()
	if err := cmd.Start(); err != nil {
		return &apperr.ExternalToolError{ExitCode: -1, Err: err}
	}

	tail := newTailBuffer(stderrTailSize)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		stream(stdout, "stdout", nil)
	}()
	go func() {
		defer wg.Done()
		stream(stderr, "stderr", tail)
	}()
	// Pipes must be drained before Wait.
	wg.Wait()
	err = cmd.Wait()

	elapsed := time.Since(started)
	if err == nil {
		slog.Info("Analysis tool finished", "elapsed", elapsed)
		return nil
	}

	toolErr := &apperr.ExternalToolError{ExitCode: -1, StderrTail: tail.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		toolErr.TimedOut = true
	}
	slog.Error("Analysis tool failed", "exit_code", toolErr.ExitCode, "timed_out", toolErr.TimedOut, "elapsed", elapsed, "error", err)
	return toolErr
}

func stream(r io.Reader, name string, tee io.Writer) {
	if tee != nil {
		r = io.TeeReader(r, tee)
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for scanner.Scan() {
		slog.Info("Analysis tool output", "stream", name, "line", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("Analysis tool output unreadable, discarding rest", "stream", name, "error", err)
		_, _ = io.Copy(io.Discard, r)
	}
}
