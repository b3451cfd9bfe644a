// Package ffmpeg runs the ffmpeg family of binaries and scrapes their plain
// text output into Go values: encoding progress, volumedetect and loudnorm
// measurements, and the capability listings (-formats, -codecs, -encoders,
// -decoders, -buildconf).
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	vmerrors "videomass/internal/errors"
	"videomass/logger"
)

// stderrTailLines is how many trailing stderr lines an EXEC error keeps.
const stderrTailLines = 12

// Runner invokes one binary (ffmpeg, ffprobe or ffplay).
type Runner struct {
	Binary string
	Logger *logger.Logger
}

// NewRunner returns a runner for binary. A nil logger discards output.
func NewRunner(binary string, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{Binary: binary, Logger: log}
}

// NullDevice is the output path ffmpeg writes to when only the side effects
// of a pass matter (first pass logs, measurements).
func NullDevice() string {
	return os.DevNull
}

// LineFunc receives every stderr line while a command runs.
type LineFunc func(line string)

// Run executes the binary with args and streams its stderr line by line to
// onLine. Cancellation is checked between lines; a canceled context kills
// the process and yields a CANCELED error.
func (r *Runner) Run(ctx context.Context, args []string, onLine LineFunc) error {
	path, err := r.lookPath()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return vmerrors.Canceled("%s not started", r.Binary).WithCause(err)
	}

	r.Logger.Debug("running command", slog.String("bin", r.Binary), slog.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = io.Discard
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.Binary, err)
	}

	tail := newTail(stderrTailLines)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		tail.add(line)
		if onLine != nil {
			onLine(line)
		}
	}
	if ctx.Err() != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	// Drain so Wait does not block on a full pipe.
	_, _ = io.Copy(io.Discard, stderr)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		r.Logger.Info("command canceled", slog.String("bin", r.Binary))
		return vmerrors.Canceled("%s canceled", r.Binary).WithCause(ctx.Err())
	}
	if waitErr != nil {
		return r.execError(waitErr, tail.String())
	}
	return nil
}

// Output runs the binary to completion and returns its combined output.
func (r *Runner) Output(ctx context.Context, args []string) (string, error) {
	path, err := r.lookPath()
	if err != nil {
		return "", err
	}

	r.Logger.Debug("running command", slog.String("bin", r.Binary), slog.String("args", strings.Join(args, " ")))

	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	runErr := cmd.Run()
	out := buf.String()

	if ctx.Err() != nil {
		return out, vmerrors.Canceled("%s canceled", r.Binary).WithCause(ctx.Err())
	}
	if runErr != nil {
		return out, r.execError(runErr, lastLines(out, stderrTailLines))
	}
	return out, nil
}

// Stdout runs the binary to completion and returns what it wrote to
// stdout. Stderr only feeds the EXEC error.
func (r *Runner) Stdout(ctx context.Context, args []string) (string, error) {
	path, err := r.lookPath()
	if err != nil {
		return "", err
	}

	r.Logger.Debug("running command", slog.String("bin", r.Binary), slog.String("args", strings.Join(args, " ")))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	if ctx.Err() != nil {
		return "", vmerrors.Canceled("%s canceled", r.Binary).WithCause(ctx.Err())
	}
	if runErr != nil {
		return "", r.execError(runErr, lastLines(stderr.String(), stderrTailLines))
	}
	return stdout.String(), nil
}

func (r *Runner) lookPath() (string, error) {
	if r.Binary == "" {
		return "", vmerrors.Unavailable("no binary configured")
	}
	path, err := exec.LookPath(r.Binary)
	if err != nil {
		return "", vmerrors.Unavailable("%s not found", r.Binary).WithCause(err)
	}
	return path, nil
}

func (r *Runner) execError(err error, stderrTail string) error {
	details := map[string]string{"stderr": stderrTail}
	if hint := Classify(stderrTail); hint != "" {
		details["hint"] = hint
	}

	var exitErr *exec.ExitError
	msg := fmt.Sprintf("%s failed", r.Binary)
	if errors.As(err, &exitErr) {
		msg = fmt.Sprintf("%s exited with status %d", r.Binary, exitErr.ExitCode())
	}

	r.Logger.Error(msg, slog.String("stderr", stderrTail))
	return vmerrors.Exec("%s", msg).WithDetails(details).WithCause(err)
}

// scanLines splits on \n, \r\n and bare \r. ffmpeg rewrites its stats line
// in place with \r.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		} else if data[i] == '\r' && i+1 == len(data) && !atEOF {
			// Might be the first half of \r\n; wait for more.
			return 0, nil, nil
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tail keeps the last n lines written to it.
type tail struct {
	lines []string
	n     int
}

func newTail(n int) *tail {
	return &tail{n: n}
}

func (t *tail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tail) String() string {
	return strings.Join(t.lines, "\n")
}

func lastLines(s string, n int) string {
	t := newTail(n)
	for _, line := range strings.Split(strings.TrimRight(s, "\r\n"), "\n") {
		t.add(strings.TrimRight(line, "\r"))
	}
	return t.String()
}
