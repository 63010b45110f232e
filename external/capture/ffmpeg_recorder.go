package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/kikitori/internal/capture"
)

const (
	defaultSliceInterval = 250 * time.Millisecond
	ffmpegStopTimeout    = 5 * time.Second
	readBufferSize       = 4096
)

type FFmpegRecorderConfig struct {
	FFmpegPath    string
	InputFormat   string
	InputDevice   string
	SliceInterval time.Duration
}

// FFmpegRecorder captures the default input device with ffmpeg, encodes it as
// Ogg/Opus and hands stdout to onSlice in SliceInterval-sized pieces.
type FFmpegRecorder struct {
	cfg    FFmpegRecorderConfig
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  *bytes.Buffer
	drained chan struct{}
	flushed chan struct{}
}

func NewFFmpegRecorder(cfg FFmpegRecorderConfig, logger *slog.Logger) capture.SliceRecorder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.InputFormat == "" || cfg.InputDevice == "" {
		format, device := defaultInput(runtime.GOOS)
		if cfg.InputFormat == "" {
			cfg.InputFormat = format
		}
		if cfg.InputDevice == "" {
			cfg.InputDevice = device
		}
	}
	if cfg.SliceInterval <= 0 {
		cfg.SliceInterval = defaultSliceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegRecorder{cfg: cfg, logger: logger.With("component", "ffmpeg_recorder")}
}

func defaultInput(goos string) (format, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func captureArgs(cfg FFmpegRecorderConfig) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", cfg.InputFormat, "-i", cfg.InputDevice,
		"-ac", "1",
		"-c:a", "libopus", "-b:a", "32k", "-application", "voip", "-frame_duration", "20",
		"-f", "ogg", "-page_duration", "20000", "-flush_packets", "1",
		"pipe:1",
	}
}

func (r *FFmpegRecorder) Start(ctx context.Context, onSlice func([]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return errors.New("ffmpeg recorder already started")
	}

	cmd := exec.CommandContext(ctx, r.cfg.FFmpegPath, captureArgs(r.cfg)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	r.cmd = cmd
	r.stdin = stdin
	r.stderr = stderr
	r.drained = make(chan struct{})
	r.flushed = make(chan struct{})
	go r.pump(stdout, onSlice, r.drained, r.flushed)

	r.logger.Info("ffmpeg capture started",
		"input_format", r.cfg.InputFormat,
		"input_device", r.cfg.InputDevice,
		"slice_interval", r.cfg.SliceInterval,
	)
	return nil
}

// pump reads stdout and emits the accumulated bytes on every tick. drained
// closes at stdout EOF, independent of onSlice; the final partial slice is
// emitted after that and flushed closes once it returns.
func (r *FFmpegRecorder) pump(stdout io.Reader, onSlice func([]byte), drained, flushed chan<- struct{}) {
	defer close(flushed)

	var mu sync.Mutex
	var pending []byte
	flush := func() {
		mu.Lock()
		slice := pending
		pending = nil
		mu.Unlock()
		if len(slice) > 0 {
			onSlice(slice)
		}
	}

	readDone := make(chan struct{})
	go func() {
		defer close(drained)
		defer close(readDone)
		buf := make([]byte, readBufferSize)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				mu.Lock()
				pending = append(pending, buf[:n]...)
				mu.Unlock()
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					r.logger.Debug("ffmpeg stdout closed", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(r.cfg.SliceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			flush()
		case <-readDone:
			flush()
			return
		}
	}
}

// Stop asks ffmpeg to finish the stream, waits for the trailing slice and
// kills the process if it does not exit in time. After a kill the trailing
// slice is not waited for.
func (r *FFmpegRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return nil
	}
	cmd := r.cmd
	r.cmd = nil

	if _, err := io.WriteString(r.stdin, "q"); err != nil {
		r.logger.Debug("failed to send quit to ffmpeg", "error", err)
	}
	_ = r.stdin.Close()

	// Wait closes stdout, so it must follow the last read.
	drained := r.drained
	waitErr := make(chan error, 1)
	go func() {
		<-drained
		waitErr <- cmd.Wait()
	}()

	timeout := time.NewTimer(ffmpegStopTimeout)
	defer timeout.Stop()

	var exitErr error
	select {
	case exitErr = <-waitErr:
	case <-timeout.C:
		_ = cmd.Process.Kill()
		<-waitErr
		return errors.New("ffmpeg did not stop in time and was killed")
	}

	select {
	case <-r.flushed:
	case <-timeout.C:
		r.logger.Warn("trailing slice still being delivered after ffmpeg exit")
	}
	if exitErr != nil && !isInterrupted(exitErr) {
		return fmt.Errorf("ffmpeg exited: %w: %s", exitErr, strings.TrimSpace(r.stderr.String()))
	}
	return nil
}

// ffmpeg exits with 255 after a "q" on some platforms.
func isInterrupted(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 255
	}
	return false
}
