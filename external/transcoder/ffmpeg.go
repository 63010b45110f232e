package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/transcoder"
)

const maxStderrBytes = 2048

type FFmpegTranscoder struct {
	path string
}

func NewFFmpegTranscoder(path string) transcoder.Transcoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegTranscoder{path: path}
}

// Normalize writes <input>.wav next to inputPath.
func (t *FFmpegTranscoder) Normalize(ctx context.Context, inputPath string) (string, error) {
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".wav"
	cmd := exec.CommandContext(ctx, t.path, normalizeArgs(inputPath, outputPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg %s: %w: %s", filepath.Base(inputPath), err, trimStderr(stderr.String()))
	}
	return outputPath, nil
}

func normalizeArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", inputPath,
		"-ac", "1",
		"-ar", fmt.Sprint(audio.TargetSampleRate),
		"-c:a", "pcm_s16le",
		outputPath,
	}
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrBytes {
		s = "..." + s[len(s)-maxStderrBytes:]
	}
	return s
}
