package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/metrics"
	"github.com/foxseedlab/kikitori/internal/notify"
	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/transcoder"
	"github.com/foxseedlab/kikitori/internal/transcriber"
)

const ledgerTimeout = 5 * time.Second

// Manager is the session side of the capture boundary: it records encoded
// chunks and turns an ended session into a transcript.
type Manager struct {
	cfg         *config.Config
	registry    *Registry
	store       ArtifactStore
	transcoder  transcoder.Transcoder
	decoder     audio.FileDecoder
	transcriber transcriber.Transcriber
	repo        repository.Repository
	hub         *notify.Hub
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

type Dependencies struct {
	Store       ArtifactStore
	Transcoder  transcoder.Transcoder
	Decoder     audio.FileDecoder
	Transcriber transcriber.Transcriber
	Repository  repository.Repository
	Hub         *notify.Hub
	Metrics     *metrics.Metrics
}

func NewManager(cfg *config.Config, deps Dependencies) *Manager {
	return &Manager{
		cfg:         cfg,
		registry:    NewRegistry(deps.Store),
		store:       deps.Store,
		transcoder:  deps.Transcoder,
		decoder:     deps.Decoder,
		transcriber: deps.Transcriber,
		repo:        deps.Repository,
		hub:         deps.Hub,
		metrics:     deps.Metrics,
		logger:      slog.Default().With("component", "session_manager"),
		now:         time.Now,
	}
}

func (m *Manager) ActiveSessions() int {
	return m.registry.Active()
}

func (m *Manager) StartSession(ctx context.Context, id string) error {
	createdAt, err := m.registry.Start(id)
	if err != nil {
		m.logger.Warn("start session rejected", "session_id", id, "error", err)
		return err
	}
	m.metrics.SessionsStarted.Inc()
	m.metrics.ActiveSessions.Inc()
	m.logger.Info("session started", "session_id", id)

	ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := m.repo.CreateSession(ledgerCtx, repository.CreateSessionInput{SessionID: id, CreatedAt: createdAt}); err != nil {
		m.logger.Error("failed to record session start", "session_id", id, "error", err)
	}
	return nil
}

func (m *Manager) PushChunk(_ context.Context, id string, chunk []byte) error {
	if err := m.registry.PushChunk(id, chunk); err != nil {
		return err
	}
	m.metrics.ChunksPushed.Inc()
	m.metrics.BytesPushed.Add(float64(len(chunk)))
	return nil
}

type outcome struct {
	sessionID    string
	startedAt    time.Time
	artifact     Artifact
	wavPath      string
	audioSeconds float64
	text         string
	err          error
	stage        string
}

// EndSession finalizes a recording session and returns its transcript. The
// work is bounded by TranscribeTimeout and is not cancelled when ctx is, so a
// caller that goes away does not abort an in-flight transcription.
func (m *Manager) EndSession(ctx context.Context, id string) (string, error) {
	began := m.now()
	ended, err := m.registry.End(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoSuchSession) {
			m.logger.Warn("end session rejected", "session_id", id, "error", err)
			return "", err
		}
		m.logger.Error("failed to write session artifact", "session_id", id, "error", err)
		m.finish(ctx, began, outcome{sessionID: id, startedAt: ended.CreatedAt, err: err, stage: "artifact"})
		return "", err
	}
	m.logger.Info("session artifact written",
		"session_id", id,
		"artifact_path", ended.Artifact.Path,
		"artifact_bytes", ended.Artifact.Size,
		"chunks", ended.Chunks,
	)

	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.TranscribeTimeout)
	defer cancel()
	out := m.transcribe(workCtx, id, ended)
	m.finish(ctx, began, out)
	return out.text, out.err
}

func (m *Manager) transcribe(ctx context.Context, id string, ended Ended) outcome {
	out := outcome{sessionID: id, startedAt: ended.CreatedAt, artifact: ended.Artifact}
	if ended.Artifact.Size == 0 {
		m.logger.Info("session recorded no audio; skipping transcription", "session_id", id)
		return out
	}

	wavPath, err := m.transcoder.Normalize(ctx, ended.Artifact.Path)
	if err != nil {
		out.err = fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
		out.stage = "transcode"
		return out
	}
	out.wavPath = wavPath

	pcm, err := m.decoder.DecodeFile(wavPath)
	if err != nil {
		out.err = fmt.Errorf("%w: decode normalized audio: %v", ErrTranscodeFailed, err)
		out.stage = "decode"
		return out
	}
	decoded := audio.Normalize(pcm)
	out.audioSeconds = decoded.Duration()
	if len(decoded.Samples) == 0 {
		m.logger.Info("normalized audio is empty; skipping transcription", "session_id", id)
		return out
	}

	m.logger.Info("transcribing session", "session_id", id, "audio_seconds", out.audioSeconds)
	text, err := m.transcriber.Transcribe(ctx, decoded.Samples, decoded.SampleRate)
	if err != nil {
		out.err = fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
		out.stage = "transcribe"
		return out
	}
	out.text = strings.TrimSpace(text)
	return out
}

func (m *Manager) finish(ctx context.Context, began time.Time, out outcome) {
	finishedAt := m.now()
	state := StateComplete
	if out.err != nil {
		state = StateFailed
		m.metrics.TranscriptionFailures.WithLabelValues(out.stage).Inc()
		m.logger.Error("session failed", "session_id", out.sessionID, "stage", out.stage, "error", out.err)
	} else {
		m.logger.Info("session complete", "session_id", out.sessionID, "transcript_chars", len(out.text))
	}
	m.metrics.ActiveSessions.Dec()
	m.metrics.SessionsEnded.WithLabelValues(state.String()).Inc()
	m.metrics.FinalizeDuration.Observe(finishedAt.Sub(began).Seconds())
	if out.audioSeconds > 0 {
		m.metrics.AudioSeconds.Observe(out.audioSeconds)
	}

	completion := notify.Completion{
		SessionID:     out.sessionID,
		State:         state.String(),
		Text:          out.text,
		Err:           out.err,
		Stage:         out.stage,
		ArtifactPath:  out.artifact.Path,
		ArtifactBytes: out.artifact.Size,
		AudioSeconds:  out.audioSeconds,
		StartedAt:     out.startedAt,
		FinishedAt:    finishedAt,
	}
	m.recordCompletion(ctx, completion)
	m.hub.Publish(ctx, completion)

	if !m.cfg.KeepArtifacts {
		m.cleanup(out)
	}
}

func (m *Manager) recordCompletion(ctx context.Context, c notify.Completion) {
	status := repository.SessionStatusComplete
	if c.Err != nil {
		status = repository.SessionStatusFailed
	}
	ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := m.repo.CompleteSession(ledgerCtx, repository.CompleteSessionInput{
		SessionID:     c.SessionID,
		Status:        status,
		EndedAt:       c.FinishedAt,
		ArtifactPath:  c.ArtifactPath,
		ArtifactBytes: c.ArtifactBytes,
		AudioSeconds:  c.AudioSeconds,
		Transcript:    c.Text,
		Error:         c.ErrorMessage(),
	}); err != nil {
		m.logger.Error("failed to record session outcome", "session_id", c.SessionID, "error", err)
	}
}

func (m *Manager) cleanup(out outcome) {
	for _, path := range []string{out.artifact.Path, out.wavPath} {
		if path == "" {
			continue
		}
		if err := m.store.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("failed to remove temporary file", "session_id", out.sessionID, "path", path, "error", err)
		}
	}
}
