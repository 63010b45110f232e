package session

import (
	"context"
	"errors"
	"io"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyActive       = errors.New("session already active")
	ErrNoSuchSession       = errors.New("no such recording session")
	ErrInvalidSessionID    = errors.New("invalid session id")
	ErrIOFailure           = errors.New("artifact i/o failure")
	ErrTranscodeFailed     = errors.New("transcode failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Artifact is the encoded recording of one session on durable storage.
type Artifact struct {
	Path string
	Size int64
}

type ArtifactStore interface {
	Write(ctx context.Context, sessionID string, createdAt time.Time, r io.Reader) (Artifact, error)
	Remove(path string) error
}
