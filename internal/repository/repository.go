package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	SessionID string
	CreatedAt time.Time
}

type CompleteSessionInput struct {
	SessionID     string
	Status        SessionStatus
	EndedAt       time.Time
	ArtifactPath  string
	ArtifactBytes int64
	AudioSeconds  float64
	Transcript    string
	Error         string
}

// Repository is the session ledger. Failures are reported to the caller but
// never change the outcome of a session.
type Repository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) error
	CompleteSession(ctx context.Context, input CompleteSessionInput) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}
