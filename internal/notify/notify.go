package notify

import (
	"context"
	"time"
)

// Completion describes how a session ended. Err is nil for a completed session.
type Completion struct {
	SessionID     string
	State         string
	Text          string
	Err           error
	// Stage names the finalize step that failed; empty on success.
	Stage         string
	ArtifactPath  string
	ArtifactBytes int64
	AudioSeconds  float64
	StartedAt     time.Time
	FinishedAt    time.Time
}

func (c Completion) ErrorMessage() string {
	if c.Err == nil {
		return ""
	}
	return c.Err.Error()
}

type Listener interface {
	OnCompletion(ctx context.Context, c Completion) error
}

type ListenerFunc func(ctx context.Context, c Completion) error

func (f ListenerFunc) OnCompletion(ctx context.Context, c Completion) error {
	return f(ctx, c)
}
