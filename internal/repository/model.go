package repository

import "time"

type SessionStatus string

const (
	SessionStatusRecording SessionStatus = "recording"
	SessionStatusComplete  SessionStatus = "complete"
	SessionStatusFailed    SessionStatus = "failed"
)

type Session struct {
	ID            string
	Status        SessionStatus
	CreatedAt     time.Time
	EndedAt       *time.Time
	ArtifactPath  string
	ArtifactBytes int64
	AudioSeconds  float64
	Transcript    string
	Error         string
}
