package repository

import (
	"context"
	"sync"

	"github.com/foxseedlab/kikitori/internal/repository"
)

// MemoryRepository keeps the ledger in process memory. It is used when no
// DATABASE_URL is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]repository.Session
}

func NewMemoryRepository() repository.Repository {
	return &MemoryRepository{sessions: make(map[string]repository.Session)}
}

func (r *MemoryRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[input.SessionID] = repository.Session{
		ID:        input.SessionID,
		Status:    repository.SessionStatusRecording,
		CreatedAt: input.CreatedAt,
	}
	return nil
}

func (r *MemoryRepository) CompleteSession(_ context.Context, input repository.CompleteSessionInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[input.SessionID]
	if !ok {
		s = repository.Session{ID: input.SessionID}
	}
	endedAt := input.EndedAt
	s.Status = input.Status
	s.EndedAt = &endedAt
	s.ArtifactPath = input.ArtifactPath
	s.ArtifactBytes = input.ArtifactBytes
	s.AudioSeconds = input.AudioSeconds
	s.Transcript = input.Transcript
	s.Error = input.Error
	r.sessions[input.SessionID] = s
	return nil
}

func (r *MemoryRepository) GetSession(_ context.Context, sessionID string) (*repository.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
