package repository

import (
	"context"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/repository"
)

func TestMemoryRepositoryLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := repo.CreateSession(ctx, repository.CreateSessionInput{SessionID: "s1", CreatedAt: created}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	s, err := repo.GetSession(ctx, "s1")
	if err != nil || s == nil || s.Status != repository.SessionStatusRecording {
		t.Fatalf("unexpected session %+v, %v", s, err)
	}

	if err := repo.CompleteSession(ctx, repository.CompleteSessionInput{
		SessionID:     "s1",
		Status:        repository.SessionStatusComplete,
		EndedAt:       created.Add(time.Minute),
		ArtifactBytes: 300,
		Transcript:    "hello",
	}); err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}
	s, err = repo.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if s.Status != repository.SessionStatusComplete || s.Transcript != "hello" || s.EndedAt == nil || !s.CreatedAt.Equal(created) {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestMemoryRepositoryUnknownSession(t *testing.T) {
	s, err := NewMemoryRepository().GetSession(context.Background(), "missing")
	if err != nil || s != nil {
		t.Fatalf("expected nil session, got %+v, %v", s, err)
	}
}
