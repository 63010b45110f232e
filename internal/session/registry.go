package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type recording struct {
	id        string
	state     State
	createdAt time.Time
	chunks    [][]byte
	size      int64
}

// Ended is what remains of a session once its chunks are on disk.
type Ended struct {
	Artifact  Artifact
	CreatedAt time.Time
	Chunks    int
}

// Registry owns in-flight sessions keyed by id. All state transitions happen
// under mu; the artifact write runs outside it while the entry is held in
// StateFinalizing.
type Registry struct {
	store ArtifactStore
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*recording
}

func NewRegistry(store ArtifactStore) *Registry {
	return &Registry{
		store:    store,
		now:      time.Now,
		sessions: make(map[string]*recording),
	}
}

func (r *Registry) Start(id string) (time.Time, error) {
	if strings.TrimSpace(id) == "" {
		return time.Time{}, ErrInvalidSessionID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return time.Time{}, fmt.Errorf("%w: %s is %s", ErrAlreadyActive, id, s.state)
	}
	created := r.now()
	r.sessions[id] = &recording{id: id, state: StateRecording, createdAt: created}
	return created, nil
}

// PushChunk appends a copy of b to a recording session.
func (r *Registry) PushChunk(id string, b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.state != StateRecording {
		return fmt.Errorf("%w: %s", ErrNoSuchSession, id)
	}
	chunk := make([]byte, len(b))
	copy(chunk, b)
	s.chunks = append(s.chunks, chunk)
	s.size += int64(len(chunk))
	return nil
}

// End concatenates the session's chunks in arrival order into one artifact
// and forgets the session.
func (r *Registry) End(ctx context.Context, id string) (Ended, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.state != StateRecording {
		r.mu.Unlock()
		return Ended{}, fmt.Errorf("%w: %s", ErrNoSuchSession, id)
	}
	s.state = StateFinalizing
	chunks := s.chunks
	s.chunks = nil
	r.mu.Unlock()

	readers := make([]io.Reader, len(chunks))
	for i, c := range chunks {
		readers[i] = bytes.NewReader(c)
	}
	artifact, err := r.store.Write(ctx, id, s.createdAt, io.MultiReader(readers...))

	r.mu.Lock()
	delete(r.sessions, id)
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateComplete
	}
	r.mu.Unlock()

	if err != nil {
		return Ended{CreatedAt: s.createdAt, Chunks: len(chunks)}, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return Ended{Artifact: artifact, CreatedAt: s.createdAt, Chunks: len(chunks)}, nil
}

// State reports the state of a live session.
func (r *Registry) State(id string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return StateIdle, false
	}
	return s.state, true
}

func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
