package repository

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

// CreateSession upserts so that a reused session id starts a fresh row.
func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO recording_sessions (id, status, created_at)
		 VALUES ($1, 'recording', $2)
		 ON CONFLICT (id) DO UPDATE SET
		   status = 'recording', created_at = EXCLUDED.created_at, ended_at = NULL,
		   artifact_path = '', artifact_bytes = 0, audio_seconds = 0,
		   transcript = '', error = '', updated_at = NOW()`,
		input.SessionID, input.CreatedAt)
	return err
}

func (r *PostgresRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE recording_sessions SET
		   status = $2, ended_at = $3, artifact_path = $4, artifact_bytes = $5,
		   audio_seconds = $6, transcript = $7, error = $8, updated_at = NOW()
		 WHERE id = $1`,
		input.SessionID, string(input.Status), input.EndedAt, input.ArtifactPath, input.ArtifactBytes,
		input.AudioSeconds, input.Transcript, input.Error)
	return err
}

func (r *PostgresRepository) GetSession(ctx context.Context, sessionID string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, status, created_at, ended_at, artifact_path, artifact_bytes, audio_seconds, transcript, error
		 FROM recording_sessions WHERE id = $1`,
		sessionID)
	var s repository.Session
	var status string
	var endedAt *time.Time
	err := row.Scan(&s.ID, &status, &s.CreatedAt, &endedAt, &s.ArtifactPath, &s.ArtifactBytes, &s.AudioSeconds, &s.Transcript, &s.Error)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Status = repository.SessionStatus(status)
	s.EndedAt = endedAt
	return &s, nil
}
