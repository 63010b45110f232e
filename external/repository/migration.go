package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE recording_status AS ENUM ('recording', 'complete', 'failed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS recording_sessions (
		id TEXT PRIMARY KEY,
		status recording_status NOT NULL DEFAULT 'recording',
		created_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		artifact_path TEXT NOT NULL DEFAULT '',
		artifact_bytes BIGINT NOT NULL DEFAULT 0,
		audio_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		transcript TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recording_sessions_created ON recording_sessions (created_at DESC)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
