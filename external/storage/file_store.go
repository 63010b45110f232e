package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foxseedlab/kikitori/internal/session"
)

const artifactExt = ".ogg"

// FileStore keeps session artifacts as files under one directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Write(ctx context.Context, sessionID string, createdAt time.Time, r io.Reader) (session.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return session.Artifact{}, err
	}
	name := fmt.Sprintf("%s-%d%s", safeFileComponent(sessionID), createdAt.UnixNano(), artifactExt)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return session.Artifact{}, err
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return session.Artifact{}, err
	}
	return session.Artifact{Path: path, Size: n}, nil
}

// Remove deletes a file previously produced for a session. Paths outside the
// store directory are refused.
func (s *FileStore) Remove(path string) error {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("refusing to remove %s outside %s", path, s.dir)
	}
	return os.Remove(path)
}

func safeFileComponent(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
