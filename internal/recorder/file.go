package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// SendFile streams r through a fresh session in chunkSize pieces and returns
// the transcript. The session is ended even when a push fails.
func SendFile(ctx context.Context, backend Backend, sessionID string, r io.Reader, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		return "", fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if err := backend.StartSession(ctx, sessionID); err != nil {
		return "", fmt.Errorf("start session %s: %w", sessionID, err)
	}

	pushErr := pushAll(ctx, backend, sessionID, r, chunkSize)
	text, endErr := backend.EndSession(context.WithoutCancel(ctx), sessionID)
	if pushErr != nil {
		return "", errors.Join(pushErr, endErr)
	}
	if endErr != nil {
		return "", fmt.Errorf("end session %s: %w", sessionID, endErr)
	}
	return text, nil
}

func pushAll(ctx context.Context, backend Backend, sessionID string, r io.Reader, chunkSize int) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if pushErr := backend.PushChunk(ctx, sessionID, chunk); pushErr != nil {
				return fmt.Errorf("push chunk: %w", pushErr)
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("read input: %w", err)
		}
	}
}
