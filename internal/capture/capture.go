package capture

import (
	"context"
	"errors"

	"github.com/foxseedlab/kikitori/internal/audio"
)

// ErrCaptureUnavailable means the platform cannot deliver raw samples to a
// callback. Callers fall back to decoding encoded slices.
var ErrCaptureUnavailable = errors.New("direct sample capture unavailable")

// Source delivers mono sample chunks to onChunk until Stop is called.
type Source interface {
	Start(ctx context.Context, onChunk func(audio.SampleChunk)) error
	Stop() error
}

// SliceRecorder produces periodic slices of the encoded recording.
type SliceRecorder interface {
	Start(ctx context.Context, onSlice func([]byte)) error
	Stop() error
}
