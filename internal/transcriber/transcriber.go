package transcriber

import "context"

// Transcriber turns mono samples into text. Implementations may be slow; the
// caller bounds the call with ctx.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}
