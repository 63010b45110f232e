package transcoder

import "context"

// Transcoder rewrites an encoded recording as mono 16 kHz 16-bit PCM WAV and
// returns the path of the new file.
type Transcoder interface {
	Normalize(ctx context.Context, inputPath string) (string, error)
}
