//go:build !portaudio

package capture

import (
	"context"
	"fmt"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/capture"
)

type unavailableSource struct{}

func NewDirectSource() capture.Source {
	return &unavailableSource{}
}

func (s *unavailableSource) Start(_ context.Context, _ func(audio.SampleChunk)) error {
	return fmt.Errorf("%w: built without portaudio support", capture.ErrCaptureUnavailable)
}

func (s *unavailableSource) Stop() error {
	return nil
}
