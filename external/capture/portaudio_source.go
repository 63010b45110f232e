//go:build portaudio

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/capture"
	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// PortAudioSource reads the default input device through a non-interleaved
// float32 callback and mixes each buffer down to mono at the device rate.
type PortAudioSource struct {
	mu     sync.Mutex
	stream *portaudio.Stream
}

func NewDirectSource() capture.Source {
	return &PortAudioSource{}
}

func (s *PortAudioSource) Start(_ context.Context, onChunk func(audio.SampleChunk)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return errors.New("portaudio source already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", capture.ErrCaptureUnavailable, err)
	}
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: %v", capture.ErrCaptureUnavailable, err)
	}

	channels := dev.MaxInputChannels
	if channels > 2 {
		channels = 2
	}
	if channels < 1 {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: device %q has no input channels", capture.ErrCaptureUnavailable, dev.Name)
	}
	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = channels
	params.FramesPerBuffer = framesPerBuffer
	rate := int(params.SampleRate)

	stream, err := portaudio.OpenStream(params, func(in [][]float32) {
		onChunk(audio.SampleChunk{Samples: audio.Mixdown(in), SampleRate: rate})
	})
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: %v", capture.ErrCaptureUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: %v", capture.ErrCaptureUnavailable, err)
	}
	s.stream = stream
	return nil
}

func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	s.stream = nil
	termErr := portaudio.Terminate()
	return errors.Join(stopErr, closeErr, termErr)
}
