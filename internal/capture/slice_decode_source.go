package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/foxseedlab/kikitori/internal/audio"
)

const defaultSliceQueueSize = 64

// SliceDecodeSource turns encoded slices into sample chunks. Slices are decoded
// one at a time in arrival order because the decoder keeps stream state.
type SliceDecodeSource struct {
	newDecoder audio.SliceDecoderFactory
	pending    *PendingDecodes
	logger     *slog.Logger

	mu      sync.Mutex
	queue   chan []byte
	stopped bool
	done    chan struct{}
}

func NewSliceDecodeSource(newDecoder audio.SliceDecoderFactory, logger *slog.Logger) *SliceDecodeSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SliceDecodeSource{
		newDecoder: newDecoder,
		pending:    NewPendingDecodes(),
		logger:     logger.With("component", "slice_decode_source"),
	}
}

func (s *SliceDecodeSource) Pending() *PendingDecodes {
	return s.pending
}

func (s *SliceDecodeSource) Start(ctx context.Context, onChunk func(audio.SampleChunk)) error {
	if s.newDecoder == nil {
		return errors.New("slice decoder factory is nil")
	}
	dec, err := s.newDecoder()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil && !s.stopped {
		return errors.New("slice decode source already started")
	}
	queue := make(chan []byte, defaultSliceQueueSize)
	done := make(chan struct{})
	s.queue = queue
	s.done = done
	s.stopped = false

	go s.decodeLoop(ctx, dec, queue, done, onChunk)
	return nil
}

func (s *SliceDecodeSource) decodeLoop(ctx context.Context, dec audio.SliceDecoder, queue <-chan []byte, done chan<- struct{}, onChunk func(audio.SampleChunk)) {
	defer close(done)
	for slice := range queue {
		if ctx.Err() == nil {
			chunk, err := dec.Decode(slice)
			if err != nil {
				s.logger.Debug("dropping undecodable slice", "bytes", len(slice), "error", err)
			} else if len(chunk.Samples) > 0 {
				onChunk(chunk)
			}
		}
		s.pending.Done()
	}
}

// HandleSlice queues slice for decoding. It never blocks the caller; a full
// queue drops the slice.
func (s *SliceDecodeSource) HandleSlice(slice []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil || s.stopped {
		return
	}
	s.pending.Add()
	select {
	case s.queue <- slice:
	default:
		s.pending.Done()
		s.logger.Debug("slice decode queue full, dropping slice", "bytes", len(slice))
	}
}

// Stop stops accepting slices. Slices already queued are still decoded and
// tracked by Pending.
func (s *SliceDecodeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil || s.stopped {
		return nil
	}
	s.stopped = true
	close(s.queue)
	return nil
}
