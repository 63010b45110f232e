package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/capture"
)

const (
	defaultLiveQueueSize = 32
	defaultPushQueueSize = 256
)

// Backend is the session side of the capture boundary as seen by the recorder.
type Backend interface {
	StartSession(ctx context.Context, id string) error
	PushChunk(ctx context.Context, id string, chunk []byte) error
	EndSession(ctx context.Context, id string) (string, error)
}

type Options struct {
	LiveWindowSeconds float64
	GraceWindow       time.Duration
	DecodeWaitTimeout time.Duration
	LiveQueueSize     int
}

type Dependencies struct {
	Backend  Backend
	Direct   capture.Source
	Slices   capture.SliceRecorder
	Decoders audio.SliceDecoderFactory
	Logger   *slog.Logger
}

// Controller runs one recording: encoded slices go to the backend session in
// order while decoded samples feed the live buffer on a lossy queue.
type Controller struct {
	backend  Backend
	direct   capture.Source
	slices   capture.SliceRecorder
	decoders audio.SliceDecoderFactory
	opts     Options
	logger   *slog.Logger
	live     *audio.LiveBuffer

	mu           sync.Mutex
	sessionID    string
	started      bool
	closed       bool
	cancel       context.CancelFunc
	liveQueue    chan audio.SampleChunk
	liveDone     chan struct{}
	pushQueue    chan []byte
	pushDone     chan struct{}
	directActive bool
	fallback     *capture.SliceDecodeSource

	// sliceMu guards pushQueue against close while senders hold the read
	// lock. Closing slicesStop releases senders blocked on a full queue.
	sliceMu      sync.RWMutex
	slicesClosed bool
	slicesStop   chan struct{}
	releaseOnce  sync.Once

	droppedChunks atomic.Uint64
	pushFailures  atomic.Uint64

	stopOnce sync.Once
	text     string
	err      error
}

func NewController(deps Dependencies, opts Options) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LiveQueueSize <= 0 {
		opts.LiveQueueSize = defaultLiveQueueSize
	}
	return &Controller{
		backend:  deps.Backend,
		direct:   deps.Direct,
		slices:   deps.Slices,
		decoders: deps.Decoders,
		opts:     opts,
		logger:   logger.With("component", "recorder"),
		live:     audio.NewLiveBuffer(opts.LiveWindowSeconds),
	}
}

func (c *Controller) Live() *audio.LiveBuffer {
	return c.live
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// LiveViewAvailable reports whether any strategy is feeding the live buffer.
func (c *Controller) LiveViewAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directActive || c.fallback != nil
}

func (c *Controller) DroppedChunks() uint64 {
	return c.droppedChunks.Load()
}

func (c *Controller) PushFailures() uint64 {
	return c.pushFailures.Load()
}

// Start opens the backend session and begins capture. A missing live view is
// not an error; a slice recorder that cannot start is, and the backend
// session is ended before returning.
func (c *Controller) Start(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("recorder already started")
	}
	c.started = true
	c.sessionID = sessionID
	c.mu.Unlock()

	if err := c.backend.StartSession(ctx, sessionID); err != nil {
		return fmt.Errorf("start session %s: %w", sessionID, err)
	}
	c.live.Clear()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.cancel = cancel
	c.liveQueue = make(chan audio.SampleChunk, c.opts.LiveQueueSize)
	c.liveDone = make(chan struct{})
	c.pushQueue = make(chan []byte, defaultPushQueueSize)
	c.pushDone = make(chan struct{})
	c.slicesStop = make(chan struct{})
	go c.liveLoop(c.liveQueue, c.liveDone)
	go c.pushLoop(runCtx, sessionID, c.pushQueue, c.pushDone)
	c.mu.Unlock()

	c.startLiveSource(runCtx)

	if err := c.slices.Start(runCtx, c.handleSlice); err != nil {
		c.logger.Error("slice recorder failed to start", "session_id", sessionID, "error", err)
		c.stopSources()
		c.closeSlices()
		c.closeLive()
		if _, endErr := c.backend.EndSession(context.WithoutCancel(ctx), sessionID); endErr != nil {
			c.logger.Warn("failed to end session after capture failure", "session_id", sessionID, "error", endErr)
		}
		cancel()
		c.stopOnce.Do(func() {
			c.err = fmt.Errorf("start slice recorder: %w", err)
		})
		return c.err
	}

	c.logger.Info("recording started", "session_id", sessionID, "live_view", c.LiveViewAvailable())
	return nil
}

func (c *Controller) startLiveSource(ctx context.Context) {
	if c.direct != nil {
		err := c.direct.Start(ctx, c.enqueueLive)
		if err == nil {
			c.mu.Lock()
			c.directActive = true
			c.mu.Unlock()
			return
		}
		if errors.Is(err, capture.ErrCaptureUnavailable) {
			c.logger.Info("direct capture unavailable, decoding slices for live view", "error", err)
		} else {
			c.logger.Warn("direct capture failed to start, decoding slices for live view", "error", err)
		}
	}

	if c.decoders == nil {
		c.logger.Warn("no slice decoder, recording without live view")
		return
	}
	fallback := capture.NewSliceDecodeSource(c.decoders, c.logger)
	if err := fallback.Start(ctx, c.enqueueLive); err != nil {
		c.logger.Warn("slice decoding unavailable, recording without live view", "error", err)
		return
	}
	c.mu.Lock()
	c.fallback = fallback
	c.mu.Unlock()
}

// enqueueLive never blocks the capture callback. When the queue is full the
// chunk is dropped.
func (c *Controller) enqueueLive(chunk audio.SampleChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.liveQueue <- chunk:
	default:
		n := c.droppedChunks.Add(1)
		c.logger.Debug("live queue full, dropping chunk", "samples", len(chunk.Samples), "dropped", n)
	}
}

func (c *Controller) liveLoop(queue <-chan audio.SampleChunk, done chan<- struct{}) {
	defer close(done)
	for chunk := range queue {
		c.live.Push(chunk)
	}
}

// handleSlice is the slice recorder callback. Slices are only dropped on their
// way to the backend once Stop has released a stalled queue.
func (c *Controller) handleSlice(slice []byte) {
	if len(slice) == 0 {
		return
	}
	c.sliceMu.RLock()
	if c.slicesClosed {
		c.sliceMu.RUnlock()
		return
	}
	select {
	case c.pushQueue <- slice:
	case <-c.slicesStop:
		c.sliceMu.RUnlock()
		n := c.pushFailures.Add(1)
		c.logger.Warn("push queue released, slice not sent", "bytes", len(slice), "push_failures", n)
		return
	}
	c.sliceMu.RUnlock()

	c.mu.Lock()
	fallback := c.fallback
	if c.directActive {
		fallback = nil
	}
	c.mu.Unlock()
	if fallback != nil {
		fallback.HandleSlice(slice)
	}
}

func (c *Controller) pushLoop(ctx context.Context, sessionID string, queue <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for slice := range queue {
		if err := c.backend.PushChunk(ctx, sessionID, slice); err != nil {
			c.pushFailures.Add(1)
			c.logger.Warn("failed to push chunk", "session_id", sessionID, "bytes", len(slice), "error", err)
		}
	}
}

func (c *Controller) stopSources() {
	c.mu.Lock()
	direct := c.directActive
	c.mu.Unlock()

	if direct {
		if err := c.direct.Stop(); err != nil {
			c.logger.Warn("direct capture stop failed", "error", err)
		}
	}
	if err := c.slices.Stop(); err != nil {
		c.logger.Warn("slice recorder stop failed", "error", err)
	}
}

// stopSourcesWithin stops capture, giving up after the grace window. A
// recorder flushing into a full push queue is released so its Stop can return.
func (c *Controller) stopSourcesWithin(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.stopSources()
	}()

	timer := time.NewTimer(c.opts.GraceWindow)
	defer timer.Stop()
	select {
	case <-done:
		return
	case <-timer.C:
	case <-ctx.Done():
	}
	c.logger.Warn("capture still stopping, releasing queued slices", "grace_window", c.opts.GraceWindow)
	c.releaseSlices()

	timer.Reset(c.opts.GraceWindow)
	select {
	case <-done:
	case <-timer.C:
		c.logger.Warn("capture did not stop, finalizing anyway")
	case <-ctx.Done():
	}
}

func (c *Controller) releaseSlices() {
	c.releaseOnce.Do(func() {
		close(c.slicesStop)
	})
}

// closeSlices stops feeding the push queue and the slice decoder. Slices
// already queued are still pushed and decoded.
func (c *Controller) closeSlices() {
	c.releaseSlices()
	c.sliceMu.Lock()
	if !c.slicesClosed {
		c.slicesClosed = true
		close(c.pushQueue)
	}
	c.sliceMu.Unlock()

	c.mu.Lock()
	fallback := c.fallback
	c.mu.Unlock()
	if fallback != nil {
		_ = fallback.Stop()
	}
}

func (c *Controller) closeLive() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.liveQueue)
	}
	done := c.liveDone
	c.mu.Unlock()
	<-done
}

// Stop finalizes the recording and returns the transcript. Every wait is
// bounded, so Stop returns even when pushes or decodes stall. Repeated calls
// return the first result.
func (c *Controller) Stop(ctx context.Context) (string, error) {
	c.stopOnce.Do(func() {
		c.text, c.err = c.finalize(ctx)
	})
	return c.text, c.err
}

func (c *Controller) finalize(ctx context.Context) (string, error) {
	c.mu.Lock()
	started := c.started && c.pushQueue != nil
	sessionID := c.sessionID
	c.mu.Unlock()
	if !started {
		return "", errors.New("recorder not started")
	}

	c.stopSourcesWithin(ctx)
	c.closeSlices()

	c.waitGrace(ctx)
	c.waitDecodes(ctx)
	c.closeLive()

	// Pushes still in flight after the grace window are abandoned.
	c.cancel()
	text, err := c.backend.EndSession(ctx, sessionID)
	if err != nil {
		c.logger.Error("session finalize failed", "session_id", sessionID, "error", err)
		return "", fmt.Errorf("end session %s: %w", sessionID, err)
	}
	c.logger.Info("recording finalized", "session_id", sessionID, "chars", len([]rune(text)),
		"dropped_live_chunks", c.DroppedChunks(), "push_failures", c.PushFailures())
	return text, nil
}

func (c *Controller) waitGrace(ctx context.Context) {
	timer := time.NewTimer(c.opts.GraceWindow)
	defer timer.Stop()
	select {
	case <-c.pushDone:
	case <-timer.C:
		c.logger.Warn("grace window elapsed with chunks still in flight", "grace_window", c.opts.GraceWindow)
	case <-ctx.Done():
	}
}

func (c *Controller) waitDecodes(ctx context.Context) {
	c.mu.Lock()
	fallback := c.fallback
	c.mu.Unlock()
	if fallback == nil {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.opts.DecodeWaitTimeout)
	defer cancel()
	if err := fallback.Pending().Wait(waitCtx); err != nil {
		c.logger.Warn("proceeding with decodes still pending", "pending", fallback.Pending().Count(), "error", err)
	}
}
