package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/capture"
)

type fakeBackend struct {
	mu        sync.Mutex
	started   []string
	pushed    [][]byte
	ended     []string
	startErr  error
	pushErr   error
	endText   string
	endErr    error
	pushBlock chan struct{}
}

func (b *fakeBackend) StartSession(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = append(b.started, id)
	return b.startErr
}

func (b *fakeBackend) PushChunk(_ context.Context, _ string, chunk []byte) error {
	if b.pushBlock != nil {
		<-b.pushBlock
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pushErr != nil {
		return b.pushErr
	}
	b.pushed = append(b.pushed, chunk)
	return nil
}

func (b *fakeBackend) EndSession(_ context.Context, id string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = append(b.ended, id)
	return b.endText, b.endErr
}

func (b *fakeBackend) pushedStrings() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.pushed))
	for i, p := range b.pushed {
		out[i] = string(p)
	}
	return out
}

func (b *fakeBackend) endCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ended)
}

type fakeSource struct {
	mu       sync.Mutex
	startErr error
	onChunk  func(audio.SampleChunk)
	stopped  int
}

func (s *fakeSource) Start(_ context.Context, onChunk func(audio.SampleChunk)) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChunk = onChunk
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *fakeSource) emit(chunk audio.SampleChunk) {
	s.mu.Lock()
	fn := s.onChunk
	s.mu.Unlock()
	fn(chunk)
}

type fakeSliceRecorder struct {
	mu       sync.Mutex
	startErr error
	onSlice  func([]byte)
	stopped  int
	// trailing slices are emitted from Stop, the way ffmpeg flushes on exit.
	trailing int
}

func (r *fakeSliceRecorder) Start(_ context.Context, onSlice func([]byte)) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSlice = onSlice
	return nil
}

func (r *fakeSliceRecorder) Stop() error {
	r.mu.Lock()
	r.stopped++
	fn, n := r.onSlice, r.trailing
	r.mu.Unlock()
	for i := 0; i < n; i++ {
		fn([]byte{byte(i)})
	}
	return nil
}

func (r *fakeSliceRecorder) emit(slice string) {
	r.mu.Lock()
	fn := r.onSlice
	r.mu.Unlock()
	fn([]byte(slice))
}

// countingDecoder turns every byte of a slice into one sample at 48 kHz.
type countingDecoder struct {
	mu      sync.Mutex
	decoded int
	block   chan struct{}
}

func (d *countingDecoder) Decode(slice []byte) (audio.SampleChunk, error) {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	d.decoded++
	d.mu.Unlock()
	return audio.SampleChunk{Samples: make([]float32, len(slice)), SampleRate: 48000}, nil
}

func (d *countingDecoder) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decoded
}

type recorderFixture struct {
	backend   *fakeBackend
	direct    *fakeSource
	slices    *fakeSliceRecorder
	decoder   *countingDecoder
	factories int
	opts      Options
}

func newRecorderFixture() *recorderFixture {
	return &recorderFixture{
		backend: &fakeBackend{endText: "こんにちは"},
		direct:  &fakeSource{},
		slices:  &fakeSliceRecorder{},
		decoder: &countingDecoder{},
		opts: Options{
			LiveWindowSeconds: 5,
			GraceWindow:       time.Second,
			DecodeWaitTimeout: time.Second,
		},
	}
}

func (f *recorderFixture) controller() *Controller {
	return NewController(Dependencies{
		Backend: f.backend,
		Direct:  f.direct,
		Slices:  f.slices,
		Decoders: func() (audio.SliceDecoder, error) {
			f.factories++
			return f.decoder, nil
		},
	}, f.opts)
}

func TestControllerDirectCapture(t *testing.T) {
	f := newRecorderFixture()
	c := f.controller()

	if err := c.Start(context.Background(), "s1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !c.LiveViewAvailable() {
		t.Fatal("expected live view with direct capture")
	}
	f.slices.emit("a")
	f.slices.emit("b")
	f.direct.emit(audio.SampleChunk{Samples: make([]float32, 100), SampleRate: 44100})
	f.slices.emit("c")

	text, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if text != "こんにちは" {
		t.Fatalf("text = %q", text)
	}
	got := f.backend.pushedStrings()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("pushed = %v, want [a b c]", got)
	}
	if f.factories != 0 || f.decoder.count() != 0 {
		t.Fatalf("slice decoder should not run with direct capture, factories=%d decoded=%d", f.factories, f.decoder.count())
	}
	if c.Live().Len() != 100 || c.Live().SampleRate() != 44100 {
		t.Fatalf("live buffer len=%d rate=%d", c.Live().Len(), c.Live().SampleRate())
	}
	if f.direct.stopped != 1 || f.slices.stopped != 1 {
		t.Fatalf("sources not stopped: direct=%d slices=%d", f.direct.stopped, f.slices.stopped)
	}
}

func TestControllerFallsBackToSliceDecoding(t *testing.T) {
	f := newRecorderFixture()
	f.direct.startErr = capture.ErrCaptureUnavailable
	c := f.controller()

	if err := c.Start(context.Background(), "s1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !c.LiveViewAvailable() {
		t.Fatal("expected live view from slice decoding")
	}
	f.slices.emit("abcd")
	f.slices.emit("ef")

	if _, err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if f.decoder.count() != 2 {
		t.Fatalf("decoded %d slices, want 2", f.decoder.count())
	}
	if c.Live().Len() != 6 || c.Live().SampleRate() != 48000 {
		t.Fatalf("live buffer len=%d rate=%d", c.Live().Len(), c.Live().SampleRate())
	}
	if f.direct.stopped != 0 {
		t.Fatal("unavailable direct source should not be stopped")
	}
}

func TestControllerRecordsWithoutLiveView(t *testing.T) {
	f := newRecorderFixture()
	f.direct.startErr = capture.ErrCaptureUnavailable
	c := NewController(Dependencies{
		Backend: f.backend,
		Direct:  f.direct,
		Slices:  f.slices,
		Decoders: func() (audio.SliceDecoder, error) {
			return nil, audio.ErrDecodeFailed
		},
	}, f.opts)

	if err := c.Start(context.Background(), "s1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if c.LiveViewAvailable() {
		t.Fatal("expected no live view")
	}
	f.slices.emit("a")
	if _, err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if got := f.backend.pushedStrings(); len(got) != 1 {
		t.Fatalf("pushed = %v, want one slice", got)
	}
}

func TestControllerSliceRecorderFailureEndsSession(t *testing.T) {
	f := newRecorderFixture()
	f.slices.startErr = errors.New("ffmpeg not found")
	c := f.controller()

	err := c.Start(context.Background(), "s1")
	if err == nil {
		t.Fatal("expected start error")
	}
	if f.backend.endCount() != 1 {
		t.Fatalf("session should be ended once, got %d", f.backend.endCount())
	}
	if _, stopErr := c.Stop(context.Background()); !errors.Is(stopErr, f.slices.startErr) {
		t.Fatalf("stop should report the start failure, got %v", stopErr)
	}
	if f.backend.endCount() != 1 {
		t.Fatal("stop after failed start must not end the session again")
	}
}

func TestControllerStartSessionFailure(t *testing.T) {
	f := newRecorderFixture()
	f.backend.startErr = errors.New("already_active")
	c := f.controller()

	if err := c.Start(context.Background(), "s1"); !errors.Is(err, f.backend.startErr) {
		t.Fatalf("expected start session error, got %v", err)
	}
	if f.slices.onSlice != nil {
		t.Fatal("slice recorder should not start")
	}
	if _, err := c.Stop(context.Background()); err == nil {
		t.Fatal("stop without a session should fail")
	}
	if f.backend.endCount() != 0 {
		t.Fatal("no session to end")
	}
}

func TestControllerStopIsIdempotent(t *testing.T) {
	f := newRecorderFixture()
	c := f.controller()
	if err := c.Start(context.Background(), "s1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if text, err := c.Stop(context.Background()); err != nil || text != "こんにちは" {
				t.Errorf("stop = %q, %v", text, err)
			}
		}()
	}
	wg.Wait()
	if f.backend.endCount() != 1 {
		t.Fatalf("EndSession called %d times, want 1", f.backend.endCount())
	}
}

func TestControllerGraceWindowIsBounded(t *testing.T) {
	f := newRecorderFixture()
	f.opts.GraceWindow = 20 * time.Millisecond
	f.backend.pushBlock = make(chan struct{})
	defer close(f.backend.pushBlock)
	c := f.controller()
	if err := c.Start(context.Background(), "s1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.slices.emit("stuck")

	done := make(chan struct{})
	go func() {
		_, _ = c.Stop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return while a push was stuck")
	}
	if f.backend.endCount() != 1 {
		t.Fatal("session should still be ended")
	}
}

func TestControllerDecodeWaitIsBounded(t *testing.T) {
	f := newRecorderFixture()
	f.direct.startErr = capture.ErrCaptureUnavailable
	f.opts.DecodeWaitTimeout = 20 * time.Millisecond
	f.decoder.block = make(chan struct{})
	defer close(f.decoder.block)
	c := f.controller()
	if err := c.Start(context.Background(), "s1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.slices.emit("slow")

	done := make(chan struct{})
	go func() {
		_, _ = c.Stop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return while a decode was stuck")
	}
}

func TestControllerEndSessionError(t *testing.T) {
	f := newRecorderFixture()
	f.backend.endErr = errors.New("transcription_failed")
	c := f.controller()
	if err := c.Start(context.Background(), "s1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := c.Stop(context.Background()); !errors.Is(err, f.backend.endErr) {
		t.Fatalf("expected end error, got %v", err)
	}
}

func TestControllerStopReturnsWhenBackendStalls(t *testing.T) {
	f := newRecorderFixture()
	f.opts.GraceWindow = 100 * time.Millisecond
	f.backend.pushBlock = make(chan struct{})
	t.Cleanup(func() { close(f.backend.pushBlock) })
	f.slices.trailing = defaultPushQueueSize + 10
	c := f.controller()

	if err := c.Start(context.Background(), "stalled"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := c.Stop(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stop failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while the backend was stalled")
	}
	if f.backend.endCount() != 1 {
		t.Fatalf("end calls = %d, want 1", f.backend.endCount())
	}
	if c.PushFailures() == 0 {
		t.Fatal("expected released slices to count as push failures")
	}
}

func TestControllerStopHonorsContextWhenBackendStalls(t *testing.T) {
	f := newRecorderFixture()
	f.opts.GraceWindow = time.Minute
	f.opts.DecodeWaitTimeout = time.Minute
	f.backend.pushBlock = make(chan struct{})
	t.Cleanup(func() { close(f.backend.pushBlock) })
	f.slices.trailing = defaultPushQueueSize + 10
	c := f.controller()

	if err := c.Start(context.Background(), "stalled"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	began := time.Now()
	if _, err := c.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if elapsed := time.Since(began); elapsed > 2*time.Second {
		t.Fatalf("Stop returned after %v", elapsed)
	}
}
