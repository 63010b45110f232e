package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
)

type mockSliceDecoder struct {
	mu    sync.Mutex
	order []int
	delay time.Duration
}

func (m *mockSliceDecoder) Decode(slice []byte) (audio.SampleChunk, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if len(slice) == 0 {
		return audio.SampleChunk{}, audio.ErrDecodeFailed
	}
	m.mu.Lock()
	m.order = append(m.order, int(slice[0]))
	m.mu.Unlock()
	return audio.SampleChunk{Samples: make([]float32, len(slice)), SampleRate: 48000}, nil
}

func TestSliceDecodeSourceDecodesInOrder(t *testing.T) {
	dec := &mockSliceDecoder{delay: time.Millisecond}
	src := NewSliceDecodeSource(func() (audio.SliceDecoder, error) { return dec, nil }, nil)

	var mu sync.Mutex
	var samples int
	if err := src.Start(context.Background(), func(c audio.SampleChunk) {
		mu.Lock()
		samples += len(c.Samples)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 1; i <= 5; i++ {
		src.HandleSlice([]byte{byte(i), 0})
	}
	src.HandleSlice(nil)
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := src.Pending().Wait(ctx); err != nil {
		t.Fatalf("pending decodes did not drain: %v", err)
	}

	dec.mu.Lock()
	defer dec.mu.Unlock()
	for i, v := range dec.order {
		if v != i+1 {
			t.Fatalf("decode order = %v", dec.order)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if samples != 10 {
		t.Fatalf("samples delivered = %d, want 10", samples)
	}
}

func TestSliceDecodeSourceIgnoresSlicesAfterStop(t *testing.T) {
	dec := &mockSliceDecoder{}
	src := NewSliceDecodeSource(func() (audio.SliceDecoder, error) { return dec, nil }, nil)
	if err := src.Start(context.Background(), func(audio.SampleChunk) {}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	src.HandleSlice([]byte{1})
	if src.Pending().Count() != 0 {
		t.Fatalf("pending = %d after stop, want 0", src.Pending().Count())
	}
}

func TestSliceDecodeSourceFactoryError(t *testing.T) {
	wantErr := errors.New("no codec")
	src := NewSliceDecodeSource(func() (audio.SliceDecoder, error) { return nil, wantErr }, nil)
	if err := src.Start(context.Background(), func(audio.SampleChunk) {}); !errors.Is(err, wantErr) {
		t.Fatalf("expected factory error, got %v", err)
	}
}
