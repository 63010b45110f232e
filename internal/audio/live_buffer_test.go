package audio

import (
	"sync"
	"testing"
)

func seq(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func TestLiveBufferSnapshotIsSuffix(t *testing.T) {
	b := NewLiveBuffer(1)
	var all []float32
	next := 0
	for _, n := range []int{3, 5, 2, 7, 4} {
		chunk := seq(next, n)
		next += n
		all = append(all, chunk...)
		b.Push(SampleChunk{Samples: chunk, SampleRate: 10})
	}

	if b.Len() != 10 {
		t.Fatalf("len = %d, want 10", b.Len())
	}
	for _, m := range []int{1, 4, 10, 50} {
		got := b.Snapshot(m)
		want := m
		if want > 10 {
			want = 10
		}
		if len(got) != want {
			t.Fatalf("Snapshot(%d) length = %d, want %d", m, len(got), want)
		}
		suffix := all[len(all)-want:]
		for i := range got {
			if got[i] != suffix[i] {
				t.Fatalf("Snapshot(%d)[%d] = %v, want %v", m, i, got[i], suffix[i])
			}
		}
	}
}

func TestLiveBufferSnapshotZero(t *testing.T) {
	b := NewLiveBuffer(1)
	b.Push(SampleChunk{Samples: seq(0, 4), SampleRate: 10})
	if got := b.Snapshot(0); len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %v", got)
	}
}

func TestLiveBufferWindowFollowsRate(t *testing.T) {
	b := NewLiveBuffer(2)
	b.Push(SampleChunk{Samples: seq(0, 10), SampleRate: 100})
	if b.MaxSamples() != 200 {
		t.Fatalf("max samples = %d, want 200", b.MaxSamples())
	}
	b.Push(SampleChunk{Samples: seq(10, 4), SampleRate: 3})
	if b.MaxSamples() != 6 {
		t.Fatalf("max samples = %d, want 6", b.MaxSamples())
	}
	if b.Len() != 6 {
		t.Fatalf("len = %d, want 6", b.Len())
	}
	got := b.Snapshot(6)
	if got[0] != 8 || got[5] != 13 {
		t.Fatalf("unexpected snapshot %v", got)
	}
}

func TestLiveBufferClear(t *testing.T) {
	b := NewLiveBuffer(1)
	b.Push(SampleChunk{Samples: seq(0, 5), SampleRate: 10})
	b.Clear()
	if b.Len() != 0 || b.SampleRate() != 0 {
		t.Fatalf("buffer not cleared: len=%d rate=%d", b.Len(), b.SampleRate())
	}
}

func TestLiveBufferConcurrentPushAndSnapshot(t *testing.T) {
	const (
		rate     = 1000
		total    = 20000
		chunkLen = 37
		readers  = 4
	)
	b := NewLiveBuffer(1)

	done := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan string, readers)
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := b.Snapshot(rate / 2)
				if len(snap) > rate/2 {
					errs <- "snapshot longer than requested"
					return
				}
				for i := 1; i < len(snap); i++ {
					if snap[i] != snap[i-1]+1 {
						errs <- "snapshot is not a contiguous run of pushed samples"
						return
					}
				}
			}
		}()
	}

	for next := 0; next < total; next += chunkLen {
		n := chunkLen
		if next+n > total {
			n = total - next
		}
		b.Push(SampleChunk{Samples: seq(next, n), SampleRate: rate})
	}
	close(done)
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}

	snap := b.Snapshot(rate)
	if len(snap) != rate || snap[len(snap)-1] != total-1 {
		t.Fatalf("final snapshot has %d samples ending at %v", len(snap), snap[len(snap)-1])
	}
}
