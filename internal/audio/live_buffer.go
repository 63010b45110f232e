package audio

import "sync"

// LiveBuffer keeps the most recent window of mono samples for the live view.
// The window is measured in seconds at the rate of the last pushed chunk, so
// it is only approximate when the ambient rate changes mid-session.
type LiveBuffer struct {
	mu            sync.RWMutex
	windowSeconds float64
	chunks        []SampleChunk
	total         int
	sampleRate    int
}

func NewLiveBuffer(windowSeconds float64) *LiveBuffer {
	return &LiveBuffer{windowSeconds: windowSeconds}
}

func (b *LiveBuffer) Push(chunk SampleChunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if chunk.SampleRate > 0 {
		b.sampleRate = chunk.SampleRate
	}
	if len(chunk.Samples) > 0 {
		b.chunks = append(b.chunks, chunk)
		b.total += len(chunk.Samples)
	}
	b.trimLocked()
}

func (b *LiveBuffer) trimLocked() {
	excess := b.total - b.maxSamplesLocked()
	for excess > 0 && len(b.chunks) > 0 {
		head := b.chunks[0]
		if len(head.Samples) <= excess {
			b.chunks[0] = SampleChunk{}
			b.chunks = b.chunks[1:]
			b.total -= len(head.Samples)
			excess -= len(head.Samples)
			continue
		}
		b.chunks[0].Samples = head.Samples[excess:]
		b.total -= excess
		excess = 0
	}
	if len(b.chunks) == 0 {
		b.chunks = nil
	}
}

func (b *LiveBuffer) maxSamplesLocked() int {
	return int(b.windowSeconds * float64(b.sampleRate))
}

// Snapshot returns up to maxSamples of the newest samples, oldest first.
func (b *LiveBuffer) Snapshot(maxSamples int) []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.total
	if maxSamples < n {
		n = maxSamples
	}
	if n <= 0 {
		return []float32{}
	}

	out := make([]float32, 0, n)
	skip := b.total - n
	for _, c := range b.chunks {
		s := c.Samples
		if skip >= len(s) {
			skip -= len(s)
			continue
		}
		out = append(out, s[skip:]...)
		skip = 0
	}
	return out
}

func (b *LiveBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.total = 0
	b.sampleRate = 0
}

func (b *LiveBuffer) SampleRate() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sampleRate
}

func (b *LiveBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

func (b *LiveBuffer) MaxSamples() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxSamplesLocked()
}
