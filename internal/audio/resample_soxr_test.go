//go:build soxr

package audio

import (
	"math"
	"testing"
)

func TestSoxrResampleMatchesLengthRule(t *testing.T) {
	in := make([]float32, 4801)
	out, err := soxrResample(in, 48000, 16000)
	if err != nil {
		t.Fatalf("soxrResample failed: %v", err)
	}
	if want := ResampledLength(len(in), 48000, 16000); len(out) != want {
		t.Fatalf("length = %d, want %d", len(out), want)
	}
}

func TestSoxrResamplePreservesConstantSignal(t *testing.T) {
	in := make([]float32, 4800)
	for i := range in {
		in[i] = 0.5
	}
	out, err := soxrResample(in, 48000, 16000)
	if err != nil {
		t.Fatalf("soxrResample failed: %v", err)
	}
	// The filter settles away from the edges.
	for i := len(out) / 4; i < 3*len(out)/4; i++ {
		if math.Abs(float64(out[i])-0.5) > 1e-2 {
			t.Fatalf("sample %d = %v, want 0.5", i, out[i])
		}
	}
}
