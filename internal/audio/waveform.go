package audio

import "math"

// Peaks splits samples into buckets and returns the absolute peak of each.
func Peaks(samples []float32, buckets int) []float32 {
	if buckets <= 0 {
		return nil
	}
	out := make([]float32, buckets)
	n := len(samples)
	if n == 0 {
		return out
	}
	for b := 0; b < buckets; b++ {
		start := b * n / buckets
		end := (b + 1) * n / buckets
		var peak float32
		for _, s := range samples[start:end] {
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
		out[b] = peak
	}
	return out
}

// Level is the RMS of samples.
func Level(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
