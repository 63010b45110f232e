//go:build !soxr

package audio

func resample(input []float32, fromRate, toRate int) []float32 {
	return sincResample(input, fromRate, toRate)
}
