package audio

import "math"

// sincZeroCrossings is the number of sinc lobes kept on each side of the
// interpolation point before the window reaches zero.
const sincZeroCrossings = 8

// sincResample is the pure Go engine used when libsoxr is not linked in.
func sincResample(input []float32, fromRate, toRate int) []float32 {
	output := make([]float32, ResampledLength(len(input), fromRate, toRate))
	resampleCore(output, input, float64(fromRate)/float64(toRate))
	return output
}

func resampleCore(output, input []float32, step float64) {
	cutoff := 1.0
	if step > 1 {
		cutoff = 1 / step
	}
	halfWidth := float64(sincZeroCrossings) / cutoff
	last := len(input) - 1

	for i := range output {
		pos := float64(i) * step
		lo := int(math.Ceil(pos - halfWidth))
		hi := int(math.Floor(pos + halfWidth))
		if lo < 0 {
			lo = 0
		}
		if hi > last {
			hi = last
		}

		var acc, norm float64
		for j := lo; j <= hi; j++ {
			w := sincKernel(float64(j)-pos, cutoff, halfWidth)
			acc += float64(input[j]) * w
			norm += w
		}
		if math.Abs(norm) < 1e-9 {
			idx := int(math.Round(pos))
			if idx > last {
				idx = last
			}
			output[i] = input[idx]
			continue
		}
		output[i] = float32(acc / norm)
	}
}

func sincKernel(x, cutoff, halfWidth float64) float64 {
	if math.Abs(x) >= halfWidth {
		return 0
	}
	window := 0.5 * (1 + math.Cos(math.Pi*x/halfWidth))
	t := x * cutoff
	if t == 0 {
		return cutoff * window
	}
	return cutoff * math.Sin(math.Pi*t) / (math.Pi * t) * window
}
