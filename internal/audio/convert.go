package audio

import "encoding/binary"

func Mixdown(channels [][]float32) []float32 {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return []float32{}
	}
	if len(channels) == 1 {
		out := make([]float32, len(channels[0]))
		copy(out, channels[0])
		return out
	}

	n := len(channels[0])
	out := make([]float32, n)
	scale := 1 / float32(len(channels))
	for i := 0; i < n; i++ {
		var sum float32
		for _, ch := range channels {
			sum += ch[i]
		}
		out[i] = sum * scale
	}
	return out
}

// Resample converts input from fromRate to toRate. The output always holds
// ResampledLength samples. Equal rates return input itself.
func Resample(input []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		return input
	}
	if len(input) == 0 || fromRate <= 0 || toRate <= 0 {
		return []float32{}
	}

	return resample(input, fromRate, toRate)
}

// ResampledLength is ceil(n * toRate / fromRate) computed without floating point.
// A round trip src -> dst -> src that downsamples first can therefore grow by
// up to ceil(src/dst) samples. Upsampling first stays within one.
func ResampledLength(n, fromRate, toRate int) int {
	if n <= 0 || fromRate <= 0 || toRate <= 0 {
		return 0
	}
	num := int64(n) * int64(toRate)
	den := int64(fromRate)
	return int((num + den - 1) / den)
}

// Normalize mixes p down to mono and converts it to TargetSampleRate.
func Normalize(p PCM) DecodedAudio {
	mono := Mixdown(p.Channels)
	if len(mono) == 0 {
		return DecodedAudio{Samples: mono, SampleRate: TargetSampleRate}
	}
	return DecodedAudio{
		Samples:    Resample(mono, p.SampleRate, TargetSampleRate),
		SampleRate: TargetSampleRate,
	}
}

func PCMBytesToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

func Int16ToFloat32(samples []int16) []float32 {
	result := make([]float32, len(samples))
	for i, s := range samples {
		result[i] = float32(s) / 32768.0
	}
	return result
}

func Float32ToInt16(samples []float32) []int16 {
	result := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		result[i] = int16(s * 32767.0)
	}
	return result
}

func Float32ToPCMBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range Float32ToInt16(samples) {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func Deinterleave(interleaved []float32, channels int) [][]float32 {
	if channels <= 1 {
		return [][]float32{interleaved}
	}
	frames := len(interleaved) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out[c][i] = interleaved[i*channels+c]
		}
	}
	return out
}
