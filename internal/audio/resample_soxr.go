//go:build soxr

package audio

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"math"

	soxr "github.com/zaf/resample"
)

const soxrSampleBytes = 4

// resample runs input through libsoxr. The output is trimmed or zero padded
// to ResampledLength so both engines agree on timing.
func resample(input []float32, fromRate, toRate int) []float32 {
	out, err := soxrResample(input, fromRate, toRate)
	if err != nil {
		slog.Warn("soxr resample failed, using sinc resampler",
			"from_rate", fromRate, "to_rate", toRate, "error", err)
		return sincResample(input, fromRate, toRate)
	}
	return out
}

func soxrResample(input []float32, fromRate, toRate int) ([]float32, error) {
	buf := &bytes.Buffer{}
	r, err := soxr.New(buf, float64(fromRate), float64(toRate), 1, soxr.F32, soxr.HighQ)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, len(input)*soxrSampleBytes)
	for i, s := range input {
		binary.LittleEndian.PutUint32(raw[i*soxrSampleBytes:], math.Float32bits(s))
	}
	if _, err := r.Write(raw); err != nil {
		_ = r.Close()
		return nil, err
	}
	// Close flushes the samples still held in the filter.
	if err := r.Close(); err != nil {
		return nil, err
	}

	produced := buf.Bytes()
	output := make([]float32, ResampledLength(len(input), fromRate, toRate))
	for i := range output {
		off := i * soxrSampleBytes
		if off+soxrSampleBytes > len(produced) {
			break
		}
		output[i] = math.Float32frombits(binary.LittleEndian.Uint32(produced[off:]))
	}
	return output, nil
}
