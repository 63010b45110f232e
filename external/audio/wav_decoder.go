package audio

import (
	"fmt"
	"os"

	"github.com/foxseedlab/kikitori/internal/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type WAVDecoder struct{}

func NewWAVDecoder() audio.FileDecoder {
	return &WAVDecoder{}
}

func (d *WAVDecoder) DecodeFile(path string) (audio.PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.PCM{}, err
	}
	defer func() {
		_ = f.Close()
	}()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return audio.PCM{}, fmt.Errorf("%s is not a valid wav file", path)
	}
	var buf *goaudio.IntBuffer
	buf, err = dec.FullPCMBuffer()
	if err != nil {
		return audio.PCM{}, fmt.Errorf("read pcm: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		return audio.PCM{}, fmt.Errorf("wav declares %d channels", channels)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return audio.PCM{}, fmt.Errorf("unsupported wav bit depth %d", bitDepth)
	}
	return audio.PCM{
		Channels:   intSamplesToChannels(buf.Data, channels, bitDepth),
		SampleRate: int(dec.SampleRate),
	}, nil
}

func intSamplesToChannels(data []int, channels, bitDepth int) [][]float32 {
	scale := float32(int64(1) << (bitDepth - 1))
	frames := len(data) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out[c][i] = float32(data[i*channels+c]) / scale
		}
	}
	return out
}
