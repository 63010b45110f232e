package audio

import "errors"

// TargetSampleRate is the only rate audio is delivered to the transcriber at.
const TargetSampleRate = 16000

var ErrDecodeFailed = errors.New("audio decode failed")

type SampleChunk struct {
	Samples    []float32
	SampleRate int
}

// PCM is decoded audio that may still carry several channels.
type PCM struct {
	Channels   [][]float32
	SampleRate int
}

type DecodedAudio struct {
	Samples    []float32
	SampleRate int
}

func (d DecodedAudio) Duration() float64 {
	if d.SampleRate <= 0 {
		return 0
	}
	return float64(len(d.Samples)) / float64(d.SampleRate)
}

type SliceDecoder interface {
	Decode(slice []byte) (SampleChunk, error)
}

type SliceDecoderFactory func() (SliceDecoder, error)

type FileDecoder interface {
	DecodeFile(path string) (PCM, error)
}
