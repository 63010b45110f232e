//go:build !opus

package audio

import (
	"fmt"

	"github.com/foxseedlab/kikitori/internal/audio"
)

type noopSliceDecoder struct{}

func NewOggOpusDecoder() (audio.SliceDecoder, error) {
	return &noopSliceDecoder{}, nil
}

func (d *noopSliceDecoder) Decode(_ []byte) (audio.SampleChunk, error) {
	return audio.SampleChunk{}, fmt.Errorf("%w: built without opus support", audio.ErrDecodeFailed)
}
