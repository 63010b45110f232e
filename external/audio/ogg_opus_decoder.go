//go:build opus

package audio

import (
	"bytes"
	"fmt"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/hraban/opus"
)

const (
	opusSampleRate = 48000
	// 120 ms at 48 kHz is the longest frame an Opus packet can carry.
	maxOpusFrameSamples = 5760
)

// OggOpusDecoder decodes consecutive slices of one Ogg/Opus stream. It keeps
// decoder state between slices, so slices must be fed in capture order.
type OggOpusDecoder struct {
	pages    oggPageStream
	dec      *opus.Decoder
	channels int
	pcm      []float32
}

func NewOggOpusDecoder() (audio.SliceDecoder, error) {
	return &OggOpusDecoder{}, nil
}

func (d *OggOpusDecoder) Decode(slice []byte) (audio.SampleChunk, error) {
	pages, feedErr := d.pages.feed(slice)
	if d.pages.channels > 0 && (d.dec == nil || d.channels != d.pages.channels) {
		if err := d.reset(d.pages.channels); err != nil {
			return audio.SampleChunk{}, fmt.Errorf("%w: %v", audio.ErrDecodeFailed, err)
		}
	}

	mono := make([]float32, 0)
	for _, pkt := range pages {
		switch {
		case bytes.HasPrefix(pkt, opusHeadMagic):
			channels, err := parseOpusHead(pkt)
			if err == nil {
				err = d.reset(channels)
			}
			if err != nil {
				return audio.SampleChunk{}, fmt.Errorf("%w: %v", audio.ErrDecodeFailed, err)
			}
		case bytes.HasPrefix(pkt, opusTagsMagic):
			continue
		default:
			if d.dec == nil {
				return audio.SampleChunk{}, fmt.Errorf("%w: opus packet before OpusHead", audio.ErrDecodeFailed)
			}
			n, err := d.dec.DecodeFloat32(pkt, d.pcm)
			if err != nil {
				return audio.SampleChunk{}, fmt.Errorf("%w: %v", audio.ErrDecodeFailed, err)
			}
			frame := audio.Deinterleave(d.pcm[:n*d.channels], d.channels)
			mono = append(mono, audio.Mixdown(frame)...)
		}
	}
	if feedErr != nil && len(mono) == 0 {
		return audio.SampleChunk{}, fmt.Errorf("%w: %v", audio.ErrDecodeFailed, feedErr)
	}
	return audio.SampleChunk{Samples: mono, SampleRate: opusSampleRate}, nil
}

func (d *OggOpusDecoder) reset(channels int) error {
	dec, err := opus.NewDecoder(opusSampleRate, channels)
	if err != nil {
		return err
	}
	d.dec = dec
	d.channels = channels
	d.pcm = make([]float32, maxOpusFrameSamples*channels)
	return nil
}
