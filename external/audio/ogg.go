package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const (
	opusHeadMinLen      = 19
	opusHeadChannelsPos = 9
)

var (
	oggCapturePattern = []byte("OggS")
	opusHeadMagic     = []byte("OpusHead")
	opusTagsMagic     = []byte("OpusTags")
)

// oggPageStream reads pages from an Ogg/Opus stream that arrives in arbitrary
// byte slices. An incomplete trailing page stays buffered until a later feed
// completes it. Each page payload is returned whole, so the stream must carry
// one packet per page.
type oggPageStream struct {
	reader   *oggreader.OggReader
	channels int

	// buf holds unread stream bytes; buf[0] sits at reader offset base.
	buf  []byte
	base int64
}

// feed appends b and returns the payloads of every page it completed. The
// identification page is consumed internally and sets channels.
func (s *oggPageStream) feed(b []byte) ([][]byte, error) {
	s.buf = append(s.buf, b...)
	s.align()

	if s.reader == nil {
		reader, header, err := oggreader.NewWith(bytes.NewReader(s.buf))
		if err != nil {
			if isShortRead(err) {
				return nil, nil
			}
			s.resync()
			return nil, fmt.Errorf("read ogg identification page: %w", err)
		}
		if header.Channels < 1 || header.Channels > 2 {
			s.resync()
			return nil, fmt.Errorf("unsupported opus channel count %d", header.Channels)
		}
		s.reader = reader
		s.base = 0
		s.channels = int(header.Channels)
	} else {
		s.reader.ResetReader(s.rewind)
	}

	var pages [][]byte
	for {
		payload, _, err := s.reader.ParseNextPage()
		if err == nil {
			pages = append(pages, payload)
			continue
		}
		s.reader.ResetReader(s.rewind)
		if isShortRead(err) {
			return pages, nil
		}
		s.resync()
		return pages, fmt.Errorf("read ogg page: %w", err)
	}
}

// rewind drops the pages the reader has consumed and restarts it on the
// remaining bytes.
func (s *oggPageStream) rewind(consumed int64) io.Reader {
	s.buf = s.buf[consumed-s.base:]
	s.base = consumed
	return bytes.NewReader(s.buf)
}

// resync skips a damaged page. Dropped bytes are not counted by the reader,
// so base is unchanged.
func (s *oggPageStream) resync() {
	if len(s.buf) > 0 {
		s.buf = s.buf[1:]
	}
	s.align()
}

// align drops bytes before the next capture pattern.
func (s *oggPageStream) align() {
	idx := bytes.Index(s.buf, oggCapturePattern)
	switch {
	case idx == 0:
	case idx > 0:
		s.buf = s.buf[idx:]
	default:
		if keep := len(oggCapturePattern) - 1; len(s.buf) > keep {
			s.buf = append(s.buf[:0], s.buf[len(s.buf)-keep:]...)
		}
	}
}

func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseOpusHead reads the channel count of a chained stream's OpusHead.
func parseOpusHead(pkt []byte) (int, error) {
	if len(pkt) < opusHeadMinLen || !bytes.HasPrefix(pkt, opusHeadMagic) {
		return 0, fmt.Errorf("invalid OpusHead packet (%d bytes)", len(pkt))
	}
	channels := int(pkt[opusHeadChannelsPos])
	if channels < 1 || channels > 2 {
		return 0, fmt.Errorf("unsupported opus channel count %d", channels)
	}
	return channels, nil
}
