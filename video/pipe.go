package video

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// maxFrameSize rejects corrupt length prefixes before allocating.
const maxFrameSize = 8 << 20

// PipeSource reads frames from a fifo written by an external capture
// process. Each frame is a 4 byte big endian length followed by the encoded
// image bytes, so this package stays free of camera driver bindings.
type PipeSource struct {
	path string

	f *os.File
	r *bufio.Reader
}

func NewPipeSource(path string) *PipeSource {
	return &PipeSource{path: path}
}

func (p *PipeSource) NextFrame() ([]byte, error) {
	if p.f == nil {
		f, err := os.Open(p.path)
		if err != nil {
			return nil, err
		}
		p.f = f
		p.r = bufio.NewReader(f)
	}

	var header [4]byte
	if _, err := io.ReadFull(p.r, header[:]); err != nil {
		p.reset()
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size == 0 || size > maxFrameSize {
		p.reset()
		return nil, fmt.Errorf("implausible frame length %d from %s", size, p.path)
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(p.r, frame); err != nil {
		p.reset()
		return nil, err
	}
	return frame, nil
}

func (p *PipeSource) reset() {
	if p.f != nil {
		p.f.Close()
		p.f = nil
		p.r = nil
	}
}

func (p *PipeSource) Close() error {
	p.reset()
	return nil
}
