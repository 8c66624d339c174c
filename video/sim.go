package video

import (
	"encoding/binary"
	"time"
)

// SimSource generates synthetic frames at a fixed rate for bench testing
// without cameras attached.
type SimSource struct {
	seq  uint32
	size int
	rate time.Duration
}

func NewSimSource(size int, rate time.Duration) *SimSource {
	if size < 8 {
		size = 8
	}
	return &SimSource{size: size, rate: rate}
}

// NextFrame emits a counter-stamped pattern frame. It paces itself so a
// Stream built on it does not spin.
func (s *SimSource) NextFrame() ([]byte, error) {
	time.Sleep(s.rate)

	s.seq++
	frame := make([]byte, s.size)
	binary.BigEndian.PutUint32(frame, s.seq)
	for i := 4; i < s.size; i++ {
		frame[i] = byte(s.seq + uint32(i))
	}
	return frame, nil
}
