package link

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Frame is one wire message: a flat JSON object of key/value scalars,
// newline terminated on both serial and socket media.
type Frame map[string]interface{}

var ErrEmptyFrame = errors.New("empty frame")

// EncodeFrame renders f as a single JSON line.
func EncodeFrame(f Frame) ([]byte, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(payload, '\n'), nil
}

// DecodeFrame parses one received line. Whitespace-only input is reported as
// ErrEmptyFrame so callers can skip it without logging garbage.
func DecodeFrame(raw []byte) (Frame, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrEmptyFrame
	}

	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return f, nil
}
