package control

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxMessageLen is the largest text the 2-byte prefix can describe.
const MaxMessageLen = 0xffff

var ErrMessageTooLong = errors.New("message longer than 65535 bytes")

// Encode prefixes text with its big-endian length.
func Encode(text string) ([]byte, error) {
	if len(text) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}
	buf := make([]byte, 2+len(text))
	binary.BigEndian.PutUint16(buf, uint16(len(text)))
	copy(buf[2:], text)
	return buf, nil
}

// WriteMessage sends one framed message in a single write.
func WriteMessage(w io.Writer, text string) error {
	buf, err := Encode(text)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "write message")
	}
	return nil
}

// ReadMessage blocks until one complete framed message has been read.
func ReadMessage(r io.Reader) (string, error) {
	var prefix [2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return "", err
	}
	buf := make([]byte, binary.BigEndian.Uint16(prefix[:]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
