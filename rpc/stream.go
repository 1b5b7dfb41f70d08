package rpc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// maxBlobLen bounds string/blob/vector length prefixes read off the wire.
// A frame claiming more than this is treated as a protocol violation rather
// than an allocation request, mirroring the defensive cap dittofs' XDR
// decoder applies to its own length-prefixed opaque data.
const maxBlobLen = 64 << 20 // 64 MiB

// Stream is a little-endian binary cursor: an append-only write buffer, or
// an advancing read cursor over an already-received frame payload. A single
// Stream is only ever used in one direction.
type Stream struct {
	buf []byte // write mode
	data []byte // read mode
	pos  int
}

// NewStream returns a Stream ready for writing.
func NewStream() *Stream {
	return &Stream{buf: make([]byte, 0, 64)}
}

// NewStreamFromBytes returns a Stream ready for reading data.
func NewStreamFromBytes(data []byte) *Stream {
	return &Stream{data: data}
}

// Bytes returns everything written so far.
func (s *Stream) Bytes() []byte { return s.buf }

// Remaining reports how many unread bytes are left in a read-mode Stream.
func (s *Stream) Remaining() int { return len(s.data) - s.pos }

func (s *Stream) take(n int) ([]byte, error) {
	if n < 0 || s.pos+n > len(s.data) {
		return nil, fmt.Errorf("rpc: stream read past end (want %d, have %d)", n, s.Remaining())
	}
	b := s.data[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// --- primitives ---

func (s *Stream) WriteBool(v bool) {
	if v {
		s.buf = append(s.buf, 1)
	} else {
		s.buf = append(s.buf, 0)
	}
}

func (s *Stream) ReadBool() (bool, error) {
	b, err := s.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (s *Stream) WriteI32(v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	s.buf = append(s.buf, tmp[:]...)
}

func (s *Stream) ReadI32() (int32, error) {
	b, err := s.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (s *Stream) WriteU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	s.buf = append(s.buf, tmp[:]...)
}

func (s *Stream) ReadU32() (uint32, error) {
	b, err := s.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (s *Stream) WriteF32(v float32) {
	s.WriteU32(math.Float32bits(v))
}

func (s *Stream) ReadF32() (float32, error) {
	u, err := s.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

// WriteString writes a length-prefixed (int32) UTF-8 string.
func (s *Stream) WriteString(v string) {
	s.WriteI32(int32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *Stream) ReadString() (string, error) {
	n, err := s.ReadI32()
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > maxBlobLen {
		return "", fmt.Errorf("rpc: string length %d out of range", n)
	}
	b, err := s.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteBlob writes a length-prefixed (int32) raw byte slice.
func (s *Stream) WriteBlob(v []byte) {
	s.WriteI32(int32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *Stream) ReadBlob() ([]byte, error) {
	n, err := s.ReadI32()
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n) > maxBlobLen {
		return nil, fmt.Errorf("rpc: blob length %d out of range", n)
	}
	b, err := s.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// --- user types ---

// Marshaler is implemented by user types serialized via the Stream codec.
type Marshaler interface {
	WriteTo(s *Stream) error
}

// Unmarshaler is implemented by user types deserialized via the Stream codec.
type Unmarshaler interface {
	ReadFrom(s *Stream) error
}
