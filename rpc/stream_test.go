package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPrimitiveRoundTrip(t *testing.T) {
	s := NewStream()
	s.WriteBool(true)
	s.WriteI32(-123)
	s.WriteU32(456)
	s.WriteF32(1.5)
	s.WriteString("hello")
	s.WriteBlob([]byte{9, 8, 7})

	r := NewStreamFromBytes(s.Bytes())
	b, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	i, err := r.ReadI32()
	require.NoError(t, err)
	assert.Equal(t, int32(-123), i)

	u, err := r.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(456), u)

	f, err := r.ReadF32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f)

	str, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", str)

	blob, err := r.ReadBlob()
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, blob)

	assert.Equal(t, 0, r.Remaining())
}

func TestStreamReadPastEndIsError(t *testing.T) {
	r := NewStreamFromBytes([]byte{1, 2})
	_, err := r.ReadI32()
	assert.Error(t, err)
}

func TestWriteReadVector(t *testing.T) {
	s := NewStream()
	WriteVector(s, []int32{1, 2, 3}, func(s *Stream, v int32) { s.WriteI32(v) })

	r := NewStreamFromBytes(s.Bytes())
	got, err := ReadVector(r, func(s *Stream) (int32, error) { return s.ReadI32() })
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, got)
}

func TestWriteReadTuple2(t *testing.T) {
	s := NewStream()
	WriteTuple2(s, int32(7), "x", func(s *Stream, v int32) { s.WriteI32(v) }, func(s *Stream, v string) { s.WriteString(v) })

	r := NewStreamFromBytes(s.Bytes())
	a, b, err := ReadTuple2(r,
		func(s *Stream) (int32, error) { return s.ReadI32() },
		func(s *Stream) (string, error) { return s.ReadString() },
	)
	require.NoError(t, err)
	assert.Equal(t, int32(7), a)
	assert.Equal(t, "x", b)
}
