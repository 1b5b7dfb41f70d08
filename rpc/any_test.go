package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnyWireRoundTrip(t *testing.T) {
	values := []Any{
		NewAnyNone(),
		NewAnyBool(true),
		NewAnyI32(-17),
		NewAnyU32(42),
		NewAnyF32(3.25),
		NewAnyString("meow"),
		NewAnyBlob([]byte{1, 2, 3}),
	}
	for _, v := range values {
		s := NewStream()
		require.NoError(t, v.WriteTo(s))
		got, err := ReadAny(NewStreamFromBytes(s.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, v.Tag(), got.Tag())
		assert.Equal(t, v.String(), got.String())
	}
}

func TestAnyNumericConversions(t *testing.T) {
	i := NewAnyI32(5)
	u, ok := i.AsU32()
	require.True(t, ok)
	assert.Equal(t, uint32(5), u)

	f, ok := i.AsF32()
	require.True(t, ok)
	assert.Equal(t, float32(5), f)

	b := NewAnyBool(true)
	v, ok := b.AsI32()
	require.True(t, ok)
	assert.Equal(t, int32(1), v)
}

func TestAnyStringDoesNotConvert(t *testing.T) {
	s := NewAnyString("meow")
	_, ok := s.AsI32()
	assert.False(t, ok)
	_, ok = s.AsBlob()
	assert.False(t, ok)
}
