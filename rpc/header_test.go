package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{Size: 0, Counter: 0, MethodID: 0, IsReply: false, Success: false},
		{Size: 1234, Counter: (1 << 22) - 1, MethodID: 254, IsReply: true, Success: true},
		{Size: 42, Counter: 7, MethodID: genericMethodID, IsReply: false, Success: false},
	}
	for _, want := range cases {
		var buf [HeaderSize]byte
		want.WriteTo(buf[:])
		got := ReadHeader(buf[:])
		assert.Equal(t, want, got)
	}
}

func TestCorrelationKeyExclusivity(t *testing.T) {
	seen := make(map[uint32]bool)
	for counter := uint32(0); counter < 50; counter++ {
		for method := uint8(0); method < 10; method++ {
			key := correlationKeyOf(counter, method)
			require.False(t, seen[key], "collision at counter=%d method=%d", counter, method)
			seen[key] = true
		}
	}
}

func TestCounterWrapsWithin22Bits(t *testing.T) {
	p := newPendingCalls()
	p.counter = counterMask - 1
	c1 := p.nextCounter()
	c2 := p.nextCounter()
	assert.Equal(t, uint32(counterMask), c1)
	assert.Equal(t, uint32(0), c2)
}
