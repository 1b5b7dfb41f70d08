package rpc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingResolveDeliversOnce(t *testing.T) {
	p := newPendingCalls()
	var calls int
	var mu sync.Mutex
	ok := p.register(1, 3, func(hdr Header, payload []byte, abort bool) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.True(t, ok)

	hdr := Header{Counter: 1, MethodID: 3, IsReply: true, Success: true}
	p.resolve(hdr, nil)
	p.resolve(hdr, nil) // late duplicate must be a no-op

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestPendingAbortAllFiresEveryEntryOnce(t *testing.T) {
	p := newPendingCalls()
	var mu sync.Mutex
	aborted := map[uint32]bool{}
	for i := uint32(0); i < 5; i++ {
		i := i
		p.register(i, 1, func(hdr Header, payload []byte, abort bool) {
			mu.Lock()
			aborted[i] = abort
			mu.Unlock()
		})
	}

	p.abortAll()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, aborted, 5)
	for _, v := range aborted {
		assert.True(t, v)
	}
}

func TestPendingRegisterAfterCloseFails(t *testing.T) {
	p := newPendingCalls()
	p.abortAll()
	ok := p.register(1, 1, func(Header, []byte, bool) {})
	assert.False(t, ok)
}
