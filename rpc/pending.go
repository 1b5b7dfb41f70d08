package rpc

import "sync"

// pendingContinuation is invoked exactly once: with the reply payload on a
// normal reply, or with abort=true (payload nil) when the connection closes
// before a reply arrives.
type pendingContinuation func(hdr Header, payload []byte, abort bool)

// pendingCalls is the outbound correlation registry: every call registers
// its continuation here before the frame is handed to the transport, so a
// reply racing ahead of the send completing can never be missed. This is
// the direct Go translation of xiqingping-birpc's Endpoint.Go(), which
// inserts into client.pending strictly before `go e.send(msg)`.
type pendingCalls struct {
	mu      sync.Mutex
	counter uint32 // wraps within counterBits, see header.go
	entries map[uint32]pendingContinuation
	closed  bool
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{entries: make(map[uint32]pendingContinuation)}
}

// nextCounter returns the next 22-bit wrapping counter value.
func (p *pendingCalls) nextCounter() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counter = (p.counter + 1) & uint32(counterMask)
	return p.counter
}

// register inserts a continuation for (counter, methodID) before the frame
// is sent. It returns false if the registry has already been closed, in
// which case the caller must not send the frame.
func (p *pendingCalls) register(counter uint32, methodID uint8, cont pendingContinuation) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.entries[correlationKeyOf(counter, methodID)] = cont
	return true
}

// cancel removes a registration without invoking its continuation, used
// when the send that would have produced a reply failed synchronously.
func (p *pendingCalls) cancel(counter uint32, methodID uint8) {
	p.mu.Lock()
	delete(p.entries, correlationKeyOf(counter, methodID))
	p.mu.Unlock()
}

// resolve delivers a reply to its matching continuation, removing the
// entry. It is a no-op if no matching pending call exists (late or
// duplicate reply).
func (p *pendingCalls) resolve(hdr Header, payload []byte) {
	key := hdr.correlationKey()
	p.mu.Lock()
	cont, ok := p.entries[key]
	if ok {
		delete(p.entries, key)
	}
	p.mu.Unlock()
	if ok {
		cont(hdr, payload, false)
	}
}

// abortAll invokes every still-pending continuation with abort=true and
// marks the registry closed so no further calls can be registered. Each
// continuation fires exactly once, matching the original's
// OutProcessor<T>::abortReplies.
func (p *pendingCalls) abortAll() {
	p.mu.Lock()
	p.closed = true
	entries := p.entries
	p.entries = make(map[uint32]pendingContinuation)
	p.mu.Unlock()
	for _, cont := range entries {
		cont(Header{}, nil, true)
	}
}
