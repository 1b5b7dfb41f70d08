package rpc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// TransportState is one of the four states a Transport moves through over
// its lifetime: Connecting -> Open -> Closing -> Closed. Once Closed it
// never reopens — reconnection is explicitly out of scope (see
// SPEC_FULL.md Non-goals).
type TransportState int32

const (
	StateConnecting TransportState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s TransportState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// frame is one on-wire unit: header plus its payload.
type frame struct {
	hdr     Header
	payload []byte
}

// Transport frames an underlying net.Conn with the 8-byte Header from
// header.go, serializes concurrent writers behind a single sender
// goroutine (one frame in flight at a time — mirroring
// BX-D-mini-RPC/server/server.go's per-connection write mutex), and
// delivers received frames to a single callback from a single reader
// goroutine. Grounded on infra/network/rpc.go's length-prefixed framing
// loop, generalized from its ad-hoc method-name framing to the spec's
// fixed Header.
type Transport struct {
	conn  net.Conn
	state atomic.Int32

	sendCh    chan frame
	closeOnce sync.Once
	closedCh  chan struct{}

	onFrame func(Header, []byte)
	onClose func(error)
}

// NewTransport wraps conn, ready to Start once onFrame/onClose are
// assigned by the owning Connection.
func NewTransport(conn net.Conn, onFrame func(Header, []byte), onClose func(error)) *Transport {
	t := &Transport{
		conn:     conn,
		sendCh:   make(chan frame, 64),
		closedCh: make(chan struct{}),
		onFrame:  onFrame,
		onClose:  onClose,
	}
	t.state.Store(int32(StateConnecting))
	return t
}

// State reports the current lifecycle state.
func (t *Transport) State() TransportState {
	return TransportState(t.state.Load())
}

// Start transitions to Open and launches the reader/writer goroutines. A
// Transport wraps an already-connected net.Conn (dialing/accepting happens
// one layer up), so Connecting is a momentary state cleared as soon as
// Start runs.
func (t *Transport) Start() {
	t.state.Store(int32(StateOpen))
	go t.writeLoop()
	go t.readLoop()
}

// Send enqueues a frame for the single writer goroutine. It is safe to
// call concurrently from many goroutines, including concurrently with
// Close; frames are written to the wire one at a time, in enqueue order.
func (t *Transport) Send(hdr Header, payload []byte) (sendErr error) {
	if t.State() != StateOpen {
		return ErrClosed
	}
	// A Close racing this call can close sendCh after the state check
	// above passes; sending on a closed channel panics, so guard the
	// enqueue rather than widen the state check into a lock shared with
	// Close.
	defer func() {
		if recover() != nil {
			sendErr = ErrClosed
		}
	}()
	hdr.Size = uint32(HeaderSize + len(payload))
	select {
	case t.sendCh <- frame{hdr: hdr, payload: payload}:
		return nil
	case <-t.closedCh:
		return ErrClosed
	}
}

func (t *Transport) writeLoop() {
	var hdrBuf [HeaderSize]byte
	for f := range t.sendCh {
		f.hdr.WriteTo(hdrBuf[:])
		if _, err := t.conn.Write(hdrBuf[:]); err != nil {
			t.fail(err)
			return
		}
		if len(f.payload) > 0 {
			if _, err := t.conn.Write(f.payload); err != nil {
				t.fail(err)
				return
			}
		}
	}
}

func (t *Transport) readLoop() {
	var hdrBuf [HeaderSize]byte
	for {
		if _, err := io.ReadFull(t.conn, hdrBuf[:]); err != nil {
			t.fail(err)
			return
		}
		hdr := ReadHeader(hdrBuf[:])
		if hdr.Size < HeaderSize {
			t.fail(fmt.Errorf("rpc: frame size %d smaller than header", hdr.Size))
			return
		}
		payloadLen := hdr.Size - HeaderSize
		if payloadLen > maxBlobLen {
			t.fail(fmt.Errorf("rpc: frame size %d exceeds limit", hdr.Size))
			return
		}
		payload := make([]byte, payloadLen)
		if payloadLen > 0 {
			if _, err := io.ReadFull(t.conn, payload); err != nil {
				t.fail(err)
				return
			}
		}
		t.onFrame(hdr, payload)
	}
}

func (t *Transport) fail(err error) {
	t.closeWith(err)
}

// Close transitions Open -> Closing -> Closed, stops the writer, closes
// the socket (unblocking the reader), and invokes onClose exactly once.
func (t *Transport) Close() error {
	return t.closeWith(nil)
}

func (t *Transport) closeWith(cause error) error {
	var err error
	t.closeOnce.Do(func() {
		t.state.Store(int32(StateClosing))
		close(t.closedCh)
		close(t.sendCh)
		err = t.conn.Close()
		t.state.Store(int32(StateClosed))
		if t.onClose != nil {
			if cause == nil {
				cause = err
			}
			if cause == nil {
				cause = errors.New("rpc: transport closed")
			}
			t.onClose(cause)
		}
	})
	return err
}
