package rpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

type connCtxKey struct{}

// ConnectionFromContext retrieves the Connection a dispatcher is currently
// running under, letting it issue a call back to its own peer
// (bidirectional reentrant calls) without a thread-local — the original's
// thread-local "current connection" marker, replaced per SPEC_FULL.md's
// Open Question resolution with an explicit context value.
func ConnectionFromContext(ctx context.Context) (*Connection, bool) {
	c, ok := ctx.Value(connCtxKey{}).(*Connection)
	return c, ok
}

func contextWithConnection(ctx context.Context, c *Connection) context.Context {
	return context.WithValue(ctx, connCtxKey{}, c)
}

// Connection binds a transport to an optional locally-served target (via a
// Dispatcher table) and provides the outbound call surface to the peer.
// Every inbound call is dispatched on its own goroutine so a handler may
// itself call back into the same Connection — the bidirectional case
// spec.md §8 names explicitly — without deadlocking the single reader.
type Connection struct {
	transport *Transport
	table     Dispatcher
	local     any
	objectData *ObjectData

	pending *pendingCalls

	authenticated atomic.Bool

	genericMu sync.Mutex
	generics  map[string]GenericHandler

	metrics *Metrics

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConnection wraps an already-connected net.Conn. table may be nil if
// this side serves nothing (pure caller). local is the pointer-typed
// object table's methods dispatch against; it may be nil only if table is
// also nil.
func NewConnection(conn net.Conn, table Dispatcher, local any) (*Connection, error) {
	c := &Connection{
		table:   table,
		local:   local,
		pending: newPendingCalls(),
		closed:  make(chan struct{}),
	}
	if local != nil {
		od, err := AcquireObjectData(local)
		if err != nil {
			return nil, err
		}
		c.objectData = od
	}
	c.transport = NewTransport(conn, c.onFrame, c.onTransportClosed)
	return c, nil
}

// SetMetrics attaches a Metrics recorder; nil (the default) disables
// recording entirely.
func (c *Connection) SetMetrics(m *Metrics) { c.metrics = m }

// ObjectData returns the shared registry record for this connection's
// served target, or nil if none is served.
func (c *Connection) ObjectData() *ObjectData { return c.objectData }

// Start begins reading/writing frames. Call once, after any table/generic
// handlers have been registered.
func (c *Connection) Start() { c.transport.Start() }

// Done returns a channel closed once this Connection has finished
// shutting down (transport closed, pending calls aborted, ObjectData
// released) — callers that serve one Connection per goroutine (e.g. the
// sample echo server's accept loop) block on it instead of polling
// c.transport.State().
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Close tears the connection down: the transport closes, every pending
// outbound call is aborted exactly once, and the shared ObjectData (if
// any) is released.
func (c *Connection) Close() error {
	return c.transport.Close()
}

func (c *Connection) onTransportClosed(_ error) {
	c.closeOnce.Do(func() {
		c.pending.abortAll()
		if c.local != nil && c.objectData != nil {
			Release(c.local, c.objectData)
		}
		close(c.closed)
	})
}

func (c *Connection) onFrame(hdr Header, payload []byte) {
	if hdr.IsReply {
		c.pending.resolve(hdr, payload)
		return
	}
	go c.processInbound(hdr, payload)
}

func (c *Connection) processInbound(hdr Header, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.replyException(hdr, "", fmt.Sprint(r))
		}
	}()
	ctx := contextWithConnection(context.Background(), c)
	start := c.metrics.now()

	if hdr.MethodID == genericMethodID {
		ok := c.dispatchGeneric(ctx, hdr, payload)
		c.metrics.observe("__generic__", start, ok)
		return
	}

	if c.requiresAuthButNotAuthenticated() {
		c.replyException(hdr, "", "Not authenticated")
		c.metrics.observe(c.methodNameFor(hdr.MethodID), start, false)
		return
	}

	if c.table == nil {
		c.replyException(hdr, "", "Unknown RPC")
		c.metrics.observe("", start, false)
		return
	}

	in := NewStreamFromBytes(payload)
	if err := c.table.Dispatch(ctx, c, hdr, in); err != nil {
		c.replyException(hdr, "", "Unknown RPC")
		c.metrics.observe(c.methodNameFor(hdr.MethodID), start, false)
		return
	}
	c.metrics.observe(c.methodNameFor(hdr.MethodID), start, true)
}

func (c *Connection) localTarget() any { return c.local }

func (c *Connection) methodNameFor(id uint8) string {
	if c.table == nil {
		return ""
	}
	return c.table.MethodName(id)
}

func (c *Connection) requiresAuthButNotAuthenticated() bool {
	if c.objectData == nil || !c.objectData.RequiresAuth() {
		return false
	}
	return !c.authenticated.Load()
}

func (c *Connection) setAuthenticated(ok bool) { c.authenticated.Store(ok) }

// replyValue sends a successful reply frame for the call identified by
// hdr, encoding the reply payload via encode.
func (c *Connection) replyValue(hdr Header, encode func(*Stream)) {
	s := NewStream()
	encode(s)
	reply := Header{Counter: hdr.Counter, MethodID: hdr.MethodID, IsReply: true, Success: true}
	_ = c.transport.Send(reply, s.Bytes())
}

// replyException sends a failure reply frame carrying message as the
// exception text.
func (c *Connection) replyException(hdr Header, _ string, message string) {
	s := NewStream()
	s.WriteString(message)
	reply := Header{Counter: hdr.Counter, MethodID: hdr.MethodID, IsReply: true, Success: false}
	_ = c.transport.Send(reply, s.Bytes())
}

// callTyped issues one outbound call: register the continuation before
// sending (see pending.go), then block for its settlement or the caller's
// context.
func callTyped[T any](ctx context.Context, c *Connection, methodID uint8, payload []byte, decode func(*Stream) (T, error)) Result[T] {
	counter := c.pending.nextCounter()
	doneCh := make(chan Result[T], 1)

	cont := func(hdr Header, payload []byte, abort bool) {
		if abort {
			doneCh <- NewAbortedResult[T]()
			return
		}
		if !hdr.Success {
			s := NewStreamFromBytes(payload)
			msg, _ := s.ReadString()
			doneCh <- NewExceptionResult[T](c.methodNameFor(methodID), msg)
			return
		}
		s := NewStreamFromBytes(payload)
		v, err := decode(s)
		if err != nil {
			doneCh <- NewExceptionResult[T](c.methodNameFor(methodID), err.Error())
			return
		}
		doneCh <- NewValidResult(v)
	}

	if !c.pending.register(counter, methodID, cont) {
		return NewAbortedResult[T]()
	}

	hdr := Header{Counter: counter, MethodID: methodID}
	if err := c.transport.Send(hdr, payload); err != nil {
		c.pending.cancel(counter, methodID)
		return NewAbortedResult[T]()
	}

	select {
	case r := <-doneCh:
		return r
	case <-ctx.Done():
		return Result[T]{state: resultException, err: ctx.Err()}
	}
}

// Call issues a typed outbound call to ordinal methodID, encoding req and
// decoding the reply as Resp.
func Call[Req, Resp any](ctx context.Context, c *Connection, methodID uint8, req Req, encode func(*Stream, Req), decode func(*Stream) (Resp, error)) Result[Resp] {
	s := NewStream()
	encode(s, req)
	return callTyped(ctx, c, methodID, s.Bytes(), decode)
}
