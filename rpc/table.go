package rpc

import (
	"context"
	"fmt"
)

// maxBoundMethods is the number of ordinals a Table can hand out: 0..254.
// Ordinal 0xFF (255) is reserved for the generic/dynamic call path and can
// never be assigned to a bound method.
const maxBoundMethods = genericMethodID

// dispatchFunc is what a bound method compiles down to: given the already
// length-framed request payload, decode it, invoke the handler against the
// serving target, and hand the encoded reply (or error) back to the
// connection. No reflection is involved — decode/encode are the exact
// closures the caller of Bind supplied, resolved at compile time via Go
// generics the same way RPCGenerate.h expands one traits call per
// registered method.
type dispatchFunc func(ctx context.Context, conn *Connection, hdr Header, in *Stream)

// methodInfo is one row of a Table: a name (returned by MethodName, which
// labels metrics and remote exceptions) and its compiled dispatcher.
type methodInfo struct {
	name     string
	dispatch dispatchFunc
}

// Table is the compile-time method table for one served type T, built once
// at package-init time via Bind/BindAsync calls. It is the Go analogue of
// the original's per-type Table<T> produced by the RPCGenerate.h macros:
// an ordinal-indexed array of dispatchers with no runtime type inspection.
type Table[T any] struct {
	methods []methodInfo
}

// NewTable creates an empty method table for type T.
func NewTable[T any]() *Table[T] {
	return &Table[T]{}
}

func (t *Table[T]) reserve(name string) (uint8, error) {
	if len(t.methods) >= maxBoundMethods {
		return 0, ErrTableFull
	}
	return uint8(len(t.methods)), nil
}

func (t *Table[T]) lookup(id uint8) (methodInfo, bool) {
	if int(id) >= len(t.methods) {
		return methodInfo{}, false
	}
	return t.methods[id], true
}

// Bind registers a synchronous method: decode the request, invoke handler
// against the target, encode and send the reply inline. It returns the
// ordinal assigned to this method — callers share that ordinal with the
// calling side the same way a generated RPCTABLE header is shared between
// both ends of the original connection.
func Bind[T, Req, Resp any](
	t *Table[T],
	name string,
	decode func(*Stream) (Req, error),
	encode func(*Stream, Resp),
	handler func(ctx context.Context, target *T, req Req) (Resp, error),
) (uint8, error) {
	id, err := t.reserve(name)
	if err != nil {
		return 0, err
	}
	t.methods = append(t.methods, methodInfo{
		name: name,
		dispatch: func(ctx context.Context, conn *Connection, hdr Header, in *Stream) {
			req, err := decode(in)
			if err != nil {
				conn.replyException(hdr, name, err.Error())
				return
			}
			target, ok := conn.localTarget().(*T)
			if !ok {
				conn.replyException(hdr, name, "rpc: no local target bound")
				return
			}
			resp, err := handler(ctx, target, req)
			if err != nil {
				conn.replyException(hdr, name, err.Error())
				return
			}
			conn.replyValue(hdr, func(s *Stream) { encode(s, resp) })
		},
	})
	return id, nil
}

// BindAsync registers a method whose handler resolves a Future instead of
// returning a value inline. The reply frame is written only once the
// Future settles — it may settle on a goroutine unrelated to the one that
// decoded the request, just as the original's future-returning dispatchers
// reply out of line.
func BindAsync[T, Req, Resp any](
	t *Table[T],
	name string,
	decode func(*Stream) (Req, error),
	encode func(*Stream, Resp),
	handler func(ctx context.Context, target *T, req Req) (*Future[Resp], error),
) (uint8, error) {
	id, err := t.reserve(name)
	if err != nil {
		return 0, err
	}
	t.methods = append(t.methods, methodInfo{
		name: name,
		dispatch: func(ctx context.Context, conn *Connection, hdr Header, in *Stream) {
			req, err := decode(in)
			if err != nil {
				conn.replyException(hdr, name, err.Error())
				return
			}
			target, ok := conn.localTarget().(*T)
			if !ok {
				conn.replyException(hdr, name, "rpc: no local target bound")
				return
			}
			fut, err := handler(ctx, target, req)
			if err != nil {
				conn.replyException(hdr, name, err.Error())
				return
			}
			fut.Then(func(resp Resp, err error) {
				if err != nil {
					conn.replyException(hdr, name, err.Error())
					return
				}
				conn.replyValue(hdr, func(s *Stream) { encode(s, resp) })
			})
		},
	})
	return id, nil
}

// NumMethods reports how many ordinals are currently assigned.
func (t *Table[T]) NumMethods() int { return len(t.methods) }

// MethodName returns the name bound to ordinal id, or a placeholder if
// none is bound.
func (t *Table[T]) MethodName(id uint8) string {
	if m, ok := t.lookup(id); ok {
		return m.name
	}
	return fmt.Sprintf("<ordinal %d>", id)
}

// Dispatch routes one inbound frame to its bound method. It satisfies the
// Dispatcher interface Connection stores, so a *Table[T] instantiated for a
// concrete served type is itself the whole "compile-time dispatch table"
// the connection needs, with no further glue.
func (t *Table[T]) Dispatch(ctx context.Context, conn *Connection, hdr Header, in *Stream) error {
	m, ok := t.lookup(hdr.MethodID)
	if !ok {
		return ErrUnknownMethod
	}
	m.dispatch(ctx, conn, hdr, in)
	return nil
}

// Dispatcher is what Connection needs from a service's method table: route
// one inbound ordinal to its bound handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, conn *Connection, hdr Header, in *Stream) error
	MethodName(id uint8) string
}
