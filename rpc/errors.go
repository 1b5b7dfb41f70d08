package rpc

import (
	"errors"
	"fmt"
)

// ErrAborted is returned by Result.Get when the call could not complete
// because the connection closed (or was never delivered) before a reply
// arrived.
var ErrAborted = errors.New("rpc: call aborted")

// ErrClosed is returned by Transport.Send once the transport has left the
// Open state.
var ErrClosed = errors.New("rpc: connection closed")

// ErrNotAuthenticated names the auth-gate failure. The gate itself replies
// with the exception text "Not authenticated"; nothing in this package
// returns this value.
var ErrNotAuthenticated = errors.New("rpc: not authenticated")

// ErrUnknownMethod is returned when an ordinal has no bound dispatcher.
var ErrUnknownMethod = errors.New("rpc: unknown method")

// ErrTableFull is returned by Bind/BindAsync once 255 methods (ordinals
// 0-254) are registered for a single table.
var ErrTableFull = errors.New("rpc: method table full")

// Exception is the error type carried by a reply whose Header.Success bit
// is clear: the remote dispatcher's target method returned an error instead
// of a value, and that error's message round-tripped over the wire.
type Exception struct {
	Method  string
	Message string
}

func (e *Exception) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("rpc: remote exception: %s", e.Message)
	}
	return fmt.Sprintf("rpc: remote exception in %s: %s", e.Method, e.Message)
}

func newException(method, message string) *Exception {
	return &Exception{Method: method, Message: message}
}
