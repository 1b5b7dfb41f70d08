package rpc

import "context"

// GenericHandler services one name-keyed generic/dynamic call: the
// untyped counterpart to a Bind-registered method, used when the set of
// callable names isn't known until runtime (or, for __auth/__getProperty/
// __setProperty, is fixed by the protocol itself).
type GenericHandler func(ctx context.Context, conn *Connection, args []Any) (Any, error)

const (
	genericAuth        = "__auth"
	genericGetProperty = "__getProperty"
	genericSetProperty = "__setProperty"
)

func encodeGenericCall(name string, args []Any) []byte {
	s := NewStream()
	s.WriteString(name)
	WriteVector(s, args, func(s *Stream, a Any) { _ = a.WriteTo(s) })
	return s.Bytes()
}

func decodeGenericCall(payload []byte) (string, []Any, error) {
	s := NewStreamFromBytes(payload)
	name, err := s.ReadString()
	if err != nil {
		return "", nil, err
	}
	args, err := ReadVector(s, ReadAny)
	if err != nil {
		return "", nil, err
	}
	return name, args, nil
}

// dispatchGeneric decodes and routes one generic-call frame, called by
// Connection's inbound processor whenever hdr.MethodID == genericMethodID.
// It reports whether it replied with a value (true) or an exception
// (false), so the caller can record an accurate success flag in its
// metrics observation.
func (c *Connection) dispatchGeneric(ctx context.Context, hdr Header, payload []byte) bool {
	name, args, err := decodeGenericCall(payload)
	if err != nil {
		c.replyException(hdr, "generic", err.Error())
		return false
	}

	if name != genericAuth && c.requiresAuthButNotAuthenticated() {
		c.replyException(hdr, name, "Not authenticated")
		return false
	}

	var result Any
	switch name {
	case genericAuth:
		result, err = c.handleAuth(args)
	case genericGetProperty:
		result, err = c.handleGetProperty(args)
	case genericSetProperty:
		result, err = c.handleSetProperty(args)
	default:
		h, ok := c.genericHandler(name)
		if !ok {
			c.replyException(hdr, name, "Generic RPC not found")
			return false
		}
		result, err = h(ctx, c, args)
	}

	if err != nil {
		c.replyException(hdr, name, err.Error())
		return false
	}
	c.replyValue(hdr, func(s *Stream) { _ = result.WriteTo(s) })
	return true
}

func (c *Connection) handleAuth(args []Any) (Any, error) {
	if len(args) != 1 {
		return Any{}, newException(genericAuth, "Invalid parameters for generic RPC")
	}
	token, ok := args[0].AsString()
	if !ok {
		return Any{}, newException(genericAuth, "Invalid parameters for generic RPC")
	}
	ok = c.objectData == nil || c.objectData.CheckAuthToken(token)
	c.setAuthenticated(ok)
	return NewAnyBool(ok), nil
}

func (c *Connection) handleGetProperty(args []Any) (Any, error) {
	if len(args) != 1 {
		return Any{}, newException(genericGetProperty, "Invalid parameters for generic RPC")
	}
	name, ok := args[0].AsString()
	if !ok {
		return Any{}, newException(genericGetProperty, "Invalid parameters for generic RPC")
	}
	if c.objectData == nil {
		return NewAnyNone(), nil
	}
	v, ok := c.objectData.GetProperty(name)
	if !ok {
		return NewAnyNone(), nil
	}
	return v, nil
}

func (c *Connection) handleSetProperty(args []Any) (Any, error) {
	if len(args) != 2 {
		return Any{}, newException(genericSetProperty, "Invalid parameters for generic RPC")
	}
	name, ok := args[0].AsString()
	if !ok {
		return Any{}, newException(genericSetProperty, "Invalid parameters for generic RPC")
	}
	if c.objectData != nil {
		c.objectData.SetProperty(name, args[1])
	}
	return NewAnyBool(true), nil
}

// CallGeneric issues a name-keyed dynamic call to the peer and blocks
// until the reply (or abort) resolves.
func (c *Connection) CallGeneric(ctx context.Context, name string, args []Any) Result[Any] {
	return callTyped(ctx, c, genericMethodID, encodeGenericCall(name, args), ReadAny)
}

// RegisterGeneric adds a user-defined name-keyed dynamic handler, callable
// by the peer via CallGeneric.
func (c *Connection) RegisterGeneric(name string, handler GenericHandler) {
	c.genericMu.Lock()
	defer c.genericMu.Unlock()
	if c.generics == nil {
		c.generics = make(map[string]GenericHandler)
	}
	c.generics[name] = handler
}

func (c *Connection) genericHandler(name string) (GenericHandler, bool) {
	c.genericMu.Lock()
	defer c.genericMu.Unlock()
	h, ok := c.generics[name]
	return h, ok
}
