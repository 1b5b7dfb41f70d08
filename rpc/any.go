package rpc

import "fmt"

// AnyTag identifies which alternative an Any currently holds.
type AnyTag uint8

const (
	AnyNone AnyTag = iota
	AnyBool
	AnyI32
	AnyU32
	AnyF32
	AnyString
	AnyBlob
)

func (t AnyTag) String() string {
	switch t {
	case AnyNone:
		return "none"
	case AnyBool:
		return "bool"
	case AnyI32:
		return "i32"
	case AnyU32:
		return "u32"
	case AnyF32:
		return "f32"
	case AnyString:
		return "string"
	case AnyBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// Any is a closed 7-case tagged union used by the generic/dynamic call
// path: __auth, __getProperty, __setProperty, and any user-registered
// generic method exchange arguments as []Any rather than typed parameters.
type Any struct {
	tag AnyTag
	b   bool
	i   int32
	u   uint32
	f   float32
	s   string
	blob []byte
}

func NewAnyNone() Any            { return Any{tag: AnyNone} }
func NewAnyBool(v bool) Any      { return Any{tag: AnyBool, b: v} }
func NewAnyI32(v int32) Any      { return Any{tag: AnyI32, i: v} }
func NewAnyU32(v uint32) Any     { return Any{tag: AnyU32, u: v} }
func NewAnyF32(v float32) Any    { return Any{tag: AnyF32, f: v} }
func NewAnyString(v string) Any  { return Any{tag: AnyString, s: v} }
func NewAnyBlob(v []byte) Any    { return Any{tag: AnyBlob, blob: v} }

// Tag reports which alternative is held.
func (a Any) Tag() AnyTag { return a.tag }

// IsNone reports whether the Any holds no value.
func (a Any) IsNone() bool { return a.tag == AnyNone }

// AsBool converts the held value to bool. Numeric types convert via
// nonzero-ness; string/blob/none do not convert.
func (a Any) AsBool() (bool, bool) {
	switch a.tag {
	case AnyBool:
		return a.b, true
	case AnyI32:
		return a.i != 0, true
	case AnyU32:
		return a.u != 0, true
	case AnyF32:
		return a.f != 0, true
	default:
		return false, false
	}
}

// AsI32 converts the held value to int32. Bool widens to 0/1, U32/F32
// truncate; string/blob/none do not convert.
func (a Any) AsI32() (int32, bool) {
	switch a.tag {
	case AnyI32:
		return a.i, true
	case AnyU32:
		return int32(a.u), true
	case AnyF32:
		return int32(a.f), true
	case AnyBool:
		if a.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsU32 converts the held value to uint32, by the same widening rules as
// AsI32.
func (a Any) AsU32() (uint32, bool) {
	switch a.tag {
	case AnyU32:
		return a.u, true
	case AnyI32:
		return uint32(a.i), true
	case AnyF32:
		return uint32(a.f), true
	case AnyBool:
		if a.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsF32 converts the held value to float32, by the same widening rules as
// AsI32.
func (a Any) AsF32() (float32, bool) {
	switch a.tag {
	case AnyF32:
		return a.f, true
	case AnyI32:
		return float32(a.i), true
	case AnyU32:
		return float32(a.u), true
	case AnyBool:
		if a.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsString returns the held value only if it is itself a string — strings
// never convert from/to any other held type.
func (a Any) AsString() (string, bool) {
	if a.tag == AnyString {
		return a.s, true
	}
	return "", false
}

// AsBlob returns the held value only if it is itself a blob.
func (a Any) AsBlob() ([]byte, bool) {
	if a.tag == AnyBlob {
		return a.blob, true
	}
	return nil, false
}

func (a Any) String() string {
	switch a.tag {
	case AnyNone:
		return "<none>"
	case AnyBool:
		return fmt.Sprintf("%t", a.b)
	case AnyI32:
		return fmt.Sprintf("%d", a.i)
	case AnyU32:
		return fmt.Sprintf("%d", a.u)
	case AnyF32:
		return fmt.Sprintf("%g", a.f)
	case AnyString:
		return a.s
	case AnyBlob:
		return fmt.Sprintf("<blob %d bytes>", len(a.blob))
	default:
		return "<invalid>"
	}
}

// WriteTo serializes the Any as a 1-byte type tag followed by the
// type-specific payload.
func (a Any) WriteTo(s *Stream) error {
	s.buf = append(s.buf, byte(a.tag))
	switch a.tag {
	case AnyNone:
	case AnyBool:
		s.WriteBool(a.b)
	case AnyI32:
		s.WriteI32(a.i)
	case AnyU32:
		s.WriteU32(a.u)
	case AnyF32:
		s.WriteF32(a.f)
	case AnyString:
		s.WriteString(a.s)
	case AnyBlob:
		s.WriteBlob(a.blob)
	default:
		return fmt.Errorf("rpc: invalid Any tag %d", a.tag)
	}
	return nil
}

// ReadAny deserializes an Any written by Any.WriteTo.
func ReadAny(s *Stream) (Any, error) {
	tagByte, err := s.take(1)
	if err != nil {
		return Any{}, err
	}
	tag := AnyTag(tagByte[0])
	switch tag {
	case AnyNone:
		return NewAnyNone(), nil
	case AnyBool:
		v, err := s.ReadBool()
		return NewAnyBool(v), err
	case AnyI32:
		v, err := s.ReadI32()
		return NewAnyI32(v), err
	case AnyU32:
		v, err := s.ReadU32()
		return NewAnyU32(v), err
	case AnyF32:
		v, err := s.ReadF32()
		return NewAnyF32(v), err
	case AnyString:
		v, err := s.ReadString()
		return NewAnyString(v), err
	case AnyBlob:
		v, err := s.ReadBlob()
		return NewAnyBlob(v), err
	default:
		return Any{}, fmt.Errorf("rpc: invalid Any tag %d on wire", tag)
	}
}
