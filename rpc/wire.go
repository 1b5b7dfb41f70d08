package rpc

import "fmt"

// Generic helpers for composing vector/tuple codecs out of primitive
// Stream operations, mirroring how the original's ParamTraits<std::vector<T>>
// and ParamTraits<std::tuple<...>> are built on top of its scalar traits.
// Callers compose these inside a Marshaler/Unmarshaler implementation, or
// directly as the decode/encode closures passed to Bind/BindAsync — there is
// no reflective "serialize anything" entry point, by design: every wire
// shape is spelled out at the call site, the same way RPCGenerate.h expands
// one traits call per field.

// WriteVector writes a length-prefixed (int32) sequence, one element at a
// time via writeElem.
func WriteVector[T any](s *Stream, v []T, writeElem func(*Stream, T)) {
	s.WriteI32(int32(len(v)))
	for _, e := range v {
		writeElem(s, e)
	}
}

// ReadVector reads a length-prefixed sequence written by WriteVector.
func ReadVector[T any](s *Stream, readElem func(*Stream) (T, error)) ([]T, error) {
	n, err := s.ReadI32()
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n) > maxBlobLen {
		return nil, errVectorLength(n)
	}
	out := make([]T, 0, n)
	for i := int32(0); i < n; i++ {
		e, err := readElem(s)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func errVectorLength(n int32) error {
	return &Exception{Message: fmt.Sprintf("vector length %d out of range", n)}
}

// WriteTuple2 writes a two-element tuple in declaration order.
func WriteTuple2[A, B any](s *Stream, a A, b B, wa func(*Stream, A), wb func(*Stream, B)) {
	wa(s, a)
	wb(s, b)
}

// ReadTuple2 reads a two-element tuple written by WriteTuple2.
func ReadTuple2[A, B any](s *Stream, ra func(*Stream) (A, error), rb func(*Stream) (B, error)) (A, B, error) {
	var zeroA A
	var zeroB B
	a, err := ra(s)
	if err != nil {
		return zeroA, zeroB, err
	}
	b, err := rb(s)
	if err != nil {
		return zeroA, zeroB, err
	}
	return a, b, nil
}

// WriteTuple3 writes a three-element tuple in declaration order.
func WriteTuple3[A, B, C any](s *Stream, a A, b B, c C, wa func(*Stream, A), wb func(*Stream, B), wc func(*Stream, C)) {
	wa(s, a)
	wb(s, b)
	wc(s, c)
}

// ReadTuple3 reads a three-element tuple written by WriteTuple3.
func ReadTuple3[A, B, C any](s *Stream, ra func(*Stream) (A, error), rb func(*Stream) (B, error), rc func(*Stream) (C, error)) (A, B, C, error) {
	var zeroA A
	var zeroB B
	var zeroC C
	a, err := ra(s)
	if err != nil {
		return zeroA, zeroB, zeroC, err
	}
	b, err := rb(s)
	if err != nil {
		return zeroA, zeroB, zeroC, err
	}
	c, err := rc(s)
	if err != nil {
		return zeroA, zeroB, zeroC, err
	}
	return a, b, c, nil
}
