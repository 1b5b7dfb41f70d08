package rpctest

import (
	"context"

	"github.com/phuhao00/czrpc/rpc"
)

// TesterTable is the shared method table for Tester, bound once at
// package-init time — the Go analogue of the original's
// RPCTABLE_TESTER_CONTENTS-generated Table<Tester>. Both the serving side
// (which passes this table to rpc.NewConnection) and the calling side
// (which only needs the ordinal constants below) depend on this file.
var TesterTable = rpc.NewTable[Tester]()

// ClientTable is TesterClient's method table, used by whichever side
// serves a TesterClient (normally the caller of Tester.TestClientAddCall).
var ClientTable = rpc.NewTable[TesterClient]()

// TesterExTable is TesterEx's method table: Tester's "add" plus Mul (no
// other Tester method is bound on it), with its own independent ordinal
// assignment (a service's ordinals are
// per-Table, so TesterEx's "add" need not land on the same ordinal as
// TesterTable's).
var TesterExTable = rpc.NewTable[TesterEx]()

// Ordinal constants shared between caller and callee, assigned by the Bind
// calls in the init block below.
var (
	AddMethod               uint8
	IntTestExceptionMethod  uint8
	TestVectorMethod        uint8
	TestClientAddCallMethod uint8
	TestFutureMethod        uint8
	ClientAddMethod         uint8

	AddExMethod uint8
	MulMethod   uint8
)

func encodeAddReq(s *rpc.Stream, req [2]int32) {
	s.WriteI32(req[0])
	s.WriteI32(req[1])
}

func decodeAddReq(s *rpc.Stream) ([2]int32, error) {
	a, err := s.ReadI32()
	if err != nil {
		return [2]int32{}, err
	}
	b, err := s.ReadI32()
	if err != nil {
		return [2]int32{}, err
	}
	return [2]int32{a, b}, nil
}

func encodeI32Resp(s *rpc.Stream, v int32) { s.WriteI32(v) }

func decodeI32Resp(s *rpc.Stream) (int32, error) { return s.ReadI32() }

func encodeBoolReq(s *rpc.Stream, v bool) { s.WriteBool(v) }

func decodeBoolReq(s *rpc.Stream) (bool, error) { return s.ReadBool() }

func encodeVecReq(s *rpc.Stream, v []int32) {
	rpc.WriteVector(s, v, func(s *rpc.Stream, e int32) { s.WriteI32(e) })
}

func decodeVecReq(s *rpc.Stream) ([]int32, error) {
	return rpc.ReadVector(s, func(s *rpc.Stream) (int32, error) { return s.ReadI32() })
}

// TestFutureReq is TestFuture's request tuple: the string to echo back
// and how long its Future should take to settle.
type TestFutureReq struct {
	S       string
	DelayMs int32
}

// NewTestFutureReq builds the request TestFutureMethod expects.
func NewTestFutureReq(s string, delayMs int32) TestFutureReq {
	return TestFutureReq{S: s, DelayMs: delayMs}
}

func encodeTestFutureReq(s *rpc.Stream, req TestFutureReq) {
	rpc.WriteTuple2(s, req.S, req.DelayMs,
		func(s *rpc.Stream, v string) { s.WriteString(v) },
		func(s *rpc.Stream, v int32) { s.WriteI32(v) },
	)
}

func decodeTestFutureReq(s *rpc.Stream) (TestFutureReq, error) {
	str, delay, err := rpc.ReadTuple2(s,
		func(s *rpc.Stream) (string, error) { return s.ReadString() },
		func(s *rpc.Stream) (int32, error) { return s.ReadI32() },
	)
	if err != nil {
		return TestFutureReq{}, err
	}
	return TestFutureReq{S: str, DelayMs: delay}, nil
}

func encodeStringResp(s *rpc.Stream, v string) { s.WriteString(v) }

func decodeStringResp(s *rpc.Stream) (string, error) { return s.ReadString() }

// Exported aliases of the codecs above, for callers outside this package
// issuing outbound rpc.Call invocations directly (the sample echo client
// has no Tester/TesterClient method of its own to hang these behind).
var (
	EncodeAddReq        = encodeAddReq
	DecodeI32Resp       = decodeI32Resp
	EncodeBoolReq       = encodeBoolReq
	DecodeVecReq        = decodeVecReq
	EncodeVecReq        = encodeVecReq
	EncodeTestFutureReq = encodeTestFutureReq
	DecodeStringResp    = decodeStringResp
)

func init() {
	var err error
	AddMethod, err = rpc.Bind(TesterTable, "add", decodeAddReq, encodeI32Resp,
		func(ctx context.Context, target *Tester, req [2]int32) (int32, error) {
			return target.Add(ctx, req[0], req[1])
		})
	if err != nil {
		panic(err)
	}
	IntTestExceptionMethod, err = rpc.Bind(TesterTable, "intTestException", decodeBoolReq, encodeI32Resp,
		func(ctx context.Context, target *Tester, req bool) (int32, error) {
			return target.IntTestException(ctx, req)
		})
	if err != nil {
		panic(err)
	}
	TestVectorMethod, err = rpc.Bind(TesterTable, "testVector", decodeVecReq, encodeVecReq,
		func(ctx context.Context, target *Tester, req []int32) ([]int32, error) {
			return target.TestVector(ctx, req)
		})
	if err != nil {
		panic(err)
	}
	TestClientAddCallMethod, err = rpc.Bind(TesterTable, "testClientAddCall", decodeAddReq, encodeI32Resp,
		func(ctx context.Context, target *Tester, req [2]int32) (int32, error) {
			return target.TestClientAddCall(ctx, req[0], req[1])
		})
	if err != nil {
		panic(err)
	}

	TestFutureMethod, err = rpc.BindAsync(TesterTable, "testFuture", decodeTestFutureReq, encodeStringResp,
		func(ctx context.Context, target *Tester, req TestFutureReq) (*rpc.Future[string], error) {
			return target.TestFuture(ctx, req.S, req.DelayMs)
		})
	if err != nil {
		panic(err)
	}

	ClientAddMethod, err = rpc.Bind(ClientTable, "clientAdd", decodeAddReq, encodeI32Resp,
		func(ctx context.Context, target *TesterClient, req [2]int32) (int32, error) {
			return target.ClientAdd(ctx, req[0], req[1])
		})
	if err != nil {
		panic(err)
	}

	AddExMethod, err = rpc.Bind(TesterExTable, "add", decodeAddReq, encodeI32Resp,
		func(ctx context.Context, target *TesterEx, req [2]int32) (int32, error) {
			return target.Add(ctx, req[0], req[1])
		})
	if err != nil {
		panic(err)
	}
	MulMethod, err = rpc.Bind(TesterExTable, "mul", decodeAddReq, encodeI32Resp,
		func(ctx context.Context, target *TesterEx, req [2]int32) (int32, error) {
			return target.Mul(ctx, req[0], req[1])
		})
	if err != nil {
		panic(err)
	}
}
