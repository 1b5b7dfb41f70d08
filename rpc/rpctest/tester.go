// Package rpctest provides the target types exercised by rpc's own tests:
// Tester (served by a "server" Connection) and TesterClient (served by the
// "client" Connection it calls back into), reproducing the literal
// end-to-end scenarios from the original's tests/tests_rpc.cpp — Add,
// intTestException, testVector, and a bidirectional callback via
// Tester.TestClientAddCall.
package rpctest

import (
	"context"
	"fmt"
	"time"

	"github.com/phuhao00/czrpc/rpc"
)

// Tester is the server-side target. Method ordinals below are assigned in
// registration order by AddMethod/IntTestExceptionMethod/etc (see table.go
// in this package) — the shared "IDL" both the serving Connection's Table
// and the calling side's ordinal constants agree on.
type Tester struct {
	calls int
}

// Add returns a+b, the Add-1-2 scenario from spec.md §8.
func (t *Tester) Add(ctx context.Context, a, b int32) (int32, error) {
	t.calls++
	return a + b, nil
}

// IntTestException returns 128 normally, or throws "Testing exception" when
// doThrow is true — the Throw-int scenario.
func (t *Tester) IntTestException(ctx context.Context, doThrow bool) (int32, error) {
	if doThrow {
		return 0, fmt.Errorf("Testing exception")
	}
	return 128, nil
}

// TestVector echoes the input vector unchanged — the Echo-vector scenario.
func (t *Tester) TestVector(ctx context.Context, in []int32) ([]int32, error) {
	out := make([]int32, len(in))
	copy(out, in)
	return out, nil
}

// TestFuture is the async dispatcher scenario: the Go analogue of the
// original's tests_rpc_spas_helper.h::testFuture, which hands back a
// std::future<std::string> settled on a background thread after a short
// sleep rather than returning inline. Here the dispatcher is bound with
// BindAsync, and the reply frame is only written once the returned Future
// resolves. delayMs lets a caller control how long the background settle
// takes, the way the original's helper fixes its sleep at 100ms — needed
// so a test can force two outstanding calls to settle out of arrival
// order.
func (t *Tester) TestFuture(ctx context.Context, s string, delayMs int32) (*rpc.Future[string], error) {
	fut := rpc.NewFuture[string]()
	go func() {
		time.Sleep(time.Duration(delayMs) * time.Millisecond)
		fut.Resolve(s)
	}()
	return fut, nil
}

// TestClientAddCall calls back into the peer's TesterClient.ClientAdd via
// the connection recovered from ctx, demonstrating the Bidirectional
// scenario: a server-side dispatcher issuing its own outbound call to the
// same Connection that invoked it.
func (t *Tester) TestClientAddCall(ctx context.Context, a, b int32) (int32, error) {
	conn, ok := rpc.ConnectionFromContext(ctx)
	if !ok {
		return 0, fmt.Errorf("no connection in context")
	}
	res := rpc.Call(ctx, conn, ClientAddMethod, [2]int32{a, b}, encodeAddReq, decodeI32Resp)
	return res.Get()
}

// TesterClient is the client-side callback target: the peer calls
// ClientAdd on it via TestClientAddCall above.
type TesterClient struct{}

// ClientAdd returns a+b; it exists purely to be called back from the
// server side.
func (t *TesterClient) ClientAdd(ctx context.Context, a, b int32) (int32, error) {
	return a + b, nil
}

// TesterEx embeds Tester and adds Mul, following the original's TesterEx
// interface-extension pattern from tests/tests_rpc.cpp. TesterExTable (see
// table.go) binds "add" straight through to the embedded Tester's promoted
// Add, reusing the same codec functions TesterTable uses, then adds "mul";
// Tester's other methods (IntTestException, TestVector, TestClientAddCall,
// TestFuture) are not bound on TesterExTable. No method body is
// duplicated, only the ordinal table is.
type TesterEx struct {
	Tester
}

// Mul returns a*b, the one method TesterEx adds beyond Tester's set.
func (t *TesterEx) Mul(ctx context.Context, a, b int32) (int32, error) {
	return a * b, nil
}
