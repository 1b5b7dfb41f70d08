package rpc_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuhao00/czrpc/rpc"
	"github.com/phuhao00/czrpc/rpc/rpctest"
)

// newTesterPair wires two Connections over an in-memory net.Pipe: server
// serves a Tester, client serves a TesterClient, reproducing the
// bidirectional setup from tests/tests_rpc.cpp's ServerProcess harness.
func newTesterPair(t *testing.T) (server, client *rpc.Connection) {
	t.Helper()
	connServerSide, connClientSide := net.Pipe()

	server, err := rpc.NewConnection(connServerSide, rpctest.TesterTable, &rpctest.Tester{})
	require.NoError(t, err)
	client, err = rpc.NewConnection(connClientSide, rpctest.ClientTable, &rpctest.TesterClient{})
	require.NoError(t, err)

	server.Start()
	client.Start()

	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return server, client
}

func TestScenarioAdd(t *testing.T) {
	_, client := newTesterPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res := rpc.Call(ctx, client, rpctest.AddMethod, [2]int32{1, 2},
		func(s *rpc.Stream, req [2]int32) { s.WriteI32(req[0]); s.WriteI32(req[1]) },
		func(s *rpc.Stream) (int32, error) { return s.ReadI32() },
	)
	v, err := res.Get()
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)
}

func TestScenarioThrowInt(t *testing.T) {
	_, client := newTesterPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	encode := func(s *rpc.Stream, v bool) { s.WriteBool(v) }
	decode := func(s *rpc.Stream) (int32, error) { return s.ReadI32() }

	res := rpc.Call(ctx, client, rpctest.IntTestExceptionMethod, false, encode, decode)
	v, err := res.Get()
	require.NoError(t, err)
	assert.Equal(t, int32(128), v)

	res = rpc.Call(ctx, client, rpctest.IntTestExceptionMethod, true, encode, decode)
	_, err = res.Get()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Testing exception")
}

func TestScenarioEchoVector(t *testing.T) {
	_, client := newTesterPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	encode := func(s *rpc.Stream, v []int32) {
		rpc.WriteVector(s, v, func(s *rpc.Stream, e int32) { s.WriteI32(e) })
	}
	decode := func(s *rpc.Stream) ([]int32, error) {
		return rpc.ReadVector(s, func(s *rpc.Stream) (int32, error) { return s.ReadI32() })
	}

	res := rpc.Call(ctx, client, rpctest.TestVectorMethod, []int32{1, 2, 3, 4}, encode, decode)
	v, err := res.Get()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4}, v)
}

func TestScenarioBidirectionalCallback(t *testing.T) {
	_, client := newTesterPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	encode := func(s *rpc.Stream, req [2]int32) { s.WriteI32(req[0]); s.WriteI32(req[1]) }
	decode := func(s *rpc.Stream) (int32, error) { return s.ReadI32() }

	res := rpc.Call(ctx, client, rpctest.TestClientAddCallMethod, [2]int32{4, 5}, encode, decode)
	v, err := res.Get()
	require.NoError(t, err)
	assert.Equal(t, int32(9), v)
}

func TestScenarioAuthFlow(t *testing.T) {
	server, client := newTesterPair(t)
	server.ObjectData().SetAuthToken("meow")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	encode := func(s *rpc.Stream, req [2]int32) { s.WriteI32(req[0]); s.WriteI32(req[1]) }
	decode := func(s *rpc.Stream) (int32, error) { return s.ReadI32() }

	// Before auth, a normal call must be rejected.
	res := rpc.Call(ctx, client, rpctest.AddMethod, [2]int32{1, 1}, encode, decode)
	_, err := res.Get()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not authenticated")

	// Wrong token fails; correct token succeeds.
	authRes := client.CallGeneric(ctx, "__auth", []rpc.Any{rpc.NewAnyString("wrong")})
	av, err := authRes.Get()
	require.NoError(t, err)
	ok, _ := av.AsBool()
	assert.False(t, ok)

	authRes = client.CallGeneric(ctx, "__auth", []rpc.Any{rpc.NewAnyString("meow")})
	av, err = authRes.Get()
	require.NoError(t, err)
	ok, _ = av.AsBool()
	assert.True(t, ok)

	res = rpc.Call(ctx, client, rpctest.AddMethod, [2]int32{1, 1}, encode, decode)
	v, err := res.Get()
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestScenarioAbortOnClose(t *testing.T) {
	server, client := newTesterPair(t)

	done := make(chan rpc.Result[int32], 1)
	go func() {
		encode := func(s *rpc.Stream, req [2]int32) { s.WriteI32(req[0]); s.WriteI32(req[1]) }
		decode := func(s *rpc.Stream) (int32, error) { return s.ReadI32() }
		done <- rpc.Call(context.Background(), client, rpctest.AddMethod, [2]int32{1, 1}, encode, decode)
	}()

	// Racy by nature (the call may complete before we close), but closing
	// immediately exercises the abort-all path whenever it does race ahead.
	_ = server.Close()

	select {
	case res := <-done:
		_, err := res.Get()
		if err != nil {
			assert.True(t, res.Aborted(), "call failed without settling as aborted: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call never settled after Close")
	}
}

func TestScenarioTesterExExtendsTesterMethodSet(t *testing.T) {
	connServerSide, connClientSide := net.Pipe()
	server, err := rpc.NewConnection(connServerSide, rpctest.TesterExTable, &rpctest.TesterEx{})
	require.NoError(t, err)
	client, err := rpc.NewConnection(connClientSide, nil, nil)
	require.NoError(t, err)

	server.Start()
	client.Start()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	encode := func(s *rpc.Stream, req [2]int32) { s.WriteI32(req[0]); s.WriteI32(req[1]) }
	decode := func(s *rpc.Stream) (int32, error) { return s.ReadI32() }

	// The inherited "add" ordinal, served by TesterEx's embedded Tester.
	sum, err := rpc.Call(ctx, client, rpctest.AddExMethod, [2]int32{2, 3}, encode, decode).Get()
	require.NoError(t, err)
	assert.Equal(t, int32(5), sum)

	// Mul is the one ordinal TesterEx adds beyond Tester's own set.
	product, err := rpc.Call(ctx, client, rpctest.MulMethod, [2]int32{2, 3}, encode, decode).Get()
	require.NoError(t, err)
	assert.Equal(t, int32(6), product)
}

func TestScenarioGetSetProperty(t *testing.T) {
	_, client := newTesterPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	setRes := client.CallGeneric(ctx, "__setProperty", []rpc.Any{rpc.NewAnyString("name"), rpc.NewAnyString("tester")})
	_, err := setRes.Get()
	require.NoError(t, err)

	getRes := client.CallGeneric(ctx, "__getProperty", []rpc.Any{rpc.NewAnyString("name")})
	v, err := getRes.Get()
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "tester", s)
}

// TestScenarioAsyncDispatchSettlesOutOfOrder exercises testable property #8:
// dispatchers that finish in reverse order of arrival still frame each
// reply in completion order, and each caller observes only the value its
// own call should return. Tester.TestFuture is bound with BindAsync; the
// first call is issued from its own goroutine and left outstanding while
// the second is made, and the second call is given a much shorter settle
// delay than the first so it resolves — and has its reply framed — before
// the call that arrived ahead of it.
func TestScenarioAsyncDispatchSettlesOutOfOrder(t *testing.T) {
	_, client := newTesterPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	firstCh := make(chan rpc.Result[string], 1)
	go func() {
		firstCh <- rpc.Call(ctx, client, rpctest.TestFutureMethod, rpctest.NewTestFutureReq("first", 200),
			rpctest.EncodeTestFutureReq, rpctest.DecodeStringResp)
	}()
	// Let the first request reach the server before the second is sent.
	time.Sleep(50 * time.Millisecond)
	second := rpc.Call(ctx, client, rpctest.TestFutureMethod, rpctest.NewTestFutureReq("second", 10),
		rpctest.EncodeTestFutureReq, rpctest.DecodeStringResp)

	v2, err := second.Get()
	require.NoError(t, err)
	assert.Equal(t, "second", v2)

	v1, err := (<-firstCh).Get()
	require.NoError(t, err)
	assert.Equal(t, "first", v1)
}

// TestScenarioConcurrentSendsFromManyGoroutines exercises testable
// property #7: M requests submitted from K goroutines on one connection
// each yield a reply correctly matched to its own caller, with none
// delivered to the wrong awaiter.
func TestScenarioConcurrentSendsFromManyGoroutines(t *testing.T) {
	_, client := newTesterPair(t)

	const workers = 16
	const callsPerWorker = 20

	encode := func(s *rpc.Stream, req [2]int32) { s.WriteI32(req[0]); s.WriteI32(req[1]) }
	decode := func(s *rpc.Stream) (int32, error) { return s.ReadI32() }

	errs := make(chan error, workers*callsPerWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < callsPerWorker; i++ {
				a, b := int32(w*1000+i), int32(i)
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				v, err := rpc.Call(ctx, client, rpctest.AddMethod, [2]int32{a, b}, encode, decode).Get()
				cancel()
				if err != nil {
					errs <- fmt.Errorf("worker %d call %d: %w", w, i, err)
					continue
				}
				if v != a+b {
					errs <- fmt.Errorf("worker %d call %d: got %d, want %d (cross-delivery)", w, i, v, a+b)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
