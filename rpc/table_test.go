package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addTarget struct{}

func TestBindAssignsSequentialOrdinals(t *testing.T) {
	table := NewTable[addTarget]()
	id0, err := Bind(table, "first",
		func(s *Stream) (int32, error) { return s.ReadI32() },
		func(s *Stream, v int32) { s.WriteI32(v) },
		func(ctx context.Context, target *addTarget, req int32) (int32, error) { return req, nil })
	require.NoError(t, err)
	id1, err := Bind(table, "second",
		func(s *Stream) (int32, error) { return s.ReadI32() },
		func(s *Stream, v int32) { s.WriteI32(v) },
		func(ctx context.Context, target *addTarget, req int32) (int32, error) { return req, nil })
	require.NoError(t, err)

	assert.Equal(t, uint8(0), id0)
	assert.Equal(t, uint8(1), id1)
	assert.Equal(t, "first", table.MethodName(id0))
}

func TestBindRejectsPast255Methods(t *testing.T) {
	table := NewTable[addTarget]()
	var lastErr error
	for i := 0; i < maxBoundMethods+1; i++ {
		_, err := Bind(table, "m",
			func(s *Stream) (int32, error) { return s.ReadI32() },
			func(s *Stream, v int32) { s.WriteI32(v) },
			func(ctx context.Context, target *addTarget, req int32) (int32, error) { return req, nil })
		if err != nil {
			lastErr = err
		}
	}
	assert.ErrorIs(t, lastErr, ErrTableFull)
	assert.Equal(t, maxBoundMethods, table.NumMethods())
}
