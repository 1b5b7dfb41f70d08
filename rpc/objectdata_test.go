package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dummyTarget struct{}

func TestObjectDataSharedAcrossAcquires(t *testing.T) {
	target := &dummyTarget{}
	od1, err := AcquireObjectData(target)
	require.NoError(t, err)
	od2, err := AcquireObjectData(target)
	require.NoError(t, err)
	defer Release(target, od1)
	defer Release(target, od2)
	assert.Same(t, od1, od2)

	od1.SetProperty("k", NewAnyI32(9))
	v, ok := od2.GetProperty("k")
	require.True(t, ok)
	got, ok := v.AsI32()
	require.True(t, ok)
	assert.Equal(t, int32(9), got)
}

func TestObjectDataAuthGating(t *testing.T) {
	target := &dummyTarget{}
	od, err := AcquireObjectData(target)
	require.NoError(t, err)
	defer Release(target, od)

	assert.False(t, od.RequiresAuth())
	od.SetAuthToken("meow")
	assert.True(t, od.RequiresAuth())
	assert.False(t, od.CheckAuthToken("wrong"))
	assert.True(t, od.CheckAuthToken("meow"))
}

func TestObjectDataRequiresPointerTarget(t *testing.T) {
	_, err := AcquireObjectData(dummyTarget{})
	assert.Error(t, err)
}
