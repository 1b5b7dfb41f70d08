package rpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultValid(t *testing.T) {
	r := NewValidResult(42)
	v, err := r.Get()
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, r.Valid())
}

func TestResultException(t *testing.T) {
	r := NewExceptionResult[int]("add", "boom")
	_, err := r.Get()
	assert.Error(t, err)
	var exc *Exception
	assert.True(t, errors.As(err, &exc))
	assert.Equal(t, "boom", exc.Message)
}

func TestResultAborted(t *testing.T) {
	r := NewAbortedResult[int]()
	_, err := r.Get()
	assert.ErrorIs(t, err, ErrAborted)
	assert.True(t, r.Aborted())
}
