package errors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrapf(ErrNotConnected, "send text to %s", "abc")
	require.Error(t, err)
	assert.True(t, Is(err, ErrNotConnected))
	assert.Equal(t, "send text to abc: session not connected", err.Error())

	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := Wrap(NewValidationError("operation", "unsupported", "sqrt"), "calculator")
	assert.True(t, Is(err, ErrInvalidInput))

	var ve *ValidationError
	require.True(t, As(err, &ve))
	assert.Equal(t, "operation", ve.Field)
}

func TestMultiError(t *testing.T) {
	var m MultiError
	assert.Nil(t, m.ToError())

	m.Add(nil)
	m.Add(ErrTimeout)
	assert.Equal(t, "operation timeout", m.ToError().Error())

	m.Add(ErrUnavailable)
	assert.Contains(t, m.Error(), "multiple errors (2)")
	assert.ErrorIs(t, m.ToError(), ErrTimeout)
	assert.ErrorIs(t, m.ToError(), ErrUnavailable)
}

func TestSessionIDContext(t *testing.T) {
	_, ok := SessionIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithSessionID(context.Background(), "s-1")
	id, ok := SessionIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "s-1", id)
}
