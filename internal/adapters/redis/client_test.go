package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geminilab/internal/testsupport"
	"geminilab/pkg/errors"
)

type cachedToken struct {
	Token string `json:"token"`
}

func TestClientJSONRoundTrip(t *testing.T) {
	c := Wrap(testsupport.NewRedisClient(t), "test")
	ctx := context.Background()

	var out cachedToken
	err := c.GetJSON(ctx, "token", &out)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	require.NoError(t, c.SetJSON(ctx, "token", cachedToken{Token: "auth_tokens/1"}, time.Minute))
	require.NoError(t, c.GetJSON(ctx, "token", &out))
	assert.Equal(t, "auth_tokens/1", out.Token)

	require.NoError(t, c.Delete(ctx, "token"))
	assert.Error(t, c.GetJSON(ctx, "token", &out))
}

func TestClientLock(t *testing.T) {
	c := Wrap(testsupport.NewRedisClient(t), "test")
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "prewarm", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, "prewarm", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "prewarm"))
	ok, err = c.AcquireLock(ctx, "prewarm", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
