package token

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geminilab/internal/adapters/config"
	"geminilab/internal/adapters/gemini"
	"geminilab/internal/adapters/redis"
	"geminilab/internal/testsupport"
	"geminilab/pkg/errors"
)

type fakeTokens struct {
	mu       sync.Mutex
	requests []gemini.TokenRequest
	err      error

	// when set, CreateToken signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeTokens) CreateToken(ctx context.Context, req gemini.TokenRequest) (string, error) {
	if f.release != nil {
		close(f.entered)
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests = append(f.requests, req)
	return fmt.Sprintf("auth_tokens/%d", len(f.requests)), nil
}

func (f *fakeTokens) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const liveModel = "models/gemini-2.5-flash-native-audio-preview-12-2025"

func newIssuer(svc *fakeTokens, cache Cache) (*Issuer, *clock) {
	clk := &clock{now: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
	iss := NewIssuer(svc, cache, config.TokenConfig{}, liveModel).WithClock(clk.Now)
	return iss, clk
}

func TestIssuerCreatesTokenWithDefaults(t *testing.T) {
	svc := &fakeTokens{}
	iss, clk := newIssuer(svc, nil)

	tok, err := iss.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "auth_tokens/1", tok.Value)
	assert.Equal(t, clk.Now().Add(30*time.Minute), tok.ExpiresAt)
	assert.Equal(t, clk.Now().Add(5*time.Minute), tok.NewSessionExpiresAt)

	req := svc.requests[0]
	assert.Equal(t, int32(10), req.Uses)
	assert.Equal(t, liveModel, req.Model)
	require.NotNil(t, req.Config)
	assert.NotNil(t, req.Config.SessionResumption)
}

func TestIssuerReusesTokenUntilNewSessionWindowCloses(t *testing.T) {
	svc := &fakeTokens{}
	iss, clk := newIssuer(svc, nil)
	ctx := context.Background()

	first, err := iss.Token(ctx)
	require.NoError(t, err)

	clk.Advance(4 * time.Minute)
	again, err := iss.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, svc.calls())

	// exactly at the deadline the token can no longer open sessions
	clk.Advance(time.Minute)
	next, err := iss.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "auth_tokens/2", next.Value)
	assert.Equal(t, 2, svc.calls())
}

func TestIssuerErrorIsNotCached(t *testing.T) {
	svc := &fakeTokens{err: errors.New("quota exceeded")}
	iss, _ := newIssuer(svc, nil)
	ctx := context.Background()

	_, err := iss.Token(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	svc.err = nil
	tok, err := iss.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "auth_tokens/1", tok.Value)
}

func TestIssuerRefresh(t *testing.T) {
	svc := &fakeTokens{}
	iss, clk := newIssuer(svc, nil)
	ctx := context.Background()

	issued, err := iss.Refresh(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, issued)

	issued, err = iss.Refresh(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, issued)

	clk.Advance(4*time.Minute + 30*time.Second)
	issued, err = iss.Refresh(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, issued)
	assert.Equal(t, 2, svc.calls())
}

func TestIssuerSharedRequestSurvivesFirstCallerCancel(t *testing.T) {
	svc := &fakeTokens{entered: make(chan struct{}), release: make(chan struct{})}
	iss, _ := newIssuer(svc, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := iss.Token(ctxA)
		errA <- err
	}()
	<-svc.entered

	type result struct {
		tok Token
		err error
	}
	resB := make(chan result, 1)
	go func() {
		tok, err := iss.Token(context.Background())
		resB <- result{tok, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(svc.release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, "auth_tokens/1", r.tok.Value)
	case <-time.After(time.Second):
		t.Fatal("second caller never got a token")
	}
	assert.Equal(t, 1, svc.calls())
}

func TestResponseFormat(t *testing.T) {
	tok := Token{
		Value:               "auth_tokens/abc",
		ExpiresAt:           time.Date(2025, 1, 15, 12, 30, 0, 0, time.UTC),
		NewSessionExpiresAt: time.Date(2025, 1, 15, 12, 5, 0, 0, time.UTC),
	}

	data, err := json.Marshal(tok.Response())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"token": "auth_tokens/abc",
		"expires_at": "2025-01-15T12:30:00Z",
		"new_session_expires_at": "2025-01-15T12:05:00Z"
	}`, string(data))
}

func TestMemoryCacheEmpty(t *testing.T) {
	_, err := NewMemoryCache().Get(context.Background())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRedisCacheSharedAcrossIssuers(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := redis.Wrap(testsupport.NewRedisClient(t), "geminilab")
	svc := &fakeTokens{}
	ctx := context.Background()

	a, clk := newIssuer(svc, NewRedisCache(client))
	b := NewIssuer(svc, NewRedisCache(client), config.TokenConfig{}, liveModel).WithClock(clk.Now)

	first, err := a.Token(ctx)
	require.NoError(t, err)

	second, err := b.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, 1, svc.calls())
}
