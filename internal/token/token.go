// Package token issues and caches ephemeral Live API tokens so browsers never
// see the permanent API key.
package token

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"

	"geminilab/internal/adapters/config"
	"geminilab/internal/adapters/gemini"
	"geminilab/internal/metrics"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// Token is an issued ephemeral token with both vendor-enforced deadlines
type Token struct {
	Value               string    `json:"token"`
	ExpiresAt           time.Time `json:"expires_at"`
	NewSessionExpiresAt time.Time `json:"new_session_expires_at"`
}

// Usable reports whether a new Live session can still be opened with t
func (t Token) Usable(now time.Time) bool {
	return t.Value != "" && t.NewSessionExpiresAt.After(now)
}

// Response is the JSON body served by /api/token
type Response struct {
	Token               string `json:"token"`
	ExpiresAt           string `json:"expires_at"`
	NewSessionExpiresAt string `json:"new_session_expires_at"`
}

// Response formats t for the HTTP API
func (t Token) Response() Response {
	return Response{
		Token:               t.Value,
		ExpiresAt:           t.ExpiresAt.Format(time.RFC3339),
		NewSessionExpiresAt: t.NewSessionExpiresAt.Format(time.RFC3339),
	}
}

// IssueTimeout bounds one CreateToken request shared by concurrent callers
const IssueTimeout = 30 * time.Second

// Issuer hands out a shared token until its new-session window closes
type Issuer struct {
	service gemini.TokenService
	cache   Cache
	cfg     config.TokenConfig
	model   string
	now     func() time.Time
	group   singleflight.Group
	log     *logger.Logger
}

// NewIssuer creates an issuer for model. A nil cache keeps tokens in memory.
func NewIssuer(service gemini.TokenService, cache Cache, cfg config.TokenConfig, model string) *Issuer {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if cfg.Uses <= 0 {
		cfg.Uses = 10
	}
	if cfg.Expire <= 0 {
		cfg.Expire = 30 * time.Minute
	}
	if cfg.NewSessionExpire <= 0 {
		cfg.NewSessionExpire = 5 * time.Minute
	}
	return &Issuer{
		service: service,
		cache:   cache,
		cfg:     cfg,
		model:   model,
		now:     time.Now,
		log:     logger.Get().Named("token"),
	}
}

// WithClock replaces the issuer's time source
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Token returns the cached token while a new session can still start with
// it, otherwise issues a fresh one
func (i *Issuer) Token(ctx context.Context) (Token, error) {
	now := i.now().UTC()

	cached, err := i.cache.Get(ctx)
	switch {
	case err == nil && cached.Usable(now):
		metrics.RecordEphemeralToken("cache")
		return cached, nil
	case err != nil && !errors.Is(err, errors.ErrNotFound):
		i.log.Warnw("Token cache read failed, issuing a new token", "error", err)
	}

	return i.issue(ctx)
}

// Refresh issues a new token when the cached one closes its new-session
// window within margin. It reports whether a token was issued.
func (i *Issuer) Refresh(ctx context.Context, margin time.Duration) (bool, error) {
	cached, err := i.cache.Get(ctx)
	if err == nil && cached.Usable(i.now().UTC().Add(margin)) {
		return false, nil
	}
	if _, err := i.issue(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// issue creates one token. Concurrent callers share a request detached from
// their contexts; each caller stops waiting when its own ctx ends.
func (i *Issuer) issue(ctx context.Context) (Token, error) {
	ch := i.group.DoChan("issue", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), IssueTimeout)
		defer cancel()

		now := i.now().UTC()
		tok := Token{
			ExpiresAt:           now.Add(i.cfg.Expire),
			NewSessionExpiresAt: now.Add(i.cfg.NewSessionExpire),
		}

		value, err := i.service.CreateToken(ctx, gemini.TokenRequest{
			Uses:                 i.cfg.Uses,
			ExpireTime:           tok.ExpiresAt,
			NewSessionExpireTime: tok.NewSessionExpiresAt,
			Model:                i.model,
			Config: &genai.LiveConnectConfig{
				SessionResumption: &genai.SessionResumptionConfig{},
			},
		})
		if err != nil {
			return Token{}, err
		}
		tok.Value = value

		if err := i.cache.Set(ctx, tok, tok.NewSessionExpiresAt.Sub(now)); err != nil {
			i.log.Warnw("Failed to cache ephemeral token", "error", err)
		}
		return tok, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Token{}, errors.Wrap(ctx.Err(), "wait for ephemeral token")
	}

	v, err := res.Val, res.Err
	if err != nil {
		metrics.RecordEphemeralToken("error")
		i.log.Errorw("Failed to issue ephemeral token", "model", i.model, "error", err)
		return Token{}, errors.Wrap(err, "issue ephemeral token")
	}

	tok := v.(Token)
	metrics.RecordEphemeralToken("issued")
	i.log.Infow("Issued ephemeral token",
		"expires_at", tok.ExpiresAt,
		"new_session_expires_at", tok.NewSessionExpiresAt,
	)
	return tok, nil
}
