package token

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctor-sync/internal/examity"
	"proctor-sync/internal/logx"
	"proctor-sync/internal/store"
)

type fakeFetcher struct {
	calls  int
	tokens []string
	stamp  string
	err    error
}

func (f *fakeFetcher) RequestToken(_ context.Context, clientID, secretKey string) (examity.TokenResponse, error) {
	f.calls++
	if f.err != nil {
		return examity.TokenResponse{}, f.err
	}
	var resp examity.TokenResponse
	resp.AuthInfo.AccessToken = f.tokens[(f.calls-1)%len(f.tokens)]
	if f.stamp != "" {
		resp.TimeStamp = json.RawMessage(f.stamp)
	}
	return resp, nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newCache(f Fetcher, c *clock) *Cache {
	return &Cache{
		Store:     store.NewMemory(),
		Fetcher:   f,
		ClientID:  "client",
		SecretKey: "secret",
		Location:  time.UTC,
		Now:       c.Now,
		Logger:    logx.Discard(),
	}
}

func TestCacheLifetime(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	clk := &clock{now: issued}
	f := &fakeFetcher{tokens: []string{"first", "second"}, stamp: `"2024-03-01T10:00:00Z"`}
	c := newCache(f, clk)

	assert.Equal(t, Empty, c.State(ctx))

	tok, ok := c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "first", tok)
	assert.Equal(t, Valid, c.State(ctx))

	clk.now = issued.Add(54 * time.Minute)
	tok, ok = c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "first", tok)
	assert.Equal(t, 1, f.calls)

	clk.now = issued.Add(55 * time.Minute)
	assert.Equal(t, Valid, c.State(ctx), "exactly 55 minutes is still valid")

	clk.now = issued.Add(56 * time.Minute)
	assert.Equal(t, Expired, c.State(ctx))
	// the refetched token carries the same server stamp, so pin it to now
	f.stamp = `"2024-03-01T10:56:00Z"`
	tok, ok = c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "second", tok)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, Valid, c.State(ctx))
}

func TestCacheUsesServerTimestamp(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)}
	// server says the token was issued an hour ago
	f := &fakeFetcher{tokens: []string{"old"}, stamp: `"2024-03-01T10:00:00Z"`}
	c := newCache(f, clk)

	_, ok := c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, Expired, c.State(ctx))
}

func TestCacheMissingCredentials(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{tokens: []string{"x"}}
	c := newCache(f, &clock{now: time.Now()})
	c.SecretKey = " "

	tok, ok := c.Get(ctx)
	assert.False(t, ok)
	assert.Empty(t, tok)
	assert.Zero(t, f.calls)
	assert.False(t, c.Configured())

	c = newCache(nil, &clock{now: time.Now()})
	_, ok = c.Get(ctx)
	assert.False(t, ok)
	assert.False(t, c.Configured())
}

func TestCacheFetchFailure(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{err: errors.New("boom")}
	c := newCache(f, &clock{now: time.Now()})

	_, ok := c.Get(ctx)
	assert.False(t, ok)
	assert.True(t, c.Configured(), "credentials are set even though the request failed")
	assert.Equal(t, Empty, c.State(ctx))
}

func TestCacheIgnoresCorruptValue(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	f := &fakeFetcher{tokens: []string{"fresh"}}
	c := newCache(f, clk)
	require.NoError(t, c.Store.Set(ctx, OptionKey, "{not json"))

	assert.Equal(t, Empty, c.State(ctx))
	tok, ok := c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "fresh", tok)

	raw, found, err := c.Store.Get(ctx, OptionKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, raw, `"token":"fresh"`)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, Empty, c.State(ctx))
}
