package token

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"proctor-sync/internal/examity"
	"proctor-sync/internal/metrics"
	"proctor-sync/internal/store"
)

const (
	// OptionKey is where the token lives in the options store.
	OptionKey = "examity-client_api_access_token"
	// Lifetime is how long a token is trusted after its issuance time.
	Lifetime = 55 * time.Minute
)

type State int

const (
	Empty State = iota
	Valid
	Expired
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "empty"
	}
}

// Fetcher requests a fresh token; *examity.Client satisfies it.
type Fetcher interface {
	RequestToken(ctx context.Context, clientID, secretKey string) (examity.TokenResponse, error)
}

type stored struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// Cache hands out the bearer token, fetching it lazily and dropping it once it
// is older than Lifetime. Concurrent readers may race into a redundant fetch;
// the last write wins.
type Cache struct {
	Store     store.Options
	Fetcher   Fetcher // nil when the API client is not configured
	ClientID  string
	SecretKey string
	Location  *time.Location
	Now       func() time.Time
	Logger    *slog.Logger
	Metrics   metrics.Recorder
}

func (c *Cache) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

func (c *Cache) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Cache) load(ctx context.Context) (stored, bool) {
	raw, ok, err := c.Store.Get(ctx, OptionKey)
	if err != nil {
		c.logger().Error("token: read cached token", "error", err)
		return stored{}, false
	}
	if !ok || raw == "" {
		return stored{}, false
	}
	var s stored
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Token == "" {
		return stored{}, false
	}
	return s, true
}

func (c *Cache) stateOf(s stored, ok bool) State {
	if !ok {
		return Empty
	}
	if c.now().Sub(s.IssuedAt) > Lifetime {
		return Expired
	}
	return Valid
}

// State reports the cache state without side effects.
func (c *Cache) State(ctx context.Context) State {
	s, ok := c.load(ctx)
	return c.stateOf(s, ok)
}

// Get returns the cached token while valid. An expired token is deleted and a
// new one is fetched. The bool is false when no token could be obtained
// (credentials missing, client unavailable, or the request failed); the
// failure has already been logged.
func (c *Cache) Get(ctx context.Context) (string, bool) {
	s, ok := c.load(ctx)
	switch c.stateOf(s, ok) {
	case Valid:
		return s.Token, true
	case Expired:
		if err := c.Store.Delete(ctx, OptionKey); err != nil {
			c.logger().Error("token: delete expired token", "error", err)
		}
	}

	if !c.Configured() {
		return "", false
	}

	resp, err := c.Fetcher.RequestToken(ctx, c.ClientID, c.SecretKey)
	if err != nil {
		c.record(false)
		c.logger().Error("token: request failed", "error", err)
		return "", false
	}
	c.record(true)

	fresh := stored{
		Token:    resp.AuthInfo.AccessToken,
		IssuedAt: ParseTimestamp(resp.TimeStamp, c.Location, c.now()),
	}
	b, err := json.Marshal(fresh)
	if err == nil {
		err = c.Store.Set(ctx, OptionKey, string(b))
	}
	if err != nil {
		// still usable for this call
		c.logger().Error("token: persist token", "error", err)
	}
	return fresh.Token, true
}

// Configured reports whether a token can be requested at all.
func (c *Cache) Configured() bool {
	return c.Fetcher != nil && strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.SecretKey) != ""
}

// Clear forgets the cached token.
func (c *Cache) Clear(ctx context.Context) error {
	return c.Store.Delete(ctx, OptionKey)
}

func (c *Cache) record(ok bool) {
	if c.Metrics != nil {
		c.Metrics.RecordTokenFetch(ok)
	}
}
