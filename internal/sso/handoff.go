package sso

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"proctor-sync/internal/domain"
)

var ErrNotConfigured = errors.New("sso: url, key or iv not configured")

type Settings struct {
	URL string
	Key string
	IV  string // hex
}

func (s Settings) Configured() bool {
	return strings.TrimSpace(s.URL) != "" && s.Key != "" && strings.TrimSpace(s.IV) != ""
}

// Handoff renders the login form for a site user. The user is synced to the
// remote first so the login has an account to land on.
type Handoff struct {
	Settings func() Settings
	Tokens   interface {
		Get(ctx context.Context) (string, bool)
	}
	Users interface {
		User(ctx context.Context, id int64) (domain.User, error)
	}
	// EnsureUser syncs u and reports whether it exists remotely afterwards.
	EnsureUser func(ctx context.Context, u domain.User) bool
}

func (h *Handoff) Form(ctx context.Context, userID int64) (string, error) {
	s := h.Settings()
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	if userID <= 0 {
		return "", fmt.Errorf("sso: no user")
	}
	if _, ok := h.Tokens.Get(ctx); !ok {
		return "", fmt.Errorf("sso: no access token")
	}
	u, err := h.Users.User(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("sso: load user %d: %w", userID, err)
	}
	if h.EnsureUser != nil && !h.EnsureUser(ctx, u) {
		return "", fmt.Errorf("sso: user %d not synced", userID)
	}

	payload, err := Encode(u.Email, s.Key, s.IV)
	if err != nil {
		return "", err
	}
	return RenderForm(s.URL, payload)
}
