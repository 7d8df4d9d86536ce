package sso

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctor-sync/internal/domain"
	"proctor-sync/internal/lms"
)

type fixedToken bool

func (f fixedToken) Get(context.Context) (string, bool) { return "tok", bool(f) }

func newHandoff() (*Handoff, *[]string) {
	cat := lms.NewCatalog()
	cat.AddUser(domain.User{ID: 10, Email: "a@x.edu", FirstName: "Ann", LastName: "Lee"})
	var synced []string
	return &Handoff{
		Settings: func() Settings {
			return Settings{URL: "https://sso.test/login", Key: "abcdefgh", IV: testIV}
		},
		Tokens: fixedToken(true),
		Users:  cat,
		EnsureUser: func(_ context.Context, u domain.User) bool {
			synced = append(synced, u.Email)
			return true
		},
	}, &synced
}

func TestHandoffForm(t *testing.T) {
	h, synced := newHandoff()

	html, err := h.Form(context.Background(), 10)
	require.NoError(t, err)

	payload, err := Encode("a@x.edu", "abcdefgh", testIV)
	require.NoError(t, err)
	expected, err := RenderForm("https://sso.test/login", payload)
	require.NoError(t, err)
	assert.Equal(t, expected, html)
	assert.Equal(t, []string{"a@x.edu"}, *synced)
}

func TestHandoffFailures(t *testing.T) {
	ctx := context.Background()

	h, _ := newHandoff()
	h.Settings = func() Settings { return Settings{URL: "https://sso.test"} }
	_, err := h.Form(ctx, 10)
	assert.ErrorIs(t, err, ErrNotConfigured)

	h, synced := newHandoff()
	h.Tokens = fixedToken(false)
	_, err = h.Form(ctx, 10)
	assert.Error(t, err)
	assert.Empty(t, *synced)

	h, _ = newHandoff()
	_, err = h.Form(ctx, 404)
	assert.ErrorIs(t, err, lms.ErrNotFound)

	h, _ = newHandoff()
	h.EnsureUser = func(context.Context, domain.User) bool { return false }
	_, err = h.Form(ctx, 10)
	assert.Error(t, err)

	h, _ = newHandoff()
	_, err = h.Form(ctx, 0)
	assert.Error(t, err)
}
