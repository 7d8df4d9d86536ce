package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctor-sync/internal/hooks"
)

type recorder struct {
	mu     sync.Mutex
	events []hooks.Event
}

func (r *recorder) handle(_ context.Context, ev hooks.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type formFunc func(ctx context.Context, userID int64) (string, error)

func (f formFunc) Form(ctx context.Context, userID int64) (string, error) { return f(ctx, userID) }

func newTestServer(secret string) (*Server, *recorder) {
	rec := &recorder{}
	reg := hooks.NewRegistry()
	reg.On(hooks.ContentViewedEvent, rec.handle)
	reg.On(hooks.SaveTriggeredEvent, rec.handle)
	reg.On(hooks.ScheduledTickEvent, rec.handle)

	return &Server{
		Hooks:      reg,
		HookSecret: secret,
		SSO: formFunc(func(_ context.Context, id int64) (string, error) {
			if id == 10 {
				return "<form>ok</form>", nil
			}
			return "", errors.New("no token")
		}),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "proctor_sync_sync_total 1\n")
		}),
	}, rec
}

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	s.Wait()
	return resp, string(b)
}

func jsonReq(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestContentViewedDispatches(t *testing.T) {
	s, rec := newTestServer("")

	resp, _ := do(t, s, jsonReq(http.MethodPost, "/hooks/content-viewed", `{"postId":7,"viewerId":10}`))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, rec.events, 1)
	assert.Equal(t, hooks.ContentViewed{PostID: 7, ViewerID: 10}, rec.events[0])

	resp, _ = do(t, s, jsonReq(http.MethodPost, "/hooks/content-viewed", `{"viewerId":10}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, s, jsonReq(http.MethodPost, "/hooks/content-viewed", `{bad`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, rec.events, 1)
}

func TestSaveAndProvisionHooks(t *testing.T) {
	s, rec := newTestServer("")

	resp, _ := do(t, s, jsonReq(http.MethodPost, "/hooks/save", `{"keys":["examity-client_api_url"]}`))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp, _ = do(t, s, httptest.NewRequest(http.MethodPost, "/hooks/provision", nil))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, rec.events, 2)
	assert.Equal(t, hooks.SaveTriggered{Keys: []string{"examity-client_api_url"}}, rec.events[0])
	assert.Equal(t, hooks.ScheduledTickEvent, rec.events[1].Type())
}

func TestHookSecret(t *testing.T) {
	s, rec := newTestServer("s3cret")

	resp, _ := do(t, s, httptest.NewRequest(http.MethodPost, "/hooks/provision", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/hooks/provision", nil)
	req.Header.Set("X-Hook-Secret", "s3cret")
	resp, _ = do(t, s, req)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Len(t, rec.events, 1)
}

func TestSSOForm(t *testing.T) {
	s, _ := newTestServer("")

	resp, body := do(t, s, httptest.NewRequest(http.MethodGet, "/sso/form?userId=10", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<form>ok</form>", body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	for _, q := range []string{"?userId=11", "?userId=abc", ""} {
		resp, body = do(t, s, httptest.NewRequest(http.MethodGet, "/sso/form"+q, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode, q)
		assert.Empty(t, body, q)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer("")

	resp, body := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "healthy")

	s.Health = func(context.Context) error { return errors.New("db gone") }
	resp, body = do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "db gone")

	resp, body = do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "proctor_sync_sync_total")
}
