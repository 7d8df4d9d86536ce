package examity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"proctor-sync/internal/httpx"
)

const contentTypeJSON = "application/json"

// ErrNotConfigured is returned by New when the base URL or timeout is missing.
// Callers treat it as a hard stop for the operation at hand.
var ErrNotConfigured = errors.New("examity: api url or timeout not configured")

type Client struct {
	BaseURL   *url.URL
	HTTP      *http.Client
	UserAgent string
	Limiter   *rate.Limiter
}

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// Debug wraps the transport with request/response body logging.
	Debug  bool
	Logger *slog.Logger

	// RateLimit caps outbound requests per second; 0 disables it.
	RateLimit float64
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" || opts.Timeout <= 0 {
		return nil, ErrNotConfigured
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("examity: invalid base url %q: %w", opts.BaseURL, ErrNotConfigured)
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if opts.Debug {
		transport = &httpx.LoggingTransport{Base: transport, Logger: opts.Logger}
	}

	c := &Client{
		BaseURL:   base,
		UserAgent: opts.UserAgent,
		HTTP: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c, nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	ref, err := url.Parse(strings.Join(escaped, "/"))
	if err != nil {
		return c.BaseURL.String() + strings.Join(escaped, "/")
	}
	return c.BaseURL.ResolveReference(ref).String()
}

// request builds a request factory carrying the standard headers, the optional
// bearer token and a JSON body.
func (c *Client) request(method, endpoint, token string, body any) (func(context.Context) (*http.Request, error), error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = b
	}

	return func(ctx context.Context) (*http.Request, error) {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		r, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
		if err != nil {
			return nil, err
		}
		r.Header.Set("User-Agent", c.UserAgent)
		r.Header.Set("Content-Type", contentTypeJSON)
		r.Header.Set("Accept", contentTypeJSON)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		return r, nil
	}, nil
}

func (c *Client) send(ctx context.Context, op, method, endpoint, token string, body, out any) error {
	build, err := c.request(method, endpoint, token, body)
	if err != nil {
		return fmt.Errorf("examity: %s: %w", op, err)
	}
	if err := httpx.DoJSON(ctx, c.HTTP, build, out); err != nil {
		return fmt.Errorf("examity: %s failed: %w", op, err)
	}
	return nil
}
