package httpx

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
)

// LoggingTransport logs request and response bodies at info level; wrapping a
// client with it is the opt-in. Bodies are buffered and replaced so the wrapped round trip sees the same bytes.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var reqBody []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		reqBody = b
		req = req.Clone(req.Context())
		req.Body = io.NopCloser(bytes.NewReader(b))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		}
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		logger.Info("api_request",
			"method", req.Method,
			"url", req.URL.String(),
			"req_body", snippet(reqBody, 4000),
			"error", err,
		)
		return nil, err
	}

	var resBody []byte
	if resp.Body != nil {
		b, rerr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resBody = b
		resp.Body = io.NopCloser(bytes.NewReader(b))
		if rerr != nil {
			// surface the read failure to the caller on its own read
			resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(b), errReader{rerr}))
		}
	}

	logger.Info("api_request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"req_body", snippet(reqBody, 4000),
		"res_body", snippet(resBody, 4000),
	)
	return resp, nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
