package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sinkingmoon/bubbles/internal/debug"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 1 << 22
)

// Transport performs one HTTP exchange and returns the status code and raw
// response body. Connection, DNS and timeout failures are returned as errors;
// any HTTP status, including 4xx and 5xx, is a successful exchange.
type Transport interface {
	Perform(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error)

// Perform calls f.
func (f TransportFunc) Perform(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error) {
	return f(ctx, method, url, headers, body)
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	HTTP        *http.Client
	UserAgent   string
	MaxBodySize int64
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport whose client gives up after timeout.
// A zero timeout selects DefaultTimeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTransport{
		HTTP:        &http.Client{Timeout: timeout},
		MaxBodySize: DefaultMaxBodySize,
	}
}

// Perform implements Transport.
func (t *HTTPTransport) Perform(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error) {
	start := time.Now()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if t.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}

	client := t.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if debug.IsEnabled(ctx) {
			slog.Debug("request failed", "method", method, "url", url, "error", err)
		}
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	limit := t.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if debug.IsEnabled(ctx) {
		slog.Debug("request complete", "method", method, "url", url, "status", resp.StatusCode, "bytes", len(respBody), "duration", time.Since(start))
	}
	return resp.StatusCode, respBody, nil
}
