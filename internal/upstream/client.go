package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "zeek-gateway/0.1"

	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second

	maxBodyBytes = 4 << 20 // 4 MiB
)

// Client is the shared HTTP transport used by every adapter. Deadlines are
// applied per call via context, not on the underlying http.Client, so one
// transport serves routes with different timeout budgets.
type Client struct {
	http *http.Client
}

// NewClient constructs a client with a tuned shared transport.
func NewClient() *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{http: &http.Client{Transport: transport}}
}

// NewClientWithHTTP wraps an existing http.Client, primarily for tests that
// intercept the transport.
func NewClientWithHTTP(h *http.Client) *Client {
	return &Client{http: h}
}

// HTTP exposes the underlying http.Client.
func (c *Client) HTTP() *http.Client {
	return c.http
}

// Response captures one upstream reply. Status is mirrored to the caller
// without translation.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// IsJSON reports whether the upstream declared a JSON content type.
func (r *Response) IsJSON() bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeJSON)
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Get issues a GET with the given per-call timeout, query parameters, and
// headers. A transport-level failure (connection, DNS, timeout) is returned
// as an error; vendor error statuses are not.
func (c *Client) Get(ctx context.Context, timeout time.Duration, rawURL string, query url.Values, headers map[string]string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if len(query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	return c.do(req, headers)
}

// PostJSON issues a POST with a JSON-encoded payload.
func (c *Client) PostJSON(ctx context.Context, timeout time.Duration, rawURL string, payload any, headers map[string]string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)

	return c.do(req, headers)
}

func (c *Client) do(req *http.Request, headers map[string]string) (*Response, error) {
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}
