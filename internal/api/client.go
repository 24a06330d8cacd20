// Package api is the HTTP client for a remote devlaunch server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/catalog"
	"github.com/fastertools/devlaunch/internal/resolver"
)

// DefaultTimeout bounds each API request.
const DefaultTimeout = 30 * time.Second

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the resolution API.
type Client struct {
	baseURL   string
	http      HTTPDoer
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.http = doer
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, apperr.Input("api", "no API URL configured")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, apperr.Input("api", "invalid API URL %q", baseURL)
	}

	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: "devlaunch",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ resolver.Catalog = (*Client)(nil)

// Resolve posts prompt to /resolve.
func (c *Client) Resolve(ctx context.Context, prompt string) (resolver.Result, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return resolver.Result{}, err
	}

	var res resolver.Result
	if err := c.doJSON(ctx, http.MethodPost, "/resolve", bytes.NewReader(body), &res); err != nil {
		return resolver.Result{}, err
	}
	if res.Files == nil {
		res.Files = []string{}
	}
	return res, nil
}

// Get downloads the object behind key through /download.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := c.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Open streams the object behind key from /download. The caller closes it.
func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, "/download?key="+url.QueryEscape(key), nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Catalog fetches the catalog index from /templates.
func (c *Client) Catalog(ctx context.Context) (catalog.Index, error) {
	var idx catalog.Index
	if err := c.doJSON(ctx, http.MethodGet, "/templates", nil, &idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.doJSON(ctx, http.MethodGet, "/healthz", nil, &out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.KindFormat, "api", "unexpected response format", err)
	}
	return nil
}

// do sends the request and converts non-2xx responses into apperr errors.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "api", "request to "+c.baseURL+" failed", err).
			WithFix("check that the devlaunch server is running and api.url is correct")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()
	return nil, responseError(resp)
}

func responseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = resp.Status
	}
	return apperr.New(kindForStatus(resp.StatusCode), "api", msg)
}

func kindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusBadRequest:
		return apperr.KindInput
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusUnprocessableEntity:
		return apperr.KindFormat
	case http.StatusBadGateway:
		return apperr.KindBackend
	default:
		return apperr.KindInternal
	}
}
