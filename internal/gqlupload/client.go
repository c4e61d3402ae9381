package gqlupload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/JonMunkholm/registro/internal/logging"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 10 << 20

// Response is the decoded body of a GraphQL response.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// Client sends multipart GraphQL requests to a single endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *Limiter
	header     http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout. It applies to a copy of the HTTP
// client, so a client passed to WithHTTPClient is left unchanged.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithLimiter bounds concurrent submissions.
func WithLimiter(l *Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithBearerToken authenticates every request with token.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// NewClient creates a client for endpoint.
// Multipart requests are sent with Apollo-Require-Preflight so servers with
// CSRF prevention accept them.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		header:     make(http.Header),
	}
	c.header.Set("Apollo-Require-Preflight", "true")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts p as multipart/form-data and decodes the GraphQL response.
// Any failure, including a response with a non-empty "errors" array, is
// returned as a *TransportError.
func (c *Client) Submit(ctx context.Context, p *Payload) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, &TransportError{Err: err}
		}
		defer c.limiter.Release()
	}

	logger := logging.WithFields(ctx, "endpoint", c.endpoint, "files", len(p.Files))
	start := time.Now()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := p.WriteMultipart(mw)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, &TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Unblock the writer goroutine if the transport never drained the body.
		pr.CloseWithError(err)
		logger.Warn("graphql submission failed", "error", err)
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()
	pr.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var out Response
	decodeErr := json.Unmarshal(body, &out)

	logger.Info("graphql submission completed",
		"status", resp.StatusCode,
		"graphql_errors", len(out.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &TransportError{StatusCode: resp.StatusCode, Errors: out.Errors}
		if decodeErr != nil || len(out.Errors) == 0 {
			te.Err = errors.New(http.StatusText(resp.StatusCode))
		}
		return nil, te
	}
	if decodeErr != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if len(out.Errors) > 0 {
		return &out, &TransportError{StatusCode: resp.StatusCode, Errors: out.Errors}
	}

	return &out, nil
}
