// Package assistant implements the HTTP+JSON client for the assistant
// endpoint: it submits one utterance (plus optional credential) per call and
// translates transport and protocol failures into a uniform error taxonomy
// the dialog state machine can render.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of a response body is read. The assistant
// replies are short sentences; anything larger is a misbehaving backend.
const maxResponseBytes = 1 << 20

// Querier is the interface the dialog consumes. Implemented by [Client] and
// by the mock subpackage.
type Querier interface {
	// Ask submits req and returns the parsed response. Failure modes are
	// [ErrNetwork] (wrapped) and [*ProtocolError]; no other error kinds are
	// produced.
	Ask(ctx context.Context, req Request) (Response, error)
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Useful in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout. Defaults to 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// Client posts assistant requests to a fixed endpoint URL.
// Client is safe for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a Client for the given endpoint URL
// (e.g., "http://localhost:8000/assistant").
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("assistant: endpoint must not be empty")
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Ask implements [Querier].
func (c *Client) Ask(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("assistant: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("assistant: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return Response{}, &ProtocolError{
			Status: httpResp.StatusCode,
			Detail: errorDetail(body),
		}
	}

	return parseResponse(body)
}

// Compile-time assertion that Client satisfies Querier.
var _ Querier = (*Client)(nil)
