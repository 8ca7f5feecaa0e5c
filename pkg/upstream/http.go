package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// apiKeyHeader carries the credential on every upstream call.
	apiKeyHeader = "x-goog-api-key"

	// maxErrorBody caps how much of an error response body is retained
	// for logging.
	maxErrorBody = 2048
)

// HTTPCaller implements Caller over a pooled HTTP client against a
// Gemini-style generative API: generation is a POST to
// {base}/models/{model}:generateContent and the probe is a GET of
// {base}/models, both authenticated through a key header.
type HTTPCaller struct {
	baseURL   string
	probePath string
	client    *http.Client
}

// HTTPCallerOptions configures NewHTTPCaller.
type HTTPCallerOptions struct {
	// BaseURL is the upstream API root, e.g.
	// "https://generativelanguage.googleapis.com/v1beta".
	BaseURL string

	// Timeout bounds a single attempt, including body read. The
	// dispatcher may impose a tighter deadline through the context.
	Timeout time.Duration

	// ProbePath is the path probed for key validation, relative to
	// BaseURL. Defaults to "/models".
	ProbePath string

	// MaxIdleConns sizes the connection pool. Zero keeps the transport
	// default.
	MaxIdleConns int
}

// NewHTTPCaller builds a caller with its own pooled transport.
func NewHTTPCaller(opts HTTPCallerOptions) (*HTTPCaller, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream: base url must be http or https, got %q", opts.BaseURL)
	}

	probePath := opts.ProbePath
	if probePath == "" {
		probePath = "/models"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.MaxIdleConns > 0 {
		transport.MaxIdleConns = opts.MaxIdleConns
		transport.MaxIdleConnsPerHost = opts.MaxIdleConns
	}

	return &HTTPCaller{
		baseURL:   strings.TrimRight(base.String(), "/"),
		probePath: probePath,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
	}, nil
}

// Call relays a generation request upstream with the given key.
func (c *HTTPCaller) Call(ctx context.Context, key string, req *Request) (*Result, error) {
	if req.Model == "" {
		return nil, &StatusError{StatusCode: http.StatusBadRequest, Body: "model name is required"}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(req.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(req.Payload))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, key)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readStatusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}
	return &Result{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Probe checks the key by listing models, the cheapest authenticated call
// the API offers. The response body is discarded.
func (c *HTTPCaller) Probe(ctx context.Context, key string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.probePath, nil)
	if err != nil {
		return fmt.Errorf("upstream: build probe request: %w", err)
	}
	httpReq.Header.Set(apiKeyHeader, key)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// classifyTransport wraps a client error as a TransportError, marking
// deadline and timeout conditions so they classify as transient timeouts.
func classifyTransport(err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if !timeout && errors.As(err, &netErr) {
		timeout = netErr.Timeout()
	}
	return &TransportError{Timeout: timeout, Err: err}
}

// readStatusError drains a bounded slice of the error body for diagnostics.
func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
