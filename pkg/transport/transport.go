package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// Request is a single outbound call. Path is either relative to the base URL
// or an absolute URL taken from a response link.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Query  url.Values
	Body   []byte
}

// Response is the fully read result of a request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Transport executes requests. It knows nothing about authentication or
// query semantics.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport implements Transport on top of net/http.
type HTTPTransport struct {
	config *Config
	client *http.Client
	base   *url.URL
	logger hclog.Logger
}

var _ Transport = (*HTTPTransport)(nil)

// New creates a new HTTP transport.
func New(cfg *Config) (*HTTPTransport, error) {
	defaults := DefaultConfig()
	if cfg.TLSVerify == nil {
		cfg.TLSVerify = defaults.TLSVerify
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transport config: %w", err)
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}

	return &HTTPTransport{
		config: cfg,
		client: cfg.NewHTTPClient(),
		base:   base,
		logger: cfg.Logger.Named("transport"),
	}, nil
}

// BaseURL returns the configured service root.
func (t *HTTPTransport) BaseURL() string {
	return t.base.String()
}

// ResolveURL joins path onto the base URL and merges query into any query
// already present on path.
func ResolveURL(base *url.URL, path string, query url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}

	u := base.ResolveReference(ref)
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// Send executes req and reads the whole response body.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	endpoint, err := ResolveURL(t.base, req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set("User-Agent", t.config.UserAgent)

	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	t.logger.Debug("sending request",
		"method", req.Method,
		"path", httpReq.URL.Path,
		"request_id", requestID,
	)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &Error{
			Op:    req.Method,
			URL:   endpoint,
			Err:   ErrTransport,
			Cause: err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{
			Op:    req.Method,
			URL:   endpoint,
			Err:   ErrTransport,
			Cause: fmt.Errorf("failed to read response: %w", err),
		}
	}

	t.logger.Debug("received response",
		"method", req.Method,
		"path", httpReq.URL.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
		URL:        endpoint,
	}, nil
}
