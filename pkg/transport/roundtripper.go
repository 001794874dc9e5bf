package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// RoundTripper adapts a Transport to http.RoundTripper, so libraries that
// insist on an *http.Client (OAuth2, OIDC discovery) still go through it.
type RoundTripper struct {
	Transport Transport
}

// Client returns an *http.Client backed by t.
func Client(t Transport) *http.Client {
	return &http.Client{Transport: RoundTripper{Transport: t}}
}

func (rt RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		body = b
	}

	resp, err := rt.Transport.Send(req.Context(), &Request{
		Method: req.Method,
		Path:   req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	header := resp.Header
	if header == nil {
		header = http.Header{}
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		StatusCode:    resp.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       req,
	}, nil
}
