package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{BaseURL: "https://dms.example.com", Timeout: time.Second},
		},
		{
			name:    "missing base url",
			cfg:     Config{Timeout: time.Second},
			wantErr: "base_url is required",
		},
		{
			name:    "bad scheme",
			cfg:     Config{BaseURL: "ftp://dms.example.com", Timeout: time.Second},
			wantErr: "http or https",
		},
		{
			name:    "zero timeout",
			cfg:     Config{BaseURL: "https://dms.example.com"},
			wantErr: "timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveURL(t *testing.T) {
	base, err := url.Parse("https://dms.example.com/")
	require.NoError(t, err)

	got, err := ResolveURL(base, "/DocuWare/Platform", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://dms.example.com/DocuWare/Platform", got)

	got, err = ResolveURL(base, "https://id.example.com/connect/token", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://id.example.com/connect/token", got)

	got, err = ResolveURL(base, "/Query/DialogExpressionLink?dialogId=42", url.Values{"count": {"10"}})
	require.NoError(t, err)
	assert.Equal(t, "https://dms.example.com/Query/DialogExpressionLink?count=10&dialogId=42", got)
}

func TestHTTPTransport_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/DocuWare/Platform/Echo", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "dwclient-test", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "v", r.Header.Get("X-Custom"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tr, err := New(&Config{BaseURL: server.URL, UserAgent: "dwclient-test"})
	require.NoError(t, err)

	resp, err := tr.Send(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/DocuWare/Platform/Echo",
		Header: http.Header{"X-Custom": {"v"}},
		Body:   []byte(`{"a":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.NoError(t, CheckStatus("POST", resp))
}

func TestHTTPTransport_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	tr, err := New(&Config{BaseURL: baseURL})
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, IsRetryable(err))
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  error
		retryable bool
		notFound  bool
	}{
		{name: "ok", status: 200},
		{name: "no content", status: 204},
		{name: "not found", status: 404, wantKind: ErrStatus, notFound: true},
		{name: "forbidden", status: 403, wantKind: ErrStatus},
		{name: "server error", status: 500, wantKind: ErrTransport, retryable: true},
		{name: "bad gateway", status: 502, wantKind: ErrTransport, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStatus("GET", &Response{StatusCode: tt.status, URL: "https://x/y", Body: []byte("nope")})
			if tt.wantKind == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantKind))
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.notFound, IsNotFound(err))
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

type recordingTransport struct {
	got *Request
}

func (r *recordingTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	r.got = req
	return &Response{StatusCode: 201, Header: http.Header{"X-A": {"b"}}, Body: []byte("created")}, nil
}

func TestRoundTripper(t *testing.T) {
	rec := &recordingTransport{}
	client := Client(rec)

	resp, err := client.Post("https://id.example.com/token", "application/x-www-form-urlencoded", strings.NewReader("a=b"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotNil(t, rec.got)
	assert.Equal(t, http.MethodPost, rec.got.Method)
	assert.Equal(t, "https://id.example.com/token", rec.got.Path)
	assert.Equal(t, "a=b", string(rec.got.Body))
	assert.Equal(t, "application/x-www-form-urlencoded", rec.got.Header.Get("Content-Type"))

	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "b", resp.Header.Get("X-A"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "created", string(body))
}
