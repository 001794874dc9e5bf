package transport

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Config contains configuration for the HTTP transport.
//
// Example configuration (HCL):
//
//	url        = "https://example.docuware.cloud"
//	timeout    = "30s"
//	tls_verify = true
type Config struct {
	// BaseURL is the root of the document-management service.
	// Example: "https://example.docuware.cloud"
	BaseURL string

	// TLSVerify controls TLS certificate verification.
	// Set to false only for development/testing with self-signed certs.
	TLSVerify *bool

	// Timeout for a single request.
	// Default: 30 seconds
	Timeout time.Duration

	// UserAgent sent with every request.
	UserAgent string

	// Logger (optional).
	Logger hclog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	tlsVerify := true
	return &Config{
		TLSVerify: &tlsVerify,
		Timeout:   30 * time.Second,
		UserAgent: "dwclient",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https scheme, got: %s", parsedURL.Scheme)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %v", c.Timeout)
	}

	return nil
}

// NewHTTPClient creates a configured HTTP client for the transport.
func (c *Config) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if c.TLSVerify != nil && !*c.TLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   c.Timeout,
		Transport: transport,
	}
}
