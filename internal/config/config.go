// Package config loads and writes the dw CLI configuration file.
//
// Example configuration:
//
//	url               = "https://example.docuware.cloud"
//	username          = "jdoe"
//	organization      = "Acme Corp"
//	scheme            = "oauth2"
//	timeout           = "30s"
//	tls_verify        = true
//	page_size         = 50
//	retry_max_elapsed = "1m"
//
// String values may call env("NAME") to read an environment variable.
// Passwords are never stored here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/hashicorp-forge/dwclient/internal/version"
	"github.com/hashicorp-forge/dwclient/pkg/session"
	"github.com/hashicorp-forge/dwclient/pkg/transport"
)

const (
	// FileName is the configuration file inside the config directory.
	FileName = "config.hcl"

	// DirEnv overrides the default config directory.
	DirEnv = "DW_CONFIG_DIR"

	DefaultPageSize        = 50
	DefaultRetryMaxElapsed = time.Minute
)

// ErrNotFound is returned by Load when no configuration file exists.
var ErrNotFound = errors.New("configuration not found, run \"dw login\" first")

// Config is the contents of the configuration file.
type Config struct {
	URL             string `hcl:"url"`
	Username        string `hcl:"username,optional"`
	Organization    string `hcl:"organization,optional"`
	Scheme          string `hcl:"scheme,optional"`
	Timeout         string `hcl:"timeout,optional"`
	TLSVerify       *bool  `hcl:"tls_verify,optional"`
	PageSize        int    `hcl:"page_size,optional"`
	RetryMaxElapsed string `hcl:"retry_max_elapsed,optional"`
}

// DefaultDir returns the config directory: $DW_CONFIG_DIR, or "dwclient"
// under the user's config directory.
func DefaultDir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find user config directory: %w", err)
	}
	return filepath.Join(dir, "dwclient"), nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var result *multierror.Error

	err := validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Scheme, validation.In("", "auto", "cookie", "oauth2")),
		validation.Field(&c.PageSize, validation.Min(0)),
	)
	if err != nil {
		result = multierror.Append(result, err)
	}

	if _, err := parseDuration(c.Timeout, 0); err != nil {
		result = multierror.Append(result, fmt.Errorf("timeout: %w", err))
	}
	if _, err := parseDuration(c.RetryMaxElapsed, 0); err != nil {
		result = multierror.Append(result, fmt.Errorf("retry_max_elapsed: %w", err))
	}

	return result.ErrorOrNil()
}

// Transport returns the transport configuration.
func (c *Config) Transport() (*transport.Config, error) {
	timeout, err := parseDuration(c.Timeout, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	return &transport.Config{
		BaseURL:   c.URL,
		TLSVerify: c.TLSVerify,
		Timeout:   timeout,
		UserAgent: "dwclient/" + version.Version,
	}, nil
}

// SessionScheme returns the configured authentication scheme.
func (c *Config) SessionScheme() session.Scheme {
	s, err := session.ParseScheme(c.Scheme)
	if err != nil {
		return session.SchemeAuto
	}
	return s
}

// Pages returns the configured page size.
func (c *Config) Pages() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}

// RetryWindow returns how long transport failures are retried.
func (c *Config) RetryWindow() time.Duration {
	d, err := parseDuration(c.RetryMaxElapsed, DefaultRetryMaxElapsed)
	if err != nil {
		return DefaultRetryMaxElapsed
	}
	return d
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative, got %s", s)
	}
	return d, nil
}

// EnvFunc is the env("NAME") function available in configuration files.
var EnvFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

// Load reads the configuration file in dir.
func Load(fs afero.Fs, dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)

	src, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	ctx := &hcl.EvalContext{
		Functions: map[string]function.Function{"env": EnvFunc},
	}
	if err := hclsimple.Decode(path, src, ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to dir, creating the directory if needed.
func Save(fs afero.Fs, dir string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("url", cty.StringVal(cfg.URL))
	setString(body, "username", cfg.Username)
	setString(body, "organization", cfg.Organization)
	setString(body, "scheme", cfg.Scheme)
	setString(body, "timeout", cfg.Timeout)
	if cfg.TLSVerify != nil {
		body.SetAttributeValue("tls_verify", cty.BoolVal(*cfg.TLSVerify))
	}
	if cfg.PageSize > 0 {
		body.SetAttributeValue("page_size", cty.NumberIntVal(int64(cfg.PageSize)))
	}
	setString(body, "retry_max_elapsed", cfg.RetryMaxElapsed)

	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(fs, filepath.Join(dir, FileName), f.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func setString(body *hclwrite.Body, name, value string) {
	if value != "" {
		body.SetAttributeValue(name, cty.StringVal(value))
	}
}
