package login

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/hashicorp-forge/dwclient/internal/cmd/base"
	"github.com/hashicorp-forge/dwclient/internal/config"
)

type Command struct {
	*base.Command

	flagURL          string
	flagUsername     string
	flagPassword     string
	flagOrganization string
	flagScheme       string
	flagTimeout      string
	flagInsecure     bool
}

func (c *Command) Synopsis() string {
	return "Log in and store the session"
}

func (c *Command) Help() string {
	return `Usage: dw login [options]

  Logs in to the document-management service and stores the session for
  later commands. Connection settings given as flags are written to the
  configuration file; the password never is.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("login", flag.ContinueOnError))

	f.StringVar(
		&c.flagURL, "url", "",
		"Service URL, e.g. https://example.docuware.cloud.",
	)
	f.StringVar(
		&c.flagUsername, "username", "",
		"User name.",
	)
	f.StringVar(
		&c.flagPassword, "password", "",
		"[DW_PASSWORD] Password. Asked for when not set.",
	)
	f.StringVar(
		&c.flagOrganization, "organization", "",
		"Organization name.",
	)
	f.StringVar(
		&c.flagScheme, "scheme", "",
		"Authentication scheme: auto, cookie or oauth2.",
	)
	f.StringVar(
		&c.flagTimeout, "timeout", "",
		"Request timeout, e.g. 30s.",
	)
	f.BoolVar(
		&c.flagInsecure, "insecure", false,
		"Skip TLS certificate verification.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg, err := c.LoadConfig()
	if errors.Is(err, config.ErrNotFound) {
		cfg, err = &config.Config{}, nil
	}
	if err != nil {
		return c.Fail("loading config", err)
	}
	c.apply(cfg)

	if cfg.URL == "" {
		cfg.URL, err = c.UI.Ask("Service URL:")
		if err != nil {
			return c.Fail("reading url", err)
		}
	}
	if cfg.Username == "" {
		cfg.Username, err = c.UI.Ask("User name:")
		if err != nil {
			return c.Fail("reading user name", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return c.Fail("validating config", err)
	}

	client, err := c.Connect(context.Background(), cfg, base.ConnectOptions{
		Password: c.flagPassword,
		Fresh:    true,
	})
	if err != nil {
		return c.Fail("logging in", err)
	}

	dir, err := c.Dir()
	if err != nil {
		return c.Fail("saving config", err)
	}
	if err := config.Save(c.Fs, dir, cfg); err != nil {
		return c.Fail("saving config", err)
	}

	p, err := client.Platform(context.Background())
	if err != nil {
		return c.Fail("loading platform", err)
	}
	c.UI.Info(fmt.Sprintf("Logged in to %s as %s (platform %s)", cfg.URL, cfg.Username, p.Version))
	return 0
}

// apply overrides cfg with the flags that were set.
func (c *Command) apply(cfg *config.Config) {
	if c.flagURL != "" {
		cfg.URL = c.flagURL
	}
	if c.flagUsername != "" {
		cfg.Username = c.flagUsername
	}
	if c.flagOrganization != "" {
		cfg.Organization = c.flagOrganization
	}
	if c.flagScheme != "" {
		cfg.Scheme = c.flagScheme
	}
	if c.flagTimeout != "" {
		cfg.Timeout = c.flagTimeout
	}
	if c.flagInsecure {
		verify := false
		cfg.TLSVerify = &verify
	}
}
