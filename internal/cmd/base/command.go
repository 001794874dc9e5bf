package base

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/dwclient/internal/config"
	"github.com/hashicorp-forge/dwclient/internal/sessionstore"
	"github.com/hashicorp-forge/dwclient/pkg/docuware"
	"github.com/hashicorp-forge/dwclient/pkg/session"
	"github.com/hashicorp-forge/dwclient/pkg/transport"
)

// PasswordEnv supplies the password without a prompt.
const PasswordEnv = "DW_PASSWORD"

// Command is embedded by every CLI command.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui
	Fs  afero.Fs

	// ConfigDir overrides config.DefaultDir.
	ConfigDir string
}

// Dir returns the config directory.
func (c *Command) Dir() (string, error) {
	if c.ConfigDir != "" {
		return c.ConfigDir, nil
	}
	return config.DefaultDir()
}

// LoadConfig reads the configuration file.
func (c *Command) LoadConfig() (*config.Config, error) {
	dir, err := c.Dir()
	if err != nil {
		return nil, err
	}
	return config.Load(c.Fs, dir)
}

// Store returns the session store of the config directory.
func (c *Command) Store() (*sessionstore.Store, error) {
	dir, err := c.Dir()
	if err != nil {
		return nil, err
	}
	return sessionstore.New(c.Fs, dir, c.Log), nil
}

// ConnectOptions controls Connect.
type ConnectOptions struct {
	// Password is used for a full login. When empty it is read from
	// DW_PASSWORD, and asked for only if no persisted session exists.
	Password string

	// Fresh ignores any persisted session.
	Fresh bool

	// NoPrompt never asks for a password.
	NoPrompt bool

	// NoRelogin returns the rejection of a stored session instead of
	// logging in again.
	NoRelogin bool
}

// Connect builds a client from cfg and logs it in. Every new session state
// is written to the session store.
func (c *Command) Connect(ctx context.Context, cfg *config.Config, opts ConnectOptions) (*docuware.Client, error) {
	store, err := c.Store()
	if err != nil {
		return nil, err
	}

	var persisted *session.State
	if !opts.Fresh {
		if persisted, err = store.Load(); err != nil {
			return nil, err
		}
	}

	password := opts.Password
	if password == "" {
		password = os.Getenv(PasswordEnv)
	}
	resumable := persisted != nil &&
		(!persisted.Expired(time.Now(), session.DefaultExpiryLeeway) || persisted.RefreshToken != "")
	if password == "" && !resumable && !opts.NoPrompt {
		if password, err = c.UI.AskSecret(fmt.Sprintf("Password for %s:", cfg.Username)); err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
	}

	var cred session.Credential
	if password != "" {
		cred, err = session.NewCredential(cfg.URL, cfg.Organization, cfg.Username, password)
	} else {
		cred, err = session.ResumeCredential(cfg.URL, cfg.Organization, cfg.Username)
	}
	if err != nil {
		return nil, err
	}

	tc, err := cfg.Transport()
	if err != nil {
		return nil, err
	}
	tc.Logger = c.Log
	tr, err := transport.New(tc)
	if err != nil {
		return nil, err
	}

	client := docuware.New(tr, cred, &docuware.Config{
		Scheme: cfg.SessionScheme(),
		Session: session.Options{
			OnStateChange: func(s session.State) {
				if err := store.Save(s); err != nil {
					c.Log.Warn("failed to persist session", "error", err)
				}
			},
		},
		Logger: c.Log,
	})

	_, err = client.Login(ctx, persisted)
	if err != nil && persisted != nil && errors.Is(err, session.ErrSessionExpired) {
		// The service rejected the stored session.
		if rmErr := store.Remove(); rmErr != nil {
			c.Log.Warn("failed to remove stale session", "error", rmErr)
		}
		if password != "" && !opts.NoRelogin {
			c.Log.Info("stored session rejected, logging in again")
			_, err = client.Login(ctx, nil)
		}
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Fail reports err and returns the exit code for it.
func (c *Command) Fail(action string, err error) int {
	msg := strings.TrimSpace(err.Error())
	if errors.Is(err, session.ErrSessionExpired) {
		msg += ` (run "dw login")`
	}
	c.UI.Error(fmt.Sprintf("error %s: %s", action, msg))
	return 1
}
