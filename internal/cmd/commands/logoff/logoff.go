package logoff

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp-forge/dwclient/internal/cmd/base"
	"github.com/hashicorp-forge/dwclient/pkg/session"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "End the stored session"
}

func (c *Command) Help() string {
	return `Usage: dw logoff

  Ends the stored session on the service and removes it locally. The local
  session is removed even when the service cannot be reached.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	return base.NewFlagSet(flag.NewFlagSet("logoff", flag.ContinueOnError))
}

func (c *Command) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	store, err := c.Store()
	if err != nil {
		return c.Fail("logging off", err)
	}
	persisted, err := store.Load()
	if err != nil {
		return c.Fail("logging off", err)
	}
	if persisted == nil {
		c.UI.Info("Not logged in")
		return 0
	}

	var result *multierror.Error

	cfg, err := c.LoadConfig()
	if err != nil {
		result = multierror.Append(result, err)
	} else {
		client, err := c.Connect(context.Background(), cfg, base.ConnectOptions{NoPrompt: true, NoRelogin: true})
		switch {
		case errors.Is(err, session.ErrSessionExpired), errors.Is(err, session.ErrAuthentication):
			// Already invalid on the service side.
		case err != nil:
			result = multierror.Append(result, err)
		default:
			if err := client.Logoff(context.Background()); err != nil {
				result = multierror.Append(result, fmt.Errorf("service logoff: %w", err))
			}
		}
	}

	if err := store.Remove(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return c.Fail("logging off", err)
	}
	c.UI.Info("Logged off")
	return 0
}
