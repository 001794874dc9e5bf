package info

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/hashicorp-forge/dwclient/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Show service and organization information"
}

func (c *Command) Help() string {
	return `Usage: dw info

  Prints the platform version and the contact information of every
  organization.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	return base.NewFlagSet(flag.NewFlagSet("info", flag.ContinueOnError))
}

func (c *Command) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	ctx := context.Background()

	cfg, err := c.LoadConfig()
	if err != nil {
		return c.Fail("loading config", err)
	}
	client, err := c.Connect(ctx, cfg, base.ConnectOptions{})
	if err != nil {
		return c.Fail("logging in", err)
	}

	p, err := client.Platform(ctx)
	if err != nil {
		return c.Fail("loading platform", err)
	}
	state, _ := client.Session().State()
	c.UI.Output(fmt.Sprintf("Service:  %s", cfg.URL))
	c.UI.Output(fmt.Sprintf("Platform: %s", p.Version))
	c.UI.Output(fmt.Sprintf("Session:  %s", state.Scheme))

	orgs, err := client.Organizations(ctx)
	if err != nil {
		return c.Fail("listing organizations", err)
	}
	for _, org := range orgs {
		info, err := org.Info(ctx)
		if err != nil {
			return c.Fail("loading organization info", err)
		}

		c.UI.Output("")
		c.UI.Output(fmt.Sprintf("Organization %s (%s)", org.Name, org.ID))
		for _, lines := range [][]string{info.CompanyNames, info.AddressLines} {
			for _, l := range lines {
				c.UI.Output("  " + l)
			}
		}

		keys := make([]string, 0, len(info.Additional))
		for k := range info.Additional {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := info.Additional[k]
			if s, ok := v.([]interface{}); ok {
				v = strings.Join(cast.ToStringSlice(s), ", ")
			}
			c.UI.Output(fmt.Sprintf("  %s: %s", k, cast.ToString(v)))
		}
	}
	return 0
}
