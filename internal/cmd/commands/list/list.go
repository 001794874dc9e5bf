package list

import (
	"context"
	"flag"
	"fmt"

	"github.com/hashicorp-forge/dwclient/internal/cmd/base"
	"github.com/hashicorp-forge/dwclient/pkg/docuware"
)

type Command struct {
	*base.Command

	flagOrganization string
	flagFileCabinet  string
}

func (c *Command) Synopsis() string {
	return "List organizations, file cabinets and dialogs"
}

func (c *Command) Help() string {
	return `Usage: dw list [options]

  Lists every dialog of every file cabinet the user can see.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("list", flag.ContinueOnError))

	f.StringVar(
		&c.flagOrganization, "organization", "",
		"Only list this organization (id or name).",
	)
	f.StringVar(
		&c.flagFileCabinet, "file-cabinet", "",
		"Only list this file cabinet (id or name).",
	)

	return f
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

	var orgs []*docuware.Organization
	if c.flagOrganization != "" {
		org, err := client.Organization(ctx, c.flagOrganization)
		if err != nil {
			return c.Fail("finding organization", err)
		}
		orgs = append(orgs, org)
	} else if orgs, err = client.Organizations(ctx); err != nil {
		return c.Fail("listing organizations", err)
	}

	var rows [][]string
	for _, org := range orgs {
		cabinets, err := c.cabinets(ctx, org)
		if err != nil {
			return c.Fail("listing file cabinets", err)
		}
		for _, fc := range cabinets {
			dialogs, err := fc.Dialogs(ctx)
			if err != nil {
				return c.Fail("listing dialogs", err)
			}
			if len(dialogs) == 0 {
				rows = append(rows, []string{org.Name, fc.Name, "", ""})
			}
			for _, d := range dialogs {
				rows = append(rows, []string{org.Name, fc.Name, d.Name, d.Type})
			}
		}
	}

	c.UI.Output(base.Table([]string{"Organization", "File cabinet", "Dialog", "Type"}, rows))
	return 0
}

func (c *Command) cabinets(ctx context.Context, org *docuware.Organization) ([]*docuware.FileCabinet, error) {
	if c.flagFileCabinet == "" {
		return org.FileCabinets(ctx)
	}
	fc, err := org.FileCabinet(ctx, c.flagFileCabinet)
	if err != nil {
		return nil, err
	}
	return []*docuware.FileCabinet{fc}, nil
}
