package version

import (
	"github.com/hashicorp-forge/dwclient/internal/cmd/base"
	"github.com/hashicorp-forge/dwclient/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return "Usage: dw version\n\n  Prints the version of dw."
}

func (c *Command) Run(args []string) int {
	c.UI.Output("dw " + version.Version)
	return 0
}
