package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/dwclient/internal/cmd/base"
	"github.com/hashicorp-forge/dwclient/internal/cmd/commands/info"
	"github.com/hashicorp-forge/dwclient/internal/cmd/commands/list"
	"github.com/hashicorp-forge/dwclient/internal/cmd/commands/login"
	"github.com/hashicorp-forge/dwclient/internal/cmd/commands/logoff"
	"github.com/hashicorp-forge/dwclient/internal/cmd/commands/search"
	"github.com/hashicorp-forge/dwclient/internal/cmd/commands/version"
)

// Commands is the mapping of all available dw commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui, fs afero.Fs, configDir string) {
	b := &base.Command{
		Log:       log,
		UI:        ui,
		Fs:        fs,
		ConfigDir: configDir,
	}

	Commands = map[string]cli.CommandFactory{
		"info": func() (cli.Command, error) {
			return &info.Command{Command: b}, nil
		},
		"list": func() (cli.Command, error) {
			return &list.Command{Command: b}, nil
		},
		"login": func() (cli.Command, error) {
			return &login.Command{Command: b}, nil
		},
		"logoff": func() (cli.Command, error) {
			return &logoff.Command{Command: b}, nil
		},
		"search": func() (cli.Command, error) {
			return &search.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
