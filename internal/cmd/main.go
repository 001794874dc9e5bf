package cmd

import (
	"bufio"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/dwclient/internal/version"
)

// LogLevelEnv sets the log level when -log-level is not given.
const LogLevelEnv = "DW_LOG_LEVEL"

// Main runs the CLI with the given arguments and returns the exit code.
func Main(args []string) int {
	return run(args, &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}, afero.NewOsFs())
}

func run(args []string, ui cli.Ui, fs afero.Fs) int {
	cliName := args[0]

	g, args := globalFlags(args[1:])
	if g.logLevel == "" {
		g.logLevel = os.Getenv(LogLevelEnv)
	}
	level := hclog.LevelFromString(g.logLevel)
	if level == hclog.NoLevel {
		level = hclog.Warn
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:   cliName,
		Level:  level,
		Output: os.Stderr,
	})

	if len(args) == 1 &&
		(args[0] == "-version" ||
			args[0] == "-v") {
		args = []string{"version"}
	}

	initCommands(log, ui, fs, g.configDir)

	c := &cli.CLI{
		Name:     cliName,
		Args:     args,
		Version:  version.Version,
		Commands: Commands,
	}

	exitCode, err := c.Run()
	if err != nil {
		ui.Error(err.Error())
		return 1
	}

	return exitCode
}

type global struct {
	configDir string
	logLevel  string
}

// globalFlags consumes -config-dir and -log-level given before the
// subcommand.
func globalFlags(args []string) (global, []string) {
	var g global
	for len(args) > 0 {
		name, value, hasValue := strings.Cut(strings.TrimLeft(args[0], "-"), "=")
		if !strings.HasPrefix(args[0], "-") || (name != "config-dir" && name != "log-level") {
			break
		}
		args = args[1:]
		if !hasValue && len(args) > 0 {
			value, args = args[0], args[1:]
		}

		switch name {
		case "config-dir":
			g.configDir = value
		case "log-level":
			g.logLevel = value
		}
	}
	return g, args
}
