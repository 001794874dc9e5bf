package main

import (
	"os"

	"github.com/hashicorp-forge/dwclient/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
