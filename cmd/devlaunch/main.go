package main

import (
	"os"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/cli"
)

// Version information set at build time
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	if err := cli.Execute(); err != nil {
		os.Exit(apperr.ExitCode(err))
	}
}
