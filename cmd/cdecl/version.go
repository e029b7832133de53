package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/andrewchambers/cdecl/internal/cmdutil"
)

type versionCmd struct {
	cmdutil.Info
}

func newVersionCmd() subcommands.Command {
	return &versionCmd{
		Info: cmdutil.NewInfo("version", "print the version", "Usage: version"),
	}
}

// Execute implements part of subcommands.Command.
func (c *versionCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	fmt.Fprintln(stdout, version)
	return subcommands.ExitSuccess
}
