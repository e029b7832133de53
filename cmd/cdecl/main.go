// Binary cdecl reads the struct declarations of C headers.
//
// Examples:
//
//	# Print the structs of a header as YAML.
//	cdecl parse -format yaml include/api.h
//
//	# Show field offsets on 64 bit Windows.
//	cdecl layout -machine llp64 -struct packet include/net.h
//
// Setting CDECLDEBUG=true appends a stack trace to syntax errors.
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/andrewchambers/cdecl/internal/cmdutil"
	"github.com/andrewchambers/cdecl/internal/log"
)

const version = "cdecl version 0.2"

// Commands write their results here.
var stdout io.Writer = os.Stdout

func register(cmdr *subcommands.Commander) {
	cmdr.Register(cmdr.HelpCommand(), "")
	cmdr.Register(cmdr.FlagsCommand(), "")
	cmdr.Register(cmdr.CommandsCommand(), "")
	cmdr.Register(newParseCmd(), "")
	cmdr.Register(newLayoutCmd(), "")
	cmdr.Register(newTokensCmd(), "debugging")
	cmdr.Register(newVersionCmd(), "")
}

func main() {
	flag.StringVar(&cmdutil.ConfigPath, "config", "", "Read settings from this YAML `file`")
	verbose := flag.Bool("v", false, "Log progress to stderr")
	register(subcommands.DefaultCommander)
	flag.Parse()
	log.SetVerbose(*verbose)

	os.Exit(int(subcommands.Execute(context.Background())))
}
