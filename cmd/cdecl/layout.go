package main

import (
	"context"
	"flag"
	"fmt"

	"bitbucket.org/creachadair/stringset"
	"github.com/google/subcommands"
	"github.com/pkg/errors"

	"github.com/andrewchambers/cdecl/dump"
	"github.com/andrewchambers/cdecl/internal/cmdutil"
	"github.com/andrewchambers/cdecl/internal/log"
	"github.com/andrewchambers/cdecl/layout"
)

type layoutCmd struct {
	cmdutil.Info

	machine  string
	structs  cmdutil.StringSet
	prefixes cmdutil.StringSet
	includes cmdutil.StringList
	defines  cmdutil.Defines
}

func newLayoutCmd() subcommands.Command {
	const usage = `Usage: layout [options] <file.h>...

Print the size, alignment and field offsets of structs and unions.
Without -struct every struct with a complete layout is printed and the
ones that cannot be laid out are logged as warnings.`

	return &layoutCmd{
		Info: cmdutil.NewInfo("layout", "print struct field offsets", usage),
	}
}

// SetFlags implements part of subcommands.Command.
func (c *layoutCmd) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.machine, "machine", "", fmt.Sprintf("Target ABI, one of %v (default from config, else lp64)", layout.Machines()))
	fs.Var(&c.structs, "struct", "Only lay out these comma separated structs (repeatable)")
	fs.Var(&c.prefixes, "prefix", "Only lay out structs whose names start with one of these comma separated prefixes (repeatable)")
	fs.Var(&c.includes, "I", "Search this `dir` for included headers (repeatable)")
	fs.Var(&c.defines, "D", "Define the macro `NAME[=value]` before reading each file (repeatable)")
}

// Execute implements part of subcommands.Command.
func (c *layoutCmd) Execute(ctx context.Context, fs *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if fs.NArg() == 0 {
		return c.Usagef("no input files")
	}
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return c.Fail(err)
	}
	if c.machine != "" {
		cfg.Machine = c.machine
	}
	cfg.IncludePaths = append(cfg.IncludePaths, c.includes...)
	cfg.Prefixes = append(cfg.Prefixes, stringset.Set(c.prefixes).Elements()...)
	c.defines.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return c.Fail(err)
	}
	m := cfg.LayoutMachine()

	tus, err := parseFiles(cfg, fs.Args())
	if err != nil {
		return c.Fail(err)
	}
	names := stringset.New(cfg.Structs...)
	names.Update(stringset.Set(c.structs))
	explicit := names.Len() != 0
	if explicit {
		if tus, err = dump.Select(tus, names); err != nil {
			return c.Fail(err)
		}
	}
	if len(cfg.Prefixes) != 0 {
		for i, tu := range tus {
			tus[i] = dump.Prefixed(tu, cfg.Prefixes)
		}
	}

	first := true
	for i, tu := range tus {
		for _, s := range tu.Structs {
			l, err := layout.Compute(m, s)
			if err != nil {
				err = errors.Wrapf(err, "%s", fs.Arg(i))
				if explicit {
					return c.Fail(err)
				}
				log.Warningf("skipping %v", err)
				continue
			}
			if !first {
				fmt.Fprintln(stdout)
			}
			first = false
			if err := dump.Layout(stdout, l); err != nil {
				return c.Fail(errors.Wrap(err, "writing output"))
			}
		}
	}
	return subcommands.ExitSuccess
}
