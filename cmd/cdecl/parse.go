package main

import (
	"context"
	"flag"
	"fmt"

	"bitbucket.org/creachadair/stringset"
	"github.com/google/subcommands"
	"github.com/pkg/errors"

	"github.com/andrewchambers/cdecl/config"
	"github.com/andrewchambers/cdecl/dump"
	"github.com/andrewchambers/cdecl/internal/cmdutil"
	"github.com/andrewchambers/cdecl/parse"
)

type parseCmd struct {
	cmdutil.Info

	format   string
	structs  cmdutil.StringSet
	prefixes cmdutil.StringSet
	includes cmdutil.StringList
	defines  cmdutil.Defines
	noFollow bool
}

func newParseCmd() subcommands.Command {
	const usage = `Usage: parse [options] <file.h>...

Parse the struct, union, enum, typedef, function and global variable
declarations of each header and print them in the order the files are given.
Macros and conditional groups are expanded first, -D defines extra macros.
With several files and the text format, each file's output starts with a
"// file" line. JSON output is one document per file, YAML documents are
separated by "---".`

	return &parseCmd{
		Info: cmdutil.NewInfo("parse", "print the declarations of C headers", usage),
	}
}

// SetFlags implements part of subcommands.Command.
func (c *parseCmd) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "format", "", "Output format: text, json or yaml (default from config, else text)")
	fs.Var(&c.structs, "struct", "Only print these comma separated declarations (repeatable)")
	fs.Var(&c.prefixes, "prefix", "Only print declarations whose names start with one of these comma separated prefixes (repeatable)")
	fs.Var(&c.includes, "I", "Search this `dir` for included headers (repeatable)")
	fs.Var(&c.defines, "D", "Define the macro `NAME[=value]` before reading each file (repeatable)")
	fs.BoolVar(&c.noFollow, "no-includes", false, "Skip #include lines")
}

// settings applies the flags on top of the config file.
func (c *parseCmd) settings() (*config.Config, error) {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return nil, err
	}
	if c.format != "" {
		cfg.Format = c.format
	}
	cfg.IncludePaths = append(cfg.IncludePaths, c.includes...)
	if c.noFollow {
		cfg.FollowIncludes = false
	}
	cfg.Structs = append(cfg.Structs, stringset.Set(c.structs).Elements()...)
	cfg.Prefixes = append(cfg.Prefixes, stringset.Set(c.prefixes).Elements()...)
	c.defines.Apply(cfg)
	return cfg, cfg.Validate()
}

// Execute implements part of subcommands.Command.
func (c *parseCmd) Execute(ctx context.Context, fs *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if fs.NArg() == 0 {
		return c.Usagef("no input files")
	}
	cfg, err := c.settings()
	if err != nil {
		return c.Fail(err)
	}
	tus, err := parseFiles(cfg, fs.Args())
	if err != nil {
		return c.Fail(err)
	}
	if len(cfg.Structs) != 0 {
		if tus, err = dump.Select(tus, stringset.New(cfg.Structs...)); err != nil {
			return c.Fail(err)
		}
	}
	if len(cfg.Prefixes) != 0 {
		for i, tu := range tus {
			tus[i] = dump.Prefixed(tu, cfg.Prefixes)
		}
	}
	for i, tu := range tus {
		if err := c.write(cfg.Format, fs.Arg(i), tu, i, len(tus)); err != nil {
			return c.Fail(errors.Wrap(err, "writing output"))
		}
	}
	return subcommands.ExitSuccess
}

func (c *parseCmd) write(format, file string, tu *parse.TranslationUnit, i, n int) error {
	switch format {
	case config.FormatJSON:
		return dump.JSON(stdout, dump.Records(file, tu))
	case config.FormatYAML:
		if i > 0 {
			fmt.Fprintln(stdout, "---")
		}
		return dump.YAML(stdout, dump.Records(file, tu))
	}
	if n > 1 {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintf(stdout, "// %s\n\n", file)
	}
	return dump.Text(stdout, tu)
}
