package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/pkg/errors"

	"github.com/andrewchambers/cdecl/cpp"
	"github.com/andrewchambers/cdecl/internal/cmdutil"
)

type tokensCmd struct {
	cmdutil.Info

	raw bool
}

func newTokensCmd() subcommands.Command {
	const usage = `Usage: tokens [options] <file.h>

Print the tokens of a file one per line as kind:value:line:col.
Directives are carried out and macros expanded unless -raw is given.`

	return &tokensCmd{
		Info: cmdutil.NewInfo("tokens", "dump the tokens of a file", usage),
	}
}

// SetFlags implements part of subcommands.Command.
func (c *tokensCmd) SetFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.raw, "raw", false, "Show the lexer output, including directive tokens")
}

// Execute implements part of subcommands.Command.
func (c *tokensCmd) Execute(ctx context.Context, fs *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		return c.Usagef("want exactly one file, got %d", fs.NArg())
	}
	tokenize := preprocessFile
	if c.raw {
		tokenize = tokenizeFile
	}
	if err := tokenize(fs.Arg(0), stdout); err != nil {
		return c.Fail(err)
	}
	return subcommands.ExitSuccess
}

type tokenSource interface {
	Next() (*cpp.Token, error)
}

func printTokens(ts tokenSource, out io.Writer) error {
	for {
		tok, err := ts.Next()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s:%s:%d:%d\n", tok.Kind, tok.Val, tok.Pos.Line, tok.Pos.Col)
		if tok.Kind == cpp.EOF {
			return nil
		}
	}
}

func preprocessFile(sourceFile string, out io.Writer) error {
	f, err := os.Open(sourceFile)
	if err != nil {
		return errors.Wrap(err, "opening source file")
	}
	defer f.Close()
	return printTokens(cpp.New(cpp.Lex(sourceFile, f), nil), out)
}

func tokenizeFile(sourceFile string, out io.Writer) error {
	f, err := os.Open(sourceFile)
	if err != nil {
		return errors.Wrap(err, "opening source file")
	}
	defer f.Close()
	return printTokens(cpp.Lex(sourceFile, f), out)
}
