package cmdutil

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"testing"

	"bitbucket.org/creachadair/stringset"
	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/andrewchambers/cdecl/config"
)

func ExampleNewInfo() {
	cmd := struct {
		Info
	}{
		Info: NewInfo("example", "Demonstrate how to set up a subcommand",
			`Show the user how to use NewInfo.`),
	}

	fs := flag.NewFlagSet("test", flag.ExitOnError)
	fs.Parse([]string{"example", "foo"})

	cmdr := subcommands.NewCommander(fs, "cmdutil_test")
	cmdr.Register(cmd, "examples")

	fmt.Println(cmdr.Execute(context.Background(), fs))
	// Output:
	// Show the user how to use NewInfo.
	// 0
}

func TestStringSetFlag(t *testing.T) {
	var structs StringSet
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&structs, "struct", "")
	assert.NoError(t, fs.Parse([]string{"-struct", "b, a", "-struct", "c,,a"}))
	assert.Equal(t, 3, structs.Len())
	assert.Equal(t, "a,b,c", structs.String())
	assert.True(t, stringset.Set(structs).Contains("a", "b", "c"))
}

func TestStringListFlag(t *testing.T) {
	var dirs StringList
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&dirs, "I", "")
	assert.NoError(t, fs.Parse([]string{"-I", "z", "-I", "a"}))
	assert.Equal(t, StringList{"z", "a"}, dirs)
}

func TestDefinesFlag(t *testing.T) {
	var defs Defines
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Var(&defs, "D", "")
	assert.NoError(t, fs.Parse([]string{"-D", "WIDE", "-D", "LEN=16", "-D", "EMPTY="}))
	assert.Equal(t, Defines{"WIDE": "1", "LEN": "16", "EMPTY": ""}, defs)
	assert.Equal(t, "EMPTY=,LEN=16,WIDE=1", defs.String())
	assert.Error(t, fs.Parse([]string{"-D", "=1"}))

	cfg := &config.Config{Defines: map[string]string{"LEN": "8", "OTHER": "2"}}
	defs.Apply(cfg)
	assert.Equal(t, map[string]string{"WIDE": "1", "LEN": "16", "EMPTY": "", "OTHER": "2"}, cfg.Defines)
}

func TestFail(t *testing.T) {
	var buf strings.Builder
	old := Stderr
	Stderr = &buf
	defer func() { Stderr = old }()

	info := NewInfo("parse", "", "")
	assert.Equal(t, subcommands.ExitFailure, info.Fail(errors.New("boom")))
	assert.Equal(t, subcommands.ExitUsageError, info.Usagef("need %d file", 1))
	assert.Equal(t, "boom\nparse: need 1 file\n", buf.String())
}
