// Package cmdutil holds the parts shared by the cdecl subcommands built on
// github.com/google/subcommands.
package cmdutil

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"bitbucket.org/creachadair/stringset"
	"github.com/google/subcommands"

	"github.com/andrewchambers/cdecl/config"
	"github.com/andrewchambers/cdecl/report"
)

// Info implements the naming and documentation methods of
// subcommands.Command, plus a SetFlags that defines no flags and an
// Execute that prints usage.
type Info struct {
	name     string
	synopsis string
	usage    string
}

// NewInfo constructs an Info for command name.
func NewInfo(name, synopsis, usage string) Info {
	if !strings.HasSuffix(usage, "\n") {
		usage += "\n"
	}
	return Info{name: name, synopsis: synopsis, usage: usage}
}

// Name implements part of subcommands.Command.
func (i Info) Name() string { return i.name }

// Synopsis implements part of subcommands.Command.
func (i Info) Synopsis() string { return i.synopsis }

// Usage implements part of subcommands.Command.
func (i Info) Usage() string { return i.usage + "\nOptions:\n" }

// SetFlags implements part of subcommands.Command.
func (i Info) SetFlags(*flag.FlagSet) {}

// Execute implements part of subcommands.Command.
func (i Info) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	fmt.Print(i.usage)
	return subcommands.ExitSuccess
}

// Stderr receives error reports. Tests replace it.
var Stderr io.Writer = os.Stderr

// Fail reports err with its source context and returns ExitFailure.
func (i Info) Fail(err error) subcommands.ExitStatus {
	report.Error(Stderr, err)
	return subcommands.ExitFailure
}

// Usagef reports a misuse of the command and returns ExitUsageError.
func (i Info) Usagef(msg string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(Stderr, "%s: %s\n", i.name, fmt.Sprintf(msg, args...))
	return subcommands.ExitUsageError
}

// StringSet is a flag.Value that accepts a set of values as a CSV and
// may be repeated.
type StringSet stringset.Set

// Set implements part of flag.Value.
func (f *StringSet) Set(s string) error {
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			(*stringset.Set)(f).Add(v)
		}
	}
	return nil
}

// String implements part of flag.Value.
func (f *StringSet) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(stringset.Set(*f).Elements(), ",")
}

// Len returns the number of elements.
func (f *StringSet) Len() int { return stringset.Set(*f).Len() }

// StringList is a flag.Value that collects each occurrence of a
// repeated flag, in order.
type StringList []string

// Set implements part of flag.Value.
func (f *StringList) Set(s string) error {
	*f = append(*f, s)
	return nil
}

// String implements part of flag.Value.
func (f *StringList) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ",")
}

// Defines is a flag.Value collecting NAME or NAME=VALUE macro definitions.
// A bare NAME is defined as 1.
type Defines map[string]string

// Set implements part of flag.Value.
func (f *Defines) Set(s string) error {
	name, val, ok := strings.Cut(s, "=")
	if !ok {
		val = "1"
	}
	if name = strings.TrimSpace(name); name == "" {
		return fmt.Errorf("missing macro name in %q", s)
	}
	if *f == nil {
		*f = make(Defines)
	}
	(*f)[name] = val
	return nil
}

// String implements part of flag.Value.
func (f *Defines) String() string {
	if f == nil {
		return ""
	}
	var defs []string
	for name, val := range *f {
		defs = append(defs, name+"="+val)
	}
	sort.Strings(defs)
	return strings.Join(defs, ",")
}

// Apply adds the definitions to cfg, replacing those of the same name.
func (f Defines) Apply(cfg *config.Config) {
	if len(f) == 0 {
		return
	}
	if cfg.Defines == nil {
		cfg.Defines = make(map[string]string)
	}
	for name, val := range f {
		cfg.Defines[name] = val
	}
}

// ConfigPath names the config file given to the top level -config flag.
var ConfigPath string

// LoadConfig loads the config named by ConfigPath.
func LoadConfig() (*config.Config, error) {
	return config.Load(ConfigPath)
}
