// Package config loads the settings shared by the cdecl commands.
//
// A config file is YAML:
//
//	includePaths: [include, /usr/local/include]
//	followIncludes: true
//	machine: lp64
//	format: yaml
//	structs: [test_struct]
//	prefixes: [mrb_, MRB_]
//	defines: {MRB_INT64: "1"}
//
// Any field left out keeps its default. Command line flags are applied on
// top of the loaded file by the commands themselves.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/andrewchambers/cdecl/layout"
)

// Output formats understood by the parse command.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var formats = []string{FormatText, FormatJSON, FormatYAML}

type Config struct {
	// Directories searched for #include <...>, in order.
	IncludePaths []string `json:"includePaths,omitempty"`
	// When false, #include lines are skipped like any other directive.
	FollowIncludes bool     `json:"followIncludes"`
	Machine        string   `json:"machine"`
	Format         string   `json:"format"`
	Structs        []string `json:"structs,omitempty"`
	// Only declarations whose names start with one of these are printed.
	Prefixes []string `json:"prefixes,omitempty"`
	// Object-like macros defined before each file is read.
	Defines map[string]string `json:"defines,omitempty"`
}

// Default returns the settings used when no config file is given.
func Default() *Config {
	return &Config{
		FollowIncludes: true,
		Machine:        layout.LP64.Name,
		Format:         FormatText,
	}
}

// Load reads the config file at path. An empty path returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}

// Parse decodes YAML config data over the defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, errors.Wrap(err, "decoding yaml")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the machine and format name known values.
// Names are normalized to lower case.
func (c *Config) Validate() error {
	m, err := layout.MachineByName(c.Machine)
	if err != nil {
		return err
	}
	c.Machine = m.Name
	c.Format = strings.ToLower(c.Format)
	if c.Format == "" {
		c.Format = FormatText
	}
	for _, f := range formats {
		if c.Format == f {
			return nil
		}
	}
	return errors.Errorf("unknown format %q, want one of %s", c.Format, strings.Join(formats, ", "))
}

// LayoutMachine returns the machine named by c.
func (c *Config) LayoutMachine() *layout.Machine {
	m, err := layout.MachineByName(c.Machine)
	if err != nil {
		return layout.LP64
	}
	return m
}
