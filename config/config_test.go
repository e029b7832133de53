package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewchambers/cdecl/layout"
)

func TestLoadEmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, layout.LP64, c.LayoutMachine())
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
includePaths: [include, /usr/local/include]
followIncludes: false
machine: ILP32
format: YAML
structs: [test_struct, byte_struct]
`))
	require.NoError(t, err)
	assert.Equal(t, &Config{
		IncludePaths:   []string{"include", "/usr/local/include"},
		FollowIncludes: false,
		Machine:        "ilp32",
		Format:         FormatYAML,
		Structs:        []string{"test_struct", "byte_struct"},
	}, c)
	assert.Equal(t, layout.ILP32, c.LayoutMachine())
}

func TestParseKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte("structs: [a]\n"))
	require.NoError(t, err)
	assert.True(t, c.FollowIncludes)
	assert.Equal(t, "lp64", c.Machine)
	assert.Equal(t, FormatText, c.Format)
}

func TestParsePrefixesAndDefines(t *testing.T) {
	c, err := Parse([]byte("prefixes: [mrb_, MRB_]\ndefines: {MRB_INT64: \"1\", EMPTY: \"\"}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"mrb_", "MRB_"}, c.Prefixes)
	assert.Equal(t, map[string]string{"MRB_INT64": "1", "EMPTY": ""}, c.Defines)

	_, err = Parse([]byte("defines: [A]\n"))
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	for _, test := range []struct {
		in, want string
	}{
		{"machine: pdp11\n", `unknown machine "pdp11"`},
		{"format: xml\n", `unknown format "xml"`},
		{"formats: json\n", "decoding yaml"},
		{"structs: {a: b}\n", "decoding yaml"},
	} {
		_, err := Parse([]byte(test.in))
		if assert.Error(t, err, test.in) {
			assert.Contains(t, err.Error(), test.want, test.in)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cdecl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("machine: llp64\n"), 0644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, layout.LLP64, c.LayoutMachine())

	require.NoError(t, os.WriteFile(path, []byte("format: csv\n"), 0644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config "+path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}
