package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewchambers/cdecl/cpp"
	"github.com/andrewchambers/cdecl/parse"
)

func TestErrorWithSource(t *testing.T) {
	src := "struct s {\n\tint a : 3;\n};\n"
	_, err := parse.ParseString("bits.h", src)
	require.Error(t, err)

	var out strings.Builder
	ErrorWithSource(&out, err, strings.NewReader(src))
	want := "bits.h:2:11: syntax error: bitfields are not supported\n" +
		"\n" +
		"    int a : 3;\n" +
		"          ^\n"
	assert.Equal(t, want, out.String())
}

func TestErrorReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.h")
	require.NoError(t, os.WriteFile(path, []byte("int x;\nstruct { @ };"), 0644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = parse.Parse(cpp.New(cpp.Lex(path, f), nil))
	require.Error(t, err)

	var out strings.Builder
	Error(&out, err)
	lines := strings.Split(out.String(), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "unexpected character '@'")
	assert.Equal(t, "struct { @ };", lines[2])
	assert.Equal(t, "         ^", lines[3])
}

func TestErrorWithoutPosition(t *testing.T) {
	var out strings.Builder
	Error(&out, errors.New("plain failure"))
	assert.Equal(t, "plain failure\n", out.String())
}

func TestPositionThroughWrapping(t *testing.T) {
	loc := cpp.ErrWithLoc(errors.New("missing header"), cpp.FilePos{File: "a.h", Line: 7, Col: 3})
	pos, ok := Position(errors.Wrap(loc, "parsing a.h"))
	require.True(t, ok)
	assert.Equal(t, cpp.FilePos{File: "a.h", Line: 7, Col: 3}, pos)

	// A file that cannot be opened still gets the message.
	var out strings.Builder
	Error(&out, loc)
	assert.Equal(t, "a.h:7:3: missing header\n", out.String())
}
