// Package report prints errors the way compilers do, with the
// offending source line and a caret under the column.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/andrewchambers/cdecl/cpp"
	"github.com/andrewchambers/cdecl/parse"
)

// Columns are counted with tabs as 4 wide, as the lexer does.
const tabWidth = 4

// Position returns the source position carried by err, if any.
func Position(err error) (cpp.FilePos, bool) {
	var serr *parse.SyntaxError
	if errors.As(err, &serr) {
		return serr.Pos, true
	}
	var loc cpp.ErrorLoc
	if errors.As(err, &loc) {
		return loc.Pos, true
	}
	return cpp.FilePos{}, false
}

// Error writes err to w, followed by the source line it points at when
// the file can be read.
func Error(w io.Writer, err error) {
	pos, ok := Position(err)
	if !ok {
		fmt.Fprintln(w, err)
		return
	}
	f, ferr := os.Open(pos.File)
	if ferr != nil {
		fmt.Fprintln(w, err)
		return
	}
	defer f.Close()
	ErrorWithSource(w, err, f)
}

// ErrorWithSource is like Error but reads the source line from src.
func ErrorWithSource(w io.Writer, err error, src io.Reader) {
	fmt.Fprintln(w, err)
	pos, ok := Position(err)
	if !ok {
		return
	}
	line, found := readLine(src, pos.Line)
	if !found {
		return
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, expandTabs(line))
	fmt.Fprintln(w, caret(pos.Col))
}

func readLine(src io.Reader, n int) (string, bool) {
	b := bufio.NewReader(src)
	lineno := 1
	for {
		line, err := b.ReadString('\n')
		if lineno == n {
			if err != nil && line == "" {
				return "", false
			}
			return strings.TrimRight(line, "\r\n"), true
		}
		if err != nil {
			return "", false
		}
		lineno += 1
	}
}

func expandTabs(line string) string {
	return strings.Replace(line, "\t", strings.Repeat(" ", tabWidth), -1)
}

func caret(col int) string {
	if col < 1 {
		col = 1
	}
	return strings.Repeat(" ", col-1) + "^"
}
