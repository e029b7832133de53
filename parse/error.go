package parse

import (
	"fmt"

	"github.com/andrewchambers/cdecl/cpp"
)

// SyntaxError is the error returned by Parse.
type SyntaxError struct {
	Msg string
	Pos cpp.FilePos
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: syntax error: %s", e.Pos, e.Msg)
}
