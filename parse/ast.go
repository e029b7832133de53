package parse

import "github.com/andrewchambers/cdecl/cpp"

// Node is a constant expression, as used for array dimensions
// and enumeration values.
type Node interface{}

type Constant struct {
	Val int64
	Pos cpp.FilePos
}

type Binop struct {
	Op  cpp.TokenKind
	Pos cpp.FilePos
	L   Node
	R   Node
}

type Unop struct {
	Op      cpp.TokenKind
	Pos     cpp.FilePos
	Operand Node
}

// The ternary operator.
type Cond struct {
	Pos  cpp.FilePos
	Cond Node
	Then Node
	Else Node
}

func nodePos(n Node) cpp.FilePos {
	switch n := n.(type) {
	case *Constant:
		return n.Pos
	case *Binop:
		return n.Pos
	case *Unop:
		return n.Pos
	case *Cond:
		return n.Pos
	}
	return cpp.FilePos{}
}
