package parse

import (
	"fmt"

	"github.com/andrewchambers/cdecl/cpp"
)

// FoldError is returned when a constant expression cannot be evaluated.
type FoldError struct {
	Msg string
	Pos cpp.FilePos
}

func (e *FoldError) Error() string { return e.Msg }

// Fold evaluates a constant integer expression.
func Fold(n Node) (int64, error) {
	switch n := n.(type) {
	case *Constant:
		return n.Val, nil
	case *Unop:
		v, err := Fold(n.Operand)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case '+':
			return v, nil
		case '-':
			return -v, nil
		case '~':
			return ^v, nil
		case '!':
			return boolToInt(v == 0), nil
		}
	case *Cond:
		c, err := Fold(n.Cond)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return Fold(n.Then)
		}
		return Fold(n.Else)
	case *Binop:
		return foldBinop(n)
	}
	return 0, &FoldError{Msg: "not a valid constant value", Pos: nodePos(n)}
}

func foldBinop(n *Binop) (int64, error) {
	l, err := Fold(n.L)
	if err != nil {
		return 0, err
	}
	// Short circuit, the right side may divide by zero.
	switch n.Op {
	case cpp.LAND:
		if l == 0 {
			return 0, nil
		}
	case cpp.LOR:
		if l != 0 {
			return 1, nil
		}
	}
	r, err := Fold(n.R)
	if err != nil {
		return 0, err
	}
	switch n.Op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/', '%':
		if r == 0 {
			return 0, &FoldError{Msg: "division by zero in constant expression", Pos: n.Pos}
		}
		if n.Op == '/' {
			return l / r, nil
		}
		return l % r, nil
	case cpp.SHL, cpp.SHR:
		if r < 0 || r >= 64 {
			return 0, &FoldError{Msg: fmt.Sprintf("shift count %d out of range", r), Pos: n.Pos}
		}
		if n.Op == cpp.SHL {
			return l << uint(r), nil
		}
		return l >> uint(r), nil
	case '&':
		return l & r, nil
	case '|':
		return l | r, nil
	case '^':
		return l ^ r, nil
	case cpp.LAND, cpp.LOR:
		return boolToInt(r != 0), nil
	case cpp.EQL:
		return boolToInt(l == r), nil
	case cpp.NEQ:
		return boolToInt(l != r), nil
	case '<':
		return boolToInt(l < r), nil
	case '>':
		return boolToInt(l > r), nil
	case cpp.LEQ:
		return boolToInt(l <= r), nil
	case cpp.GEQ:
		return boolToInt(l >= r), nil
	}
	return 0, &FoldError{Msg: fmt.Sprintf("unsupported operator %s", n.Op), Pos: n.Pos}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
