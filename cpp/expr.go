package cpp

import (
	"fmt"
	"strconv"
	"strings"
)

/*
   Implements the expression parsing and evaluation for #if lines.

   Macros on the line have already been expanded, apart from the operands
   of defined, so expression may be:

   Integer constants.

   Character constants, which are interpreted as they would be in normal code.

   Arithmetic operators for most of C.

   defined name and defined(name).

   Identifiers that are not macros, which are all considered to be the number zero.
*/

type cppExprCtx struct {
	toks      []*Token
	isDefined func(string) bool
}

func (ctx *cppExprCtx) nextToken() *Token {
	if len(ctx.toks) == 0 {
		return nil
	}
	tok := ctx.toks[0]
	ctx.toks = ctx.toks[1:]
	return tok
}

func (ctx *cppExprCtx) peek() *Token {
	if len(ctx.toks) == 0 {
		return nil
	}
	return ctx.toks[0]
}

func isIdentLike(t *Token) bool {
	return t.Kind == IDENT || IsKeyword(t.Val)
}

func parseCPPExprAtom(ctx *cppExprCtx) (int64, error) {
	toCheck := ctx.nextToken()
	if toCheck == nil {
		return 0, fmt.Errorf("expected integer, char, or defined but got nothing")
	}
	switch toCheck.Kind {
	case NOT:
		v, err := parseCPPExprAtom(ctx)
		if err != nil {
			return 0, err
		}
		if v == 0 {
			return 1, nil
		}
		return 0, nil
	case BNOT:
		v, err := parseCPPExprAtom(ctx)
		if err != nil {
			return 0, err
		}
		return ^v, nil
	case SUB:
		v, err := parseCPPExprAtom(ctx)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case ADD:
		return parseCPPExprAtom(ctx)
	case LPAREN:
		v, err := parseCPPExpr(ctx)
		if err != nil {
			return 0, err
		}
		rparen := ctx.nextToken()
		if rparen == nil || rparen.Kind != RPAREN {
			return 0, fmt.Errorf("unclosed parenthesis")
		}
		return v, nil
	case INT_CONSTANT:
		return parseCPPInt(toCheck.Val)
	case CHAR_CONSTANT:
		return parseCPPChar(toCheck.Val)
	}
	if !isIdentLike(toCheck) {
		return 0, fmt.Errorf("expected integer, char, or defined but got %s", toCheck.Val)
	}
	if toCheck.Val != "defined" {
		return 0, nil
	}
	toCheck = ctx.nextToken()
	if toCheck == nil {
		return 0, fmt.Errorf("expected ( or an identifier but got nothing")
	}
	if toCheck.Kind == LPAREN {
		toCheck = ctx.nextToken()
		rparen := ctx.nextToken()
		if rparen == nil || rparen.Kind != RPAREN {
			return 0, fmt.Errorf("malformed defined check, missing )")
		}
	}
	if toCheck == nil || !isIdentLike(toCheck) {
		return 0, fmt.Errorf("malformed defined check, expected an identifier")
	}
	if ctx.isDefined(toCheck.Val) {
		return 1, nil
	}
	return 0, nil
}

func parseCPPInt(s string) (int64, error) {
	s = strings.TrimRight(s, "uUlL")
	if len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9' {
		s = "0o" + s[1:]
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad integer constant %s", s)
	}
	return int64(v), nil
}

func parseCPPChar(s string) (int64, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(s, "'"), "'")
	v, _, tail, err := strconv.UnquoteChar(body, '\'')
	if err != nil || tail != "" {
		return 0, fmt.Errorf("bad char constant %s", s)
	}
	return int64(v), nil
}

func evalCPPBinop(k TokenKind, l int64, r int64) (int64, error) {
	switch k {
	case LOR:
		if l != 0 || r != 0 {
			return 1, nil
		}
		return 0, nil
	case LAND:
		if l != 0 && r != 0 {
			return 1, nil
		}
		return 0, nil
	case OR:
		return l | r, nil
	case XOR:
		return l ^ r, nil
	case AND:
		return l & r, nil
	case ADD:
		return l + r, nil
	case SUB:
		return l - r, nil
	case MUL:
		return l * r, nil
	case SHR:
		return l >> uint64(r), nil
	case SHL:
		return l << uint64(r), nil
	case QUO:
		if r == 0 {
			return 0, fmt.Errorf("divide by zero in expression")
		}
		return l / r, nil
	case REM:
		if r == 0 {
			return 0, fmt.Errorf("divide by zero in expression")
		}
		return l % r, nil
	case EQL:
		return boolToInt(l == r), nil
	case LSS:
		return boolToInt(l < r), nil
	case GTR:
		return boolToInt(l > r), nil
	case LEQ:
		return boolToInt(l <= r), nil
	case GEQ:
		return boolToInt(l >= r), nil
	case NEQ:
		return boolToInt(l != r), nil
	default:
		return 0, fmt.Errorf("internal error %s", k)
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func parseCPPTernary(ctx *cppExprCtx) (int64, error) {
	cond, err := parseCPPBinop(ctx)
	if err != nil {
		return 0, err
	}
	t := ctx.peek()
	if t == nil || t.Kind != QUESTION {
		return cond, nil
	}
	ctx.nextToken()
	a, err := parseCPPExpr(ctx)
	if err != nil {
		return 0, err
	}
	colon := ctx.nextToken()
	if colon == nil || colon.Kind != COLON {
		return 0, fmt.Errorf("ternary without :")
	}
	b, err := parseCPPTernary(ctx)
	if err != nil {
		return 0, err
	}
	if cond != 0 {
		return a, nil
	}
	return b, nil
}

func parseCPPComma(ctx *cppExprCtx) (int64, error) {
	v, err := parseCPPTernary(ctx)
	if err != nil {
		return 0, err
	}
	for {
		t := ctx.peek()
		if t == nil || t.Kind != COMMA {
			break
		}
		ctx.nextToken()
		v, err = parseCPPTernary(ctx)
		if err != nil {
			return 0, err
		}
	}
	return v, nil
}

func getPrec(k TokenKind) int {
	switch k {
	case MUL, REM, QUO:
		return 10
	case ADD, SUB:
		return 9
	case SHR, SHL:
		return 8
	case LSS, GTR, GEQ, LEQ:
		return 7
	case EQL, NEQ:
		return 6
	case AND:
		return 5
	case XOR:
		return 4
	case OR:
		return 3
	case LAND:
		return 2
	case LOR:
		return 1
	}
	return -1
}

// This is the precedence climbing algorithm, simplified because
// all the operators are left associative. The CPP doesn't
// deal with assignment operators.
func parseCPPBinop1(ctx *cppExprCtx, prec int) (int64, error) {
	l, err := parseCPPExprAtom(ctx)
	if err != nil {
		return 0, err
	}
	for {
		t := ctx.peek()
		if t == nil {
			break
		}
		p := getPrec(t.Kind)
		if p == -1 || p < prec {
			break
		}
		ctx.nextToken()
		r, err := parseCPPBinop1(ctx, p+1)
		if err != nil {
			return 0, err
		}
		l, err = evalCPPBinop(t.Kind, l, r)
		if err != nil {
			return 0, err
		}
	}
	return l, nil
}

func parseCPPBinop(ctx *cppExprCtx) (int64, error) {
	return parseCPPBinop1(ctx, 0)
}

func parseCPPExpr(ctx *cppExprCtx) (int64, error) {
	return parseCPPComma(ctx)
}

func evalIfExpr(isDefined func(string) bool, toks []*Token) (int64, error) {
	if len(toks) == 0 {
		return 0, fmt.Errorf("#if with no expression")
	}
	ctx := &cppExprCtx{isDefined: isDefined, toks: toks}
	ret, err := parseCPPExpr(ctx)
	if err != nil {
		return 0, err
	}
	if t := ctx.nextToken(); t != nil {
		return 0, fmt.Errorf("stray token %s", t.Val)
	}
	return ret, nil
}
