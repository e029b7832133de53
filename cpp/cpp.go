package cpp

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"bitbucket.org/creachadair/stringset"
)

// Headers nested deeper than this are rejected.
const maxIncludeDepth = 200

// Preprocessor hands tokens to the parser with directive lines removed.
//
// Object-like and function-like macros are expanded and conditionals are
// evaluated. When an IncludeSearcher is set, #include directives are
// followed, each header at most once, which also makes include guards
// unnecessary. Token pasting and the __FILE__ style builtins are not
// supported.
type Preprocessor struct {
	lexers []*source
	is     IncludeSearcher
	// Headers that have already been entered.
	seen stringset.Set
	// Comments collected from directive lines and expanded macro names.
	comments []Comment
	warned   stringset.Set

	// Tokens produced by macro expansion, read before the lexers.
	pending    []*Token
	objMacros  map[string]*objMacro
	funcMacros map[string]*funcMacro
	// Stack of condContext about #if blocks.
	conds []*condContext

	// Warn, when set, is told about #warning and directives whose
	// effect is ignored.
	Warn func(pos FilePos, msg string)
}

type source struct {
	lx     *Lexer
	closer io.Closer
	// Depth of the conditional stack when the file was entered.
	condBase int
}

type objMacro struct {
	tokens []*Token
}

type funcMacro struct {
	params []string
	// The last parameter is __VA_ARGS__.
	variadic bool
	tokens   []*Token
}

func (m *funcMacro) paramIndex(t *Token) int {
	if !isIdentLike(t) {
		return -1
	}
	for i, p := range m.params {
		if p == t.Val {
			return i
		}
	}
	return -1
}

type condContext struct {
	directive string
	pos       FilePos
	// One of the groups of this conditional has been taken.
	hasSucceeded bool
	sawElse      bool
}

type cppbreakout struct {
	t   *Token
	err error
}

// New creates a preprocessor reading from l.
// is may be nil, in which case includes are skipped.
func New(l *Lexer, is IncludeSearcher) *Preprocessor {
	ret := new(Preprocessor)
	ret.lexers = []*source{{lx: l}}
	ret.is = is
	ret.seen = stringset.New(l.pos.File)
	ret.warned = stringset.New()
	ret.objMacros = make(map[string]*objMacro)
	ret.funcMacros = make(map[string]*funcMacro)
	for name, val := range predefined {
		ret.objMacros[name] = &objMacro{tokens: []*Token{{Kind: INT_CONSTANT, Val: val}}}
	}
	return ret
}

var predefined = map[string]string{
	"__STDC__":         "1",
	"__STDC_VERSION__": "201112L",
}

// Define adds an object-like macro as if by "#define name body".
func (pp *Preprocessor) Define(name, body string) error {
	lx := Lex("<command line>", strings.NewReader(name))
	t, err := lx.Next()
	if err != nil {
		return err
	}
	if !isIdentLike(t) {
		return fmt.Errorf("bad macro name %q", name)
	}
	if end, err := lx.Next(); err != nil || end.Kind != EOF {
		return fmt.Errorf("bad macro name %q", name)
	}
	var toks []*Token
	lx = Lex("<command line>", strings.NewReader(body))
	for {
		t, err := lx.Next()
		if err != nil {
			return err
		}
		if t.Kind == EOF {
			break
		}
		toks = append(toks, t.copy())
	}
	delete(pp.funcMacros, name)
	pp.objMacros[name] = &objMacro{tokens: toks}
	return nil
}

// IsDefined reports whether name is currently a macro.
func (pp *Preprocessor) IsDefined(name string) bool {
	_, obj := pp.objMacros[name]
	_, fn := pp.funcMacros[name]
	return obj || fn
}

func (pp *Preprocessor) cppError(pos FilePos, format string, args ...any) {
	err := ErrWithLoc(fmt.Errorf(format, args...), pos)
	panic(&cppbreakout{
		t:   &Token{Kind: ERROR, Val: err.Error(), Pos: pos},
		err: err,
	})
}

// nextNoExpand returns the next token without expanding it, leaving the
// included files that have been read to the end.
func (pp *Preprocessor) nextNoExpand() *Token {
	if len(pp.pending) > 0 {
		t := pp.pending[0]
		pp.pending = pp.pending[1:]
		return t
	}
	for {
		top := pp.lexers[len(pp.lexers)-1]
		t, err := top.lx.Next()
		if err != nil {
			panic(&cppbreakout{t, err})
		}
		if t.Kind != EOF {
			return t
		}
		if len(pp.conds) > top.condBase {
			c := pp.conds[len(pp.conds)-1]
			pp.cppError(c.pos, "unterminated #%s", c.directive)
		}
		if len(pp.lexers) == 1 {
			return t
		}
		pp.pop()
	}
}

func (pp *Preprocessor) ungetTokens(toks []*Token) {
	pp.pending = append(toks, pp.pending...)
}

// Next returns the next token that is not part of a directive line,
// with macros expanded.
func (pp *Preprocessor) Next() (t *Token, err error) {
	defer func() {
		if e := recover(); e != nil {
			b := e.(*cppbreakout) // Will re-panic if not a breakout.
			pp.closeAll()
			t, err = b.t, b.err
		}
	}()
	for {
		t = pp.nextNoExpand()
		if t.Kind == DIRECTIVE {
			pp.comments = append(pp.comments, t.Comments...)
			pp.handleDirective(t)
			continue
		}
		if pp.expand(t, pp.nextNoExpand) {
			continue
		}
		pp.attachComments(t)
		return t, nil
	}
}

// expand pushes back the expansion of t if it names a macro. next reads
// the tokens of a function-like invocation.
func (pp *Preprocessor) expand(t *Token, next func() *Token) bool {
	if !isIdentLike(t) || t.hs.contains(t.Val) {
		return false
	}
	if m, ok := pp.objMacros[t.Val]; ok {
		hs := t.hs.add(t.Val)
		toks := make([]*Token, 0, len(m.tokens))
		for _, mt := range m.tokens {
			cpy := mt.copy()
			cpy.Pos = t.Pos
			cpy.hs = mt.hs.union(hs)
			toks = append(toks, cpy)
		}
		pp.comments = append(pp.comments, t.Comments...)
		pp.ungetTokens(toks)
		return true
	}
	m, ok := pp.funcMacros[t.Val]
	if !ok {
		return false
	}
	opening := next()
	if opening.Kind != LPAREN {
		// A function-like macro name on its own is left alone.
		pp.ungetTokens([]*Token{opening})
		return false
	}
	args, rparen := pp.readMacroInvokeArguments(t, next)
	switch {
	case len(args) == 1 && len(args[0]) == 0 && len(m.params) == 0:
		args = nil
	case m.variadic && len(args) >= len(m.params)-1:
		args = joinVarArgs(args, len(m.params)-1)
	}
	if len(args) != len(m.params) {
		pp.cppError(t.Pos, "macro %s invoked with %d arguments but %d were expected", t.Val, len(args), len(m.params))
	}
	hs := t.hs.intersection(rparen.hs).add(t.Val)
	pp.comments = append(pp.comments, t.Comments...)
	pp.ungetTokens(pp.subst(m, t, args, hs))
	return true
}

// joinVarArgs folds the arguments from index n on into one, commas included.
func joinVarArgs(args [][]*Token, n int) [][]*Token {
	if len(args) == n {
		return append(args, nil)
	}
	var rest []*Token
	for i, arg := range args[n:] {
		if i > 0 {
			rest = append(rest, &Token{Kind: COMMA, Val: ","})
		}
		rest = append(rest, arg...)
	}
	return append(args[:n:n], rest)
}

func (pp *Preprocessor) subst(m *funcMacro, invoke *Token, args [][]*Token, hs *hideset) []*Token {
	var out []*Token
	for i := 0; i < len(m.tokens); i++ {
		t := m.tokens[i]
		if t.Kind == HASH && i+1 < len(m.tokens) {
			if idx := m.paramIndex(m.tokens[i+1]); idx >= 0 {
				out = append(out, &Token{Kind: STRING, Val: stringize(args[idx]), Pos: invoke.Pos, hs: hs})
				i++
				continue
			}
		}
		if t.Kind == HASH && i+1 < len(m.tokens) && m.tokens[i+1].Kind == HASH {
			pp.cppError(invoke.Pos, "token pasting in macro %s is not supported", invoke.Val)
		}
		idx := m.paramIndex(t)
		if idx < 0 {
			cpy := t.copy()
			cpy.Pos = invoke.Pos
			cpy.hs = t.hs.union(hs)
			out = append(out, cpy)
			continue
		}
		for _, at := range args[idx] {
			cpy := at.copy()
			cpy.hs = at.hs.union(hs)
			out = append(out, cpy)
		}
	}
	return out
}

func stringize(toks []*Token) string {
	vals := make([]string, len(toks))
	for i, t := range toks {
		vals[i] = t.Val
	}
	return strconv.Quote(strings.Join(vals, " "))
}

// Read the tokens that are part of a macro invocation, not including the
// first paren but including the last paren. Handles nested parens.
// e.g. FOO(BAR,(A,B),C)  -> { <BAR> , <(A,B)> , <C> } , )
// Where FOO( has already been consumed.
func (pp *Preprocessor) readMacroInvokeArguments(name *Token, next func() *Token) ([][]*Token, *Token) {
	parenDepth := 1
	ret := [][]*Token{nil}
	for {
		t := next()
		switch t.Kind {
		case EOF, END_DIRECTIVE:
			pp.cppError(name.Pos, "unterminated invocation of macro %s", name.Val)
		case DIRECTIVE:
			pp.cppError(t.Pos, "#%s inside the arguments of macro %s", t.Val, name.Val)
		case LPAREN:
			parenDepth++
		case RPAREN:
			parenDepth--
			if parenDepth == 0 {
				return ret, t
			}
		case COMMA:
			if parenDepth == 1 {
				ret = append(ret, nil)
				continue
			}
		}
		ret[len(ret)-1] = append(ret[len(ret)-1], t)
	}
}

func (pp *Preprocessor) attachComments(t *Token) {
	if len(pp.comments) == 0 {
		return
	}
	t.Comments = append(pp.comments, t.Comments...)
	pp.comments = nil
}

func (pp *Preprocessor) pop() {
	top := pp.lexers[len(pp.lexers)-1]
	if top.closer != nil {
		top.closer.Close()
	}
	pp.lexers = pp.lexers[:len(pp.lexers)-1]
}

func (pp *Preprocessor) closeAll() {
	for len(pp.lexers) > 1 {
		pp.pop()
	}
}

func (pp *Preprocessor) handleDirective(dirTok *Token) {
	switch dirTok.Val {
	case "include":
		pp.handleInclude(dirTok)
	case "define":
		pp.handleDefine(dirTok)
	case "undef":
		pp.handleUndefine(dirTok)
	case "if", "ifdef", "ifndef":
		pp.handleIf(dirTok)
	case "elif", "else":
		pp.handleElse(dirTok)
	case "endif":
		pp.handleEndif(dirTok)
	case "error":
		pp.cppError(dirTok.Pos, "#error %s", pp.lineText())
	case "warning":
		if msg := pp.lineText(); pp.Warn != nil {
			pp.Warn(dirTok.Pos, "#warning "+msg)
		}
	case "pragma":
		pp.skipLine()
	default:
		pp.warnOnce(dirTok, fmt.Sprintf("#%s is ignored", dirTok.Val))
		pp.skipLine()
	}
}

func (pp *Preprocessor) warnOnce(dirTok *Token, msg string) {
	if pp.Warn == nil {
		return
	}
	if pp.warned.Add(dirTok.Pos.File + "#" + dirTok.Val) {
		pp.Warn(dirTok.Pos, msg)
	}
}

// readLine returns the tokens up to the end of the directive line.
func (pp *Preprocessor) readLine() []*Token {
	var toks []*Token
	for {
		t := pp.nextNoExpand()
		switch t.Kind {
		case END_DIRECTIVE, EOF:
			return toks
		}
		toks = append(toks, t)
	}
}

func (pp *Preprocessor) skipLine() {
	pp.readLine()
}

func (pp *Preprocessor) lineText() string {
	toks := pp.readLine()
	vals := make([]string, len(toks))
	for i, t := range toks {
		vals[i] = t.Val
	}
	return strings.Join(vals, " ")
}

func (pp *Preprocessor) handleDefine(dirTok *Token) {
	ident := pp.nextNoExpand()
	if !isIdentLike(ident) {
		pp.cppError(dirTok.Pos, "macro name missing in #define")
	}
	if ident.Val == "defined" {
		pp.cppError(ident.Pos, "defined cannot be used as a macro name")
	}
	t := pp.nextNoExpand()
	if t.Kind == FUNCLIKE_DEFINE {
		pp.handleFuncLikeDefine(ident)
		return
	}
	pp.ungetTokens([]*Token{t})
	pp.handleObjDefine(ident)
}

func (pp *Preprocessor) handleObjDefine(ident *Token) {
	var toks []*Token
	for _, t := range pp.readLine() {
		toks = append(toks, t.copy())
	}
	if old, ok := pp.objMacros[ident.Val]; ok && !sameTokens(old.tokens, toks) {
		pp.warn(ident.Pos, fmt.Sprintf("%s redefined", ident.Val))
	}
	delete(pp.funcMacros, ident.Val)
	pp.objMacros[ident.Val] = &objMacro{tokens: toks}
}

func (pp *Preprocessor) handleFuncLikeDefine(ident *Token) {
	if t := pp.nextNoExpand(); t.Kind != LPAREN {
		pp.cppError(t.Pos, "expected ( after function-like macro name")
	}
	m := new(funcMacro)
	// Parameter list.
	for {
		t := pp.nextNoExpand()
		if t.Kind == RPAREN && len(m.params) == 0 {
			break
		}
		switch {
		case t.Kind == ELLIPSIS:
			m.variadic = true
			m.params = append(m.params, "__VA_ARGS__")
		case isIdentLike(t):
			m.params = append(m.params, t.Val)
		default:
			pp.cppError(t.Pos, "expected a macro parameter but got %s", t.Kind)
		}
		t = pp.nextNoExpand()
		if t.Kind == RPAREN {
			break
		}
		if t.Kind != COMMA || m.variadic {
			pp.cppError(t.Pos, "expected , or ) in macro parameters but got %s", t.Kind)
		}
	}
	for _, t := range pp.readLine() {
		m.tokens = append(m.tokens, t.copy())
	}
	if _, ok := pp.objMacros[ident.Val]; ok {
		pp.warn(ident.Pos, fmt.Sprintf("%s redefined", ident.Val))
	}
	delete(pp.objMacros, ident.Val)
	pp.funcMacros[ident.Val] = m
}

func sameTokens(a, b []*Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Val != b[i].Val {
			return false
		}
	}
	return true
}

func (pp *Preprocessor) warn(pos FilePos, msg string) {
	if pp.Warn != nil {
		pp.Warn(pos, msg)
	}
}

func (pp *Preprocessor) handleUndefine(dirTok *Token) {
	ident := pp.nextNoExpand()
	if !isIdentLike(ident) {
		pp.cppError(dirTok.Pos, "macro name missing in #undef")
	}
	delete(pp.objMacros, ident.Val)
	delete(pp.funcMacros, ident.Val)
	pp.skipLine()
}

func (pp *Preprocessor) pushCondContext(dirTok *Token) *condContext {
	c := &condContext{directive: dirTok.Val, pos: dirTok.Pos}
	pp.conds = append(pp.conds, c)
	return c
}

func (pp *Preprocessor) popCondContext() {
	pp.conds = pp.conds[:len(pp.conds)-1]
}

// currentCond returns the innermost conditional opened in the current file.
func (pp *Preprocessor) currentCond(dirTok *Token) *condContext {
	top := pp.lexers[len(pp.lexers)-1]
	if len(pp.conds) <= top.condBase {
		pp.cppError(dirTok.Pos, "#%s without #if", dirTok.Val)
	}
	return pp.conds[len(pp.conds)-1]
}

func (pp *Preprocessor) handleIf(dirTok *Token) {
	c := pp.pushCondContext(dirTok)
	if pp.evalCondition(dirTok) {
		c.hasSucceeded = true
		return
	}
	pp.skipTillEndif(c)
}

// evalCondition reads and evaluates the rest of an #if, #ifdef, #ifndef
// or #elif line.
func (pp *Preprocessor) evalCondition(dirTok *Token) bool {
	line := pp.readLine()
	switch dirTok.Val {
	case "ifdef", "ifndef":
		if len(line) == 0 || !isIdentLike(line[0]) {
			pp.cppError(dirTok.Pos, "#%s takes a single identifier", dirTok.Val)
		}
		return pp.IsDefined(line[0].Val) == (dirTok.Val == "ifdef")
	}
	v, err := evalIfExpr(pp.IsDefined, pp.expandLine(line))
	if err != nil {
		pp.cppError(dirTok.Pos, "#%s: %v", dirTok.Val, err)
	}
	return v != 0
}

// expandLine macro expands an #if line, leaving the operands of defined
// alone.
func (pp *Preprocessor) expandLine(line []*Token) []*Token {
	saved := pp.pending
	pp.pending = nil
	defer func() { pp.pending = saved }()
	next := func() *Token {
		if len(line) == 0 {
			return &Token{Kind: END_DIRECTIVE}
		}
		t := line[0]
		line = line[1:]
		return t
	}
	var out []*Token
	for {
		if len(pp.pending) > 0 {
			line = append(pp.pending, line...)
			pp.pending = nil
		}
		t := next()
		if t.Kind == END_DIRECTIVE {
			return out
		}
		if t.Kind == IDENT && t.Val == "defined" {
			out = append(out, t)
			operand := next()
			if operand.Kind == LPAREN {
				out = append(out, operand, next(), next())
			} else {
				out = append(out, operand)
			}
			continue
		}
		if pp.expand(t, next) {
			continue
		}
		out = append(out, t)
	}
}

func (pp *Preprocessor) handleElse(dirTok *Token) {
	c := pp.currentCond(dirTok)
	if c.sawElse {
		pp.cppError(dirTok.Pos, "#%s after #else", dirTok.Val)
	}
	// Reached while taking the previous group, the rest is skipped.
	if dirTok.Val == "else" {
		c.sawElse = true
	}
	pp.skipLine()
	pp.skipTillEndif(c)
}

func (pp *Preprocessor) handleEndif(dirTok *Token) {
	pp.currentCond(dirTok)
	pp.popCondContext()
	pp.skipLine()
}

// skipTillEndif skips tokens until a group of c is taken or its #endif
// is reached. Comments in skipped groups are dropped.
func (pp *Preprocessor) skipTillEndif(c *condContext) {
	depth := 0
	for {
		// Dont care about expands since we are skipping.
		t := pp.nextNoExpand()
		if t.Kind == EOF {
			pp.cppError(c.pos, "unterminated #%s", c.directive)
		}
		if t.Kind != DIRECTIVE {
			continue
		}
		switch t.Val {
		case "if", "ifdef", "ifndef":
			depth++
			continue
		case "endif":
			if depth > 0 {
				depth--
				continue
			}
			pp.popCondContext()
			pp.skipLine()
			return
		case "elif", "else":
			if depth > 0 {
				continue
			}
			if c.sawElse {
				pp.cppError(t.Pos, "#%s after #else", t.Val)
			}
			if t.Val == "else" {
				c.sawElse = true
				pp.skipLine()
				if !c.hasSucceeded {
					c.hasSucceeded = true
					return
				}
				continue
			}
			if !c.hasSucceeded && pp.evalCondition(t) {
				c.hasSucceeded = true
				return
			}
		}
	}
}

func (pp *Preprocessor) handleInclude(dirTok *Token) {
	tok := pp.nextNoExpand()
	if tok.Kind != HEADER {
		pp.cppError(tok.Pos, "expected a header")
	}
	pp.skipLine()
	if pp.is == nil {
		return
	}
	headerStr := tok.Val
	path := headerStr[1 : len(headerStr)-1]
	var headerName string
	var rdr io.ReadCloser
	var err error
	switch headerStr[0] {
	case '<':
		headerName, rdr, err = pp.is.IncludeAngled(tok.Pos.File, path)
	case '"':
		headerName, rdr, err = pp.is.IncludeQuote(tok.Pos.File, path)
	default:
		pp.cppError(tok.Pos, "internal error %s", tok)
	}
	if err != nil {
		pp.cppError(tok.Pos, "error during include: %v", err)
	}
	if !pp.seen.Add(headerName) {
		rdr.Close()
		return
	}
	if len(pp.lexers) >= maxIncludeDepth {
		rdr.Close()
		pp.cppError(dirTok.Pos, "#include nested too deeply")
	}
	pp.lexers = append(pp.lexers, &source{lx: Lex(headerName, rdr), closer: rdr, condBase: len(pp.conds)})
}
