package cpp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Lexer reads tokens on demand from a single source file.
// Comments are not discarded, they are attached to the token that follows them.
type Lexer struct {
	brdr      *bufio.Reader
	pos       FilePos
	lastPos   FilePos
	markedPos FilePos
	lastChar  rune
	// At the beginning on line not including whitespace.
	bol bool
	// Set to true if we have hit the end of file.
	eof bool
	// Set to true if we are currently reading a # directive line
	inDirective bool
	// Set once EOF or an error has been queued.
	done bool

	queue    []*Token
	comments []Comment

	err error
}

type breakout struct{}

// Lex returns a lexer reading the contents of r.
// fname is used for error messages when showing the source location.
// No preprocessing is done, this is just pure reading of the unprocessed
// source file. A leading byte order mark selects UTF-8 or UTF-16 decoding.
func Lex(fname string, r io.Reader) *Lexer {
	lx := new(Lexer)
	lx.pos.File = fname
	lx.pos.Line = 1
	lx.pos.Col = 1
	lx.markedPos = lx.pos
	lx.lastPos = lx.pos
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	lx.brdr = bufio.NewReader(transform.NewReader(r, decoder))
	lx.bol = true
	return lx
}

// Next returns the next token. Once the end of the file is reached
// it keeps returning EOF tokens. Errors are sticky.
func (lx *Lexer) Next() (*Token, error) {
	for len(lx.queue) == 0 {
		if lx.done {
			if lx.err != nil {
				return &Token{Kind: ERROR, Val: lx.err.Error(), Pos: lx.pos}, lx.err
			}
			return &Token{Kind: EOF, Pos: lx.pos}, nil
		}
		lx.step()
	}
	tok := lx.queue[0]
	lx.queue = lx.queue[1:]
	if tok.Kind == ERROR {
		return tok, lx.err
	}
	return tok, nil
}

func (lx *Lexer) markPos() {
	lx.markedPos = lx.pos
}

func (lx *Lexer) sendTok(kind TokenKind, val string) {
	var tok Token
	tok.Kind = kind
	tok.Val = val
	tok.Pos = lx.markedPos
	tok.Comments = lx.comments
	lx.comments = nil
	switch kind {
	case END_DIRECTIVE:
		//Do nothing as this is a pseudo directive.
	default:
		lx.bol = false
	}
	lx.queue = append(lx.queue, &tok)
}

func (lx *Lexer) addComment(text string) {
	lx.comments = append(lx.comments, Comment{Text: text, Pos: lx.markedPos})
}

func (lx *Lexer) unreadRune() {
	lx.pos = lx.lastPos
	if lx.lastChar == '\n' {
		lx.bol = false
	}
	if lx.eof {
		return
	}
	lx.brdr.UnreadRune()
}

func (lx *Lexer) readRune() (rune, bool) {
	r, _, err := lx.brdr.ReadRune()
	lx.lastPos = lx.pos
	if err != nil {
		if err == io.EOF {
			lx.eof = true
			lx.lastChar = 0
			return 0, true
		}
		lx.fail(errors.Wrap(err, "reading source"))
	}
	switch r {
	case '\n':
		lx.pos.Line += 1
		lx.pos.Col = 1
		lx.bol = true
	case '\t':
		lx.pos.Col += 4
	default:
		lx.pos.Col += 1
	}
	lx.lastChar = r
	return r, false
}

func (lx *Lexer) errorf(format string, args ...interface{}) {
	lx.fail(fmt.Errorf(format, args...))
}

func (lx *Lexer) fail(e error) {
	eWithPos := ErrWithLoc(e, lx.markedPos)
	lx.err = eWithPos
	lx.sendTok(ERROR, eWithPos.Error())
	lx.done = true
	//recover exits the lexer cleanly
	panic(&breakout{})
}

// step lexes until at least one token has been queued.
func (lx *Lexer) step() {

	defer func() {
		if e := recover(); e != nil {
			_ = e.(*breakout) // Will re-panic if not a breakout.
		}
	}()
	for len(lx.queue) == 0 {
		lx.markPos()
		first, eof := lx.readRune()
		if eof {
			if lx.inDirective {
				lx.sendTok(END_DIRECTIVE, "")
				lx.inDirective = false
			}
			lx.sendTok(EOF, "")
			lx.done = true
			return
		}
		switch {
		case isAlpha(first) || first == '_':
			lx.unreadRune()
			lx.readIdentOrKeyword()
		case isNumeric(first):
			lx.unreadRune()
			lx.readConstantIntOrFloat(false)
		case isWhiteSpace(first):
			lx.unreadRune()
			lx.skipWhiteSpace()
		default:
			lx.readPunctuation(first)
		}
	}
}

func (lx *Lexer) readPunctuation(first rune) {
	switch first {
	case '#':
		if lx.isAtLineStart() {
			lx.readDirective()
		} else {
			lx.sendTok(HASH, "#")
		}
	case '!':
		second, _ := lx.readRune()
		switch second {
		case '=':
			lx.sendTok(NEQ, "!=")
		default:
			lx.unreadRune()
			lx.sendTok(NOT, "!")
		}
	case '?':
		lx.sendTok(QUESTION, "?")
	case ':':
		lx.sendTok(COLON, ":")
	case '\'':
		lx.unreadRune()
		lx.readCChar()
	case '"':
		lx.unreadRune()
		lx.readCString()
	case '(':
		lx.sendTok(LPAREN, "(")
	case ')':
		lx.sendTok(RPAREN, ")")
	case '{':
		lx.sendTok(LBRACE, "{")
	case '}':
		lx.sendTok(RBRACE, "}")
	case '[':
		lx.sendTok(LBRACK, "[")
	case ']':
		lx.sendTok(RBRACK, "]")
	case '<':
		second, _ := lx.readRune()
		switch second {
		case '<':
			lx.sendTok(SHL, "<<")
		case '=':
			lx.sendTok(LEQ, "<=")
		default:
			lx.unreadRune()
			lx.sendTok(LSS, "<")
		}
	case '>':
		second, _ := lx.readRune()
		switch second {
		case '>':
			lx.sendTok(SHR, ">>")
		case '=':
			lx.sendTok(GEQ, ">=")
		default:
			lx.unreadRune()
			lx.sendTok(GTR, ">")
		}
	case '+':
		second, _ := lx.readRune()
		switch second {
		case '+':
			lx.sendTok(INC, "++")
		case '=':
			lx.sendTok(ADD_ASSIGN, "+=")
		default:
			lx.unreadRune()
			lx.sendTok(ADD, "+")
		}
	case '.':
		second, _ := lx.readRune()
		switch {
		case isNumeric(second):
			lx.unreadRune()
			lx.readConstantIntOrFloat(true)
		case second == '.':
			third, _ := lx.readRune()
			if third != '.' {
				lx.errorf("unexpected '..'")
			}
			lx.sendTok(ELLIPSIS, "...")
		default:
			lx.unreadRune()
			lx.sendTok(PERIOD, ".")
		}
	case '~':
		lx.sendTok(BNOT, "~")
	case '^':
		second, _ := lx.readRune()
		switch second {
		case '=':
			lx.sendTok(XOR_ASSIGN, "^=")
		default:
			lx.unreadRune()
			lx.sendTok(XOR, "^")
		}
	case '-':
		second, _ := lx.readRune()
		switch second {
		case '>':
			lx.sendTok(ARROW, "->")
		case '-':
			lx.sendTok(DEC, "--")
		case '=':
			lx.sendTok(SUB_ASSIGN, "-=")
		default:
			lx.unreadRune()
			lx.sendTok(SUB, "-")
		}
	case ',':
		lx.sendTok(COMMA, ",")
	case '*':
		second, _ := lx.readRune()
		switch second {
		case '=':
			lx.sendTok(MUL_ASSIGN, "*=")
		default:
			lx.unreadRune()
			lx.sendTok(MUL, "*")
		}
	case '\\':
		r, _ := lx.readRune()
		if r == '\r' {
			r, _ = lx.readRune()
		}
		if r == '\n' {
			break
		}
		lx.errorf("misplaced '\\'")
	case '/':
		second, _ := lx.readRune()
		switch second {
		case '*':
			lx.readBlockComment()
		case '/':
			lx.readLineComment()
		case '=':
			lx.sendTok(QUO_ASSIGN, "/=")
		default:
			lx.unreadRune()
			lx.sendTok(QUO, "/")
		}
	case '%':
		second, _ := lx.readRune()
		switch second {
		case '=':
			lx.sendTok(REM_ASSIGN, "%=")
		default:
			lx.unreadRune()
			lx.sendTok(REM, "%")
		}
	case '|':
		second, _ := lx.readRune()
		switch second {
		case '|':
			lx.sendTok(LOR, "||")
		case '=':
			lx.sendTok(OR_ASSIGN, "|=")
		default:
			lx.unreadRune()
			lx.sendTok(OR, "|")
		}
	case '&':
		second, _ := lx.readRune()
		switch second {
		case '&':
			lx.sendTok(LAND, "&&")
		case '=':
			lx.sendTok(AND_ASSIGN, "&=")
		default:
			lx.unreadRune()
			lx.sendTok(AND, "&")
		}
	case '=':
		second, _ := lx.readRune()
		switch second {
		case '=':
			lx.sendTok(EQL, "==")
		default:
			lx.unreadRune()
			lx.sendTok(ASSIGN, "=")
		}
	case ';':
		lx.sendTok(SEMICOLON, ";")
	default:
		lx.errorf("unexpected character %q", first)
	}
}

// The opening "/*" has been consumed.
func (lx *Lexer) readBlockComment() {
	var buff bytes.Buffer
	buff.WriteString("/*")
	for {
		c, eof := lx.readRune()
		if eof {
			lx.errorf("unclosed comment")
		}
		buff.WriteRune(c)
		if c == '*' {
			closeBar, eof := lx.readRune()
			if eof {
				lx.errorf("unclosed comment")
			}
			if closeBar == '/' {
				buff.WriteRune(closeBar)
				break
			}
			//Unread so that we dont lose newlines.
			lx.unreadRune()
		}
	}
	lx.addComment(buff.String())
}

// The opening "//" has been consumed.
func (lx *Lexer) readLineComment() {
	var buff bytes.Buffer
	buff.WriteString("//")
	for {
		c, eof := lx.readRune()
		if eof {
			break
		}
		if c == '\n' {
			// The newline still ends a directive.
			lx.unreadRune()
			break
		}
		buff.WriteRune(c)
	}
	lx.addComment(strings.TrimRight(buff.String(), "\r"))
}

// Directive names are sent as DIRECTIVE tokens, the rest of the line is
// lexed normally and terminated with an END_DIRECTIVE token.
func (lx *Lexer) readDirective() {
	directiveLine := lx.pos.Line
	lx.skipWhiteSpace()
	if lx.pos.Line != directiveLine {
		// Null directive.
		return
	}
	var buff bytes.Buffer
	directiveChar, eof := lx.readRune()
	if eof {
		lx.errorf("end of file in directive")
	}
	lx.inDirective = true
	for isValidIdentTail(directiveChar) {
		buff.WriteRune(directiveChar)
		directiveChar, eof = lx.readRune()
	}
	if !eof {
		lx.unreadRune()
	}
	directive := buff.String()
	lx.sendTok(DIRECTIVE, directive)
	switch directive {
	case "include":
		lx.readHeaderInclude()
	case "define":
		lx.readDefine()
	}
}

// readDefine lexes the macro name so a '(' directly after it marks a
// function-like macro. Anything else is left to the preprocessor.
func (lx *Lexer) readDefine() {
	line := lx.pos.Line
	lx.skipWhiteSpace()
	if lx.pos.Line != line {
		return
	}
	r, eof := lx.readRune()
	if eof {
		return
	}
	lx.unreadRune()
	if !isValidIdentStart(r) {
		return
	}
	lx.readIdentOrKeyword()
	r, eof = lx.readRune()
	if eof {
		return
	}
	lx.unreadRune()
	if r == '(' {
		lx.markPos()
		lx.sendTok(FUNCLIKE_DEFINE, "")
	}
}

func (lx *Lexer) readHeaderInclude() {
	var buff bytes.Buffer
	line := lx.pos.Line
	lx.skipWhiteSpace()
	if lx.pos.Line != line {
		lx.errorf("no header after include")
	}
	lx.markPos()
	opening, _ := lx.readRune()
	var terminator rune
	if opening == '"' {
		terminator = '"'
	} else if opening == '<' {
		terminator = '>'
	} else {
		lx.errorf("bad start to header include")
	}
	buff.WriteRune(opening)
	for {
		c, eof := lx.readRune()
		if eof {
			lx.errorf("EOF encountered in header include")
		}
		if c == '\n' {
			lx.errorf("new line in header include")
		}
		buff.WriteRune(c)
		if c == terminator {
			break
		}
	}
	lx.sendTok(HEADER, buff.String())
}

func (lx *Lexer) readIdentOrKeyword() {
	var buff bytes.Buffer
	lx.markPos()
	first, _ := lx.readRune()
	if !isValidIdentStart(first) {
		panic("internal error")
	}
	buff.WriteRune(first)
	for {
		b, eof := lx.readRune()
		if !eof && isValidIdentTail(b) {
			buff.WriteRune(b)
			continue
		}
		lx.unreadRune()
		str := buff.String()
		tokType, ok := keywordLUT[str]
		if !ok {
			tokType = IDENT
		}
		lx.sendTok(tokType, str)
		return
	}
}

func (lx *Lexer) skipWhiteSpace() {
	for {
		r, eof := lx.readRune()
		if eof || !isWhiteSpace(r) {
			lx.unreadRune()
			break
		}
		if r == '\n' {
			if lx.inDirective {
				lx.markPos()
				lx.sendTok(END_DIRECTIVE, "")
				lx.inDirective = false
			}
		}
	}
}

// Due to the 1 character lookahead we need this bool
func (lx *Lexer) readConstantIntOrFloat(startedWithPeriod bool) {
	var buff bytes.Buffer
	const (
		START = iota
		SECOND
		HEX
		DEC
		FLOAT_START
		FLOAT_AFTER_E
		FLOAT_AFTER_E_SIGN
		INT_TAIL
		FLOAT_TAIL
		END
	)
	var tokType TokenKind
	var state int
	if startedWithPeriod {
		state = FLOAT_START
		tokType = FLOAT_CONSTANT
		buff.WriteRune('.')
	} else {
		state = START
		tokType = INT_CONSTANT
	}
	for state != END {
		r, eof := lx.readRune()
		if eof {
			break
		}
		switch state {
		case START:
			if !isNumeric(r) {
				lx.errorf("internal error")
			}
			buff.WriteRune(r)
			state = SECOND
		case SECOND:
			if r == 'x' || r == 'X' {
				state = HEX
				buff.WriteRune(r)
				break
			}
			state = DEC
			fallthrough
		case DEC:
			if isNumeric(r) {
				buff.WriteRune(r)
				break
			}
			switch r {
			case 'l', 'L', 'u', 'U':
				state = INT_TAIL
				buff.WriteRune(r)
			case 'e', 'E':
				state = FLOAT_AFTER_E
				tokType = FLOAT_CONSTANT
				buff.WriteRune(r)
			case '.':
				state = FLOAT_START
				tokType = FLOAT_CONSTANT
				buff.WriteRune(r)
			default:
				if isValidIdentStart(r) {
					lx.errorf("invalid constant int")
				}
				state = END
			}
		case HEX:
			if !isHexDigit(r) {
				switch r {
				case 'l', 'L', 'u', 'U':
					state = INT_TAIL
					buff.WriteRune(r)
				default:
					if isValidIdentStart(r) {
						lx.errorf("invalid constant int")
					}
					state = END
				}
			} else {
				buff.WriteRune(r)
			}
		case INT_TAIL:
			switch r {
			case 'l', 'L', 'u', 'U':
				buff.WriteRune(r)
			default:
				if isValidIdentStart(r) {
					lx.errorf("invalid constant int")
				}
				state = END
			}
		case FLOAT_START:
			if !isNumeric(r) {
				switch r {
				case 'e', 'E':
					state = FLOAT_AFTER_E
					buff.WriteRune(r)
				case 'f', 'F', 'l', 'L':
					state = FLOAT_TAIL
					buff.WriteRune(r)
				default:
					if isValidIdentStart(r) {
						lx.errorf("invalid floating point constant")
					}
					state = END
				}
			} else {
				buff.WriteRune(r)
			}
		case FLOAT_AFTER_E:
			if r == '-' || r == '+' {
				state = FLOAT_AFTER_E_SIGN
				buff.WriteRune(r)
			} else if isNumeric(r) {
				state = FLOAT_AFTER_E_SIGN
				buff.WriteRune(r)
			} else {
				lx.errorf("invalid float constant - expected number or signed after e")
			}
		case FLOAT_AFTER_E_SIGN:
			if isNumeric(r) {
				buff.WriteRune(r)
			} else {
				switch r {
				case 'l', 'L', 'f', 'F':
					buff.WriteRune(r)
					state = FLOAT_TAIL
				default:
					if isValidIdentStart(r) {
						lx.errorf("invalid float constant")
					} else {
						state = END
					}
				}
			}
		case FLOAT_TAIL:
			switch r {
			case 'l', 'L', 'f', 'F':
				buff.WriteRune(r)
			default:
				if isValidIdentStart(r) {
					lx.errorf("invalid float constant")
				}
				state = END
			}
		default:
			lx.errorf("internal error")
		}
	}
	lx.unreadRune()
	lx.sendTok(tokType, buff.String())
}

func (lx *Lexer) readCString() {
	const (
		START = iota
		MID
		ESCAPED
		END
	)
	var buff bytes.Buffer
	var state int
	lx.markPos()
	for state != END {
		r, eof := lx.readRune()
		if eof {
			lx.errorf("eof in string literal")
		}
		switch state {
		case START:
			if r != '"' {
				lx.errorf("internal error")
			}
			buff.WriteRune(r)
			state = MID
		case MID:
			switch r {
			case '\\':
				state = ESCAPED
			case '"':
				buff.WriteRune(r)
				state = END
			case '\n':
				lx.errorf("new line in string literal")
			default:
				buff.WriteRune(r)
			}
		case ESCAPED:
			switch r {
			case '\r':
				// empty
			case '\n':
				state = MID
			default:
				buff.WriteRune('\\')
				buff.WriteRune(r)
				state = MID
			}
		}
	}
	lx.sendTok(STRING, buff.String())
}

func (lx *Lexer) readCChar() {
	const (
		START = iota
		MID
		ESCAPED
		END
	)
	var buff bytes.Buffer
	var state int
	lx.markPos()
	for state != END {
		r, eof := lx.readRune()
		if eof {
			lx.errorf("eof in char literal")
		}
		switch state {
		case START:
			if r != '\'' {
				lx.errorf("internal error")
			}
			buff.WriteRune(r)
			state = MID
		case MID:
			switch r {
			case '\\':
				state = ESCAPED
			case '\'':
				buff.WriteRune(r)
				state = END
			case '\n':
				lx.errorf("new line in char literal")
			default:
				buff.WriteRune(r)
			}
		case ESCAPED:
			switch r {
			case '\r':
				// empty
			case '\n':
				state = MID
			default:
				buff.WriteRune('\\')
				buff.WriteRune(r)
				state = MID
			}
		}
	}
	lx.sendTok(CHAR_CONSTANT, buff.String())

}

func (lx *Lexer) isAtLineStart() bool {
	return lx.bol
}

func isValidIdentTail(b rune) bool {
	return isValidIdentStart(b) || isNumeric(b) || b == '$'
}

func isValidIdentStart(b rune) bool {
	return b == '_' || isAlpha(b)
}

func isAlpha(b rune) bool {
	if b >= 'a' && b <= 'z' {
		return true
	}
	if b >= 'A' && b <= 'Z' {
		return true
	}
	return false
}

func isWhiteSpace(b rune) bool {
	return b == ' ' || b == '\r' || b == '\n' || b == '\t' || b == '\f' || b == '\v'
}

func isNumeric(b rune) bool {
	if b >= '0' && b <= '9' {
		return true
	}
	return false
}

func isHexDigit(b rune) bool {
	return isNumeric(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
