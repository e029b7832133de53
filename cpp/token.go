package cpp

import (
	"fmt"
	"strings"
)

// The list of tokens.
const (

	// Single char tokens are themselves.
	ADD       = '+'
	SUB       = '-'
	MUL       = '*'
	QUO       = '/'
	REM       = '%'
	AND       = '&'
	OR        = '|'
	XOR       = '^'
	QUESTION  = '?'
	HASH      = '#'
	LSS       = '<'
	GTR       = '>'
	ASSIGN    = '='
	NOT       = '!'
	BNOT      = '~'
	LPAREN    = '('
	LBRACK    = '['
	LBRACE    = '{'
	COMMA     = ','
	PERIOD    = '.'
	RPAREN    = ')'
	RBRACK    = ']'
	RBRACE    = '}'
	SEMICOLON = ';'
	COLON     = ':'

	ERROR = 10000 + iota
	EOF
	DIRECTIVE     //#if #include etc
	END_DIRECTIVE //New line at the end of a directive
	FUNCLIKE_DEFINE
	HEADER
	// Identifiers and basic type literals
	// (these tokens stand for classes of literals)
	IDENT          // main
	INT_CONSTANT   // 12345
	FLOAT_CONSTANT // 123.45
	CHAR_CONSTANT  // 'a'
	STRING         // "abc"

	SHL        // <<
	SHR        // >>
	ADD_ASSIGN // +=
	SUB_ASSIGN // -=
	MUL_ASSIGN // *=
	QUO_ASSIGN // /=
	REM_ASSIGN // %=
	AND_ASSIGN // &=
	OR_ASSIGN  // |=
	XOR_ASSIGN // ^=
	SHL_ASSIGN // <<=
	SHR_ASSIGN // >>=
	LAND       // &&
	LOR        // ||
	ARROW      // ->
	INC        // ++
	DEC        // --
	EQL        // ==
	NEQ        // !=
	LEQ        // <=
	GEQ        // >=
	ELLIPSIS   // ...

	// Keywords
	AUTO
	REGISTER
	EXTERN
	STATIC
	INLINE
	SHORT
	BREAK
	CASE
	DO
	CONST
	VOLATILE
	RESTRICT
	CONTINUE
	DEFAULT
	ELSE
	FOR
	WHILE
	GOTO
	IF
	RETURN
	STRUCT
	UNION
	ENUM
	SWITCH
	TYPEDEF
	SIZEOF
	VOID
	BOOL
	CHAR
	INT
	FLOAT
	DOUBLE
	SIGNED
	UNSIGNED
	LONG
)

var tokenKindToStr = [...]string{
	HASH:            "#",
	ERROR:           "error",
	EOF:             "EOF",
	DIRECTIVE:       "cppdirective",
	END_DIRECTIVE:   "enddirective",
	FUNCLIKE_DEFINE: "funclikedefine",
	HEADER:          "header",
	CHAR_CONSTANT:   "charconst",
	INT_CONSTANT:    "intconst",
	FLOAT_CONSTANT:  "floatconst",
	IDENT:           "ident",
	STRING:          "string",
	ADD:             "'+'",
	SUB:             "'-'",
	MUL:             "'*'",
	QUO:             "'/'",
	REM:             "'%'",
	AND:             "'&'",
	OR:              "'|'",
	XOR:             "'^'",
	SHL:             "'<<'",
	SHR:             "'>>'",
	ADD_ASSIGN:      "'+='",
	SUB_ASSIGN:      "'-='",
	MUL_ASSIGN:      "'*='",
	QUO_ASSIGN:      "'/='",
	REM_ASSIGN:      "'%='",
	AND_ASSIGN:      "'&='",
	OR_ASSIGN:       "'|='",
	XOR_ASSIGN:      "'^='",
	SHL_ASSIGN:      "'<<='",
	SHR_ASSIGN:      "'>>='",
	LAND:            "'&&'",
	LOR:             "'||'",
	ARROW:           "'->'",
	INC:             "'++'",
	DEC:             "'--'",
	EQL:             "'=='",
	LSS:             "'<'",
	GTR:             "'>'",
	ASSIGN:          "'='",
	NOT:             "'!'",
	BNOT:            "'~'",
	NEQ:             "'!='",
	LEQ:             "'<='",
	GEQ:             "'>='",
	ELLIPSIS:        "'...'",
	LPAREN:          "'('",
	LBRACK:          "'['",
	LBRACE:          "'{'",
	COMMA:           "','",
	PERIOD:          "'.'",
	RPAREN:          "')'",
	RBRACK:          "']'",
	RBRACE:          "'}'",
	SEMICOLON:       "';'",
	COLON:           "':'",
	QUESTION:        "'?'",
	AUTO:            "auto",
	REGISTER:        "register",
	EXTERN:          "extern",
	STATIC:          "static",
	INLINE:          "inline",
	SHORT:           "short",
	BREAK:           "break",
	CASE:            "case",
	DO:              "do",
	CONST:           "const",
	VOLATILE:        "volatile",
	RESTRICT:        "restrict",
	CONTINUE:        "continue",
	DEFAULT:         "default",
	ELSE:            "else",
	FOR:             "for",
	WHILE:           "while",
	GOTO:            "goto",
	IF:              "if",
	RETURN:          "return",
	STRUCT:          "struct",
	UNION:           "union",
	ENUM:            "enum",
	SWITCH:          "switch",
	TYPEDEF:         "typedef",
	SIZEOF:          "sizeof",
	VOID:            "void",
	BOOL:            "_Bool",
	CHAR:            "char",
	INT:             "int",
	FLOAT:           "float",
	DOUBLE:          "double",
	SIGNED:          "signed",
	UNSIGNED:        "unsigned",
	LONG:            "long",
}

var keywordLUT = map[string]TokenKind{
	"auto":       AUTO,
	"register":   REGISTER,
	"extern":     EXTERN,
	"static":     STATIC,
	"inline":     INLINE,
	"__inline":   INLINE,
	"for":        FOR,
	"while":      WHILE,
	"do":         DO,
	"if":         IF,
	"else":       ELSE,
	"goto":       GOTO,
	"break":      BREAK,
	"continue":   CONTINUE,
	"case":       CASE,
	"default":    DEFAULT,
	"switch":     SWITCH,
	"struct":     STRUCT,
	"union":      UNION,
	"enum":       ENUM,
	"const":      CONST,
	"volatile":   VOLATILE,
	"restrict":   RESTRICT,
	"__restrict": RESTRICT,
	"signed":     SIGNED,
	"unsigned":   UNSIGNED,
	"typedef":    TYPEDEF,
	"return":     RETURN,
	"void":       VOID,
	"_Bool":      BOOL,
	"char":       CHAR,
	"int":        INT,
	"short":      SHORT,
	"long":       LONG,
	"float":      FLOAT,
	"double":     DOUBLE,
	"sizeof":     SIZEOF,
}

type TokenKind uint32

func (tk TokenKind) String() string {
	if uint32(tk) >= uint32(len(tokenKindToStr)) {
		return "Unknown"
	}
	ret := tokenKindToStr[tk]
	if ret == "" {
		return "Unknown"
	}
	return ret
}

// IsKeyword reports whether s is reserved by the lexer.
func IsKeyword(s string) bool {
	_, ok := keywordLUT[s]
	return ok
}

type FilePos struct {
	File string
	Line int
	Col  int
}

func (pos FilePos) String() string {
	return fmt.Sprintf("%s:%d:%d", pos.File, pos.Line, pos.Col)
}

// Comment is a // or /* */ comment found before a token.
// Text includes the comment markers.
type Comment struct {
	Text string
	Pos  FilePos
}

// Body returns the comment text with the markers removed
// and surrounding whitespace trimmed.
func (c Comment) Body() string {
	s := c.Text
	switch {
	case strings.HasPrefix(s, "//"):
		s = s[2:]
	case strings.HasPrefix(s, "/*"):
		s = strings.TrimSuffix(s[2:], "*/")
	}
	return strings.TrimSpace(s)
}

// Token represents a grouping of characters
// that provide semantic meaning in a C program.
type Token struct {
	Kind TokenKind
	Val  string
	Pos  FilePos
	// Comments between the previous token and this one.
	Comments []Comment
	// Macros whose expansion produced this token.
	hs *hideset
}

func (t *Token) copy() *Token {
	ret := *t
	ret.Comments = nil
	return &ret
}

func (t Token) String() string {
	return fmt.Sprintf("%s at %s", t.Val, t.Pos)
}
