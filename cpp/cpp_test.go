package cpp

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func preprocess(t *testing.T, pp *Preprocessor) []string {
	t.Helper()
	var vals []string
	for {
		tok, err := pp.Next()
		if err != nil {
			t.Fatal(err)
		}
		if tok.Kind == EOF {
			return vals
		}
		vals = append(vals, tok.Val)
	}
}

// collect returns every token up to and including EOF.
func collect(t *testing.T, pp *Preprocessor) []*Token {
	t.Helper()
	var toks []*Token
	for {
		tok, err := pp.Next()
		if err != nil {
			t.Fatal(err)
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestPreprocessorConditionals(t *testing.T) {
	src := "struct s {\n#ifdef WIDE\n long a; // wide\n#else\n int a; // narrow\n#endif\n};"
	pp := New(Lex("cond.h", strings.NewReader(src)), nil)
	toks := collect(t, pp)
	if diff := cmp.Diff([]TokenKind{STRUCT, IDENT, LBRACE, INT, IDENT, SEMICOLON, RBRACE, SEMICOLON, EOF}, kinds(toks)); diff != "" {
		t.Errorf("kinds (-want +got):\n%s", diff)
	}
	// Comments from the skipped group are dropped, the taken one survives
	// the #endif line.
	if c := toks[3].Comments; len(c) != 0 {
		t.Errorf("comments on int = %+v", c)
	}
	if c := toks[6].Comments; len(c) != 1 || c[0].Body() != "narrow" {
		t.Errorf("comments on '}' = %+v", c)
	}

	pp = New(Lex("cond.h", strings.NewReader(src)), nil)
	if err := pp.Define("WIDE", ""); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(preprocess(t, pp), " "); got != "struct s { long a ; } ;" {
		t.Errorf("with WIDE got %q", got)
	}
}

func TestPreprocessorIfChains(t *testing.T) {
	for _, tc := range []struct {
		src, want string
	}{
		{"#if 0\na\n#elif 1\nb\n#elif 1\nc\n#else\nd\n#endif\n", "b"},
		{"#if 0\na\n#elif 0\nb\n#else\nd\n#endif\n", "d"},
		{"#if 1\na\n#elif 1 / 0\nb\n#else\nd\n#endif\n", "a"},
		{"#ifndef X\n#define X 2\n#endif\n#if X == 2 && defined(X)\nyes\n#endif\n", "yes"},
		{"#if 0\n#if 1\nnested\n#else\nno\n#endif\n#else\nouter\n#endif\n", "outer"},
		{"#define V 3\n#if V > 2\nbig\n#endif\n#undef V\n#ifdef V\nstill\n#endif\n", "big"},
		{"#if __STDC_VERSION__ >= 199901L\nc99\n#endif\n", "c99"},
		{"#define F(x) (x + 1)\n#if F(2) == 3\nok\n#endif\n", "ok"},
		{"#if 0\n#error skipped\n#endif\nend\n", "end"},
	} {
		pp := New(Lex("chain.h", strings.NewReader(tc.src)), nil)
		if got := strings.Join(preprocess(t, pp), " "); got != tc.want {
			t.Errorf("%q: got %q, want %q", tc.src, got, tc.want)
		}
	}
}

func TestPreprocessorConditionalErrors(t *testing.T) {
	for _, tc := range []struct {
		src, want string
	}{
		{"#ifdef X\nint a;\n", "unterminated #ifdef"},
		{"#if 1\nint a;\n", "unterminated #if"},
		{"#endif\n", "#endif without #if"},
		{"#else\n", "#else without #if"},
		{"#if 0\n#else\n#else\n#endif\n", "#else after #else"},
		{"#if 1\n#else\n#elif 1\n#endif\n", "#elif after #else"},
		{"#if 1 +\n#endif\n", "#if: "},
		{"#ifdef\n#endif\n", "#ifdef takes a single identifier"},
		{"#error bad config\n", "#error bad config"},
	} {
		pp := New(Lex("bad.h", strings.NewReader(tc.src)), nil)
		var err error
		for err == nil {
			var tok *Token
			tok, err = pp.Next()
			if err == nil && tok.Kind == EOF {
				break
			}
		}
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%q: got error %v, want %q", tc.src, err, tc.want)
		}
	}
}

func TestPreprocessorMacros(t *testing.T) {
	for _, tc := range []struct {
		src, want string
	}{
		{"#define NAME_LEN 16\nchar name[NAME_LEN];\n", "char name [ 16 ] ;"},
		{"#define A B\n#define B A\nA B\n", "A B"},
		{"#define EMPTY\nEMPTY int x;\n", "int x ;"},
		{"#define SQ(x) ((x) * (x))\nSQ(1 + 2)\n", "( ( 1 + 2 ) * ( 1 + 2 ) )"},
		{"#define PAIR(a, b) a b\nPAIR((1, 2), 3)\n", "( 1 , 2 ) 3"},
		{"#define F(x) x\nint F;\n", "int F ;"},
		{"#define F() 7\nF()\n", "7"},
		{"#define LOG(fmt, ...) f(fmt, __VA_ARGS__)\nLOG(a, b, c)\n", "f ( a , b , c )"},
		{"#define STR(x) #x\nSTR(a + b)\n", "\"a + b\""},
		{"#define N 4\n#define M (N * 2)\nM\n", "( 4 * 2 )"},
		{"#define f(x) x g\n#define g f\nf(1)(2)\n", "1 f ( 2 )"},
	} {
		pp := New(Lex("macro.h", strings.NewReader(tc.src)), nil)
		if got := strings.Join(preprocess(t, pp), " "); got != tc.want {
			t.Errorf("%q: got %q, want %q", tc.src, got, tc.want)
		}
	}
}

func TestPreprocessorMacroPositions(t *testing.T) {
	src := "#define N 4\n// doc\nchar a[N];\n"
	toks := collect(t, New(Lex("pos.h", strings.NewReader(src)), nil))
	n := toks[3]
	if n.Val != "4" || n.Pos.Line != 3 || n.Pos.Col != 8 {
		t.Errorf("expanded token %s", n)
	}
	if c := toks[0].Comments; len(c) != 1 || c[0].Body() != "doc" {
		t.Errorf("comments on char = %+v", c)
	}
}

func TestPreprocessorMacroErrors(t *testing.T) {
	for _, tc := range []struct {
		src, want string
	}{
		{"#define F(a, b) a\nF(1)\n", "macro F invoked with 1 arguments but 2 were expected"},
		{"#define F(a) a\nF(1\n", "unterminated invocation of macro F"},
		{"#define CAT(a, b) a ## b\nCAT(x, y)\n", "token pasting"},
		{"#define\n", "macro name missing"},
		{"#define F(1) x\n", "expected a macro parameter"},
	} {
		pp := New(Lex("bad.h", strings.NewReader(tc.src)), nil)
		var err error
		for err == nil {
			var tok *Token
			tok, err = pp.Next()
			if err == nil && tok.Kind == EOF {
				break
			}
		}
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%q: got error %v, want %q", tc.src, err, tc.want)
		}
	}
}

func TestPreprocessorWarnings(t *testing.T) {
	src := "#define N 1\n#define N 2\n#warning careful\n#line 4\n#line 5\n#pragma pack(1)\nN\n"
	pp := New(Lex("warn.h", strings.NewReader(src)), nil)
	var warnings []string
	pp.Warn = func(pos FilePos, msg string) {
		warnings = append(warnings, msg)
	}
	if got := strings.Join(preprocess(t, pp), " "); got != "2" {
		t.Errorf("got %q", got)
	}
	want := []string{"N redefined", "#warning careful", "#line is ignored"}
	if diff := cmp.Diff(want, warnings); diff != "" {
		t.Errorf("warnings (-want +got):\n%s", diff)
	}
}

func TestPreprocessorDefine(t *testing.T) {
	pp := New(Lex("d.h", strings.NewReader("SIZE\n")), nil)
	if err := pp.Define("SIZE", "(8 * 2)"); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(preprocess(t, pp), " "); got != "( 8 * 2 )" {
		t.Errorf("got %q", got)
	}
	for _, name := range []string{"1X", "A B", ""} {
		if err := pp.Define(name, "1"); err == nil {
			t.Errorf("Define(%q) succeeded", name)
		}
	}
}

func TestPreprocessorIncludes(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.h":              "#include \"inner.h\"\n#include <sys/types.h>\n#include \"inner.h\"\nstruct a {};\n",
		"inner.h":             "#pragma once\nstruct b {};\n",
		"include/sys/types.h": "typedef long ssize;\n",
	})
	main := filepath.Join(dir, "main.h")
	f, err := os.Open(main)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	pp := New(Lex(main, f), NewStandardIncludeSearcher(filepath.Join(dir, "include")))
	got := strings.Join(preprocess(t, pp), " ")
	want := "struct b { } ; typedef long ssize ; struct a { } ;"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPreprocessorNoSearcher(t *testing.T) {
	pp := New(Lex("x.h", strings.NewReader("#include <missing.h>\nint x;\n")), nil)
	got := strings.Join(preprocess(t, pp), " ")
	if got != "int x ;" {
		t.Errorf("got %q", got)
	}
}

func TestPreprocessorMissingHeader(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.h": "int a;\n#include <missing.h>\n"})
	main := filepath.Join(dir, "main.h")
	f, err := os.Open(main)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	pp := New(Lex(main, f), NewStandardIncludeSearcher(dir))
	for {
		tok, err := pp.Next()
		if err != nil {
			loc, ok := err.(ErrorLoc)
			if !ok {
				t.Fatalf("error is %T, want ErrorLoc", err)
			}
			if loc.Pos.Line != 2 {
				t.Errorf("error on line %d, want 2", loc.Pos.Line)
			}
			if !strings.Contains(err.Error(), "missing.h") {
				t.Errorf("error %q does not name the header", err)
			}
			return
		}
		if tok.Kind == EOF {
			t.Fatal("expected an error for a missing header")
		}
	}
}

func TestPreprocessorErrorDirective(t *testing.T) {
	pp := New(Lex("e.h", strings.NewReader("#error \"unsupported\"\n")), nil)
	_, err := pp.Next()
	var loc ErrorLoc
	if !errors.As(err, &loc) {
		t.Fatalf("got %v, want an ErrorLoc", err)
	}
}

func TestPreprocessorConditionalsStayInFile(t *testing.T) {
	for _, tc := range []struct {
		main, inner, want string
	}{
		{"#include \"inner.h\"\n#endif\n", "#if 1\nint a;\n", "unterminated #if"},
		{"#if 1\n#include \"inner.h\"\n#endif\n", "#endif\n", "#endif without #if"},
	} {
		dir := writeFiles(t, map[string]string{"main.h": tc.main, "inner.h": tc.inner})
		main := filepath.Join(dir, "main.h")
		f, err := os.Open(main)
		if err != nil {
			t.Fatal(err)
		}
		pp := New(Lex(main, f), NewStandardIncludeSearcher(dir))
		for err == nil {
			var tok *Token
			tok, err = pp.Next()
			if err == nil && tok.Kind == EOF {
				break
			}
		}
		f.Close()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%q: got error %v, want %q", tc.main, err, tc.want)
		}
	}
}

func TestPreprocessorIncludedMacros(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.h":  "#include \"sizes.h\"\n#if defined(HAVE_NAME)\nchar name[NAME_LEN];\n#endif\n",
		"sizes.h": "#ifndef SIZES_H\n#define SIZES_H\n#define HAVE_NAME\n#define NAME_LEN 16\n#endif\n",
	})
	main := filepath.Join(dir, "main.h")
	f, err := os.Open(main)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	pp := New(Lex(main, f), NewStandardIncludeSearcher(dir))
	if got := strings.Join(preprocess(t, pp), " "); got != "char name [ 16 ] ;" {
		t.Errorf("got %q", got)
	}
}
