// Package dump renders parsed declarations as C text, JSON or YAML.
package dump

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"bitbucket.org/creachadair/stringset"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/andrewchambers/cdecl/layout"
	"github.com/andrewchambers/cdecl/parse"
)

// Unit is the serialized form of a translation unit.
type Unit struct {
	File     string    `json:"file,omitempty"`
	Structs  []Struct  `json:"structs"`
	Typedefs []Typedef `json:"typedefs,omitempty"`
	Enums    []Enum    `json:"enums,omitempty"`
	Funcs    []Func    `json:"funcs,omitempty"`
	Globals  []Global  `json:"globals,omitempty"`
}

type Struct struct {
	Name   string  `json:"name"`
	Union  bool    `json:"union,omitempty"`
	Packed bool    `json:"packed,omitempty"`
	Line   int     `json:"line"`
	Fields []Field `json:"fields"`
}

type Field struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	PointerDepth int    `json:"pointerDepth"`
	Const        bool   `json:"const,omitempty"`
	Annotation   string `json:"annotation,omitempty"`
	Doc          string `json:"doc,omitempty"`
}

type Typedef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Enum struct {
	Name      string         `json:"name"`
	Constants []EnumConstant `json:"constants"`
}

type EnumConstant struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type Func struct {
	Name string `json:"name"`
	// Type is the abstract function type, e.g. "int (const char *, ...)".
	Type     string  `json:"type"`
	Result   string  `json:"result"`
	Params   []Param `json:"params"`
	Variadic bool    `json:"variadic,omitempty"`
	Line     int     `json:"line"`
}

type Param struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

type Global struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Extern bool   `json:"extern,omitempty"`
	Line   int    `json:"line"`
}

// Records converts tu to its serialized form.
func Records(file string, tu *parse.TranslationUnit) *Unit {
	u := &Unit{File: file, Structs: []Struct{}}
	for _, s := range tu.Structs {
		rs := Struct{
			Name:   s.Name,
			Union:  s.IsUnion,
			Packed: s.Packed,
			Line:   s.Pos.Line,
			Fields: []Field{},
		}
		for _, f := range s.Fields {
			rs.Fields = append(rs.Fields, Field{
				Name:         f.Name,
				Type:         parse.TypeString(f.Type),
				PointerDepth: f.PointerDepth(),
				Const:        f.IsConst(),
				Annotation:   f.Annotation,
				Doc:          f.Doc,
			})
		}
		u.Structs = append(u.Structs, rs)
	}
	for _, td := range tu.Typedefs {
		u.Typedefs = append(u.Typedefs, Typedef{Name: td.Name, Type: parse.TypeString(td.Type)})
	}
	for _, e := range tu.Enums {
		re := Enum{Name: e.Name, Constants: []EnumConstant{}}
		for _, c := range e.Constants {
			re.Constants = append(re.Constants, EnumConstant{Name: c.Name, Value: c.Value})
		}
		u.Enums = append(u.Enums, re)
	}
	for _, f := range tu.Functions {
		rf := Func{
			Name:     f.Name,
			Type:     parse.TypeString(f.Type),
			Result:   parse.TypeString(f.Type.RetType),
			Params:   []Param{},
			Variadic: f.Type.IsVarArg,
			Line:     f.Pos.Line,
		}
		for i, at := range f.Type.ArgTypes {
			rf.Params = append(rf.Params, Param{Name: f.Type.ArgNames[i], Type: parse.TypeString(at)})
		}
		u.Funcs = append(u.Funcs, rf)
	}
	for _, g := range tu.Globals {
		u.Globals = append(u.Globals, Global{Name: g.Name, Type: parse.TypeString(g.Type), Extern: g.Extern, Line: g.Pos.Line})
	}
	return u
}

func JSON(w io.Writer, u *Unit) error {
	b, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding json")
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func YAML(w io.Writer, u *Unit) error {
	b, err := yaml.Marshal(u)
	if err != nil {
		return errors.Wrap(err, "encoding yaml")
	}
	_, err = w.Write(b)
	return err
}

// Text writes tu back as C declarations, one struct per block, with
// annotations as trailing comments.
func Text(w io.Writer, tu *parse.TranslationUnit) error {
	var b strings.Builder
	for _, e := range tu.Enums {
		fmt.Fprintf(&b, "enum %s {\n", e.Name)
		for _, c := range e.Constants {
			fmt.Fprintf(&b, "\t%s = %d,\n", c.Name, c.Value)
		}
		b.WriteString("};\n\n")
	}
	for _, s := range tu.Structs {
		name := s.Name
		if name == "" {
			name = "<anonymous>"
		}
		fmt.Fprintf(&b, "%s %s {\n", s.Keyword(), name)
		for _, f := range s.Fields {
			fmt.Fprintf(&b, "\t%s;", parse.Declaration(f.Type, f.Name))
			if f.Annotation != "" {
				fmt.Fprintf(&b, " // %s", f.Annotation)
			}
			b.WriteString("\n")
		}
		b.WriteString("};\n\n")
	}
	for _, td := range tu.Typedefs {
		fmt.Fprintf(&b, "typedef %s;\n", parse.Declaration(td.Type, td.Name))
	}
	if len(tu.Typedefs) != 0 && len(tu.Functions)+len(tu.Globals) != 0 {
		b.WriteString("\n")
	}
	for _, g := range tu.Globals {
		if g.Extern {
			b.WriteString("extern ")
		}
		fmt.Fprintf(&b, "%s;\n", parse.Declaration(g.Type, g.Name))
	}
	for _, f := range tu.Functions {
		fmt.Fprintf(&b, "%s;\n", parse.Declaration(f.Type, f.Name))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Layout writes a table of field offsets.
func Layout(w io.Writer, l *layout.Layout) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	name := l.Struct.Name
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Fprintf(tw, "%s %s\tsize %d\talign %d\n", l.Struct.Keyword(), name, l.Size, l.Align)
	for _, f := range l.Fields {
		fmt.Fprintf(tw, "  %d\t%s\t%d\n", f.Offset, parse.Declaration(f.Decl.Type, f.Decl.Name), f.Size)
	}
	return tw.Flush()
}

// Filter returns a unit holding only the declarations called one of names. Structs may be named by tag or by a typedef name.
// It is an error for a name to match nothing.
func Filter(tu *parse.TranslationUnit, names stringset.Set) (*parse.TranslationUnit, error) {
	tus, err := Select([]*parse.TranslationUnit{tu}, names)
	if err != nil {
		return nil, err
	}
	return tus[0], nil
}

// Select filters each of tus like Filter. A name only has to match in
// one of them.
func Select(tus []*parse.TranslationUnit, names stringset.Set) ([]*parse.TranslationUnit, error) {
	found := stringset.New()
	var ret []*parse.TranslationUnit
	for _, tu := range tus {
		ret = append(ret, filter(tu, names, found))
	}
	if missing := names.Diff(found); missing.Len() != 0 {
		elts := missing.Elements()
		sort.Strings(elts)
		return nil, errors.Errorf("no declaration named %s", strings.Join(elts, ", "))
	}
	return ret, nil
}

func filter(tu *parse.TranslationUnit, names, found stringset.Set) *parse.TranslationUnit {
	keep := make(map[*parse.StructDeclaration]bool)
	for name := range names {
		if s := tu.FindStruct(name); s != nil {
			keep[s] = true
			found.Add(name)
		}
	}
	ret := &parse.TranslationUnit{}
	for _, s := range tu.Structs {
		if keep[s] {
			ret.Structs = append(ret.Structs, s)
		}
	}
	for _, td := range tu.Typedefs {
		if names.Contains(td.Name) {
			ret.Typedefs = append(ret.Typedefs, td)
			found.Add(td.Name)
		}
	}
	for _, e := range tu.Enums {
		if names.Contains(e.Name) {
			ret.Enums = append(ret.Enums, e)
			found.Add(e.Name)
		}
	}
	for _, f := range tu.Functions {
		if names.Contains(f.Name) {
			ret.Functions = append(ret.Functions, f)
			found.Add(f.Name)
		}
	}
	for _, g := range tu.Globals {
		if names.Contains(g.Name) {
			ret.Globals = append(ret.Globals, g)
			found.Add(g.Name)
		}
	}
	return ret
}

// Prefixed returns a unit holding the declarations whose name starts with
// one of prefixes. Structs also match by a typedef name that names them
// and enums by any of their constants. Nothing matching is not an error.
func Prefixed(tu *parse.TranslationUnit, prefixes []string) *parse.TranslationUnit {
	match := func(name string) bool {
		for _, p := range prefixes {
			if name != "" && strings.HasPrefix(name, p) {
				return true
			}
		}
		return false
	}
	keep := make(map[*parse.StructDeclaration]bool)
	ret := &parse.TranslationUnit{}
	for _, td := range tu.Typedefs {
		if !match(td.Name) {
			continue
		}
		ret.Typedefs = append(ret.Typedefs, td)
		if s := tu.FindStruct(td.Name); s != nil {
			keep[s] = true
		}
	}
	for _, s := range tu.Structs {
		if keep[s] || match(s.Name) {
			ret.Structs = append(ret.Structs, s)
		}
	}
	for _, e := range tu.Enums {
		ok := match(e.Name)
		for _, c := range e.Constants {
			ok = ok || match(c.Name)
		}
		if ok {
			ret.Enums = append(ret.Enums, e)
		}
	}
	for _, f := range tu.Functions {
		if match(f.Name) {
			ret.Functions = append(ret.Functions, f)
		}
	}
	for _, g := range tu.Globals {
		if match(g.Name) {
			ret.Globals = append(ret.Globals, g)
		}
	}
	return ret
}
