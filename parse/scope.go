package parse

import "fmt"

type scope struct {
	parent *scope
	kv     map[string]Symbol
}

func (s *scope) lookup(k string) (Symbol, error) {
	sym, ok := s.kv[k]
	if ok {
		return sym, nil
	}
	if s.parent != nil {
		return s.parent.lookup(k)
	}
	return nil, fmt.Errorf("%s is not defined", k)
}

// define only checks the innermost scope, names from a parent may be shadowed.
func (s *scope) define(k string, v Symbol) error {
	_, ok := s.kv[k]
	if ok {
		return fmt.Errorf("redefinition of %s", k)
	}
	s.kv[k] = v
	return nil
}

func newScope(parent *scope) *scope {
	ret := &scope{}
	ret.parent = parent
	ret.kv = make(map[string]Symbol)
	return ret
}

type Symbol interface{}

// A typedef name.
type TSymbol struct {
	Decl *TypedefDeclaration
}

// A typedef name every unit starts with, e.g. uint32_t.
type BuiltinSymbol struct {
	Type *Primitive
}

// An enumeration constant.
type CSymbol struct {
	Val int64
}

type tagKind int

const (
	structTag tagKind = iota
	unionTag
	enumTag
)

func (k tagKind) String() string {
	switch k {
	case unionTag:
		return "union"
	case enumTag:
		return "enum"
	}
	return "struct"
}

// A struct, union or enum tag. The declaration is nil until the body is seen.
type tagSymbol struct {
	Kind   tagKind
	Struct *StructDeclaration
	Enum   *EnumDeclaration
}

func (t *tagSymbol) hasBody() bool {
	return t.Struct != nil || t.Enum != nil
}

var builtinTypes = map[string]*Primitive{
	"bool":      {Kind: Bool, Unsigned: true},
	"int8_t":    {Kind: Char},
	"uint8_t":   {Kind: Char, Unsigned: true},
	"int16_t":   {Kind: Short},
	"uint16_t":  {Kind: Short, Unsigned: true},
	"int32_t":   {Kind: Int},
	"uint32_t":  {Kind: Int, Unsigned: true},
	"int64_t":   {Kind: LLong},
	"uint64_t":  {Kind: LLong, Unsigned: true},
	"intptr_t":  {Kind: IntPtr},
	"uintptr_t": {Kind: IntPtr, Unsigned: true},
	"ptrdiff_t": {Kind: IntPtr},
	"ssize_t":   {Kind: IntPtr},
	"size_t":    {Kind: IntPtr, Unsigned: true},
}

func newBuiltinScope() *scope {
	s := newScope(nil)
	for name, prim := range builtinTypes {
		p := *prim
		p.Name = name
		s.kv[name] = &BuiltinSymbol{Type: &p}
	}
	return s
}
