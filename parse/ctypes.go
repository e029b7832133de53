package parse

import (
	"fmt"
	"strings"
)

// CType is a declared C type. It is one of *Primitive, *Ptr, *Array,
// *StructRef, *EnumRef, *TypedefRef or *FunctionType.
type CType interface {
	// Quals returns the qualifiers applied directly to this type.
	Quals() Qualifiers
}

type Qualifiers struct {
	Const    bool
	Volatile bool
	Restrict bool
}

func (q Qualifiers) String() string {
	var parts []string
	if q.Const {
		parts = append(parts, "const")
	}
	if q.Volatile {
		parts = append(parts, "volatile")
	}
	if q.Restrict {
		parts = append(parts, "restrict")
	}
	return strings.Join(parts, " ")
}

func (q Qualifiers) merge(o Qualifiers) Qualifiers {
	return Qualifiers{
		Const:    q.Const || o.Const,
		Volatile: q.Volatile || o.Volatile,
		Restrict: q.Restrict || o.Restrict,
	}
}

type PrimitiveKind int

const (
	Void PrimitiveKind = iota // type is invalid
	Bool
	Char
	Short
	Int
	Long
	LLong
	Float
	Double
	LDouble
	// Integers as wide as a pointer, e.g. size_t.
	IntPtr
)

var primitiveKindToStr = [...]string{
	Void:    "void",
	Bool:    "_Bool",
	Char:    "char",
	Short:   "short",
	Int:     "int",
	Long:    "long",
	LLong:   "long long",
	Float:   "float",
	Double:  "double",
	LDouble: "long double",
	IntPtr:  "intptr",
}

func (k PrimitiveKind) String() string {
	if int(k) < 0 || int(k) >= len(primitiveKindToStr) {
		return fmt.Sprintf("PrimitiveKind(%d)", int(k))
	}
	return primitiveKindToStr[k]
}

type Primitive struct {
	Kind     PrimitiveKind
	Unsigned bool
	// Name is the spelling used in the source, normalized for keyword
	// combinations ("unsigned long int" is "unsigned long") and kept as is
	// for well known typedefs such as "uint8_t" or "size_t".
	Name string
	Qualifiers
}

func (p *Primitive) Quals() Qualifiers { return p.Qualifiers }

type Ptr struct {
	PointsTo CType
	// Qualifiers of the pointer itself, as in "float *const".
	Qualifiers
}

func (p *Ptr) Quals() Qualifiers { return p.Qualifiers }

type Array struct {
	MemberType CType
	// -1 for an array of unknown size, e.g. a flexible array member.
	Dim int
}

// Arrays are never qualified themselves, qualifiers belong to the member type.
func (a *Array) Quals() Qualifiers { return Qualifiers{} }

// A reference to a struct or union by tag.
type StructRef struct {
	Name    string
	IsUnion bool
	// Nil when the struct body is not declared in the translation unit.
	Decl *StructDeclaration
	Qualifiers
}

func (s *StructRef) Quals() Qualifiers { return s.Qualifiers }

type EnumRef struct {
	Name string
	Decl *EnumDeclaration
	Qualifiers
}

func (e *EnumRef) Quals() Qualifiers { return e.Qualifiers }

// A use of a typedef name.
type TypedefRef struct {
	Name   string
	Target CType
	Qualifiers
}

func (t *TypedefRef) Quals() Qualifiers { return t.Qualifiers }

type FunctionType struct {
	RetType  CType
	ArgTypes []CType
	ArgNames []string
	IsVarArg bool
}

func (f *FunctionType) Quals() Qualifiers { return Qualifiers{} }

// withQuals returns t with q added to its own qualifiers.
// Arrays pass the qualifiers on to their members.
func withQuals(t CType, q Qualifiers) CType {
	if q == (Qualifiers{}) {
		return t
	}
	switch t := t.(type) {
	case *Primitive:
		c := *t
		c.Qualifiers = c.Qualifiers.merge(q)
		return &c
	case *Ptr:
		c := *t
		c.Qualifiers = c.Qualifiers.merge(q)
		return &c
	case *StructRef:
		c := *t
		c.Qualifiers = c.Qualifiers.merge(q)
		return &c
	case *EnumRef:
		c := *t
		c.Qualifiers = c.Qualifiers.merge(q)
		return &c
	case *TypedefRef:
		c := *t
		c.Qualifiers = c.Qualifiers.merge(q)
		return &c
	case *Array:
		return &Array{MemberType: withQuals(t.MemberType, q), Dim: t.Dim}
	}
	return t
}

func IsPtrType(t CType) bool {
	_, ok := t.(*Ptr)
	return ok
}

// IsVoid reports whether t is void, looking through typedefs.
func IsVoid(t CType) bool {
	prim, ok := Resolve(t).(*Primitive)
	return ok && prim.Kind == Void
}

// Resolve follows typedef references to the underlying type.
// Qualifiers on the typedef uses are merged into the result.
func Resolve(t CType) CType {
	var q Qualifiers
	for {
		ref, ok := t.(*TypedefRef)
		if !ok {
			return withQuals(t, q)
		}
		q = q.merge(ref.Qualifiers)
		t = ref.Target
	}
}

// PointerDepth counts the pointer levels of t without resolving typedefs.
func PointerDepth(t CType) int {
	depth := 0
	for {
		ptr, ok := t.(*Ptr)
		if !ok {
			return depth
		}
		depth++
		t = ptr.PointsTo
	}
}

// TypeString spells t as an abstract C declaration, e.g. "float *const",
// "struct test_example", "char [16]" or "void (*)(int)".
func TypeString(t CType) string {
	return declString(t, "")
}

// declString spells t with inner as the declarator being built around it.
func declString(t CType, inner string) string {
	switch t := t.(type) {
	case *Ptr:
		s := "*"
		if q := t.Qualifiers.String(); q != "" {
			s += q
			if inner != "" {
				s += " "
			}
		}
		s += inner
		switch t.PointsTo.(type) {
		case *Array, *FunctionType:
			s = "(" + s + ")"
		}
		return declString(t.PointsTo, s)
	case *Array:
		if t.Dim < 0 {
			return declString(t.MemberType, inner+"[]")
		}
		return declString(t.MemberType, fmt.Sprintf("%s[%d]", inner, t.Dim))
	case *FunctionType:
		var args []string
		for _, a := range t.ArgTypes {
			args = append(args, TypeString(a))
		}
		if t.IsVarArg {
			args = append(args, "...")
		}
		if len(args) == 0 {
			args = []string{"void"}
		}
		return declString(t.RetType, inner+"("+strings.Join(args, ", ")+")")
	}
	base := baseName(t)
	if q := t.Quals().String(); q != "" {
		base = q + " " + base
	}
	if inner == "" {
		return base
	}
	return base + " " + inner
}

func baseName(t CType) string {
	switch t := t.(type) {
	case *Primitive:
		return t.Name
	case *StructRef:
		kw := "struct"
		if t.IsUnion {
			kw = "union"
		}
		if t.Name == "" {
			return kw + " <anonymous>"
		}
		return kw + " " + t.Name
	case *EnumRef:
		if t.Name == "" {
			return "enum <anonymous>"
		}
		return "enum " + t.Name
	case *TypedefRef:
		return t.Name
	}
	panic(fmt.Sprintf("internal error - unexpected type %T", t))
}

// Declaration spells a declaration of name with type t, e.g.
// "float *const field_e" or "char name[16]".
func Declaration(t CType, name string) string {
	return declString(t, name)
}
