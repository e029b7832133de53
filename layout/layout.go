// Package layout computes where a C compiler places the fields of a struct.
package layout

import (
	"math"

	"github.com/pkg/errors"

	"github.com/andrewchambers/cdecl/parse"
)

type Field struct {
	Decl   *parse.FieldDeclaration
	Offset int
	Size   int
	Align  int
}

type Layout struct {
	Struct *parse.StructDeclaration
	Size   int
	Align  int
	Fields []Field
}

// Field returns the layout of the field called name, or nil.
func (l *Layout) Field(name string) *Field {
	for i := range l.Fields {
		if l.Fields[i].Decl.Name == name {
			return &l.Fields[i]
		}
	}
	return nil
}

// Compute lays out s for m. Fields are placed in order at their natural
// alignment, unions place every field at offset zero. As with GCC a
// struct without fields has size zero.
func Compute(m *Machine, s *parse.StructDeclaration) (*Layout, error) {
	return newComputer(m).layout(s)
}

// computer caches the layouts of nested structs and detects
// structs that contain themselves.
type computer struct {
	m          *Machine
	done       map[*parse.StructDeclaration]*Layout
	inProgress map[*parse.StructDeclaration]bool
}

func newComputer(m *Machine) *computer {
	return &computer{
		m:          m,
		done:       make(map[*parse.StructDeclaration]*Layout),
		inProgress: make(map[*parse.StructDeclaration]bool),
	}
}

func structName(s *parse.StructDeclaration) string {
	if s.Name == "" {
		return s.Keyword() + " <anonymous>"
	}
	return s.Keyword() + " " + s.Name
}

func (c *computer) layout(s *parse.StructDeclaration) (*Layout, error) {
	if l, ok := c.done[s]; ok {
		return l, nil
	}
	if c.inProgress[s] {
		return nil, errors.Errorf("%s contains itself", structName(s))
	}
	c.inProgress[s] = true
	defer delete(c.inProgress, s)

	l := &Layout{Struct: s, Align: 1}
	offset := 0
	for i, f := range s.Fields {
		size, align, err := c.sizeAlign(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "%s field %s", structName(s), fieldName(f))
		}
		if arr, ok := parse.Resolve(f.Type).(*parse.Array); ok && arr.Dim < 0 && (i != len(s.Fields)-1 || s.IsUnion) {
			return nil, errors.Errorf("%s: flexible array member %s is not last", structName(s), f.Name)
		}
		if s.Packed {
			align = 1
		}
		fl := Field{Decl: f, Size: size, Align: align}
		if !s.IsUnion {
			offset = alignUp(offset, align)
			if offset > math.MaxInt-size {
				return nil, errors.Errorf("%s is too large", structName(s))
			}
			fl.Offset = offset
			offset += size
		} else if size > offset {
			offset = size
		}
		if align > l.Align {
			l.Align = align
		}
		l.Fields = append(l.Fields, fl)
	}
	l.Size = alignUp(offset, l.Align)
	c.done[s] = l
	return l, nil
}

func fieldName(f *parse.FieldDeclaration) string {
	if f.Name == "" {
		return "<anonymous>"
	}
	return f.Name
}

func (c *computer) sizeAlign(t parse.CType) (int, int, error) {
	switch t := t.(type) {
	case *parse.Primitive:
		size, err := c.m.primSize(t)
		if err != nil {
			return 0, 0, err
		}
		align, err := c.m.primAlign(t)
		return size, align, err
	case *parse.Ptr:
		return c.m.PtrSize, c.m.PtrAlign, nil
	case *parse.Array:
		size, align, err := c.sizeAlign(t.MemberType)
		if err != nil {
			return 0, 0, err
		}
		if t.Dim < 0 {
			return 0, align, nil
		}
		if t.Dim > 0 && size > math.MaxInt/t.Dim {
			return 0, 0, errors.New("array is too large")
		}
		return size * t.Dim, align, nil
	case *parse.EnumRef:
		return c.m.sizeTab[parse.Int], c.m.alignTab[parse.Int], nil
	case *parse.TypedefRef:
		return c.sizeAlign(t.Target)
	case *parse.StructRef:
		if t.Decl == nil {
			return 0, 0, errors.Errorf("incomplete type %s", parse.TypeString(t))
		}
		l, err := c.layout(t.Decl)
		if err != nil {
			return 0, 0, err
		}
		return l.Size, l.Align, nil
	case *parse.FunctionType:
		return 0, 0, errors.New("function type has no size")
	}
	return 0, 0, errors.Errorf("internal error - unexpected type %T", t)
}

// Size returns the size in bytes of t on m.
func (m *Machine) Size(t parse.CType) (int, error) {
	size, _, err := newComputer(m).sizeAlign(t)
	return size, err
}

// Align returns the alignment in bytes of t on m.
func (m *Machine) Align(t parse.CType) (int, error) {
	_, align, err := newComputer(m).sizeAlign(t)
	return align, err
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
