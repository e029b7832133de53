package parse

import "github.com/andrewchambers/cdecl/cpp"

type FieldDeclaration struct {
	// Empty for an anonymous struct or union member.
	Name string
	Type CType
	// Annotation is the comment trailing the field on the line of its ';',
	// with the comment markers removed. It is never interpreted.
	Annotation string
	// Doc is the comment on the lines directly above the field.
	Doc string
	Pos cpp.FilePos
}

// IsConst reports whether the declared object itself is const qualified,
// looking through typedefs. For "const char *p" this is false, for
// "char *const p" it is true.
func (f *FieldDeclaration) IsConst() bool {
	t := Resolve(f.Type)
	for {
		arr, ok := t.(*Array)
		if !ok {
			break
		}
		t = Resolve(arr.MemberType)
	}
	return t.Quals().Const
}

func (f *FieldDeclaration) PointerDepth() int {
	return PointerDepth(f.Type)
}

type StructDeclaration struct {
	// Empty for an anonymous struct.
	Name    string
	Fields  []*FieldDeclaration
	IsUnion bool
	// Set by __attribute__((packed)).
	Packed bool
	Pos    cpp.FilePos
}

// Field returns the field called name, or nil.
func (s *StructDeclaration) Field(name string) *FieldDeclaration {
	for _, f := range s.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (s *StructDeclaration) Keyword() string {
	if s.IsUnion {
		return "union"
	}
	return "struct"
}

type TypedefDeclaration struct {
	Name string
	Type CType
	Pos  cpp.FilePos
}

type EnumConstant struct {
	Name  string
	Value int64
}

type EnumDeclaration struct {
	Name      string
	Constants []EnumConstant
	Pos       cpp.FilePos
}

// FunctionDeclaration is a function with external linkage, from its first
// prototype or definition.
type FunctionDeclaration struct {
	Name string
	Type *FunctionType
	Pos  cpp.FilePos
}

// GlobalDeclaration is a variable with external linkage.
type GlobalDeclaration struct {
	Name string
	Type CType
	// Extern is set when the first declaration does not define it.
	Extern bool
	Pos    cpp.FilePos
}

// TranslationUnit holds the declarations of one parsed file, in the order
// they were completed. Static functions and variables are left out.
type TranslationUnit struct {
	Structs   []*StructDeclaration
	Typedefs  []*TypedefDeclaration
	Enums     []*EnumDeclaration
	Functions []*FunctionDeclaration
	Globals   []*GlobalDeclaration
}

// FindStruct looks up a struct or union by tag, then by a typedef name
// that names one.
func (tu *TranslationUnit) FindStruct(name string) *StructDeclaration {
	for _, s := range tu.Structs {
		if s.Name == name {
			return s
		}
	}
	td := tu.FindTypedef(name)
	if td == nil {
		return nil
	}
	if ref, ok := Resolve(td.Type).(*StructRef); ok {
		return ref.Decl
	}
	return nil
}

func (tu *TranslationUnit) FindTypedef(name string) *TypedefDeclaration {
	for _, td := range tu.Typedefs {
		if td.Name == name {
			return td
		}
	}
	return nil
}

func (tu *TranslationUnit) FindEnum(name string) *EnumDeclaration {
	for _, e := range tu.Enums {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (tu *TranslationUnit) FindFunction(name string) *FunctionDeclaration {
	for _, f := range tu.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (tu *TranslationUnit) FindGlobal(name string) *GlobalDeclaration {
	for _, g := range tu.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}
