package parse

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"bitbucket.org/creachadair/stringset"
	"github.com/pkg/errors"

	"github.com/andrewchambers/cdecl/cpp"
)

// Storage class
type SClass int

const (
	SC_AUTO SClass = iota
	SC_REGISTER
	SC_STATIC
	SC_EXTERN
	SC_TYPEDEF
)

type parser struct {
	types  *scope
	tags   *scope
	consts *scope
	pp     *cpp.Preprocessor
	tu     *TranslationUnit
	// prev is the last consumed token.
	prev, curt, nextt *cpp.Token
	// Tag references are resolved once the whole unit has been seen,
	// so forward references find bodies declared later.
	structRefs []*StructRef
	enumRefs   []*EnumRef
	// Depth of extern "C" { ... } blocks.
	linkageDepth int
	// Names of the functions and globals recorded so far.
	objects stringset.Set
}

type parseErrorBreakOut struct {
	err *SyntaxError
}

// Parse reads every declaration from pp. Structs, unions, typedefs, enums,
// function prototypes and global variables are recorded. Function bodies
// and initializers are skipped.
func Parse(pp *cpp.Preprocessor) (tu *TranslationUnit, errRet error) {
	p := &parser{}
	p.pp = pp
	p.types = newScope(newBuiltinScope())
	p.tags = newScope(nil)
	p.consts = newScope(nil)
	p.tu = &TranslationUnit{}
	p.objects = stringset.New()

	defer func() {
		if e := recover(); e != nil {
			peb := e.(parseErrorBreakOut) // Will re-panic if not a breakout.
			tu = nil
			errRet = peb.err
		}
	}()
	p.next()
	p.next()
	p.parseTranslationUnit()
	p.resolveTags()
	return p.tu, nil
}

// ParseString parses src without following includes.
func ParseString(name, src string) (*TranslationUnit, error) {
	return Parse(cpp.New(cpp.Lex(name, strings.NewReader(src)), nil))
}

func (p *parser) errorPos(m string, pos cpp.FilePos, vals ...interface{}) {
	msg := fmt.Sprintf(m, vals...)
	if os.Getenv("CDECLDEBUG") == "true" {
		msg = fmt.Sprintf("%s\n%s", msg, debug.Stack())
	}
	panic(parseErrorBreakOut{&SyntaxError{Msg: msg, Pos: pos}})
}

func (p *parser) expect(k cpp.TokenKind) {
	if p.curt.Kind != k {
		p.errorPos("expected %s got %s", p.curt.Pos, k, p.curt.Kind)
	}
	p.next()
}

func (p *parser) next() {
	p.prev = p.curt
	p.curt = p.nextt
	t, err := p.pp.Next()
	if err != nil {
		var loc cpp.ErrorLoc
		if errors.As(err, &loc) {
			p.errorPos("%s", loc.Pos, loc.Err)
		}
		var pos cpp.FilePos
		if p.curt != nil {
			pos = p.curt.Pos
		}
		p.errorPos("%s", pos, err)
	}
	p.nextt = t
}

func (p *parser) parseTranslationUnit() {
	for {
		switch {
		case p.curt.Kind == cpp.EOF:
			if p.linkageDepth > 0 {
				p.errorPos("expected %s got %s", p.curt.Pos, cpp.TokenKind('}'), p.curt.Kind)
			}
			return
		case p.curt.Kind == ';':
			p.next()
		case p.curt.Kind == '}' && p.linkageDepth > 0:
			p.linkageDepth--
			p.next()
		case p.curt.Kind == cpp.EXTERN && p.nextt.Kind == cpp.STRING:
			// extern "C"
			p.next()
			p.next()
			if p.curt.Kind == '{' {
				p.linkageDepth++
				p.next()
			}
		case p.isStaticAssert():
			p.skipStaticAssert()
		default:
			p.parseDeclaration()
		}
	}
}

func (p *parser) parseDeclaration() {
	firstDecl := true
	sc, ty := p.parseDeclarationSpecifiers(true)
	if p.curt.Kind == ';' {
		p.next()
		return
	}
	if p.curt.Kind == cpp.EOF || p.curt.Kind == '}' {
		switch ty := ty.(type) {
		case *StructRef:
			kind := structTag
			if ty.IsUnion {
				kind = unionTag
			}
			p.errorPos("expected ';' after %s", p.prev.Pos, kind)
		case *EnumRef:
			p.errorPos("expected ';' after enum", p.prev.Pos)
		}
	}
	for {
		name, pos, dty := p.parseDeclarator(ty, false)
		p.skipAttributes()
		if sc == SC_TYPEDEF {
			p.defineTypedef(name, pos, dty)
		} else {
			p.declareObject(sc, name, pos, dty)
		}
		if sc != SC_TYPEDEF && firstDecl && p.curt.Kind == '{' {
			if _, ok := dty.(*FunctionType); !ok {
				p.errorPos("expected '=', ',' or ';'", p.curt.Pos)
			}
			p.skipFunctionBody()
			return
		}
		if p.curt.Kind == '=' {
			if sc == SC_TYPEDEF {
				p.errorPos("typedef %s is initialized", pos, name)
			}
			p.next()
			p.skipTo("initializer", ',', ';')
		}
		if p.curt.Kind != ',' {
			break
		}
		p.next()
		firstDecl = false
	}
	if p.curt.Kind != ';' {
		p.errorPos("expected '=', ',' or ';'", p.curt.Pos)
	}
	p.expect(';')
}

// declareObject records a function or variable with external linkage
// the first time its name is seen.
func (p *parser) declareObject(sc SClass, name string, pos cpp.FilePos, ty CType) {
	if sc == SC_STATIC || name == "" || !p.objects.Add(name) {
		return
	}
	if ft, ok := Resolve(ty).(*FunctionType); ok {
		p.tu.Functions = append(p.tu.Functions, &FunctionDeclaration{Name: name, Type: ft, Pos: pos})
		return
	}
	p.tu.Globals = append(p.tu.Globals, &GlobalDeclaration{
		Name:   name,
		Type:   ty,
		Extern: sc == SC_EXTERN && p.curt.Kind != '=',
		Pos:    pos,
	})
}

func (p *parser) defineTypedef(name string, pos cpp.FilePos, ty CType) {
	if name == "" {
		p.errorPos("typedef requires a name", pos)
	}
	// Repeating a typedef with the same type is allowed.
	if old, ok := p.types.kv[name].(*TSymbol); ok {
		if !sameType(old.Decl.Type, ty) {
			p.errorPos("redefinition of typedef %s with a different type", pos, name)
		}
		return
	}
	decl := &TypedefDeclaration{Name: name, Type: ty, Pos: pos}
	if err := p.types.define(name, &TSymbol{Decl: decl}); err != nil {
		p.errorPos("%s", pos, err)
	}
	p.tu.Typedefs = append(p.tu.Typedefs, decl)
}

func sameType(a, b CType) bool {
	ra, aok := a.(*StructRef)
	rb, bok := b.(*StructRef)
	if aok && bok && ra.Name == "" && rb.Name == "" {
		return ra.Decl == rb.Decl && ra.Qualifiers == rb.Qualifiers
	}
	return TypeString(a) == TypeString(b)
}

func (p *parser) parseParameterDeclaration() (string, CType) {
	_, ty := p.parseDeclarationSpecifiers(true)
	name, _, ty := p.parseDeclarator(ty, true)
	return name, ty
}

func storageClass(k cpp.TokenKind) SClass {
	switch k {
	case cpp.TYPEDEF:
		return SC_TYPEDEF
	case cpp.EXTERN:
		return SC_EXTERN
	case cpp.STATIC:
		return SC_STATIC
	case cpp.REGISTER:
		return SC_REGISTER
	}
	return SC_AUTO
}

func (p *parser) parseDeclarationSpecifiers(allowStorage bool) (SClass, CType) {
	sc := SC_AUTO
	scSeen := false
	var quals Qualifiers
	var named CType
	spec := make(map[cpp.TokenKind]int)
	pos := p.curt.Pos
loop:
	for {
		switch p.curt.Kind {
		case cpp.TYPEDEF, cpp.EXTERN, cpp.STATIC, cpp.REGISTER, cpp.AUTO:
			if !allowStorage {
				p.errorPos("storage class %s is not allowed here", p.curt.Pos, p.curt.Val)
			}
			if scSeen {
				p.errorPos("multiple storage classes in declaration specifiers", p.curt.Pos)
			}
			scSeen = true
			sc = storageClass(p.curt.Kind)
		case cpp.INLINE:
		case cpp.CONST:
			quals.Const = true
		case cpp.VOLATILE:
			quals.Volatile = true
		case cpp.RESTRICT:
			quals.Restrict = true
		case cpp.VOID, cpp.BOOL, cpp.CHAR, cpp.SHORT, cpp.INT, cpp.LONG,
			cpp.FLOAT, cpp.DOUBLE, cpp.SIGNED, cpp.UNSIGNED:
			if named != nil {
				p.errorPos("invalid combination of type specifiers", p.curt.Pos)
			}
			spec[p.curt.Kind]++
		case cpp.STRUCT, cpp.UNION, cpp.ENUM:
			if named != nil || len(spec) != 0 {
				p.errorPos("invalid combination of type specifiers", p.curt.Pos)
			}
			if p.curt.Kind == cpp.ENUM {
				named = p.parseEnum()
			} else {
				named = p.parseStruct()
			}
			continue
		case cpp.IDENT:
			if isAttribute(p.curt) {
				p.skipAttributes()
				continue
			}
			if named != nil || len(spec) != 0 {
				break loop
			}
			t := p.lookupTypeName(p.curt.Val)
			if t == nil {
				break loop
			}
			named = t
		default:
			break loop
		}
		p.next()
	}
	ty := named
	if ty == nil {
		if len(spec) == 0 {
			if p.curt.Kind == cpp.IDENT {
				p.errorPos("unknown type name %s", p.curt.Pos, p.curt.Val)
			}
			p.errorPos("missing type specifier before %s", p.curt.Pos, p.curt.Kind)
		}
		ty = p.primitiveFromSpec(spec, pos)
	}
	ty = withQuals(ty, quals)
	p.trackRef(ty)
	return sc, ty
}

func (p *parser) trackRef(t CType) {
	switch t := t.(type) {
	case *StructRef:
		p.structRefs = append(p.structRefs, t)
	case *EnumRef:
		p.enumRefs = append(p.enumRefs, t)
	}
}

func (p *parser) lookupTypeName(name string) CType {
	sym, err := p.types.lookup(name)
	if err != nil {
		return nil
	}
	switch sym := sym.(type) {
	case *TSymbol:
		return &TypedefRef{Name: name, Target: sym.Decl.Type}
	case *BuiltinSymbol:
		prim := *sym.Type
		return &prim
	}
	return nil
}

// primitiveFromSpec checks a set of type specifier keywords
// and returns the primitive they name.
func (p *parser) primitiveFromSpec(spec map[cpp.TokenKind]int, pos cpp.FilePos) *Primitive {
	invalid := func() {
		p.errorPos("invalid combination of type specifiers", pos)
	}
	for k, n := range spec {
		if n > 1 && k != cpp.LONG {
			p.errorPos("duplicate %s", pos, k)
		}
	}
	longs := spec[cpp.LONG]
	hasInt := spec[cpp.INT] > 0
	signed := spec[cpp.SIGNED] > 0
	unsigned := spec[cpp.UNSIGNED] > 0
	if longs > 2 || (signed && unsigned) {
		invalid()
	}
	var base cpp.TokenKind
	for _, k := range []cpp.TokenKind{cpp.VOID, cpp.BOOL, cpp.CHAR, cpp.SHORT, cpp.FLOAT, cpp.DOUBLE} {
		if spec[k] == 0 {
			continue
		}
		if base != 0 {
			invalid()
		}
		base = k
	}
	prim := &Primitive{Unsigned: unsigned}
	switch base {
	case cpp.VOID, cpp.BOOL, cpp.FLOAT:
		if longs > 0 || hasInt || signed || unsigned {
			invalid()
		}
		switch base {
		case cpp.VOID:
			prim.Kind = Void
		case cpp.BOOL:
			prim.Kind = Bool
			prim.Unsigned = true
		default:
			prim.Kind = Float
		}
		prim.Name = prim.Kind.String()
		return prim
	case cpp.DOUBLE:
		if longs > 1 || hasInt || signed || unsigned {
			invalid()
		}
		prim.Kind = Double
		if longs == 1 {
			prim.Kind = LDouble
		}
		prim.Name = prim.Kind.String()
		return prim
	case cpp.CHAR:
		if longs > 0 || hasInt {
			invalid()
		}
		prim.Kind = Char
	case cpp.SHORT:
		if longs > 0 {
			invalid()
		}
		prim.Kind = Short
	default:
		switch longs {
		case 0:
			prim.Kind = Int
		case 1:
			prim.Kind = Long
		default:
			prim.Kind = LLong
		}
	}
	switch {
	case unsigned:
		prim.Name = "unsigned " + prim.Kind.String()
	case signed && prim.Kind == Char:
		prim.Name = "signed char"
	default:
		prim.Name = prim.Kind.String()
	}
	return prim
}

// Declarator
// ----------
//
// A declarator is the part of a declaration that specifies
// the name that is to be introduced into the program.
//
// unsigned int a, *b, **c, *const*d *volatile*e ;
//              ^  ^^  ^^^  ^^^^^^^^ ^^^^^^^^^^^
//
// Direct Declarator
// -----------------
//
// A direct declarator is missing the pointer prefix.
//
// e.g.
// unsigned int *a[32], b[];
//               ^^^^^  ^^^
//
// Abstract Declarator
// -------------------
//
// A declarator missing an identifier.

func (p *parser) parseDeclarator(basety CType, abstract bool) (string, cpp.FilePos, CType) {
	for p.curt.Kind == '*' {
		p.next()
		ptr := &Ptr{PointsTo: basety}
		ptr.Qualifiers = p.parseTypeQualifiers()
		basety = ptr
	}
	return p.parseDirectDeclarator(basety, abstract)
}

func (p *parser) parseTypeQualifiers() Qualifiers {
	var q Qualifiers
	for {
		switch p.curt.Kind {
		case cpp.CONST:
			q.Const = true
		case cpp.VOLATILE:
			q.Volatile = true
		case cpp.RESTRICT:
			q.Restrict = true
		case cpp.IDENT:
			if !isAttribute(p.curt) {
				return q
			}
			p.skipAttributes()
			continue
		default:
			return q
		}
		p.next()
	}
}

func (p *parser) parseDirectDeclarator(basety CType, abstract bool) (string, cpp.FilePos, CType) {
	pos := p.curt.Pos
	switch {
	case p.curt.Kind == cpp.IDENT:
		name := p.curt.Val
		p.next()
		return name, pos, p.parseDeclaratorTail(basety)
	case p.curt.Kind == '(' && (!abstract || p.startsNestedDeclarator()):
		// The nested declarator wraps whatever the tail after ')' builds,
		// so parse it around a placeholder and fill the placeholder in after.
		p.next()
		hole := &Primitive{Name: "<hole>"}
		name, pos, inner := p.parseDeclarator(hole, abstract)
		p.expect(')')
		outer := p.parseDeclaratorTail(basety)
		return name, pos, fillHole(inner, hole, outer)
	case abstract:
		return "", pos, p.parseDeclaratorTail(basety)
	}
	p.errorPos("expected ident, '(' or '*' but got %s", p.curt.Pos, p.curt.Kind)
	panic("unreachable")
}

// startsNestedDeclarator tells "(*)" from a parameter list
// in an abstract declarator.
func (p *parser) startsNestedDeclarator() bool {
	switch p.nextt.Kind {
	case '*', '(', '[':
		return true
	case cpp.IDENT:
		return p.lookupTypeName(p.nextt.Val) == nil
	}
	return false
}

func fillHole(t CType, hole *Primitive, repl CType) CType {
	if prim, ok := t.(*Primitive); ok && prim == hole {
		return repl
	}
	switch t := t.(type) {
	case *Ptr:
		t.PointsTo = fillHole(t.PointsTo, hole, repl)
	case *Array:
		t.MemberType = fillHole(t.MemberType, hole, repl)
	case *FunctionType:
		t.RetType = fillHole(t.RetType, hole, repl)
	}
	return t
}

func (p *parser) parseDeclaratorTail(basety CType) CType {
	switch p.curt.Kind {
	case '[':
		lbrack := p.curt.Pos
		p.next()
		dim := -1
		if p.curt.Kind != ']' {
			pos := p.curt.Pos
			n := p.parseConstantExpression()
			if n < 0 {
				p.errorPos("size of array is negative", pos)
			}
			if n > math.MaxInt32 {
				p.errorPos("array is too large", pos)
			}
			dim = int(n)
		}
		p.expect(']')
		member := p.parseDeclaratorTail(basety)
		if arr, ok := Resolve(member).(*Array); ok && arr.Dim < 0 {
			p.errorPos("array has incomplete element type %s", lbrack, TypeString(member))
		}
		return &Array{MemberType: member, Dim: dim}
	case '(':
		return p.parseFunctionTail(basety)
	}
	return basety
}

func (p *parser) parseFunctionTail(retty CType) CType {
	p.expect('(')
	ft := &FunctionType{RetType: retty}
	if p.curt.Kind == cpp.VOID && p.nextt.Kind == ')' {
		p.next()
	} else if p.curt.Kind != ')' {
		for {
			if p.curt.Kind == cpp.ELLIPSIS {
				p.next()
				ft.IsVarArg = true
				break
			}
			name, ty := p.parseParameterDeclaration()
			ft.ArgNames = append(ft.ArgNames, name)
			ft.ArgTypes = append(ft.ArgTypes, ty)
			if p.curt.Kind != ',' {
				break
			}
			p.next()
		}
	}
	p.expect(')')
	return ft
}

func (p *parser) parseStruct() CType {
	pos := p.curt.Pos
	kind := structTag
	if p.curt.Kind == cpp.UNION {
		kind = unionTag
	}
	p.next()
	packed := p.skipAttributes()
	name := ""
	if p.curt.Kind == cpp.IDENT {
		name = p.curt.Val
		p.next()
	}
	ref := &StructRef{Name: name, IsUnion: kind == unionTag}
	if p.curt.Kind != '{' {
		if name == "" {
			p.errorPos("expected identifier or '{' after %s", p.curt.Pos, kind)
		}
		p.useTag(name, kind, pos)
		return ref
	}
	decl := &StructDeclaration{Name: name, IsUnion: ref.IsUnion, Pos: pos}
	if name != "" {
		p.defineTag(name, kind, pos).Struct = decl
	}
	p.expect('{')
	names := stringset.New()
	for p.curt.Kind != '}' {
		switch {
		case p.curt.Kind == cpp.EOF:
			p.errorPos("unexpected end of file in %s body", p.curt.Pos, kind)
		case p.curt.Kind == ';':
			p.next()
		case p.isStaticAssert():
			p.skipStaticAssert()
		default:
			p.parseStructDeclaration(decl, names)
		}
	}
	p.expect('}')
	if p.skipAttributes() {
		packed = true
	}
	decl.Packed = packed
	p.tu.Structs = append(p.tu.Structs, decl)
	ref.Decl = decl
	return ref
}

// parseStructDeclaration parses one field line, which may declare
// several fields sharing the same base type.
func (p *parser) parseStructDeclaration(decl *StructDeclaration, names stringset.Set) {
	start := p.curt.Pos
	doc := p.docComments(p.curt)
	_, basety := p.parseDeclarationSpecifiers(false)
	if p.curt.Kind == ';' {
		ref, ok := basety.(*StructRef)
		if !ok || ref.Name != "" || ref.Decl == nil {
			p.errorPos("declaration does not declare anything", start)
		}
		p.hoistNames(ref.Decl, names, start)
		semi := p.curt
		p.next()
		decl.Fields = append(decl.Fields, &FieldDeclaration{
			Type:       basety,
			Annotation: p.trailingComments(semi),
			Doc:        doc,
			Pos:        start,
		})
		return
	}
	var fields []*FieldDeclaration
	for {
		name, pos, ty := p.parseDeclarator(basety, false)
		p.skipAttributes()
		if p.curt.Kind == ':' {
			p.errorPos("bitfields are not supported", p.curt.Pos)
		}
		if _, ok := ty.(*FunctionType); ok {
			p.errorPos("field %s declared as a function", pos, name)
		}
		if IsVoid(ty) {
			p.errorPos("field %s has type void", pos, name)
		}
		if !names.Add(name) {
			p.errorPos("redefinition of field %s", pos, name)
		}
		fields = append(fields, &FieldDeclaration{Name: name, Type: ty, Doc: doc, Pos: pos})
		if p.curt.Kind != ',' {
			break
		}
		p.next()
	}
	semi := p.curt
	p.expect(';')
	annotation := p.trailingComments(semi)
	for _, f := range fields {
		f.Annotation = annotation
	}
	decl.Fields = append(decl.Fields, fields...)
}

// hoistNames adds the fields of an anonymous member to the names
// of the enclosing struct.
func (p *parser) hoistNames(anon *StructDeclaration, names stringset.Set, pos cpp.FilePos) {
	for _, f := range anon.Fields {
		if f.Name == "" {
			if ref, ok := f.Type.(*StructRef); ok && ref.Decl != nil {
				p.hoistNames(ref.Decl, names, pos)
			}
			continue
		}
		if !names.Add(f.Name) {
			p.errorPos("redefinition of field %s", pos, f.Name)
		}
	}
}

// docComments returns the comments attached to tok, leaving out those on
// the line of the previous token, which trail that token instead.
func (p *parser) docComments(tok *cpp.Token) string {
	var lines []string
	for _, c := range tok.Comments {
		if p.prev != nil && c.Pos.File == p.prev.Pos.File && c.Pos.Line == p.prev.Pos.Line {
			continue
		}
		lines = append(lines, c.Body())
	}
	return strings.Join(lines, "\n")
}

// trailingComments returns the comments on the line of semi,
// either just before it or just after it.
func (p *parser) trailingComments(semi *cpp.Token) string {
	var parts []string
	for _, tok := range []*cpp.Token{semi, p.curt} {
		for _, c := range tok.Comments {
			if c.Pos.File == semi.Pos.File && c.Pos.Line == semi.Pos.Line {
				parts = append(parts, c.Body())
			}
		}
	}
	return strings.Join(parts, " ")
}

func (p *parser) parseEnum() CType {
	pos := p.curt.Pos
	p.expect(cpp.ENUM)
	p.skipAttributes()
	name := ""
	if p.curt.Kind == cpp.IDENT {
		name = p.curt.Val
		p.next()
	}
	ref := &EnumRef{Name: name}
	if p.curt.Kind != '{' {
		if name == "" {
			p.errorPos("expected identifier or '{' after enum", p.curt.Pos)
		}
		p.useTag(name, enumTag, pos)
		return ref
	}
	decl := &EnumDeclaration{Name: name, Pos: pos}
	if name != "" {
		p.defineTag(name, enumTag, pos).Enum = decl
	}
	p.expect('{')
	var val int64
	for p.curt.Kind != '}' {
		cpos := p.curt.Pos
		if p.curt.Kind != cpp.IDENT {
			p.errorPos("expected an enumerator name but got %s", cpos, p.curt.Kind)
		}
		cname := p.curt.Val
		p.next()
		p.skipAttributes()
		if p.curt.Kind == '=' {
			p.next()
			val = p.parseConstantExpression()
		}
		if err := p.consts.define(cname, &CSymbol{Val: val}); err != nil {
			p.errorPos("redefinition of enumerator %s", cpos, cname)
		}
		decl.Constants = append(decl.Constants, EnumConstant{Name: cname, Value: val})
		val++
		if p.curt.Kind != ',' {
			break
		}
		p.next()
	}
	p.expect('}')
	p.skipAttributes()
	p.tu.Enums = append(p.tu.Enums, decl)
	ref.Decl = decl
	return ref
}

func (p *parser) useTag(name string, kind tagKind, pos cpp.FilePos) *tagSymbol {
	sym, err := p.tags.lookup(name)
	if err != nil {
		t := &tagSymbol{Kind: kind}
		p.tags.define(name, t)
		return t
	}
	t := sym.(*tagSymbol)
	if t.Kind != kind {
		p.errorPos("use of %s %s does not match its previous declaration as %s", pos, kind, name, t.Kind)
	}
	return t
}

func (p *parser) defineTag(name string, kind tagKind, pos cpp.FilePos) *tagSymbol {
	t := p.useTag(name, kind, pos)
	if t.hasBody() {
		p.errorPos("redefinition of %s %s", pos, kind, name)
	}
	return t
}

func (p *parser) resolveTags() {
	for _, ref := range p.structRefs {
		if ref.Decl != nil || ref.Name == "" {
			continue
		}
		if sym, err := p.tags.lookup(ref.Name); err == nil {
			ref.Decl = sym.(*tagSymbol).Struct
		}
	}
	for _, ref := range p.enumRefs {
		if ref.Decl != nil || ref.Name == "" {
			continue
		}
		if sym, err := p.tags.lookup(ref.Name); err == nil {
			ref.Decl = sym.(*tagSymbol).Enum
		}
	}
}

func (p *parser) isStaticAssert() bool {
	return p.curt.Kind == cpp.IDENT && (p.curt.Val == "_Static_assert" || p.curt.Val == "static_assert")
}

func (p *parser) skipStaticAssert() {
	p.next()
	p.skipTo("static assertion", ';')
	p.expect(';')
}

func (p *parser) skipFunctionBody() {
	depth := 0
	for {
		switch p.curt.Kind {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.next()
				return
			}
		case cpp.EOF:
			p.errorPos("unexpected end of file in function body", p.curt.Pos)
		}
		p.next()
	}
}

// skipTo skips balanced tokens until one of stops is found outside
// any brackets.
func (p *parser) skipTo(what string, stops ...cpp.TokenKind) {
	depth := 0
	for {
		k := p.curt.Kind
		if depth == 0 {
			for _, stop := range stops {
				if k == stop {
					return
				}
			}
		}
		switch k {
		case cpp.EOF:
			p.errorPos("unexpected end of file in %s", p.curt.Pos, what)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				p.errorPos("unexpected %s in %s", p.curt.Pos, k, what)
			}
			depth--
		}
		p.next()
	}
}

var attributeKeywords = stringset.New(
	"__attribute__", "__attribute", "__declspec", "__asm__", "__asm", "asm")

func isAttribute(t *cpp.Token) bool {
	return t.Kind == cpp.IDENT && (t.Val == "__extension__" || attributeKeywords.Contains(t.Val))
}

// skipAttributes skips compiler extensions, reporting whether one of them
// asked for a packed layout.
func (p *parser) skipAttributes() bool {
	packed := false
	for isAttribute(p.curt) {
		kw := p.curt.Val
		p.next()
		if kw == "__extension__" {
			continue
		}
		if p.curt.Kind != '(' {
			p.errorPos("expected %s got %s after %s", p.curt.Pos, cpp.TokenKind('('), p.curt.Kind, kw)
		}
		depth := 0
		for {
			switch p.curt.Kind {
			case '(':
				depth++
			case ')':
				depth--
			case cpp.IDENT:
				if p.curt.Val == "packed" || p.curt.Val == "__packed__" {
					packed = true
				}
			case cpp.EOF:
				p.errorPos("unexpected end of file in %s", p.curt.Pos, kw)
			}
			p.next()
			if depth == 0 {
				break
			}
		}
	}
	return packed
}

func (p *parser) parseConstantExpression() int64 {
	n := p.parseConditionalExpression()
	v, err := Fold(n)
	if err != nil {
		var ferr *FoldError
		if errors.As(err, &ferr) {
			p.errorPos("%s", ferr.Pos, ferr.Msg)
		}
		p.errorPos("%s", nodePos(n), err)
	}
	return v
}

// Aka Ternary operator.
func (p *parser) parseConditionalExpression() Node {
	c := p.parseLogicalOrExpression()
	if p.curt.Kind != '?' {
		return c
	}
	pos := p.curt.Pos
	p.next()
	t := p.parseConditionalExpression()
	p.expect(':')
	e := p.parseConditionalExpression()
	return &Cond{Pos: pos, Cond: c, Then: t, Else: e}
}

// parseBinops parses a left associative chain of the operators ops.
func (p *parser) parseBinops(operand func() Node, ops ...cpp.TokenKind) Node {
	l := operand()
	for {
		match := false
		for _, op := range ops {
			if p.curt.Kind == op {
				match = true
			}
		}
		if !match {
			return l
		}
		pos, op := p.curt.Pos, p.curt.Kind
		p.next()
		r := operand()
		l = &Binop{Op: op, Pos: pos, L: l, R: r}
	}
}

func (p *parser) parseLogicalOrExpression() Node {
	return p.parseBinops(p.parseLogicalAndExpression, cpp.LOR)
}

func (p *parser) parseLogicalAndExpression() Node {
	return p.parseBinops(p.parseInclusiveOrExpression, cpp.LAND)
}

func (p *parser) parseInclusiveOrExpression() Node {
	return p.parseBinops(p.parseExclusiveOrExpression, '|')
}

func (p *parser) parseExclusiveOrExpression() Node {
	return p.parseBinops(p.parseAndExpression, '^')
}

func (p *parser) parseAndExpression() Node {
	return p.parseBinops(p.parseEqualityExpression, '&')
}

func (p *parser) parseEqualityExpression() Node {
	return p.parseBinops(p.parseRelationalExpression, cpp.EQL, cpp.NEQ)
}

func (p *parser) parseRelationalExpression() Node {
	return p.parseBinops(p.parseShiftExpression, '<', '>', cpp.LEQ, cpp.GEQ)
}

func (p *parser) parseShiftExpression() Node {
	return p.parseBinops(p.parseAdditiveExpression, cpp.SHL, cpp.SHR)
}

func (p *parser) parseAdditiveExpression() Node {
	return p.parseBinops(p.parseMultiplicativeExpression, '+', '-')
}

func (p *parser) parseMultiplicativeExpression() Node {
	return p.parseBinops(p.parseCastExpression, '*', '/', '%')
}

// Casts are accepted but do not convert the value.
func (p *parser) parseCastExpression() Node {
	if p.curt.Kind == '(' && p.startsTypeName(p.nextt) {
		p.next()
		_, ty := p.parseDeclarationSpecifiers(false)
		p.parseDeclarator(ty, true)
		p.expect(')')
		return p.parseCastExpression()
	}
	return p.parseUnaryExpression()
}

func (p *parser) startsTypeName(t *cpp.Token) bool {
	switch t.Kind {
	case cpp.VOID, cpp.BOOL, cpp.CHAR, cpp.SHORT, cpp.INT, cpp.LONG, cpp.FLOAT, cpp.DOUBLE,
		cpp.SIGNED, cpp.UNSIGNED, cpp.CONST, cpp.VOLATILE, cpp.RESTRICT,
		cpp.STRUCT, cpp.UNION, cpp.ENUM:
		return true
	case cpp.IDENT:
		return p.lookupTypeName(t.Val) != nil
	}
	return false
}

func (p *parser) parseUnaryExpression() Node {
	switch p.curt.Kind {
	case '+', '-', '!', '~':
		pos, op := p.curt.Pos, p.curt.Kind
		p.next()
		return &Unop{Op: op, Pos: pos, Operand: p.parseCastExpression()}
	case cpp.SIZEOF:
		p.errorPos("sizeof is not supported in constant expressions", p.curt.Pos)
	case cpp.INC, cpp.DEC, '*', '&':
		p.errorPos("%s is not allowed in a constant expression", p.curt.Pos, p.curt.Kind)
	}
	return p.parsePrimaryExpression()
}

func constantToNode(t *cpp.Token) (Node, error) {
	switch t.Kind {
	case cpp.INT_CONSTANT:
		v, err := parseIntConstant(t.Val)
		return &Constant{Val: v, Pos: t.Pos}, err
	case cpp.CHAR_CONSTANT:
		v, err := parseCharConstant(t.Val)
		return &Constant{Val: v, Pos: t.Pos}, err
	default:
		return nil, fmt.Errorf("internal error - %s", t.Kind)
	}
}

func parseIntConstant(s string) (int64, error) {
	digits := strings.TrimRight(s, "uUlL")
	v, err := strconv.ParseInt(digits, 0, 64)
	if err == nil {
		return v, nil
	}
	u, err := strconv.ParseUint(digits, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer constant %s", s)
	}
	return int64(u), nil
}

func parseCharConstant(s string) (int64, error) {
	if len(s) < 3 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return 0, fmt.Errorf("invalid character constant %s", s)
	}
	body := s[1 : len(s)-1]
	if len(body) >= 2 && body[0] == '\\' && body[1] >= '0' && body[1] <= '7' {
		v, err := strconv.ParseInt(body[1:], 8, 64)
		if err != nil || len(body) > 4 {
			return 0, fmt.Errorf("invalid character constant %s", s)
		}
		return v, nil
	}
	r, _, tail, err := strconv.UnquoteChar(body, '\'')
	if err != nil || tail != "" {
		return 0, fmt.Errorf("invalid character constant %s", s)
	}
	return int64(r), nil
}

func (p *parser) parsePrimaryExpression() Node {
	switch p.curt.Kind {
	case cpp.IDENT:
		t := p.curt
		sym, err := p.consts.lookup(t.Val)
		if err != nil {
			p.errorPos("use of undeclared identifier %s", t.Pos, t.Val)
		}
		p.next()
		return &Constant{Val: sym.(*CSymbol).Val, Pos: t.Pos}
	case cpp.INT_CONSTANT, cpp.CHAR_CONSTANT:
		t := p.curt
		p.next()
		n, err := constantToNode(t)
		if err != nil {
			p.errorPos("%s", t.Pos, err)
		}
		return n
	case cpp.FLOAT_CONSTANT:
		p.errorPos("floating constant in an integer constant expression", p.curt.Pos)
	case '(':
		p.next()
		n := p.parseConditionalExpression()
		p.expect(')')
		return n
	}
	p.errorPos("expected an identifier, constant or expression but got %s", p.curt.Pos, p.curt.Kind)
	panic("unreachable")
}
