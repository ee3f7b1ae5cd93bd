package model

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeKind is the syntactic variant of a type expression.
type TypeKind int

const (
	TypePath TypeKind = iota
	TypeTuple
	TypeArray
	TypeSlice
	TypeReference
	TypePointer
	TypeFn
	TypeTraitObject
	TypePrimitive
	TypeNever
)

func (k TypeKind) String() string {
	switch k {
	case TypePath:
		return "path"
	case TypeTuple:
		return "tuple"
	case TypeArray:
		return "array"
	case TypeSlice:
		return "slice"
	case TypeReference:
		return "reference"
	case TypePointer:
		return "pointer"
	case TypeFn:
		return "fn"
	case TypeTraitObject:
		return "trait_object"
	case TypePrimitive:
		return "primitive"
	case TypeNever:
		return "never"
	default:
		return "unknown"
	}
}

// Origin tells the classifier where a named type comes from.
type Origin int

const (
	OriginUnresolved Origin = iota
	OriginModel             // defined by an item of the model
	OriginForeign           // defined outside the model; needs a custom conversion
	OriginBuiltin           // well-known standard type (Vec, String, Option, ...)
	OriginGeneric           // generic parameter of the enclosing item
)

func (o Origin) String() string {
	switch o {
	case OriginModel:
		return "model"
	case OriginForeign:
		return "foreign"
	case OriginBuiltin:
		return "builtin"
	case OriginGeneric:
		return "generic"
	default:
		return "unresolved"
	}
}

// TypeRef is a type expression. Named types carry an Origin once resolved.
type TypeRef struct {
	Kind TypeKind

	// TypePath: path segments and the generic arguments of the last segment.
	Path []string
	Args []*TypeRef

	// TypeTuple elements, or TypeFn parameters. An empty tuple is the unit type.
	Elems []*TypeRef

	// TypeArray, TypeSlice, TypeReference, TypePointer.
	Elem *TypeRef
	Len  int
	Mut  bool

	// TypeFn: return type (nil for unit) and the callable family:
	// "fn" for bare function pointers, "Fn"/"FnMut"/"FnOnce" for closure bounds.
	Ret    *TypeRef
	FnKind string

	// TypeTraitObject: bounds, principal first. Impl marks `impl Trait`.
	Bounds []*TypeRef
	Impl   bool

	// TypePrimitive name.
	Prim string

	Origin Origin
}

var primitiveNames = map[string]bool{
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"f32": true, "f64": true, "bool": true, "char": true, "str": true,
}

// IsPrimitiveName returns true if name is a primitive type keyword.
func IsPrimitiveName(name string) bool {
	return primitiveNames[name]
}

// IsUnit reports whether t is the unit type ().
func (t *TypeRef) IsUnit() bool {
	return t != nil && t.Kind == TypeTuple && len(t.Elems) == 0
}

// Name returns the last path segment of a path type.
func (t *TypeRef) Name() string {
	if t.Kind != TypePath || len(t.Path) == 0 {
		return ""
	}
	return t.Path[len(t.Path)-1]
}

// PathString returns the "::"-joined path of a path type.
func (t *TypeRef) PathString() string {
	return JoinPath(t.Path)
}

// Principal returns the first bound of a trait object.
func (t *TypeRef) Principal() *TypeRef {
	if t.Kind != TypeTraitObject || len(t.Bounds) == 0 {
		return nil
	}
	return t.Bounds[0]
}

// Clone returns a deep copy of t.
func (t *TypeRef) Clone() *TypeRef {
	if t == nil {
		return nil
	}
	c := *t
	c.Path = append([]string(nil), t.Path...)
	c.Args = cloneAll(t.Args)
	c.Elems = cloneAll(t.Elems)
	c.Bounds = cloneAll(t.Bounds)
	c.Elem = t.Elem.Clone()
	c.Ret = t.Ret.Clone()
	return &c
}

func cloneAll(ts []*TypeRef) []*TypeRef {
	if ts == nil {
		return nil
	}
	out := make([]*TypeRef, len(ts))
	for i, t := range ts {
		out[i] = t.Clone()
	}
	return out
}

// Walk calls fn for t and every type nested in it, depth first.
func (t *TypeRef) Walk(fn func(*TypeRef)) {
	if t == nil {
		return
	}
	fn(t)
	for _, a := range t.Args {
		a.Walk(fn)
	}
	for _, e := range t.Elems {
		e.Walk(fn)
	}
	for _, b := range t.Bounds {
		b.Walk(fn)
	}
	t.Elem.Walk(fn)
	t.Ret.Walk(fn)
}

// String renders t in source syntax.
func (t *TypeRef) String() string {
	if t == nil {
		return "()"
	}
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *TypeRef) write(b *strings.Builder) {
	switch t.Kind {
	case TypePath:
		b.WriteString(JoinPath(t.Path))
		if len(t.Args) > 0 {
			b.WriteString("<")
			writeList(b, t.Args)
			b.WriteString(">")
		}
	case TypePrimitive:
		b.WriteString(t.Prim)
	case TypeNever:
		b.WriteString("!")
	case TypeTuple:
		b.WriteString("(")
		writeList(b, t.Elems)
		if len(t.Elems) == 1 {
			b.WriteString(",")
		}
		b.WriteString(")")
	case TypeArray:
		b.WriteString("[")
		t.Elem.write(b)
		fmt.Fprintf(b, "; %d]", t.Len)
	case TypeSlice:
		b.WriteString("[")
		t.Elem.write(b)
		b.WriteString("]")
	case TypeReference:
		b.WriteString("&")
		if t.Mut {
			b.WriteString("mut ")
		}
		t.Elem.write(b)
	case TypePointer:
		if t.Mut {
			b.WriteString("*mut ")
		} else {
			b.WriteString("*const ")
		}
		t.Elem.write(b)
	case TypeFn:
		b.WriteString(t.FnKind)
		b.WriteString("(")
		writeList(b, t.Elems)
		b.WriteString(")")
		if t.Ret != nil && !t.Ret.IsUnit() {
			b.WriteString(" -> ")
			t.Ret.write(b)
		}
	case TypeTraitObject:
		if t.Impl {
			b.WriteString("impl ")
		} else {
			b.WriteString("dyn ")
		}
		for i, bound := range t.Bounds {
			if i > 0 {
				b.WriteString(" + ")
			}
			bound.write(b)
		}
	}
}

func writeList(b *strings.Builder, ts []*TypeRef) {
	for i, t := range ts {
		if i > 0 {
			b.WriteString(", ")
		}
		t.write(b)
	}
}

// ParseType parses a type expression.
// e.g., "Vec<Option<u32>>", "[u8; 20]", "&mut dyn crate::Trait", "Box<dyn Fn(u32) -> bool>"
func ParseType(src string) (*TypeRef, error) {
	toks, err := lexType(src)
	if err != nil {
		return nil, err
	}
	p := &typeParser{src: src, toks: toks}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !p.at(tokEOF) {
		return nil, p.errorf("unexpected %q after type", p.peek().text)
	}
	return t, nil
}

// MustParseType is ParseType for literals known to be valid.
func MustParseType(src string) *TypeRef {
	t, err := ParseType(src)
	if err != nil {
		panic(err)
	}
	return t
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokLifetime
	tokPunct
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lexType(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ':' && i+1 < len(src) && src[i+1] == ':':
			toks = append(toks, token{tokPunct, "::", i})
			i += 2
		case c == ':':
			toks = append(toks, token{tokPunct, ":", i})
			i++
		case c == '-' && i+1 < len(src) && src[i+1] == '>':
			toks = append(toks, token{tokPunct, "->", i})
			i += 2
		case strings.IndexByte("<>,()[];&*!+", c) >= 0:
			toks = append(toks, token{tokPunct, string(c), i})
			i++
		case c == '\'':
			j := i + 1
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			toks = append(toks, token{tokLifetime, src[i:j], i})
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '_') {
				j++
			}
			toks = append(toks, token{tokInt, strings.ReplaceAll(src[i:j], "_", ""), i})
			i = j
		case isIdentByte(c):
			j := i
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, src[i:j], i})
			i = j
		default:
			return nil, fmt.Errorf("type %q: unexpected character %q at %d", src, c, i)
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

type typeParser struct {
	src  string
	toks []token
	pos  int
}

func (p *typeParser) peek() token { return p.toks[p.pos] }

func (p *typeParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *typeParser) at(k tokKind) bool { return p.peek().kind == k }

func (p *typeParser) atPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *typeParser) atIdent(s string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == s
}

func (p *typeParser) expectPunct(s string) error {
	if !p.atPunct(s) {
		return p.errorf("expected %q, got %q", s, p.peek().text)
	}
	p.next()
	return nil
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("type %q: %s", p.src, fmt.Sprintf(format, args...))
}

func (p *typeParser) parseType() (*TypeRef, error) {
	t := p.peek()
	switch {
	case t.kind == tokPunct && t.text == "&":
		p.next()
		if p.at(tokLifetime) {
			p.next()
		}
		mut := false
		if p.atIdent("mut") {
			p.next()
			mut = true
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &TypeRef{Kind: TypeReference, Elem: elem, Mut: mut}, nil
	case t.kind == tokPunct && t.text == "*":
		p.next()
		var mut bool
		switch {
		case p.atIdent("mut"):
			mut = true
		case p.atIdent("const"):
		default:
			return nil, p.errorf("raw pointer needs const or mut")
		}
		p.next()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &TypeRef{Kind: TypePointer, Elem: elem, Mut: mut}, nil
	case t.kind == tokPunct && t.text == "!":
		p.next()
		return &TypeRef{Kind: TypeNever}, nil
	case t.kind == tokPunct && t.text == "(":
		return p.parseTuple()
	case t.kind == tokPunct && t.text == "[":
		return p.parseArray()
	case t.kind == tokIdent && (t.text == "dyn" || t.text == "impl"):
		p.next()
		bounds, err := p.parseBounds()
		if err != nil {
			return nil, err
		}
		return &TypeRef{Kind: TypeTraitObject, Bounds: bounds, Impl: t.text == "impl"}, nil
	case t.kind == tokIdent && t.text == "fn":
		p.next()
		return p.parseFnTail("fn")
	case t.kind == tokIdent:
		return p.parsePath()
	}
	return nil, p.errorf("unexpected %q", t.text)
}

func (p *typeParser) parseTuple() (*TypeRef, error) {
	p.next() // (
	var elems []*TypeRef
	for !p.atPunct(")") {
		e, err := p.parseType()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.atPunct(",") {
			p.next()
			continue
		}
		if !p.atPunct(")") {
			return nil, p.errorf("expected \",\" or \")\" in tuple")
		}
	}
	p.next()
	return &TypeRef{Kind: TypeTuple, Elems: elems}, nil
}

func (p *typeParser) parseArray() (*TypeRef, error) {
	p.next() // [
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.atPunct("]") {
		p.next()
		return &TypeRef{Kind: TypeSlice, Elem: elem}, nil
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	if !p.at(tokInt) {
		return nil, p.errorf("array length must be an integer literal")
	}
	n, err := strconv.Atoi(p.next().text)
	if err != nil {
		return nil, p.errorf("array length: %v", err)
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return &TypeRef{Kind: TypeArray, Elem: elem, Len: n}, nil
}

func (p *typeParser) parseBounds() ([]*TypeRef, error) {
	var bounds []*TypeRef
	for {
		if p.at(tokLifetime) {
			p.next()
		} else {
			b, err := p.parseBound()
			if err != nil {
				return nil, err
			}
			bounds = append(bounds, b)
		}
		if !p.atPunct("+") {
			break
		}
		p.next()
	}
	if len(bounds) == 0 {
		return nil, p.errorf("trait object without a trait bound")
	}
	return bounds, nil
}

func (p *typeParser) parseBound() (*TypeRef, error) {
	t := p.peek()
	if t.kind == tokIdent && (t.text == "Fn" || t.text == "FnMut" || t.text == "FnOnce") &&
		p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].text == "(" {
		p.next()
		return p.parseFnTail(t.text)
	}
	return p.parsePath()
}

func (p *typeParser) parseFnTail(kind string) (*TypeRef, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []*TypeRef
	for !p.atPunct(")") {
		// Named parameters in fn pointer types: `fn(x: u32)`.
		if p.at(tokIdent) && p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].text == ":" {
			p.pos += 2
		}
		e, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, e)
		if p.atPunct(",") {
			p.next()
			continue
		}
		if !p.atPunct(")") {
			return nil, p.errorf("expected \",\" or \")\" in parameter list")
		}
	}
	p.next()
	fn := &TypeRef{Kind: TypeFn, Elems: params, FnKind: kind}
	if p.atPunct("->") {
		p.next()
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if !ret.IsUnit() {
			fn.Ret = ret
		}
	}
	return fn, nil
}

func (p *typeParser) parsePath() (*TypeRef, error) {
	var segs []string
	if p.atPunct("::") {
		p.next()
	}
	for {
		if !p.at(tokIdent) {
			return nil, p.errorf("expected identifier, got %q", p.peek().text)
		}
		segs = append(segs, p.next().text)
		if !p.atPunct("::") {
			break
		}
		p.next()
		// Turbofish: Vec::<u8>
		if p.atPunct("<") {
			break
		}
	}
	if len(segs) == 1 && IsPrimitiveName(segs[0]) {
		return &TypeRef{Kind: TypePrimitive, Prim: segs[0]}, nil
	}
	t := &TypeRef{Kind: TypePath, Path: segs}
	if p.atPunct("<") {
		p.next()
		for !p.atPunct(">") {
			if p.at(tokLifetime) {
				p.next()
			} else {
				a, err := p.parseType()
				if err != nil {
					return nil, err
				}
				t.Args = append(t.Args, a)
			}
			if p.atPunct(",") {
				p.next()
				continue
			}
			if !p.atPunct(">") {
				return nil, p.errorf("expected \",\" or \">\" in generic arguments")
			}
		}
		p.next()
	}
	return t, nil
}
