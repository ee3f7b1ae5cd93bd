package gen

import (
	"fmt"
	"strings"

	"github.com/pankcuf/ferment-sub000/model"
	"github.com/pankcuf/ferment-sub000/resolver"
)

// mirrorField is one classified field of a mirror struct or variant.
type mirrorField struct {
	native string // field name on the native type ("0" for positional)
	name   string // field name on the mirror
	doc    string
	conv   *Conversion
}

func (b *Builder) mirrorFields(c *classifier, fields []resolver.FieldDescriptor) ([]mirrorField, error) {
	out := make([]mirrorField, 0, len(fields))
	for _, fd := range fields {
		conv, err := c.Classify(fd.Type, PosField)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		name := fd.Name
		if fd.Positional() {
			name = "o_" + fd.Name
		}
		out = append(out, mirrorField{native: fd.Name, name: name, doc: fd.Doc, conv: conv})
	}
	return out, nil
}

func docLines(b *strings.Builder, doc, indent string) {
	if doc == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(doc, "\n"), "\n") {
		fmt.Fprintf(b, "%s/// %s\n", indent, line)
	}
}

// writeMirrorStruct writes a #[repr(C)] mirror struct with one pub field per mirrorField.
func writeMirrorStruct(b *strings.Builder, doc, name string, fields []mirrorField, derive string) {
	docLines(b, doc, "")
	b.WriteString("#[repr(C)]\n")
	if derive != "" {
		fmt.Fprintf(b, "#[derive(%s)]\n", derive)
	}
	if len(fields) == 0 {
		fmt.Fprintf(b, "pub struct %s {}", name)
		return
	}
	fmt.Fprintf(b, "pub struct %s {\n", name)
	for _, f := range fields {
		docLines(b, f.doc, "    ")
		fmt.Fprintf(b, "    pub %s: %s,\n", f.name, f.conv.FFI)
	}
	b.WriteString("}")
}

// conversionImpl renders the FFIConversion impl of a mirror.
func conversionImpl(mirror, native, from, to string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "impl runtime::FFIConversion<%s> for %s {\n", native, mirror)
	fmt.Fprintf(&b, "    unsafe fn ffi_from_const(ffi: *const %s) -> %s {\n", mirror, native)
	writeIndented(&b, from, 2)
	b.WriteString("    }\n")
	fmt.Fprintf(&b, "    unsafe fn ffi_to_const(obj: %s) -> *const %s {\n", native, mirror)
	writeIndented(&b, to, 2)
	b.WriteString("    }\n")
	b.WriteString("}")
	return b.String()
}

// dropImpl renders the Drop impl of a mirror, or "" when nothing is owned.
func dropImpl(mirror string, stmts []string) string {
	if len(stmts) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "impl Drop for %s {\n", mirror)
	b.WriteString("    fn drop(&mut self) {\n")
	b.WriteString("        unsafe {\n")
	for _, s := range stmts {
		writeIndented(&b, s, 3)
	}
	b.WriteString("        }\n")
	b.WriteString("    }\n")
	b.WriteString("}")
	return b.String()
}

func fieldDrops(fields []mirrorField, access func(name string) string) []string {
	var out []string
	for _, f := range fields {
		if d := f.conv.Drop(access(f.name)); d != "" {
			out = append(out, stmt(d))
		}
	}
	return out
}

// nativeLiteral builds the native value from per-field expressions.
func nativeLiteral(path string, shape model.VariantShape, fields []mirrorField, value func(mirrorField) string) string {
	switch shape {
	case model.ShapeUnit:
		return path
	case model.ShapeTuple:
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = value(f)
		}
		return path + "(" + strings.Join(parts, ", ") + ")"
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.native + ": " + value(f)
	}
	return path + " { " + strings.Join(parts, ", ") + " }"
}

// mirrorLiteral builds the mirror value from per-field expressions.
func mirrorLiteral(path string, fields []mirrorField, value func(mirrorField) string) string {
	if len(fields) == 0 {
		return path + " {}"
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.name + ": " + value(f)
	}
	return path + " { " + strings.Join(parts, ", ") + " }"
}

func structShape(kind model.ItemKind) model.VariantShape {
	switch kind {
	case model.KindTupleStruct:
		return model.ShapeTuple
	case model.KindUnitStruct:
		return model.ShapeUnit
	}
	return model.ShapeNamed
}

// accessorName is the field name used in getter and setter symbols.
func accessorName(f mirrorField) string {
	return f.native
}

// emitStruct emits the mirror, conversions and surface of a struct,
// tuple struct or unit struct.
func (b *Builder) emitStruct(c *classifier, it *resolver.ItemRef) ([]*Fragment, error) {
	if it.IsGeneric() {
		return nil, fmt.Errorf("generic struct %s has no monomorphic mirror", it.PathString())
	}
	if it.Attrs.Opaque {
		return b.emitOpaque(it)
	}
	fields, err := b.mirrorFields(c, it.Fields)
	if err != nil {
		return nil, err
	}
	name := b.mirrorName(it)
	native := it.PathString()
	f := newFragment(native, b.itemModule(it), "")
	f.declare(name, RoleMirror)

	var decl strings.Builder
	writeMirrorStruct(&decl, it.Attrs.Doc, name, fields, "")
	f.add(decl.String())

	from := "let ffi_ref = &*ffi;\n" + nativeLiteral(native, structShape(it.Kind), fields, func(mf mirrorField) string {
		return mf.conv.From("ffi_ref." + mf.name)
	})
	if len(fields) == 0 {
		from = nativeLiteral(native, structShape(it.Kind), nil, nil)
	}
	to := "runtime::boxed(" + mirrorLiteral(name, fields, func(mf mirrorField) string {
		return mf.conv.To("obj." + mf.native)
	}) + ")"
	f.add(conversionImpl(name, native, from, to))
	if d := dropImpl(name, fieldDrops(fields, func(n string) string { return "self." + n })); d != "" {
		f.add(d)
	}

	b.emitMirrorSurface(f, name, fields)
	return []*Fragment{f}, nil
}

// emitLifecycle emits a ctor taking every mirror field in order, and the
// matching destroy.
func emitLifecycle(f *Fragment, name string, params []Param) {
	inits := make([]string, len(params))
	for i, p := range params {
		inits[i] = p.Name
	}
	lit := name + " {}"
	if len(inits) > 0 {
		lit = name + " { " + strings.Join(inits, ", ") + " }"
	}
	f.addFn(exportedFn(CtorSymbol(name), params, "*mut "+name, "runtime::boxed("+lit+")"), RoleCtor)
	f.addFn(exportedFn(DestroySymbol(name), []Param{{Name: "ffi", Type: "*mut " + name}}, "",
		"runtime::unbox_any_opt(ffi);"), RoleDestroy)
}

// emitMirrorSurface emits ctor, destroy and per-field accessors.
func (b *Builder) emitMirrorSurface(f *Fragment, name string, fields []mirrorField) {
	params := make([]Param, len(fields))
	for i, mf := range fields {
		params[i] = Param{Name: mf.name, Type: mf.conv.FFI}
	}
	emitLifecycle(f, name, params)
	for _, mf := range fields {
		f.addFn(exportedFn(GetterSymbol(name, accessorName(mf)), []Param{{Name: "obj", Type: "*const " + name}}, mf.conv.FFI,
			"(*obj)."+mf.name), RoleGetter)
		body := []string{}
		if d := mf.conv.Drop("(*obj)." + mf.name); d != "" {
			body = append(body, stmt(d))
		}
		body = append(body, fmt.Sprintf("(*obj).%s = value;", mf.name))
		f.addFn(exportedFn(SetterSymbol(name, accessorName(mf)),
			[]Param{{Name: "obj", Type: "*mut " + name}, {Name: "value", Type: mf.conv.FFI}}, "", body...), RoleSetter)
	}
}

// emitOpaque emits the surface of an item exported behind a pointer to the
// native value itself.
func (b *Builder) emitOpaque(it *resolver.ItemRef) ([]*Fragment, error) {
	name := b.mirrorName(it)
	native := it.PathString()
	f := newFragment(native, b.itemModule(it), "")
	f.addFn(exportedFn(DestroySymbol(name), []Param{{Name: "ffi", Type: "*mut " + native}}, "",
		"runtime::unbox_any_opt(ffi);"), RoleDestroy)
	return []*Fragment{f}, nil
}

// emitAlias emits a newtype mirror wrapping the aliased type's FFI form.
func (b *Builder) emitAlias(c *classifier, it *resolver.ItemRef) ([]*Fragment, error) {
	if it.IsGeneric() {
		return nil, fmt.Errorf("generic type alias %s has no monomorphic mirror", it.PathString())
	}
	if it.Attrs.Opaque {
		return b.emitOpaque(it)
	}
	conv, err := c.Classify(it.Aliased, PosField)
	if err != nil {
		return nil, fmt.Errorf("aliased type: %w", err)
	}
	fields := []mirrorField{{native: "0", name: "o_0", conv: conv}}
	name := b.mirrorName(it)
	native := it.PathString()
	f := newFragment(native, b.itemModule(it), "")
	f.declare(name, RoleMirror)

	var decl strings.Builder
	writeMirrorStruct(&decl, it.Attrs.Doc, name, fields, "")
	f.add(decl.String())
	from := "let ffi_ref = &*ffi;\n" + conv.From("ffi_ref.o_0")
	to := fmt.Sprintf("runtime::boxed(%s { o_0: %s })", name, conv.To("obj"))
	f.add(conversionImpl(name, native, from, to))
	if d := dropImpl(name, fieldDrops(fields, func(n string) string { return "self." + n })); d != "" {
		f.add(d)
	}
	b.emitMirrorSurface(f, name, fields)
	return []*Fragment{f}, nil
}
