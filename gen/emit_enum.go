package gen

import (
	"fmt"
	"strings"

	"github.com/pankcuf/ferment-sub000/model"
	"github.com/pankcuf/ferment-sub000/resolver"
)

type mirrorVariant struct {
	desc   resolver.VariantDescriptor
	fields []mirrorField
}

// pattern binds every field of the variant by its mirror name.
func (v *mirrorVariant) pattern(path string, native bool) string {
	switch v.desc.Shape {
	case model.ShapeUnit:
		return path
	case model.ShapeTuple:
		names := make([]string, len(v.fields))
		for i, f := range v.fields {
			names[i] = f.name
		}
		return path + "(" + strings.Join(names, ", ") + ")"
	}
	parts := make([]string, len(v.fields))
	for i, f := range v.fields {
		if native {
			parts[i] = f.native + ": " + f.name
		} else {
			parts[i] = f.name
		}
	}
	return path + " { " + strings.Join(parts, ", ") + " }"
}

func (v *mirrorVariant) literal(path string, value func(mirrorField) string) string {
	switch v.desc.Shape {
	case model.ShapeUnit:
		return path
	case model.ShapeTuple:
		parts := make([]string, len(v.fields))
		for i, f := range v.fields {
			parts[i] = value(f)
		}
		return path + "(" + strings.Join(parts, ", ") + ")"
	}
	return mirrorLiteral(path, v.fields, value)
}

// emitEnum emits a C-like or tagged-union mirror for an enum.
func (b *Builder) emitEnum(c *classifier, it *resolver.ItemRef) ([]*Fragment, error) {
	if it.IsGeneric() {
		return nil, fmt.Errorf("generic enum %s has no monomorphic mirror", it.PathString())
	}
	if it.Attrs.Opaque {
		return b.emitOpaque(it)
	}
	if len(it.Variants) == 0 {
		return nil, fmt.Errorf("enum %s has no variants and cannot be instantiated", it.PathString())
	}
	variants := make([]*mirrorVariant, 0, len(it.Variants))
	cLike := true
	for _, vd := range it.Variants {
		fields, err := b.mirrorFields(c, vd.Fields)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", vd.Name, err)
		}
		if vd.Shape == model.ShapeNamed {
			// Named payloads keep their names on the mirror.
			for i := range fields {
				fields[i].name = fields[i].native
			}
		}
		if len(fields) > 0 {
			cLike = false
		}
		variants = append(variants, &mirrorVariant{desc: vd, fields: fields})
	}

	name := b.mirrorName(it)
	native := it.PathString()
	f := newFragment(native, b.itemModule(it), "")
	f.declare(name, RoleMirror)

	var decl strings.Builder
	docLines(&decl, it.Attrs.Doc, "")
	decl.WriteString("#[repr(C)]\n")
	if cLike {
		decl.WriteString("#[derive(Clone, Copy)]\n")
	}
	fmt.Fprintf(&decl, "pub enum %s {\n", name)
	for _, v := range variants {
		docLines(&decl, v.desc.Doc, "    ")
		decl.WriteString("    ")
		switch v.desc.Shape {
		case model.ShapeUnit:
			decl.WriteString(v.desc.Name)
		case model.ShapeTuple:
			types := make([]string, len(v.fields))
			for i, mf := range v.fields {
				types[i] = mf.conv.FFI
			}
			fmt.Fprintf(&decl, "%s(%s)", v.desc.Name, strings.Join(types, ", "))
		default:
			parts := make([]string, len(v.fields))
			for i, mf := range v.fields {
				parts[i] = mf.name + ": " + mf.conv.FFI
			}
			fmt.Fprintf(&decl, "%s { %s }", v.desc.Name, strings.Join(parts, ", "))
		}
		if v.desc.Discriminant != nil {
			fmt.Fprintf(&decl, " = %d", *v.desc.Discriminant)
		}
		decl.WriteString(",\n")
	}
	decl.WriteString("}")
	f.add(decl.String())

	var from, to strings.Builder
	from.WriteString("match &*ffi {\n")
	to.WriteString("runtime::boxed(match obj {\n")
	for _, v := range variants {
		mirrorVar := name + "::" + v.desc.Name
		nativeVar := native + "::" + v.desc.Name
		fmt.Fprintf(&from, "    %s => %s,\n", v.pattern(mirrorVar, false),
			nativeLiteral(nativeVar, v.desc.Shape, v.fields, func(mf mirrorField) string { return mf.conv.From("(*" + mf.name + ")") }))
		fmt.Fprintf(&to, "    %s => %s,\n", v.pattern(nativeVar, true),
			v.literal(mirrorVar, func(mf mirrorField) string { return mf.conv.To(mf.name) }))
	}
	from.WriteString("}")
	to.WriteString("})")
	f.add(conversionImpl(name, native, from.String(), to.String()))

	var arms []string
	owned := 0
	for _, v := range variants {
		drops := fieldDrops(v.fields, func(n string) string { return "(*" + n + ")" })
		if len(drops) == 0 {
			continue
		}
		owned++
		arms = append(arms, fmt.Sprintf("%s => {\n    %s\n}", v.pattern(name+"::"+v.desc.Name, false), strings.Join(drops, "\n    ")))
	}
	if owned > 0 {
		if owned < len(variants) {
			arms = append(arms, "_ => {}")
		}
		f.add(dropImpl(name, []string{"match self {\n" + indentLines(strings.Join(arms, ",\n"), 1) + "\n}"}))
	}

	for _, v := range variants {
		params := make([]Param, len(v.fields))
		for i, mf := range v.fields {
			params[i] = Param{Name: mf.name, Type: mf.conv.FFI}
		}
		f.addFn(exportedFn(VariantCtorSymbol(name, v.desc.Name), params, "*mut "+name,
			"runtime::boxed("+v.literal(name+"::"+v.desc.Name, func(mf mirrorField) string { return mf.name })+")"), RoleVariantCtor)
	}
	f.addFn(exportedFn(DestroySymbol(name), []Param{{Name: "ffi", Type: "*mut " + name}}, "",
		"runtime::unbox_any_opt(ffi);"), RoleDestroy)
	return []*Fragment{f}, nil
}

func indentLines(s string, depth int) string {
	var b strings.Builder
	writeIndented(&b, s, depth)
	return strings.TrimRight(b.String(), "\n")
}
