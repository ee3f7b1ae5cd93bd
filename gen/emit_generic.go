package gen

import (
	"fmt"
	"strings"

	"github.com/pankcuf/ferment-sub000/model"
)

// genericEmit carries the state of one generic emission.
type genericEmit struct {
	b      *Builder
	c      *classifier
	w      GenericWork
	name   string
	native string
	f      *Fragment
}

// emitGeneric emits one native type of a generic instance. The first
// native of an instance also emits the mirror type and its C surface; every
// native gets its own FFIConversion impl on the shared mirror.
func (b *Builder) emitGeneric(w GenericWork) (*Fragment, []genericUse, error) {
	g := &genericEmit{
		b:      b,
		c:      newClassifier(b),
		w:      w,
		name:   string(w.Instance.Key),
		native: w.Native.String(),
	}
	g.f = newFragment(g.name, []string{genericsModule}, "")
	var err error
	switch w.Instance.Kind {
	case KindVec, KindSlice:
		err = g.sequence(w.Native.Args[0], false)
	case KindArray:
		err = g.sequence(w.Native.Elem, true)
	case KindMap:
		err = g.mapping(w.Native.Args[0], w.Native.Args[1])
	case KindResult:
		err = g.result(w.Native.Args[0], w.Native.Args[1])
	case KindTuple:
		err = g.tuple(w.Native.Elems)
	case KindCallback:
		err = g.callback(w.Native)
	case KindTraitObject:
		err = g.dynamic(w.Native)
	default:
		err = fmt.Errorf("%s is not a generic container kind", w.Instance.Kind)
	}
	if err != nil {
		return nil, nil, err
	}
	return g.f, g.c.uses, nil
}

func (g *genericEmit) element(t *model.TypeRef) (*Conversion, error) {
	return g.c.Classify(t, PosElement)
}

// declare emits the mirror declaration and its Drop on the first native.
func (g *genericEmit) declare(decl string, drops []string) {
	if !g.w.First {
		return
	}
	g.f.declare(g.name, RoleMirror)
	g.f.add(decl)
	if d := dropImpl(g.name, drops); d != "" {
		g.f.add(d)
	}
}

func (g *genericEmit) conversion(from, to string) {
	g.f.add(conversionImpl(g.name, g.native, from, to))
}

func plain(c *Conversion) bool {
	return c.Kind == KindPrimitive
}

// sequence emits Vec, slice and array mirrors: a count and a boxed slice
// of element FFI values.
func (g *genericEmit) sequence(elem *model.TypeRef, array bool) error {
	ec, err := g.element(elem)
	if err != nil {
		return err
	}
	name := g.name

	read := fmt.Sprintf("runtime::ffi_slice(ffi_ref.values, ffi_ref.count).iter().map(|o| %s).collect()", ec.From("(*o)"))
	if plain(ec) {
		read = "runtime::ffi_slice(ffi_ref.values, ffi_ref.count).to_vec()"
	}
	from := "let ffi_ref = &*ffi;\n" + read
	if array {
		from = fmt.Sprintf("let ffi_ref = &*ffi;\nlet values: Vec<%s> = %s;\nvalues.try_into().unwrap_or_else(|v: Vec<%s>| panic!(\"expected %d elements, got {}\", v.len()))",
			ec.Native, read, ec.Native, g.w.Native.Len)
	}

	values := fmt.Sprintf("obj.into_iter().map(|o| %s).collect()", ec.To("o"))
	switch {
	case plain(ec) && array:
		values = "obj.to_vec()"
	case plain(ec):
		values = "obj"
	}
	to := fmt.Sprintf("let count = obj.len();\nruntime::boxed(%s { count, values: runtime::boxed_vec(%s) })", name, values)

	var drops []string
	if d := ec.Drop("o"); d != "" {
		drops = append(drops, fmt.Sprintf("for o in runtime::unbox_vec_ptr(self.values, self.count) {\n    %s\n}", stmt(d)))
	} else {
		drops = append(drops, "runtime::unbox_vec_ptr(self.values, self.count);")
	}
	g.declare(fmt.Sprintf("#[repr(C)]\npub struct %s {\n    pub count: usize,\n    pub values: *mut %s,\n}", name, ec.FFI), drops)
	g.conversion(from, to)
	if !g.w.First {
		return nil
	}

	emitLifecycle(g.f, name, []Param{{Name: "count", Type: "usize"}, {Name: "values", Type: "*mut " + ec.FFI}})
	g.f.addFn(exportedFn(name+"_"+valueAtIndex,
		[]Param{{Name: "obj", Type: "*const " + name}, {Name: "index", Type: "usize"}}, ec.FFI,
		"*(*obj).values.add(index)"), RoleValueAtIndex)
	set := []string{"let slot = (*obj).values.add(index);"}
	if d := ec.Drop("(*slot)"); d != "" {
		set = append(set, stmt(d))
	}
	set = append(set, "*slot = value;")
	g.f.addFn(exportedFn(name+"_"+setValueAtIndex,
		[]Param{{Name: "obj", Type: "*mut " + name}, {Name: "index", Type: "usize"}, {Name: "value", Type: ec.FFI}}, "",
		set...), RoleSetValueAtIndex)
	return nil
}

// mapping emits a map mirror as parallel key and value slices. Entry
// order is the native map's iteration order.
func (g *genericEmit) mapping(key, value *model.TypeRef) error {
	kc, err := g.element(key)
	if err != nil {
		return err
	}
	vc, err := g.element(value)
	if err != nil {
		return err
	}
	name := g.name

	from := fmt.Sprintf(`let ffi_ref = &*ffi;
let keys = runtime::ffi_slice(ffi_ref.keys, ffi_ref.count);
let values = runtime::ffi_slice(ffi_ref.values, ffi_ref.count);
keys.iter().zip(values.iter()).map(|(k, v)| (%s, %s)).collect()`, kc.From("(*k)"), vc.From("(*v)"))
	to := fmt.Sprintf(`let count = obj.len();
let (keys, values): (Vec<%s>, Vec<%s>) = obj.into_iter().map(|(k, v)| (%s, %s)).unzip();
runtime::boxed(%s { count, keys: runtime::boxed_vec(keys), values: runtime::boxed_vec(values) })`,
		kc.FFI, vc.FFI, kc.To("k"), vc.To("v"), name)

	var drops []string
	for _, part := range []struct {
		field string
		conv  *Conversion
	}{{"keys", kc}, {"values", vc}} {
		if d := part.conv.Drop("o"); d != "" {
			drops = append(drops, fmt.Sprintf("for o in runtime::unbox_vec_ptr(self.%s, self.count) {\n    %s\n}", part.field, stmt(d)))
		} else {
			drops = append(drops, fmt.Sprintf("runtime::unbox_vec_ptr(self.%s, self.count);", part.field))
		}
	}
	g.declare(fmt.Sprintf("#[repr(C)]\npub struct %s {\n    pub count: usize,\n    pub keys: *mut %s,\n    pub values: *mut %s,\n}", name, kc.FFI, vc.FFI), drops)
	g.conversion(from, to)
	if !g.w.First {
		return nil
	}

	emitLifecycle(g.f, name, []Param{{Name: "count", Type: "usize"}, {Name: "keys", Type: "*mut " + kc.FFI}, {Name: "values", Type: "*mut " + vc.FFI}})

	missing := "Default::default()"
	if vc.Pointer {
		missing = nullPointer(vc.FFI)
	}
	lookup := fmt.Sprintf(`let ffi_ref = &*obj;
let needle = %s;
let keys = runtime::ffi_slice(ffi_ref.keys, ffi_ref.count);
for (i, k) in keys.iter().enumerate() {
    if %s == needle {
        return *ffi_ref.values.add(i);
    }
}
%s`, kc.From("key"), kc.From("(*k)"), missing)
	g.f.addFn(exportedFn(name+"_"+valueByKey,
		[]Param{{Name: "obj", Type: "*const " + name}, {Name: "key", Type: kc.FFI}}, vc.FFI, lookup), RoleValueByKey)

	// The map takes ownership of key and value; a replaced entry keeps its
	// own key and frees the passed one.
	var replace []string
	replace = append(replace, "let slot = ffi_ref.values.add(i);")
	if d := vc.Drop("(*slot)"); d != "" {
		replace = append(replace, stmt(d))
	}
	replace = append(replace, "*slot = value;")
	if d := kc.Drop("key"); d != "" {
		replace = append(replace, stmt(d))
	}
	replace = append(replace, "return;")
	set := fmt.Sprintf(`let ffi_ref = &mut *obj;
let needle = %s;
let keys = runtime::ffi_slice(ffi_ref.keys, ffi_ref.count);
for (i, k) in keys.iter().enumerate() {
    if %s == needle {
%s
    }
}
let mut keys = runtime::unbox_vec_ptr(ffi_ref.keys, ffi_ref.count);
let mut values = runtime::unbox_vec_ptr(ffi_ref.values, ffi_ref.count);
keys.push(key);
values.push(value);
ffi_ref.count = keys.len();
ffi_ref.keys = runtime::boxed_vec(keys);
ffi_ref.values = runtime::boxed_vec(values);`, kc.From("key"), kc.From("(*k)"), indentLines(strings.Join(replace, "\n"), 2))
	g.f.addFn(exportedFn(name+"_"+setValueForKey,
		[]Param{{Name: "obj", Type: "*mut " + name}, {Name: "key", Type: kc.FFI}, {Name: "value", Type: vc.FFI}}, "", set), RoleSetValueForKey)
	return nil
}

// result emits a Result mirror: an is_ok discriminant and one nullable
// slot per arm. The inactive slot is null; the active one is null as well
// when its value is () or None, so only is_ok tells the arms apart.
func (g *genericEmit) result(ok, errType *model.TypeRef) error {
	oc, err := g.element(ok)
	if err != nil {
		return err
	}
	ec, err := g.element(errType)
	if err != nil {
		return err
	}
	okArm, errArm := optionalConversion(oc), optionalConversion(ec)
	name := g.name

	read := func(c *Conversion, t *model.TypeRef, field string) string {
		switch {
		case t.IsUnit():
			return "()"
		case c.Pointer:
			return c.From(field)
		}
		return c.From("(*" + field + ")")
	}
	write := func(c *Conversion, t *model.TypeRef) string {
		switch {
		case t.IsUnit():
			return "std::ptr::null_mut()"
		case c.Pointer:
			return c.To("o")
		}
		return "runtime::boxed(" + c.To("o") + ")"
	}
	from := fmt.Sprintf("let ffi_ref = &*ffi;\nif ffi_ref.is_ok {\n    Ok(%s)\n} else {\n    Err(%s)\n}",
		read(oc, ok, "ffi_ref.ok"), read(ec, errType, "ffi_ref.error"))
	to := fmt.Sprintf(`runtime::boxed(match obj {
    Ok(o) => %s { is_ok: true, ok: %s, error: %s },
    Err(o) => %s { is_ok: false, ok: %s, error: %s },
})`, name, write(oc, ok), nullPointer(errArm.FFI), name, nullPointer(okArm.FFI), write(ec, errType))

	var drops []string
	for _, d := range []string{okArm.Drop("self.ok"), errArm.Drop("self.error")} {
		if d != "" {
			drops = append(drops, stmt(d))
		}
	}
	g.declare(fmt.Sprintf("#[repr(C)]\npub struct %s {\n    pub is_ok: bool,\n    pub ok: %s,\n    pub error: %s,\n}", name, okArm.FFI, errArm.FFI), drops)
	g.conversion(from, to)
	if g.w.First {
		emitLifecycle(g.f, name, []Param{{Name: "is_ok", Type: "bool"}, {Name: "ok", Type: okArm.FFI}, {Name: "error", Type: errArm.FFI}})
	}
	return nil
}

// tuple emits a tuple mirror with one o_N field per element.
func (g *genericEmit) tuple(elems []*model.TypeRef) error {
	fields := make([]mirrorField, 0, len(elems))
	for i, e := range elems {
		ec, err := g.element(e)
		if err != nil {
			return err
		}
		idx := fmt.Sprint(i)
		fields = append(fields, mirrorField{native: idx, name: "o_" + idx, conv: ec})
	}
	name := g.name

	parts := make([]string, len(fields))
	for i, mf := range fields {
		parts[i] = mf.conv.From("ffi_ref." + mf.name)
	}
	lit := "(" + strings.Join(parts, ", ") + ")"
	if len(parts) == 1 {
		lit = "(" + parts[0] + ",)"
	}
	from := "let ffi_ref = &*ffi;\n" + lit
	to := "runtime::boxed(" + mirrorLiteral(name, fields, func(mf mirrorField) string { return mf.conv.To("obj." + mf.native) }) + ")"

	var decl strings.Builder
	writeMirrorStruct(&decl, "", name, fields, "")
	g.declare(decl.String(), fieldDrops(fields, func(n string) string { return "self." + n }))
	g.conversion(from, to)
	if g.w.First {
		g.b.emitMirrorSurface(g.f, name, fields)
	}
	return nil
}

// callback emits the mirror of a closure type: a C function pointer the
// foreign side implements, plus an optional destructor for the values it
// returns. Native code calls it through a boxed closure; closures cannot be
// handed back out, so the to-FFI direction is null.
func (g *genericEmit) callback(native *model.TypeRef) error {
	obj := native.Args[0]
	fn := obj.Principal()
	wrapper := boxWrapper(native.PathString())
	name := g.name

	params := make([]Param, len(fn.Elems))
	nativeParams := make([]string, len(fn.Elems))
	convs := make([]*Conversion, len(fn.Elems))
	for i, a := range fn.Elems {
		conv, err := g.callbackArg(a)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		arg := fmt.Sprintf("o_%d", i)
		convs[i] = conv
		params[i] = Param{Name: arg, Type: conv.FFI}
		nativeParams[i] = arg + ": " + a.String()
	}
	var ret *Conversion
	if fn.Ret != nil && !fn.Ret.IsUnit() {
		var err error
		if ret, err = g.element(fn.Ret); err != nil {
			return fmt.Errorf("return: %w", err)
		}
	}

	caller := &externFn{params: params, returns: returnFFI(ret)}
	fields := []Param{{Name: "caller", Type: "unsafe extern \"C\" fn" + caller.signature()}}
	destructor := ret != nil && ret.Owns()
	if destructor {
		fields = append(fields, Param{Name: "destructor", Type: fmt.Sprintf("unsafe extern \"C\" fn(result: %s)", ret.FFI)})
	}
	var decl strings.Builder
	fmt.Fprintf(&decl, "#[repr(C)]\n#[derive(Clone, Copy)]\npub struct %s {\n", name)
	for _, p := range fields {
		fmt.Fprintf(&decl, "    pub %s: %s,\n", p.Name, p.Type)
	}
	decl.WriteString("}")
	g.declare(decl.String(), nil)

	if g.w.First {
		g.f.add(g.callImpl(fn, nativeParams, params, convs, ret))
	}
	args := make([]string, len(params))
	for i, p := range params {
		args[i] = p.Name
	}
	from := fmt.Sprintf("let callback = *ffi;\n%s::new(move |%s| unsafe { callback.call(%s) })",
		wrapper, strings.Join(nativeParams, ", "), strings.Join(args, ", "))
	g.conversion(from, "std::ptr::null()")
	if g.w.First {
		emitLifecycle(g.f, name, fields)
	}
	return nil
}

func (g *genericEmit) callbackArg(a *model.TypeRef) (*Conversion, error) {
	if a.Kind != model.TypeReference {
		return g.element(a)
	}
	if a.Elem.Kind == model.TypePrimitive && a.Elem.Prim == "str" {
		return strSliceConversion(), nil
	}
	inner, err := g.element(a.Elem)
	if err != nil {
		return nil, err
	}
	return borrowedConversion(inner, a.Mut, a.String()), nil
}

// callImpl renders the invoker: arguments are converted and freed around
// the foreign call, and a returned value is released through the
// destructor once read.
func (g *genericEmit) callImpl(fn *model.TypeRef, nativeParams []string, params []Param, convs []*Conversion, ret *Conversion) string {
	var out strings.Builder
	fmt.Fprintf(&out, "impl %s {\n", g.name)
	fmt.Fprintf(&out, "    pub unsafe fn call(&self, %s)", strings.Join(nativeParams, ", "))
	if ret != nil {
		fmt.Fprintf(&out, " -> %s", fn.Ret)
	}
	out.WriteString(" {\n")
	var body, drops, args []string
	for i, p := range params {
		body = append(body, fmt.Sprintf("let ffi_%s = %s;", p.Name, convs[i].To(p.Name)))
		args = append(args, "ffi_"+p.Name)
		if d := convs[i].Drop("ffi_" + p.Name); d != "" {
			drops = append(drops, stmt(d))
		}
	}
	call := fmt.Sprintf("(self.caller)(%s)", strings.Join(args, ", "))
	if ret == nil {
		body = append(body, call+";")
		body = append(body, drops...)
	} else {
		body = append(body, "let ffi_result = "+call+";")
		body = append(body, drops...)
		body = append(body, "let result = "+ret.From("ffi_result")+";")
		if ret.Owns() {
			body = append(body, "(self.destructor)(ffi_result);")
		}
		body = append(body, "result")
	}
	for _, line := range body {
		writeIndented(&out, line, 2)
	}
	out.WriteString("    }\n}")
	return out.String()
}

// dynamic emits the vtable of a boxed native trait object and the
// destructor foreign code releases such objects with. Every slot
// dispatches through the box.
func (g *genericEmit) dynamic(native *model.TypeRef) error {
	if !g.w.First {
		return nil
	}
	principal := native.Args[0].Principal()
	trait := g.b.model.Lookup(principal.PathString())
	if trait == nil || trait.Kind != model.KindTrait {
		return fmt.Errorf("%s is not a trait of the model", principal)
	}
	info := g.b.trait(trait)
	if info.err != nil {
		return fmt.Errorf("trait %s cannot be exported: %w", principal, info.err)
	}
	self := &implSelf{native: "dyn " + principal.String(), name: g.name, stored: native.String()}
	prefix := ImplPrefix(g.name, g.b.mirrorName(trait))
	g.b.emitVTableStatic(g.f, prefix, self, trait, principal.String(), info)

	object := g.b.traitObjectPath(trait)
	g.f.addFn(exportedFn(DestroySymbol(AsTraitObjectSymbol(g.name, g.b.mirrorName(trait))),
		[]Param{{Name: "obj", Type: object}}, "",
		fmt.Sprintf("runtime::unbox_any(obj.object as *mut %s);", native)), RoleTraitObjectDestroy)
	return nil
}
