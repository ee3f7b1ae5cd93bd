package gen

import (
	"fmt"
	"strings"

	"github.com/pankcuf/ferment-sub000/diag"
	"github.com/pankcuf/ferment-sub000/model"
	"github.com/pankcuf/ferment-sub000/resolver"
)

const cVoid = "std::os::raw::c_void"

// traitInfo is the classification of a trait's methods, shared by the
// trait's own emission, its impls and every trait object of it.
type traitInfo struct {
	methods []*traitMethod
	err     error

	// viewable is set when the trait object can forward native calls
	// through the vtable; reason explains why not.
	viewable bool
	reason   string

	deps map[string]bool
	uses []genericUse
}

type traitMethod struct {
	ref   resolver.MethodRef
	convs []*Conversion
	ret   *Conversion
}

// objParam is the type of the opaque object pointer a vtable slot takes.
func (m *traitMethod) objParam() string {
	switch m.ref.Signature.Receiver {
	case model.ReceiverRefMut, model.ReceiverValue:
		return "*mut " + cVoid
	}
	return "*const " + cVoid
}

func (m *traitMethod) ffiParams() []Param {
	params := []Param{{Name: "obj", Type: m.objParam()}}
	for i, p := range m.ref.Signature.Params {
		params = append(params, Param{Name: argName(p.Name), Type: m.convs[i].FFI})
	}
	return params
}

// trait classifies the methods of a trait once. Recursive uses while the
// trait is being classified see it as viewable.
func (b *Builder) trait(it *resolver.ItemRef) *traitInfo {
	key := it.PathString()
	if info, ok := b.traits[key]; ok {
		return info
	}
	info := &traitInfo{viewable: true}
	b.traits[key] = info

	c := newClassifier(b)
	info.err = b.classifyTrait(c, it, info)
	info.deps = c.deps
	info.uses = c.uses
	if info.err != nil {
		info.viewable = false
		info.reason = info.err.Error()
	}
	return info
}

func (b *Builder) classifyTrait(c *classifier, it *resolver.ItemRef, info *traitInfo) error {
	if it.IsGeneric() {
		return fmt.Errorf("generic trait %s has no monomorphic vtable", it.PathString())
	}
	var reasons []string
	for _, m := range it.Methods {
		sig := m.Signature
		if hasTypeParams(sig.Generics) {
			return fmt.Errorf("method %s is generic and cannot be a vtable slot", m.Name)
		}
		if sig.Async {
			return fmt.Errorf("method %s is async and cannot be a vtable slot", m.Name)
		}
		convs, err := classifyParams(c, sig.Params)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		ret, err := b.returnConversion(c, &sig)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		info.methods = append(info.methods, &traitMethod{ref: m, convs: convs, ret: ret})

		switch {
		case sig.Receiver == model.ReceiverNone:
			reasons = append(reasons, fmt.Sprintf("method %s has no receiver", m.Name))
		case sig.Returns != nil && sig.Returns.Kind == model.TypeReference:
			reasons = append(reasons, fmt.Sprintf("method %s returns a reference", m.Name))
		case ret != nil && !ret.CanFrom():
			reasons = append(reasons, fmt.Sprintf("method %s returns a value foreign code cannot hand back", m.Name))
		}
		for i, conv := range convs {
			if !conv.CanTo() || conv.Borrow == "&mut " {
				reasons = append(reasons, fmt.Sprintf("method %s: argument %s cannot be handed to foreign code", m.Name, sig.Params[i].Name))
			}
		}
	}
	if len(reasons) > 0 {
		info.viewable = false
		info.reason = strings.Join(reasons, "; ")
	}
	return nil
}

// emitTrait emits a trait's vtable, its object struct and, when possible,
// the forwarding impl that lets the object stand in for the trait.
func (b *Builder) emitTrait(c *classifier, it *resolver.ItemRef) ([]*Fragment, error) {
	info := b.trait(it)
	for dep := range info.deps {
		c.deps[dep] = true
	}
	c.uses = append(c.uses, info.uses...)
	if info.err != nil {
		return nil, info.err
	}

	base := b.mirrorName(it)
	vtable := VTableName(base)
	object := TraitObjectName(base)
	f := newFragment(it.PathString(), b.itemModule(it), "")
	f.declare(vtable, RoleVTable)
	f.declare(object, RoleTraitObjectType)

	var decl strings.Builder
	docLines(&decl, it.Attrs.Doc, "")
	decl.WriteString("#[repr(C)]\n#[derive(Clone, Copy)]\n")
	fmt.Fprintf(&decl, "pub struct %s {\n", vtable)
	for _, m := range info.methods {
		slot := &externFn{name: "", params: m.ffiParams(), returns: returnFFI(m.ret)}
		fmt.Fprintf(&decl, "    pub %s: unsafe extern \"C\" fn%s,\n", m.ref.Name, slot.signature())
	}
	decl.WriteString("}")
	f.add(decl.String())

	f.add(fmt.Sprintf("#[repr(C)]\n#[derive(Clone, Copy)]\npub struct %s {\n    pub object: *const %s,\n    pub vtable: *const %s,\n}", object, cVoid, vtable))
	f.add(fmt.Sprintf("unsafe impl Send for %s {}", object))
	f.add(fmt.Sprintf("unsafe impl Sync for %s {}", object))

	if info.viewable {
		f.add(b.forwardingImpl(it, object, info))
	} else {
		b.sink.Report(diag.Diagnostic{
			Severity: diag.SeverityWarning,
			Class:    diag.ClassModel,
			Item:     it.PathString(),
			Location: it.Location,
			Message:  fmt.Sprintf("trait objects of %s cannot be passed to native code: %s", it.PathString(), info.reason),
		})
	}
	return []*Fragment{f}, nil
}

func receiver(r model.Receiver) string {
	switch r {
	case model.ReceiverRefMut:
		return "&mut self"
	case model.ReceiverValue:
		return "self"
	}
	return "&self"
}

// forwardingImpl implements the trait for its object struct by calling
// through the vtable.
func (b *Builder) forwardingImpl(it *resolver.ItemRef, object string, info *traitInfo) string {
	var out strings.Builder
	fmt.Fprintf(&out, "impl %s for %s {\n", it.PathString(), object)
	for i, m := range info.methods {
		sig := m.ref.Signature
		if i > 0 {
			out.WriteString("\n")
		}
		params := []string{receiver(sig.Receiver)}
		for _, p := range sig.Params {
			params = append(params, argName(p.Name)+": "+p.Type.String())
		}
		generics := ""
		if len(sig.Generics) > 0 {
			generics = "<" + strings.Join(sig.Generics, ", ") + ">"
		}
		fmt.Fprintf(&out, "    fn %s%s(%s)", m.ref.Name, generics, strings.Join(params, ", "))
		if sig.Returns != nil {
			fmt.Fprintf(&out, " -> %s", sig.Returns)
		}
		out.WriteString(" {\n        unsafe {\n")

		var body []string
		args := []string{"self.object"}
		if m.objParam() != "*const "+cVoid {
			args[0] = "self.object as *mut " + cVoid
		}
		var drops []string
		for j, p := range sig.Params {
			name := argName(p.Name)
			body = append(body, fmt.Sprintf("let ffi_%s = %s;", name, m.convs[j].To(name)))
			args = append(args, "ffi_"+name)
			if d := m.convs[j].Drop("ffi_" + name); d != "" {
				drops = append(drops, stmt(d))
			}
		}
		call := fmt.Sprintf("((*self.vtable).%s)(%s)", m.ref.Name, strings.Join(args, ", "))
		if m.ret == nil {
			body = append(body, call+";")
			body = append(body, drops...)
		} else {
			body = append(body, "let ffi_result = "+call+";")
			body = append(body, drops...)
			body = append(body, "let result = "+m.ret.From("ffi_result")+";")
			if d := m.ret.Drop("ffi_result"); d != "" {
				body = append(body, stmt(d))
			}
			body = append(body, "result")
		}
		for _, line := range body {
			writeIndented(&out, line, 3)
		}
		out.WriteString("        }\n    }\n")
	}
	out.WriteString("}")
	return out.String()
}
