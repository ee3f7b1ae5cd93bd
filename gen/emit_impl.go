package gen

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pankcuf/ferment-sub000/model"
	"github.com/pankcuf/ferment-sub000/resolver"
)

// implSelf is the classified target of an impl block.
type implSelf struct {
	native string
	name   string // mangled base of emitted symbols
	conv   *Conversion
	// stored is the type the object pointer points to when it differs
	// from native: a boxed trait object dispatched through one more deref.
	stored string
}

// cast returns the expression borrowing the object pointer as native.
func (s *implSelf) cast(mut bool) string {
	ptr, borrow := "*const", "&"
	if mut {
		ptr, borrow = "*mut", "&mut "
	}
	if s.stored != "" {
		return fmt.Sprintf("%s**(obj as %s %s)", borrow, ptr, s.stored)
	}
	return fmt.Sprintf("%s*(obj as %s %s)", borrow, ptr, s.native)
}

func (b *Builder) implTarget(c *classifier, it *resolver.ItemRef) (*implSelf, error) {
	t := it.SelfType
	if t.Kind != model.TypePath {
		return nil, fmt.Errorf("impl target %s is not a named type", t)
	}
	conv, err := c.Classify(t, PosArg)
	if err != nil {
		return nil, fmt.Errorf("impl target: %w", err)
	}
	switch conv.Kind {
	case KindComplex, KindOpaque:
	default:
		return nil, fmt.Errorf("impl target %s is a %s type and has no mirror to dispatch on", t, conv.Kind)
	}
	name := b.mangler.Type(t)
	if t.Origin == model.OriginModel {
		if self := b.model.Lookup(t.PathString()); self != nil {
			name = b.mirrorName(self)
		}
	}
	return &implSelf{native: t.String(), name: name, conv: conv}, nil
}

// constParam returns the *const form of a pointer FFI type and the cast
// back to the type From expects.
func constParam(ffi string) (param string, cast func(string) string) {
	if rest, ok := strings.CutPrefix(ffi, "*mut "); ok {
		return "*const " + rest, func(e string) string { return "(" + e + " as *mut " + rest + ")" }
	}
	return ffi, func(e string) string { return e }
}

// emitImpl emits an impl block: trait impls bind the type to the trait's
// vtable, inherent impls export each method.
func (b *Builder) emitImpl(c *classifier, it *resolver.ItemRef) ([]*Fragment, error) {
	if it.IsGeneric() {
		return nil, fmt.Errorf("generic %s has no monomorphic trampolines", itemLabel(it))
	}
	self, err := b.implTarget(c, it)
	if err != nil {
		return nil, err
	}
	if it.Trait == nil {
		return b.emitInherent(c, it, self)
	}
	if it.Trait.Origin != model.OriginModel {
		b.log.Debug("skipping impl of foreign trait", slog.String("impl", itemLabel(it)))
		return nil, nil
	}
	traitPath := it.Trait.PathString()
	trait := b.model.Lookup(traitPath)
	if trait == nil || trait.Kind != model.KindTrait {
		return nil, fmt.Errorf("%s is not a trait of the model", traitPath)
	}
	c.deps[traitPath] = true
	info := b.trait(trait)
	if info.err != nil {
		return nil, fmt.Errorf("trait %s cannot be exported: %w", traitPath, info.err)
	}

	prefix := ImplPrefix(self.name, b.mirrorName(trait))
	f := newFragment(itemLabel(it), b.itemModule(it), "")
	static := b.emitVTableStatic(f, prefix, self, trait, it.Trait.String(), info)

	object := b.traitObjectPath(trait)
	param, cast := constParam(self.conv.FFI)
	ctor := AsTraitObjectSymbol(self.name, b.mirrorName(trait))
	f.addFn(exportedFn(ctor, []Param{{Name: "obj", Type: param}}, object,
		fmt.Sprintf("%s {\n    object: runtime::boxed(%s) as *const %s,\n    vtable: &%s,\n}",
			object, self.conv.From(cast("obj")), cVoid, static)), RoleTraitObject)
	f.addFn(exportedFn(DestroySymbol(ctor), []Param{{Name: "obj", Type: object}}, "",
		fmt.Sprintf("runtime::unbox_any(obj.object as *mut %s);", self.native)), RoleTraitObjectDestroy)
	return []*Fragment{f}, nil
}

// emitVTableStatic emits one trampoline per trait method and the static
// vtable holding them, and returns the static's name.
func (b *Builder) emitVTableStatic(f *Fragment, prefix string, self *implSelf, trait *resolver.ItemRef, traitType string, info *traitInfo) string {
	vtable := b.vtablePath(trait)
	var slots []string
	for _, m := range info.methods {
		fn := b.implTrampoline(prefix, self, traitType, m)
		f.add(fn.render())
		slots = append(slots, fmt.Sprintf("    %s: %s,", m.ref.Name, fn.name))
	}
	static := VTableStatic(prefix)
	f.declare(static, RoleVTableStatic)
	f.add(fmt.Sprintf("static %s: %s = %s {\n%s\n};", static, vtable, vtable, strings.Join(slots, "\n")))
	return static
}

// implTrampoline downcasts the opaque object and calls the native method.
func (b *Builder) implTrampoline(prefix string, self *implSelf, trait string, m *traitMethod) *externFn {
	sig := m.ref.Signature
	plan := planCall(sig.Params, m.convs)
	var args []string
	switch sig.Receiver {
	case model.ReceiverRef:
		plan.pre = append([]string{"let cast_obj = " + self.cast(false) + ";"}, plan.pre...)
		args = append(args, "cast_obj")
	case model.ReceiverRefMut:
		plan.pre = append([]string{"let cast_obj = " + self.cast(true) + ";"}, plan.pre...)
		args = append(args, "cast_obj")
	case model.ReceiverValue:
		plan.pre = append([]string{fmt.Sprintf("let cast_obj = (*(obj as *const %s)).clone();", self.native)}, plan.pre...)
		args = append(args, "cast_obj")
	}
	args = append(args, plan.args...)
	call := fmt.Sprintf("<%s as %s>::%s(%s)", self.native, trait, m.ref.Name, strings.Join(args, ", "))
	return &externFn{
		name:    TrampolineSymbol(prefix, m.ref.Name),
		params:  m.ffiParams(),
		returns: returnFFI(m.ret),
		body:    plan.finish(call, m.ret),
	}
}

// emitInherent exports the methods of an inherent impl as <Self>_fn_<method>.
func (b *Builder) emitInherent(c *classifier, it *resolver.ItemRef, self *implSelf) ([]*Fragment, error) {
	f := newFragment(itemLabel(it), b.itemModule(it), "")
	for _, m := range it.Methods {
		sig := m.Signature
		if hasTypeParams(sig.Generics) {
			return nil, fmt.Errorf("method %s is generic and has no monomorphic trampoline", m.Name)
		}
		plan, err := b.planArgs(c, sig.Params)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Name, err)
		}
		ret, err := b.returnConversion(c, &sig)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Name, err)
		}

		var params []Param
		var recv []string
		switch sig.Receiver {
		case model.ReceiverRef, model.ReceiverRefMut:
			params = append(params, Param{Name: "obj", Type: self.conv.FFI})
			borrow := "&"
			if sig.Receiver == model.ReceiverRefMut {
				borrow = "&mut "
			}
			if self.conv.inPlace {
				recv = append(recv, borrow+"*obj")
				break
			}
			plan.pre = append([]string{fmt.Sprintf("let mut self_ = %s;", self.conv.From("obj"))}, plan.pre...)
			recv = append(recv, borrow+"self_")
			if sig.Receiver == model.ReceiverRefMut && self.conv.Mirror != "" {
				plan.post = append(plan.post, "runtime::replace_mirror(obj, self_);")
			}
		case model.ReceiverValue:
			params = append(params, Param{Name: "obj", Type: self.conv.FFI})
			recv = append(recv, self.conv.From("obj"))
		}
		if sig.Async {
			params = append(params, asyncHandle)
		}
		params = append(params, plan.params...)
		call := fmt.Sprintf("<%s>::%s(%s)", self.native, m.Name, strings.Join(append(recv, plan.args...), ", "))
		if sig.Async {
			call = blockOn(call)
		}
		f.addFn(exportedFn(MethodSymbol(self.name, m.Name), params, returnFFI(ret), plan.finish(call, ret)...), RoleMethod)
	}
	return []*Fragment{f}, nil
}
