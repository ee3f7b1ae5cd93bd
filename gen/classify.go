package gen

import (
	"fmt"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/model"
	"github.com/pankcuf/ferment-sub000/resolver"
)

// Position is where a type appears; it changes how some kinds cross the boundary.
type Position int

const (
	PosField Position = iota
	PosArg
	PosReturn
	PosElement // inside a generic container or callback signature
)

func (p Position) String() string {
	switch p {
	case PosField:
		return "field"
	case PosArg:
		return "argument"
	case PosReturn:
		return "return"
	default:
		return "element"
	}
}

// ConfigError marks a classification failure caused by missing or wrong configuration.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// genericUse is one generic instantiation discovered while classifying.
type genericUse struct {
	Key    GenericKey
	Kind   ConversionKind
	Native *model.TypeRef
}

// classifier assigns conversions to types on behalf of one item or one
// generic instantiation, recording the model items and generic
// instantiations it depends on.
type classifier struct {
	b    *Builder
	deps map[string]bool
	uses []genericUse
}

func newClassifier(b *Builder) *classifier {
	return &classifier{b: b, deps: make(map[string]bool)}
}

// Classify returns the conversion of t at position pos.
func (c *classifier) Classify(t *model.TypeRef, pos Position) (*Conversion, error) {
	switch t.Kind {
	case model.TypePrimitive:
		switch t.Prim {
		case "str":
			return nil, fmt.Errorf("unsized str outside a reference")
		case "char":
			return charConversion(), nil
		}
		return primitiveConversion(t.Prim), nil
	case model.TypeNever:
		return nil, fmt.Errorf("the never type has no FFI representation")
	case model.TypeTuple:
		if t.IsUnit() {
			return primitiveConversion("()"), nil
		}
		return c.generic(t, KindTuple, t.Elems)
	case model.TypeArray:
		return c.generic(t, KindArray, []*model.TypeRef{t.Elem})
	case model.TypeSlice:
		return nil, fmt.Errorf("unsized slice %s outside a reference", t)
	case model.TypeReference:
		return c.reference(t, pos)
	case model.TypePointer:
		if pos == PosElement {
			return nil, fmt.Errorf("raw pointer %s inside a generic container", t)
		}
		return rawPointerConversion(t.String()), nil
	case model.TypeFn:
		return nil, fmt.Errorf("bare function pointer %s has no context to wrap; use Box<dyn Fn>", t)
	case model.TypeTraitObject:
		if t.Impl && (pos == PosArg || pos == PosReturn) {
			return c.dynamic(t, pos, "")
		}
		return nil, fmt.Errorf("unsized trait object %s outside a Box or reference", t)
	case model.TypePath:
		return c.path(t, pos)
	}
	return nil, fmt.Errorf("unsupported type %s", t)
}

func (c *classifier) path(t *model.TypeRef, pos Position) (*Conversion, error) {
	switch t.Origin {
	case model.OriginGeneric:
		return nil, fmt.Errorf("generic parameter %s without a conversion", t)
	case model.OriginForeign:
		return c.custom(t)
	case model.OriginModel:
		return c.modelType(t)
	case model.OriginBuiltin:
		return c.builtin(t, pos)
	}
	return nil, fmt.Errorf("unresolved type %s", t)
}

func (c *classifier) custom(t *model.TypeRef) (*Conversion, error) {
	cc, ok := c.b.cfg.CustomConversions[t.PathString()]
	if !ok {
		return nil, &ConfigError{Msg: fmt.Sprintf("missing custom conversion for foreign type %s", t.PathString())}
	}
	return customConversion(t.String(), cc), nil
}

func (c *classifier) modelType(t *model.TypeRef) (*Conversion, error) {
	p := t.PathString()
	if cc, ok := c.b.cfg.CustomConversions[p]; ok {
		return customConversion(t.String(), cc), nil
	}
	item := c.b.model.Lookup(p)
	if item == nil {
		if c.b.model.Excluded(p) {
			return nil, fmt.Errorf("%s is excluded by its feature gates", p)
		}
		return nil, fmt.Errorf("unknown item %s", p)
	}
	if item.IsGeneric() || len(t.Args) > 0 {
		return nil, fmt.Errorf("generic item %s has no monomorphic mirror", p)
	}
	c.deps[p] = true
	switch item.Kind {
	case model.KindTrait:
		return nil, fmt.Errorf("trait %s used as a type; use dyn %s", p, p)
	case model.KindFn:
		return nil, fmt.Errorf("function %s used as a type", p)
	}
	if item.Attrs.Opaque {
		return opaqueConversion(t.String()), nil
	}
	return mirrorConversion(KindComplex, c.b.mirrorPath(item), t.String()), nil
}

func (c *classifier) builtin(t *model.TypeRef, pos Position) (*Conversion, error) {
	p := t.PathString()
	arity := func(n int) error {
		if len(t.Args) != n {
			return fmt.Errorf("%s expects %d type argument(s), got %d", p, n, len(t.Args))
		}
		return nil
	}
	switch {
	case p == model.BuiltinString:
		return stringConversion(), nil
	case p == model.BuiltinVec:
		if err := arity(1); err != nil {
			return nil, err
		}
		return c.generic(t, KindVec, t.Args)
	case p == model.BuiltinResult:
		if err := arity(2); err != nil {
			return nil, err
		}
		return c.generic(t, KindResult, t.Args)
	case model.IsMapPath(p):
		if err := arity(2); err != nil {
			return nil, err
		}
		return c.generic(t, KindMap, t.Args)
	case p == model.BuiltinOption:
		if err := arity(1); err != nil {
			return nil, err
		}
		return c.option(t.Args[0], pos)
	case p == model.BuiltinBox, p == model.BuiltinArc, p == model.BuiltinRc:
		if err := arity(1); err != nil {
			return nil, err
		}
		return c.boxed(t, pos)
	}
	return nil, fmt.Errorf("unsupported builtin type %s", t)
}

func isInteger(prim string) bool {
	switch prim {
	case "u8", "u16", "u32", "u64", "u128", "usize",
		"i8", "i16", "i32", "i64", "i128", "isize":
		return true
	}
	return false
}

func (c *classifier) option(inner *model.TypeRef, pos Position) (*Conversion, error) {
	if inner.Kind == model.TypePath && inner.Origin == model.OriginBuiltin && inner.PathString() == model.BuiltinOption {
		return nil, fmt.Errorf("nested Option<%s> cannot be told apart from None at the boundary", inner)
	}
	if inner.Kind == model.TypeReference {
		return nil, fmt.Errorf("optional reference Option<%s> is not supported", inner)
	}
	ic, err := c.Classify(inner, pos)
	if err != nil {
		return nil, err
	}
	if ic.Kind == KindTraitObject {
		return nil, fmt.Errorf("optional trait object Option<%s> is not supported", inner)
	}
	if inner.Kind == model.TypePrimitive && isInteger(inner.Prim) &&
		pos != PosElement && c.b.cfg.OptionPrimitives == config.OptionSentinel {
		return sentinelConversion(ic), nil
	}
	return optionalConversion(ic), nil
}

func (c *classifier) boxed(t *model.TypeRef, pos Position) (*Conversion, error) {
	wrapper := boxWrapper(t.PathString())
	inner := t.Args[0]
	if inner.Kind == model.TypeTraitObject {
		return c.dynamic(inner, pos, wrapper)
	}
	ic, err := c.Classify(inner, pos)
	if err != nil {
		return nil, err
	}
	if ic.Borrow != "" {
		return nil, fmt.Errorf("boxed reference %s is not supported", t)
	}
	return boxedConversion(ic, wrapper, t.String()), nil
}

func boxWrapper(canonical string) string {
	switch canonical {
	case model.BuiltinArc:
		return "std::sync::Arc"
	case model.BuiltinRc:
		return "std::rc::Rc"
	default:
		return "Box"
	}
}

func (c *classifier) reference(t *model.TypeRef, pos Position) (*Conversion, error) {
	if pos == PosField || pos == PosElement {
		return nil, fmt.Errorf("borrowed %s cannot be owned by a mirror", t)
	}
	elem := t.Elem
	switch {
	case elem.Kind == model.TypePrimitive && elem.Prim == "str":
		if t.Mut {
			return nil, fmt.Errorf("&mut str is not supported")
		}
		return strSliceConversion(), nil
	case elem.Kind == model.TypeSlice:
		sc, err := c.generic(elem, KindSlice, []*model.TypeRef{elem.Elem})
		if err != nil {
			return nil, err
		}
		return borrowedConversion(sc, t.Mut, t.String()), nil
	case elem.Kind == model.TypeTraitObject:
		borrow := "&"
		if t.Mut {
			borrow = "&mut "
		}
		return c.dynamic(elem, pos, borrow)
	case elem.Kind == model.TypeReference:
		return nil, fmt.Errorf("reference to reference %s is not supported", t)
	}
	ic, err := c.Classify(elem, pos)
	if err != nil {
		return nil, err
	}
	return borrowedConversion(ic, t.Mut, t.String()), nil
}

// dynamic classifies a trait object behind wrapper: "Box", an Arc/Rc path,
// "&", "&mut ", or "" for impl Trait arguments.
func (c *classifier) dynamic(t *model.TypeRef, pos Position, wrapper string) (*Conversion, error) {
	for _, b := range t.Bounds[1:] {
		if b.Kind != model.TypePath || !model.IsMarkerTrait(b.PathString()) {
			return nil, fmt.Errorf("trait object %s has more than one non-marker bound", t)
		}
	}
	principal := t.Principal()
	if principal.Kind == model.TypeFn {
		return c.callback(t, principal, wrapper)
	}
	if principal.Origin != model.OriginModel {
		return nil, &ConfigError{Msg: fmt.Sprintf("trait object of foreign trait %s has no vtable", principal)}
	}
	p := principal.PathString()
	item := c.b.model.Lookup(p)
	if item == nil || item.Kind != model.KindTrait {
		return nil, fmt.Errorf("%s is not a trait of the model", p)
	}
	c.deps[p] = true
	switch pos {
	case PosArg:
	case PosReturn:
		return c.ownedDynamic(t, item, wrapper)
	default:
		return nil, fmt.Errorf("trait object %s in %s position would be owned by both the mirror and the native value; return it or take it as an argument", t, pos)
	}
	info := c.b.trait(item)
	if !info.viewable {
		return nil, fmt.Errorf("trait %s has no forwarding view (%s)", p, info.reason)
	}
	obj := c.b.traitObjectPath(item)
	conv := &Conversion{Kind: KindTraitObject, Native: t.String(), FFI: obj}
	switch wrapper {
	case "&", "&mut ":
		conv.Borrow = wrapper
		conv.from = identity
	case "":
		conv.from = identity
	default:
		conv.from = func(e string) string { return wrapper + "::new(" + e + ")" }
	}
	return conv, nil
}

// ownedDynamic classifies a trait object handed to foreign code. The native
// value is boxed behind the vtable of its wrapper type, which dispatches
// through the box; foreign code releases it with that wrapper's destroy
// symbol. Reading one back wraps the foreign object like an argument does.
func (c *classifier) ownedDynamic(t *model.TypeRef, trait *resolver.ItemRef, wrapper string) (*Conversion, error) {
	p := trait.PathString()
	switch wrapper {
	case "&", "&mut ":
		return nil, fmt.Errorf("borrowed trait object %s cannot be handed to foreign code", t)
	case "":
		wrapper = "Box"
	}
	info := c.b.trait(trait)
	if info.err != nil {
		return nil, fmt.Errorf("trait %s cannot be exported: %w", p, info.err)
	}
	for _, m := range trait.Methods {
		switch m.Signature.Receiver {
		case model.ReceiverRef, model.ReceiverRefMut:
		default:
			return nil, fmt.Errorf("trait object %s cannot be handed to foreign code: method %s is not called through &self", t, m.Name)
		}
	}

	native := ownedDyn(t.Principal(), wrapper)
	key := GenericKey(c.b.mangler.Type(native))
	c.uses = append(c.uses, genericUse{Key: key, Kind: KindTraitObject, Native: native})
	obj := c.b.traitObjectPath(trait)
	static := c.b.genericItemPath(VTableStatic(ImplPrefix(string(key), c.b.mirrorName(trait))))
	value := identity
	if t.Impl {
		value = func(e string) string { return "Box::new(" + e + ")" }
	}
	conv := &Conversion{Kind: KindTraitObject, Native: t.String(), FFI: obj}
	conv.to = func(e string) string {
		return fmt.Sprintf("{ let o: %s = %s; %s { object: runtime::boxed(o) as *const %s, vtable: &%s } }",
			native, value(e), obj, cVoid, static)
	}
	if info.viewable {
		conv.from = func(e string) string { return wrapper + "::new(" + e + ")" }
	}
	return conv, nil
}

// ownedDyn returns wrapper<dyn principal>, the type a handed-out trait
// object is stored as. Marker bounds are dropped by coercion.
func ownedDyn(principal *model.TypeRef, wrapper string) *model.TypeRef {
	dyn := &model.TypeRef{Kind: model.TypeTraitObject, Bounds: []*model.TypeRef{principal.Clone()}}
	return wrapDyn(dyn, wrapper)
}

// callback classifies a closure trait object. References to callbacks and
// impl Fn arguments are rebuilt as boxed closures.
func (c *classifier) callback(t, fn *model.TypeRef, wrapper string) (*Conversion, error) {
	if fn.Ret != nil && fn.Ret.Kind == model.TypeReference {
		return nil, fmt.Errorf("callback %s returns a reference", fn)
	}
	for _, a := range fn.Elems {
		at := a
		if at.Kind == model.TypeReference {
			at = at.Elem
			if at.Kind == model.TypePrimitive && at.Prim == "str" {
				continue
			}
		}
		if _, err := c.Classify(at, PosElement); err != nil {
			return nil, fmt.Errorf("callback %s: %w", fn, err)
		}
	}
	if fn.Ret != nil {
		if _, err := c.Classify(fn.Ret, PosElement); err != nil {
			return nil, fmt.Errorf("callback %s: %w", fn, err)
		}
	}

	boxWith := wrapper
	if boxWith == "" || boxWith == "&" || boxWith == "&mut " {
		boxWith = "Box"
	}
	native := wrapDyn(t, boxWith)
	key := GenericKey(c.b.mangler.Type(fn))
	c.uses = append(c.uses, genericUse{Key: key, Kind: KindCallback, Native: native})
	conv := mirrorConversion(KindCallback, c.b.genericPath(key), native.String())
	conv.drop = func(e string) string { return "runtime::unbox_any_opt(" + e + ")" }
	conv.unboxes = false
	conv.noTo = true
	switch wrapper {
	case "&", "&mut ":
		conv.Borrow = wrapper
		conv.Native = t.String()
	case "":
		conv.Native = t.String()
	}
	return conv, nil
}

// wrapDyn returns the owned wrapper<obj> a callback mirror converts to or a
// handed-out trait object is stored as.
func wrapDyn(obj *model.TypeRef, wrapper string) *model.TypeRef {
	path := model.BuiltinBox
	switch wrapper {
	case "std::sync::Arc":
		path = model.BuiltinArc
	case "std::rc::Rc":
		path = model.BuiltinRc
	}
	dyn := obj.Clone()
	dyn.Impl = false
	return &model.TypeRef{
		Kind:   model.TypePath,
		Path:   model.SplitPath(path),
		Args:   []*model.TypeRef{dyn},
		Origin: model.OriginBuiltin,
	}
}

// generic classifies a container, checking its children and recording the instantiation.
func (c *classifier) generic(t *model.TypeRef, kind ConversionKind, children []*model.TypeRef) (*Conversion, error) {
	outbound := true
	for _, ch := range children {
		cc, err := c.Classify(ch, PosElement)
		if err != nil {
			return nil, err
		}
		outbound = outbound && cc.CanTo()
	}
	native := t
	if kind == KindSlice {
		native = &model.TypeRef{
			Kind:   model.TypePath,
			Path:   []string{model.BuiltinVec},
			Args:   []*model.TypeRef{t.Elem},
			Origin: model.OriginBuiltin,
		}
	}
	key := GenericKey(c.b.mangler.Type(t))
	c.uses = append(c.uses, genericUse{Key: key, Kind: kind, Native: native.Clone()})
	conv := mirrorConversion(kind, c.b.genericPath(key), native.String())
	conv.noTo = !outbound
	return conv, nil
}
