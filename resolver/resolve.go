// Package resolver turns a decoded model into read-only item references
// with resolved type expressions.
package resolver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mitchellh/copystructure"
	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/diag"
	"github.com/pankcuf/ferment-sub000/logger"
	"github.com/pankcuf/ferment-sub000/model"
)

// Model is the resolved view of a crate.
type Model struct {
	Crate     string
	File      string
	Items     []*ItemRef
	Reexports []ReexportRef

	byPath   map[string]*ItemRef
	excluded map[string]bool
}

// Lookup returns the included item with the given canonical path.
func (m *Model) Lookup(path string) *ItemRef {
	return m.byPath[path]
}

// Excluded reports whether path names an item dropped by its feature gates.
func (m *Model) Excluded(path string) bool {
	return m.excluded[path]
}

// ReexportRef re-exports an item inside a module.
type ReexportRef struct {
	Module []string
	Item   *ItemRef
}

// ItemRef is the generator's view of one top-level definition.
type ItemRef struct {
	Path     []string
	Kind     model.ItemKind
	Generics []string
	Attrs    model.Attrs
	Location string

	Fields   []FieldDescriptor
	Variants []VariantDescriptor
	Aliased  *model.TypeRef

	Signature *SignatureRef
	Methods   []MethodRef

	// Impl items: Trait is nil for inherent impls.
	Trait    *model.TypeRef
	SelfType *model.TypeRef

	// Raw is a private deep copy of the decoded item.
	Raw model.Item
}

// PathString returns the canonical "::"-joined path.
func (it *ItemRef) PathString() string {
	return model.JoinPath(it.Path)
}

// Name returns the last path segment.
func (it *ItemRef) Name() string {
	return it.Path[len(it.Path)-1]
}

// Module returns the module the item lives in. An impl's path is its module.
func (it *ItemRef) Module() []string {
	if it.Kind == model.KindImpl {
		return it.Path
	}
	return it.Path[:len(it.Path)-1]
}

// IsGeneric reports whether the item declares type parameters.
func (it *ItemRef) IsGeneric() bool {
	for _, g := range it.Generics {
		if !model.IsLifetime(g) {
			return true
		}
	}
	return false
}

// FieldDescriptor is a named or positional field.
type FieldDescriptor struct {
	Name     string
	Index    int
	Type     *model.TypeRef
	Doc      string
	Optional bool // Option<T>
	Mutable  bool // &mut T or *mut T
}

// Positional reports whether the field is a tuple index.
func (f *FieldDescriptor) Positional() bool {
	return model.IsPositional(f.Name)
}

// VariantDescriptor is one enum variant.
type VariantDescriptor struct {
	Name         string
	Shape        model.VariantShape
	Fields       []FieldDescriptor
	Discriminant *int64
	Doc          string
}

// ParamRef is a resolved function parameter.
type ParamRef struct {
	Name string
	Type *model.TypeRef
}

// SignatureRef is a resolved signature. Returns is nil for the unit return.
type SignatureRef struct {
	Params   []ParamRef
	Returns  *model.TypeRef
	Async    bool
	Receiver model.Receiver
	Generics []string

	// ReturnLifetime is set when the return mentions one of the signature's
	// or item's lifetime parameters.
	ReturnLifetime bool
}

// MethodRef is a resolved trait or impl method.
type MethodRef struct {
	Name      string
	Doc       string
	Signature SignatureRef
}

// Resolve ingests a crate: it drops items excluded by the enabled features,
// deep-copies the rest and resolves every type expression.
// Per-item problems go to sink; the returned error is reserved for failures
// that leave no usable model.
func Resolve(crate *model.Crate, cfg *config.Config, sink diag.Sink) (*Model, error) {
	log := logger.With("component", "resolver")
	m := &Model{
		Crate:    crate.Name,
		File:     crate.File,
		byPath:   make(map[string]*ItemRef),
		excluded: make(map[string]bool),
	}

	// Every declared path is known up front so forward references resolve.
	declared := make(map[string]bool)
	byName := make(map[string][]string)
	for i := range crate.Items {
		it := &crate.Items[i]
		if it.Kind == model.KindImpl {
			continue
		}
		if !declared[it.Path] {
			byName[it.Name()] = append(byName[it.Name()], it.Path)
		}
		declared[it.Path] = true
	}

	r := &typeResolver{cfg: cfg, declared: declared, byName: byName}

	for i := range crate.Items {
		it := &crate.Items[i]
		loc := it.Location(crate.File)
		report := func(class diag.Class, format string, args ...any) {
			sink.Report(diag.Diagnostic{
				Severity: diag.SeverityError,
				Class:    class,
				Item:     it.Path,
				Location: loc,
				Message:  fmt.Sprintf(format, args...),
			})
		}

		included, err := itemIncluded(it, cfg)
		if err != nil {
			report(diag.ClassModel, "%v", err)
			continue
		}
		if !included {
			m.excluded[it.Path] = true
			log.Debug("item excluded by feature gates", slog.String("item", it.Path))
			continue
		}
		if it.Kind != model.KindImpl {
			if _, dup := m.byPath[it.Path]; dup {
				report(diag.ClassModel, "duplicate definition of %s", it.Path)
				continue
			}
		}

		ref, err := r.item(it, loc)
		if err != nil {
			report(diag.ClassModel, "%v", err)
			continue
		}
		m.Items = append(m.Items, ref)
		if ref.Kind != model.KindImpl {
			m.byPath[ref.PathString()] = ref
		}
	}

	// An item re-included under another gate set wins over an excluded twin.
	for p := range m.byPath {
		delete(m.excluded, p)
	}

	for _, re := range crate.Reexports {
		target := m.byPath[re.Path]
		if target == nil {
			if m.excluded[re.Path] {
				continue
			}
			sink.Report(diag.Diagnostic{
				Severity: diag.SeverityWarning,
				Class:    diag.ClassModel,
				Item:     re.Path,
				Location: crate.File,
				Message:  fmt.Sprintf("re-export of unknown item %s from %s", re.Path, re.Module),
			})
			continue
		}
		m.Reexports = append(m.Reexports, ReexportRef{Module: model.SplitPath(re.Module), Item: target})
	}

	log.Debug("resolved model", slog.Int("items", len(m.Items)), slog.Int("excluded", len(m.excluded)))
	return m, nil
}

func itemIncluded(it *model.Item, cfg *config.Config) (bool, error) {
	for _, c := range it.Attrs.Cfg {
		ok, err := EvalCfg(c, cfg.FeatureEnabled)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

type typeResolver struct {
	cfg      *config.Config
	declared map[string]bool
	byName   map[string][]string
}

// scope is the lookup context of one item or method.
type scope struct {
	module   []string
	generics map[string]bool
	self     *model.TypeRef // impl self type; Self is a placeholder elsewhere
}

func (s scope) with(generics []string) scope {
	out := scope{module: s.module, self: s.self, generics: make(map[string]bool, len(s.generics)+len(generics))}
	for g := range s.generics {
		out.generics[g] = true
	}
	for _, g := range generics {
		out.generics[g] = true
	}
	return out
}

func (r *typeResolver) item(src *model.Item, loc string) (*ItemRef, error) {
	c, err := copystructure.Copy(*src)
	if err != nil {
		return nil, fmt.Errorf("copying item: %w", err)
	}
	raw := c.(model.Item)

	path := model.SplitPath(raw.Path)
	if len(path) == 0 || path[0] != "crate" {
		return nil, fmt.Errorf("item path %q must start with crate::", raw.Path)
	}
	if raw.Kind != model.KindImpl && len(path) < 2 {
		return nil, fmt.Errorf("item path %q names no item", raw.Path)
	}

	ref := &ItemRef{
		Path:     path,
		Kind:     raw.Kind,
		Generics: raw.Generics,
		Attrs:    raw.Attrs,
		Location: loc,
		Raw:      raw,
	}
	sc := scope{module: ref.Module()}.with(raw.Generics)

	switch raw.Kind {
	case model.KindStruct, model.KindTupleStruct, model.KindUnitStruct:
		if ref.Fields, err = r.fields(raw.Fields, sc); err != nil {
			return nil, err
		}
	case model.KindEnum:
		for _, v := range raw.Variants {
			fields, err := r.fields(v.Fields, sc)
			if err != nil {
				return nil, fmt.Errorf("variant %s: %w", v.Name, err)
			}
			ref.Variants = append(ref.Variants, VariantDescriptor{
				Name:         v.Name,
				Shape:        v.EffectiveShape(),
				Fields:       fields,
				Discriminant: v.Discriminant,
				Doc:          v.Doc,
			})
		}
	case model.KindTypeAlias:
		if raw.Aliased == "" {
			return nil, fmt.Errorf("type alias without aliased type")
		}
		if ref.Aliased, err = r.typ(raw.Aliased, sc); err != nil {
			return nil, err
		}
	case model.KindFn:
		if raw.Signature == nil {
			return nil, fmt.Errorf("function without signature")
		}
		sig, err := r.signature(raw.Signature, sc, raw.Generics)
		if err != nil {
			return nil, err
		}
		ref.Signature = sig
	case model.KindTrait, model.KindImpl:
		if raw.Kind == model.KindImpl {
			if raw.SelfType == "" {
				return nil, fmt.Errorf("impl without self_type")
			}
			if ref.SelfType, err = r.typ(raw.SelfType, sc); err != nil {
				return nil, err
			}
			sc.self = ref.SelfType
			if raw.Trait != "" {
				if ref.Trait, err = r.typ(raw.Trait, sc); err != nil {
					return nil, err
				}
			}
		}
		for _, mth := range raw.Methods {
			sig, err := r.signature(&mth.Signature, sc, raw.Generics)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", mth.Name, err)
			}
			ref.Methods = append(ref.Methods, MethodRef{Name: mth.Name, Doc: mth.Doc, Signature: *sig})
		}
	default:
		return nil, fmt.Errorf("unknown item kind %q", raw.Kind)
	}
	return ref, nil
}

func (r *typeResolver) fields(fields []model.Field, sc scope) ([]FieldDescriptor, error) {
	out := make([]FieldDescriptor, 0, len(fields))
	for i, f := range fields {
		t, err := r.typ(f.Type, sc)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		name := f.Name
		if name == "" {
			name = fmt.Sprint(i)
		}
		fd := FieldDescriptor{Name: name, Index: i, Type: t, Doc: f.Doc}
		inner := t
		if inner.Kind == model.TypeReference || inner.Kind == model.TypePointer {
			fd.Mutable = inner.Mut
			inner = inner.Elem
		}
		fd.Optional = inner.Kind == model.TypePath && inner.PathString() == model.BuiltinOption
		out = append(out, fd)
	}
	return out, nil
}

func (r *typeResolver) signature(sig *model.Signature, sc scope, itemGenerics []string) (*SignatureRef, error) {
	sc = sc.with(sig.Generics)
	out := &SignatureRef{
		Async:    sig.Async,
		Receiver: sig.Receiver,
		Generics: sig.Generics,
	}
	switch sig.Receiver {
	case model.ReceiverNone, model.ReceiverRef, model.ReceiverRefMut, model.ReceiverValue:
	default:
		return nil, fmt.Errorf("unknown receiver %q", sig.Receiver)
	}
	for i, p := range sig.Params {
		t, err := r.typ(p.Type, sc)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		name := p.Name
		if name == "" || name == "_" {
			name = fmt.Sprintf("arg%d", i)
		}
		out.Params = append(out.Params, ParamRef{Name: name, Type: t})
	}
	if sig.Returns != "" {
		t, err := r.typ(sig.Returns, sc)
		if err != nil {
			return nil, fmt.Errorf("return: %w", err)
		}
		if !t.IsUnit() {
			out.Returns = t
		}
		for _, g := range append(append([]string(nil), itemGenerics...), sig.Generics...) {
			if model.IsLifetime(g) && g != "'static" && mentionsLifetime(sig.Returns, g) {
				out.ReturnLifetime = true
			}
		}
	}
	return out, nil
}

// mentionsLifetime reports whether src uses lifetime lt as a whole token.
func mentionsLifetime(src, lt string) bool {
	for i := strings.Index(src, lt); i >= 0; {
		end := i + len(lt)
		if end == len(src) || !isCfgIdentByte(src[end]) {
			return true
		}
		next := strings.Index(src[end:], lt)
		if next < 0 {
			break
		}
		i = end + next
	}
	return false
}

func (r *typeResolver) typ(src string, sc scope) (*model.TypeRef, error) {
	t, err := model.ParseType(src)
	if err != nil {
		return nil, err
	}
	var walkErr error
	t.Walk(func(n *model.TypeRef) {
		switch n.Kind {
		case model.TypePrimitive, model.TypeTuple, model.TypeNever:
			n.Origin = model.OriginBuiltin
		case model.TypePath:
			if err := r.path(n, sc); err != nil && walkErr == nil {
				walkErr = err
			}
		}
	})
	if walkErr != nil {
		return nil, fmt.Errorf("type %q: %w", src, walkErr)
	}
	return t, nil
}

// path resolves a named type in place: generic parameters, explicit
// crate/self/super paths, module-relative and crate-root lookups,
// well-known builtins, unique bare names, then foreign paths.
func (r *typeResolver) path(t *model.TypeRef, sc scope) error {
	segs := t.Path
	if len(segs) == 1 && sc.generics[segs[0]] {
		t.Origin = model.OriginGeneric
		return nil
	}
	if len(segs) == 1 && segs[0] == "Self" {
		if sc.self == nil {
			t.Origin = model.OriginGeneric
			return nil
		}
		self := sc.self.Clone()
		t.Path, t.Args, t.Origin = self.Path, self.Args, self.Origin
		return nil
	}

	switch segs[0] {
	case "crate":
		return r.bind(t, segs)
	case "self":
		return r.bind(t, append(append([]string(nil), sc.module...), segs[1:]...))
	case "super":
		mod := sc.module
		rest := segs
		for len(rest) > 0 && rest[0] == "super" {
			if len(mod) <= 1 {
				return fmt.Errorf("super:: escapes the crate root")
			}
			mod = mod[:len(mod)-1]
			rest = rest[1:]
		}
		return r.bind(t, append(append([]string(nil), mod...), rest...))
	}

	if local := model.JoinPath(append(append([]string(nil), sc.module...), segs...)); r.declared[local] {
		t.Path = model.SplitPath(local)
		t.Origin = model.OriginModel
		return nil
	}
	if root := "crate::" + model.JoinPath(segs); r.declared[root] {
		t.Path = model.SplitPath(root)
		t.Origin = model.OriginModel
		return nil
	}
	if canon, ok := model.CanonicalBuiltin(t.PathString()); ok {
		t.Path = model.SplitPath(canon)
		t.Origin = model.OriginBuiltin
		return nil
	}
	if model.IsMarkerTrait(t.PathString()) {
		t.Origin = model.OriginBuiltin
		return nil
	}
	if len(segs) == 1 {
		if cands := r.byName[segs[0]]; len(cands) == 1 {
			t.Path = model.SplitPath(cands[0])
			t.Origin = model.OriginModel
			return nil
		} else if len(cands) > 1 {
			return fmt.Errorf("ambiguous name %s: %s", segs[0], strings.Join(cands, ", "))
		}
	}
	t.Origin = model.OriginForeign
	return nil
}

func (r *typeResolver) bind(t *model.TypeRef, segs []string) error {
	p := model.JoinPath(segs)
	if !r.declared[p] {
		if _, custom := r.cfg.CustomConversions[p]; custom {
			t.Path = segs
			t.Origin = model.OriginForeign
			return nil
		}
		return fmt.Errorf("unknown item %s", p)
	}
	t.Path = segs
	t.Origin = model.OriginModel
	return nil
}
