package gen

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/diag"
	"github.com/pankcuf/ferment-sub000/logger"
	"github.com/pankcuf/ferment-sub000/model"
	"github.com/pankcuf/ferment-sub000/resolver"
)

// Builder drives emission of a resolved model into a Tree.
type Builder struct {
	cfg      *config.Config
	model    *resolver.Model
	sink     diag.Sink
	log      *slog.Logger
	mangler  *Mangler
	symbols  *SymbolTable
	generics *GenericCollector
	traits   map[string]*traitInfo
}

// emission is the outcome of emitting one item.
type emission struct {
	item  *resolver.ItemRef
	key   string // canonical path; empty for impls
	gate  string
	frags []*Fragment
	deps  map[string]bool
	uses  []genericUse
	err   error
}

// NewBuilder creates a builder for m.
func NewBuilder(m *resolver.Model, cfg *config.Config, sink diag.Sink) *Builder {
	if sink == nil {
		sink = diag.Discard
	}
	return &Builder{
		cfg:      cfg,
		model:    m,
		sink:     sink,
		log:      logger.With("component", "builder"),
		mangler:  NewMangler(cfg),
		symbols:  NewSymbolTable(),
		generics: NewGenericCollector(cfg.MaxGenericIterations),
		traits:   make(map[string]*traitInfo),
	}
}

// Build emits m. Model misuse and configuration problems are reported to
// sink and skip the offending item; the returned error is reserved for
// internal invariant violations.
func Build(m *resolver.Model, cfg *config.Config, sink diag.Sink) (*Tree, error) {
	return NewBuilder(m, cfg, sink).Build()
}

// Build runs the emission.
func (b *Builder) Build() (*Tree, error) {
	logger.LogPhase("emit items", "items", len(b.model.Items))
	var emissions []*emission
	// Impls go last so that every trait they bind to has been classified.
	for _, impls := range []bool{false, true} {
		for _, it := range b.model.Items {
			if (it.Kind == model.KindImpl) == impls {
				emissions = append(emissions, b.emitItem(it))
			}
		}
	}
	b.propagateFailures(emissions)

	tree := newTree(b.cfg.RootModule)
	for _, e := range emissions {
		if e.err != nil {
			tree.Skipped = append(tree.Skipped, itemLabel(e.item))
			continue
		}
		for _, u := range e.uses {
			b.generics.Register(u, e.gate)
		}
		for _, f := range e.frags {
			if err := b.claim(f); err != nil {
				return nil, err
			}
			tree.place(f)
		}
	}
	logger.LogPhaseComplete("emit items", "skipped", len(tree.Skipped))

	logger.LogPhase("expand generics")
	var generic []*Fragment
	for {
		w, ok, err := b.generics.Drain()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		f, uses, err := b.emitGeneric(w)
		if err != nil {
			return nil, fmt.Errorf("emitting generic %s for %s: %w", w.Instance.Key, w.Native, err)
		}
		for _, u := range uses {
			b.generics.RegisterNested(u, w.Instance.Key)
		}
		generic = append(generic, f)
	}
	for _, f := range generic {
		f.Cfg = b.generics.Gate(GenericKey(f.Owner))
		if err := b.claim(f); err != nil {
			return nil, err
		}
		tree.place(f)
	}
	logger.LogPhaseComplete("expand generics", "instances", len(b.generics.Instances()))

	b.placeReexports(tree, emissions)
	return tree, nil
}

func (b *Builder) claim(f *Fragment) error {
	for _, s := range f.Symbols {
		if err := b.symbols.Claim(s.Name, f.Owner); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) emitItem(it *resolver.ItemRef) *emission {
	e := &emission{item: it, gate: allOf(it.Attrs.Cfg)}
	if it.Kind != model.KindImpl {
		e.key = it.PathString()
	}
	c := newClassifier(b)
	var err error
	switch it.Kind {
	case model.KindStruct, model.KindTupleStruct, model.KindUnitStruct:
		e.frags, err = b.emitStruct(c, it)
	case model.KindEnum:
		e.frags, err = b.emitEnum(c, it)
	case model.KindTypeAlias:
		e.frags, err = b.emitAlias(c, it)
	case model.KindFn:
		e.frags, err = b.emitFn(c, it)
	case model.KindTrait:
		e.frags, err = b.emitTrait(c, it)
	case model.KindImpl:
		e.frags, err = b.emitImpl(c, it)
	default:
		err = fmt.Errorf("unsupported item kind %q", it.Kind)
	}
	e.deps = c.deps
	e.uses = c.uses
	for _, f := range e.frags {
		f.Cfg = e.gate
	}
	if err != nil {
		e.err = err
		b.report(it, err)
	}
	return e
}

func (b *Builder) report(it *resolver.ItemRef, err error) {
	class := diag.ClassModel
	var ce *ConfigError
	if errors.As(err, &ce) {
		class = diag.ClassConfig
	}
	b.sink.Report(diag.Diagnostic{
		Severity: diag.SeverityError,
		Class:    class,
		Item:     itemLabel(it),
		Location: it.Location,
		Message:  err.Error(),
	})
}

// propagateFailures skips every item that depends on a skipped item, until
// no more change.
func (b *Builder) propagateFailures(emissions []*emission) {
	failed := make(map[string]bool)
	for _, e := range emissions {
		if e.err != nil && e.key != "" {
			failed[e.key] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for _, e := range emissions {
			if e.err != nil {
				continue
			}
			for _, dep := range sortedKeys(e.deps) {
				if dep == e.key || !failed[dep] {
					continue
				}
				e.err = fmt.Errorf("depends on skipped item %s", dep)
				b.report(e.item, e.err)
				if e.key != "" {
					failed[e.key] = true
				}
				changed = true
				break
			}
		}
	}
}

func (b *Builder) placeReexports(tree *Tree, emissions []*emission) {
	emitted := make(map[string]*emission)
	for _, e := range emissions {
		if e.err == nil && e.key != "" {
			emitted[e.key] = e
		}
	}
	for _, r := range b.model.Reexports {
		e := emitted[r.Item.PathString()]
		if e == nil || !hasMirror(r.Item) || len(r.Module) == 0 || r.Module[0] != "crate" {
			continue
		}
		if strings.Join(r.Module, "::") == strings.Join(r.Item.Module(), "::") {
			continue
		}
		m := tree.Root.Child(typesModule)
		for _, seg := range r.Module[1:] {
			m = m.Child(seg)
		}
		m.Reexports = append(m.Reexports, Reexport{Path: b.mirrorPath(r.Item), Cfg: e.gate})
	}
}

// hasMirror reports whether the item emits a mirror type.
func hasMirror(it *resolver.ItemRef) bool {
	switch it.Kind {
	case model.KindStruct, model.KindTupleStruct, model.KindUnitStruct, model.KindEnum, model.KindTypeAlias:
		return !it.Attrs.Opaque
	}
	return false
}

func itemLabel(it *resolver.ItemRef) string {
	if it.Kind != model.KindImpl {
		return it.PathString()
	}
	if it.Trait != nil {
		return fmt.Sprintf("impl %s for %s", it.Trait, it.SelfType)
	}
	return fmt.Sprintf("impl %s", it.SelfType)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Placement of emitted names.

func (b *Builder) rootPath() string {
	return "crate::" + b.cfg.RootModule
}

// itemModule returns the module an item's emission lives in, relative to the root.
func (b *Builder) itemModule(it *resolver.ItemRef) []string {
	mod := it.Module()
	out := []string{typesModule}
	if len(mod) > 1 {
		out = append(out, mod[1:]...)
	}
	return out
}

// mirrorName returns the mangled name of an item's mirror.
func (b *Builder) mirrorName(it *resolver.ItemRef) string {
	return b.mangler.Path(it.Path)
}

func (b *Builder) modulePath(mod []string) string {
	return b.rootPath() + "::" + strings.Join(mod, "::")
}

// mirrorPath returns the full path of an item's mirror type.
func (b *Builder) mirrorPath(it *resolver.ItemRef) string {
	return b.modulePath(b.itemModule(it)) + "::" + b.mirrorName(it)
}

// genericPath returns the full path of a generic instantiation's mirror.
func (b *Builder) genericPath(key GenericKey) string {
	return b.genericItemPath(string(key))
}

// genericItemPath returns the full path of a name in the generics module.
func (b *Builder) genericItemPath(name string) string {
	return b.rootPath() + "::" + genericsModule + "::" + name
}

func (b *Builder) vtablePath(trait *resolver.ItemRef) string {
	return b.modulePath(b.itemModule(trait)) + "::" + VTableName(b.mirrorName(trait))
}

// traitObjectPath returns the full path of a trait's object struct.
func (b *Builder) traitObjectPath(trait *resolver.ItemRef) string {
	return b.modulePath(b.itemModule(trait)) + "::" + TraitObjectName(b.mirrorName(trait))
}
