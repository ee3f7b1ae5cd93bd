package gen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/model"
)

// ErrSymbolCollision is returned when two different owners claim the same
// emitted symbol. It indicates a mangling bug, never a model problem.
var ErrSymbolCollision = errors.New("symbol collision")

// Mangler turns paths and type expressions into C identifiers.
//
// The grammar is prefix-tagged and underscore separated:
//
//	crate::model::Hash160          -> <root>_model_Hash160
//	crate::model::Block_hash       -> <root>_model_Block__hash
//	Vec<u8>                        -> Vec_u8
//	[u8; 20]                       -> Arr_u8_20
//	HashMap<K, V>                  -> Map_keys_K_values_V
//	Result<O, E>                   -> Result_ok_O_err_E
//	(A, B)                         -> Tuple_2_A_B
//	Box<dyn Fn(A) -> R>            -> Fn_ARGS_A_RTRN_R
//
// A single underscore always separates; underscores inside a segment are
// doubled. A path segment that starts with an underscore, or a leading
// segment that spells a grammar tag, is marked: with "_" when it starts the
// identifier and with "0" after a separator. References and raw pointers
// are erased.
type Mangler struct {
	root []string
}

// grammarTags are the tokens composite names start with. A path whose first
// segment spells one is marked so it cannot read as a composite.
var grammarTags = map[string]bool{
	"Vec": true, "Option": true, "Box": true, "Arc": true, "Rc": true,
	"Arr": true, "Slice": true, "Map": true, "Result": true, "Tuple": true,
	"Fn": true, "dyn": true, "Unit": true, "Never": true, "String": true,
}

// freeFnPrefix starts every free function symbol.
const freeFnPrefix = "ffi"

// Segment escapes one identifier for use inside a mangled name.
func Segment(s string) string {
	return strings.ReplaceAll(s, "_", "__")
}

// NewMangler creates a mangler for the configured crate root.
func NewMangler(cfg *config.Config) *Mangler {
	return &Mangler{root: cfg.CrateRootSegments()}
}

// Path mangles a canonical path, replacing the crate segment with the root.
// The result starts an identifier.
func (m *Mangler) Path(segs []string) string {
	return joinSegments(m.rooted(segs), true)
}

// FnBase mangles the path of a free function. The symbol already starts
// with the ffi_ prefix, so the path is written as a continuation.
func (m *Mangler) FnBase(segs []string) string {
	return joinSegments(m.rooted(segs), false)
}

func (m *Mangler) rooted(segs []string) []string {
	var parts []string
	for i, s := range segs {
		if i == 0 && s == "crate" {
			parts = append(parts, m.root...)
			continue
		}
		parts = append(parts, s)
	}
	return parts
}

// joinSegments escapes and joins path segments. lead is set when the
// result starts the identifier.
func joinSegments(parts []string, lead bool) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('_')
		}
		marked := strings.HasPrefix(p, "_")
		if i == 0 {
			marked = marked || grammarTags[p] || model.IsPrimitiveName(p) || lead && p == freeFnPrefix
		}
		if marked {
			if lead && i == 0 {
				b.WriteByte('_')
			} else {
				b.WriteByte('0')
			}
		}
		b.WriteString(Segment(p))
	}
	return b.String()
}

// Type mangles a type expression.
func (m *Mangler) Type(t *model.TypeRef) string {
	var b strings.Builder
	m.write(&b, t)
	return b.String()
}

func (m *Mangler) write(b *strings.Builder, t *model.TypeRef) {
	switch t.Kind {
	case model.TypePrimitive:
		b.WriteString(t.Prim)
	case model.TypeNever:
		b.WriteString("Never")
	case model.TypeTuple:
		if len(t.Elems) == 0 {
			b.WriteString("Unit")
			return
		}
		fmt.Fprintf(b, "Tuple_%d", len(t.Elems))
		for _, e := range t.Elems {
			b.WriteString("_")
			m.write(b, e)
		}
	case model.TypeArray:
		b.WriteString("Arr_")
		m.write(b, t.Elem)
		fmt.Fprintf(b, "_%d", t.Len)
	case model.TypeSlice:
		b.WriteString("Slice_")
		m.write(b, t.Elem)
	case model.TypeReference, model.TypePointer:
		m.write(b, t.Elem)
	case model.TypeFn:
		b.WriteString("Fn_ARGS")
		for _, e := range t.Elems {
			b.WriteString("_")
			m.write(b, e)
		}
		if t.Ret != nil && !t.Ret.IsUnit() {
			b.WriteString("_RTRN_")
			m.write(b, t.Ret)
		}
	case model.TypeTraitObject:
		p := t.Principal()
		if p.Kind == model.TypeFn {
			m.write(b, p)
			return
		}
		b.WriteString("dyn_")
		m.write(b, p)
	case model.TypePath:
		m.writePath(b, t)
	}
}

func (m *Mangler) writePath(b *strings.Builder, t *model.TypeRef) {
	args := func() {
		for _, a := range t.Args {
			b.WriteString("_")
			m.write(b, a)
		}
	}
	if t.Origin == model.OriginBuiltin {
		switch p := t.PathString(); {
		case p == model.BuiltinVec:
			b.WriteString("Vec")
			args()
			return
		case p == model.BuiltinOption:
			b.WriteString("Option")
			args()
			return
		case p == model.BuiltinBox:
			b.WriteString("Box")
			args()
			return
		case p == model.BuiltinArc:
			b.WriteString("Arc")
			args()
			return
		case p == model.BuiltinRc:
			b.WriteString("Rc")
			args()
			return
		case p == model.BuiltinResult && len(t.Args) == 2:
			b.WriteString("Result_ok_")
			m.write(b, t.Args[0])
			b.WriteString("_err_")
			m.write(b, t.Args[1])
			return
		case model.IsMapPath(p) && len(t.Args) == 2:
			b.WriteString("Map_keys_")
			m.write(b, t.Args[0])
			b.WriteString("_values_")
			m.write(b, t.Args[1])
			return
		}
		b.WriteString(t.Name())
		args()
		return
	}
	lead := b.Len() == 0
	if t.Origin == model.OriginModel {
		b.WriteString(joinSegments(m.rooted(t.Path), lead))
	} else {
		b.WriteString(joinSegments(t.Path, lead))
	}
	args()
}

// Role suffixes and infixes of emitted symbols. Names placed after a role
// are escaped with Segment, so a single underscore never comes from a name.
const (
	roleCtor    = "ctor"
	roleDestroy = "destroy"
	roleGet     = "get"
	roleSet     = "set"
	roleMethod  = "fn"
	roleAs      = "as"
)

// CtorSymbol names the constructor of a mirror.
func CtorSymbol(base string) string { return base + "_" + roleCtor }

// DestroySymbol names the destructor of a mirror.
func DestroySymbol(base string) string { return base + "_" + roleDestroy }

// GetterSymbol names a field getter.
func GetterSymbol(base, field string) string { return base + "_" + roleGet + "_" + Segment(field) }

// SetterSymbol names a field setter.
func SetterSymbol(base, field string) string { return base + "_" + roleSet + "_" + Segment(field) }

// VariantCtorSymbol names an enum variant constructor.
func VariantCtorSymbol(base, variant string) string {
	return base + "_" + Segment(variant) + "_" + roleCtor
}

// MethodSymbol names an inherent method trampoline. fn is a keyword, so no
// variant or field name can take its place.
func MethodSymbol(base, method string) string { return base + "_" + roleMethod + "_" + Segment(method) }

// VTableName names a trait's vtable struct.
func VTableName(trait string) string { return trait + "_VTable" }

// TraitObjectName names a trait's object struct.
func TraitObjectName(trait string) string { return trait + "_TraitObject" }

// AsTraitObjectSymbol names the constructor binding an implementor to a trait's vtable.
func AsTraitObjectSymbol(self, trait string) string {
	return ImplPrefix(self, TraitObjectName(trait))
}

// ImplPrefix names the per-impl statics and trampolines.
func ImplPrefix(self, trait string) string { return self + "_" + roleAs + "_" + trait }

// implTails are the fixed names that follow an impl prefix.
var implTails = map[string]bool{vtableStatic: true, "TraitObject": true}

// TrampolineSymbol names the vtable slot function of method under an impl
// prefix. A method spelling one of the impl's fixed names is marked.
func TrampolineSymbol(prefix, method string) string {
	if implTails[method] {
		return prefix + "_0" + Segment(method)
	}
	return prefix + "_" + Segment(method)
}

// VTableStatic names the vtable static of an impl prefix.
func VTableStatic(prefix string) string { return prefix + "_" + vtableStatic }

// FreeFnSymbol names a free function trampoline from its FnBase.
func FreeFnSymbol(base string) string { return freeFnPrefix + "_" + base }

// Accessor suffixes of generic containers.
const (
	valueByKey      = "value_by_key"
	setValueForKey  = "set_value_for_key"
	valueAtIndex    = "value_at_index"
	setValueAtIndex = "set_value_at_index"
	vtableStatic    = "VTABLE"
)

// SymbolTable records which owner claimed each emitted symbol.
type SymbolTable struct {
	owners map[string]string
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{owners: make(map[string]string)}
}

// Claim records sym for owner. Claiming a symbol twice for the same owner
// is allowed; claiming it for a different owner is a collision.
func (s *SymbolTable) Claim(sym, owner string) error {
	if prev, ok := s.owners[sym]; ok && prev != owner {
		return fmt.Errorf("%w: %s claimed by %s and %s", ErrSymbolCollision, sym, prev, owner)
	}
	s.owners[sym] = owner
	return nil
}

// Owner returns the owner of sym.
func (s *SymbolTable) Owner(sym string) (string, bool) {
	o, ok := s.owners[sym]
	return o, ok
}

// Len returns the number of claimed symbols.
func (s *SymbolTable) Len() int {
	return len(s.owners)
}
