package gen

import (
	"errors"
	"testing"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/model"
)

// aliasCrate declares a few model types and one type alias per source
// type, so that the aliased types resolve the way item fields do.
func aliasCrate(srcs ...string) *model.Crate {
	crate := &model.Crate{
		Name: "alias",
		Items: []model.Item{
			{Path: "crate::model::Hash160", Kind: model.KindTupleStruct, Fields: []model.Field{{Name: "0", Type: "[u8; 20]"}}},
			{Path: "crate::model::Entry", Kind: model.KindStruct, Fields: []model.Field{{Name: "height", Type: "u32"}}},
			{Path: "crate::model::Cache", Kind: model.KindStruct, Attrs: model.Attrs{Opaque: true}},
			{Path: "crate::a::B_c", Kind: model.KindUnitStruct},
			{Path: "crate::a_B::c", Kind: model.KindUnitStruct},
			{Path: "crate::X", Kind: model.KindUnitStruct},
			{Path: "crate::Vec::X", Kind: model.KindUnitStruct},
			{Path: "crate::chain::Settings", Kind: model.KindTrait, Methods: []model.Method{
				{Name: "name", Signature: model.Signature{Receiver: model.ReceiverRef, Returns: "String"}},
			}},
			{Path: "crate::chain::Consume", Kind: model.KindTrait, Methods: []model.Method{
				{Name: "into_name", Signature: model.Signature{Receiver: model.ReceiverValue, Returns: "String"}},
			}},
		},
	}
	for i, src := range srcs {
		crate.Items = append(crate.Items, model.Item{
			Path:    "crate::alias::T" + string(rune('a'+i)),
			Kind:    model.KindTypeAlias,
			Aliased: src,
		})
	}
	return crate
}

func aliasType(t *testing.T, cfg *config.Config, src string) *model.TypeRef {
	t.Helper()
	m := resolveTestCrate(t, aliasCrate(src), cfg)
	it := m.Lookup("crate::alias::Ta")
	if it == nil {
		t.Fatalf("alias of %q not resolved", src)
	}
	return it.Aliased
}

func TestMangler_Type(t *testing.T) {
	cfg := config.Default()
	mg := NewMangler(cfg)
	tests := []struct {
		src  string
		want string
	}{
		{"u8", "u8"},
		{"Vec<u8>", "Vec_u8"},
		{"[u8; 20]", "Arr_u8_20"},
		{"&[u32]", "Slice_u32"},
		{"HashMap<u32, String>", "Map_keys_u32_values_String"},
		{"BTreeMap<u32, String>", "Map_keys_u32_values_String"},
		{"Result<u32, String>", "Result_ok_u32_err_String"},
		{"(u32, bool)", "Tuple_2_u32_bool"},
		{"Option<Vec<String>>", "Option_Vec_String"},
		{"Vec<crate::model::Hash160>", "Vec_model_Hash160"},
		{"HashMap<u32, Vec<crate::model::Entry>>", "Map_keys_u32_values_Vec_model_Entry"},
		{"Vec<crate::a::B_c>", "Vec_a_B__c"},
		{"Vec<crate::Vec::X>", "Vec_0Vec_X"},
		{"crate::Vec::X", "_Vec_X"},
	}
	for _, tt := range tests {
		got := mg.Type(aliasType(t, cfg, tt.src))
		if got != tt.want {
			t.Errorf("Type(%s) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestMangler_Path(t *testing.T) {
	tests := []struct {
		root string
		path string
		want string
	}{
		{"", "crate::model::Hash160", "model_Hash160"},
		{"example", "crate::model::Hash160", "example_model_Hash160"},
		{"dash::spv", "crate::Hash160", "dash_spv_Hash160"},
		{"", "crate::a::B_c", "a_B__c"},
		{"", "crate::a_B::c", "a__B_c"},
		{"", "crate::a::_B", "a_0__B"},
		{"", "crate::_a::B", "___a_B"},
		{"", "crate::Vec::X", "_Vec_X"},
		{"", "crate::u8::X", "_u8_X"},
		{"", "crate::ffi::X", "_ffi_X"},
		{"example", "crate::Vec::X", "example_Vec_X"},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.CrateRoot = tt.root
		got := NewMangler(cfg).Path(model.SplitPath(tt.path))
		if got != tt.want {
			t.Errorf("Path(%s) with root %q = %q, want %q", tt.path, tt.root, got, tt.want)
		}
	}
}

func TestMangler_FnBase(t *testing.T) {
	mg := NewMangler(config.Default())
	tests := []struct {
		path string
		want string
	}{
		{"crate::ffi::find_hash_by_u32", "ffi_find__hash__by__u32"},
		{"crate::lookup", "lookup"},
		{"crate::Vec::new_one", "0Vec_new__one"},
	}
	for _, tt := range tests {
		got := FreeFnSymbol(mg.FnBase(model.SplitPath(tt.path)))
		if got != "ffi_"+tt.want {
			t.Errorf("FreeFnSymbol(%s) = %q, want %q", tt.path, got, "ffi_"+tt.want)
		}
	}
}

func TestMangler_PathsWithUnderscores(t *testing.T) {
	mg := NewMangler(config.Default())
	paths := []string{
		"crate::a_b::C",
		"crate::a::b_C",
		"crate::a::b::C",
		"crate::a__b::C",
		"crate::_a::b",
		"crate::a::_b",
		"crate::ffi::x",
		"crate::ffi_x",
		"crate::Vec::u8",
		"crate::Vec_u8",
	}
	seen := map[string]string{}
	for _, p := range paths {
		segs := model.SplitPath(p)
		for _, got := range []string{mg.Path(segs), FreeFnSymbol(mg.FnBase(segs))} {
			if prev, ok := seen[got]; ok && prev != p {
				t.Errorf("%s and %s both mangle to %q", prev, p, got)
			}
			seen[got] = p
		}
	}
}

func TestMangler_Distinct(t *testing.T) {
	cfg := config.Default()
	mg := NewMangler(cfg)
	srcs := []string{
		"Vec<u32>",
		"Vec<Vec<u32>>",
		"[u32; 2]",
		"[u32; 20]",
		"(u32, u32)",
		"(u32, (u32,))",
		"((u32,), u32)",
		"HashMap<u32, Vec<u32>>",
		"HashMap<Vec<u32>, u32>",
		"Result<u32, Vec<u32>>",
		"Result<Vec<u32>, u32>",
		"Vec<crate::model::Entry>",
		"Vec<crate::model::Hash160>",
		"Vec<crate::a::B_c>",
		"Vec<crate::a_B::c>",
		"Vec<Vec<crate::X>>",
		"Vec<crate::Vec::X>",
	}
	seen := map[string]string{}
	for _, src := range srcs {
		got := mg.Type(aliasType(t, cfg, src))
		if prev, ok := seen[got]; ok {
			t.Errorf("%s and %s both mangle to %q", prev, src, got)
		}
		seen[got] = src
	}
}

func TestSymbolNames(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{CtorSymbol("model_Entry"), "model_Entry_ctor"},
		{DestroySymbol("model_Entry"), "model_Entry_destroy"},
		{GetterSymbol("model_Entry", "height"), "model_Entry_get_height"},
		{SetterSymbol("model_Entry", "height"), "model_Entry_set_height"},
		{VariantCtorSymbol("model_Status", "Variant1"), "model_Status_Variant1_ctor"},
		{GetterSymbol("model_LLMQSnapshot", "best_cl_height"), "model_LLMQSnapshot_get_best__cl__height"},
		{VariantCtorSymbol("model_Status", "Not_Ready"), "model_Status_Not__Ready_ctor"},
		{MethodSymbol("model_Entry", "bump"), "model_Entry_fn_bump"},
		{MethodSymbol("model_Entry", "set_height"), "model_Entry_fn_set__height"},
		{VTableName("chain_Settings"), "chain_Settings_VTable"},
		{TraitObjectName("chain_Settings"), "chain_Settings_TraitObject"},
		{AsTraitObjectSymbol("chain_ChainType", "chain_Settings"), "chain_ChainType_as_chain_Settings_TraitObject"},
		{ImplPrefix("chain_ChainType", "chain_Settings"), "chain_ChainType_as_chain_Settings"},
		{TrampolineSymbol("P", "should_process"), "P_should__process"},
		{TrampolineSymbol("P", "VTABLE"), "P_0VTABLE"},
		{TrampolineSymbol("P", "TraitObject"), "P_0TraitObject"},
		{VTableStatic("P"), "P_VTABLE"},
		{FreeFnSymbol("ffi_lookup"), "ffi_ffi_lookup"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestSymbolTable(t *testing.T) {
	s := NewSymbolTable()
	if err := s.Claim("model_Entry_ctor", "crate::model::Entry"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Claim("model_Entry_ctor", "crate::model::Entry"); err != nil {
		t.Errorf("re-claiming for the same owner should succeed: %v", err)
	}
	err := s.Claim("model_Entry_ctor", "crate::model_Entry")
	if !errors.Is(err, ErrSymbolCollision) {
		t.Errorf("expected collision, got %v", err)
	}
	if owner, ok := s.Owner("model_Entry_ctor"); !ok || owner != "crate::model::Entry" {
		t.Errorf("Owner = %q, %v", owner, ok)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 symbol, got %d", s.Len())
	}
}

func TestSymbolNames_RolesDisjoint(t *testing.T) {
	// Field, variant and method names chosen to spell the role words.
	names := []string{"height", "set_height", "get_height", "fn_x", "ctor", "x_ctor", "destroy", "get", "set", "as", "VTABLE", "TraitObject"}
	base := "model_Entry"

	tests := []struct {
		owner string
		roles func(n string) map[string]string
	}{
		{"struct", func(n string) map[string]string {
			return map[string]string{
				GetterSymbol(base, n): "getter " + n,
				SetterSymbol(base, n): "setter " + n,
				MethodSymbol(base, n): "method " + n,
			}
		}},
		{"enum", func(n string) map[string]string {
			return map[string]string{
				VariantCtorSymbol(base, n): "variant " + n,
				MethodSymbol(base, n):      "method " + n,
			}
		}},
	}
	for _, tt := range tests {
		seen := map[string]string{
			CtorSymbol(base):    "ctor",
			DestroySymbol(base): "destroy",
		}
		for _, n := range names {
			for sym, role := range tt.roles(n) {
				if prev, ok := seen[sym]; ok {
					t.Errorf("%s: %s and %s both produce %q", tt.owner, prev, role, sym)
				}
				seen[sym] = role
			}
		}
	}

	prefix := ImplPrefix(base, "chain_Settings")
	object := AsTraitObjectSymbol(base, "chain_Settings")
	fixed := map[string]string{
		VTableStatic(prefix):  "vtable static",
		object:                "trait object constructor",
		DestroySymbol(object): "trait object destructor",
	}
	for _, n := range names {
		sym := TrampolineSymbol(prefix, n)
		if role, ok := fixed[sym]; ok {
			t.Errorf("trampoline %s collides with the %s %q", n, role, sym)
		}
	}
}
