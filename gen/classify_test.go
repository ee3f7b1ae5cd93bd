package gen

import (
	"errors"
	"strings"
	"testing"

	"github.com/pankcuf/ferment-sub000/config"
)

func classifyAlias(t *testing.T, cfg *config.Config, src string, pos Position) (*Conversion, error) {
	t.Helper()
	conv, _, err := classifyAliasUses(t, cfg, src, pos)
	return conv, err
}

// classifyAliasUses also returns the generic instantiations the
// classification recorded.
func classifyAliasUses(t *testing.T, cfg *config.Config, src string, pos Position) (*Conversion, []genericUse, error) {
	t.Helper()
	m := resolveTestCrate(t, aliasCrate(src), cfg)
	c := newClassifier(NewBuilder(m, cfg, nil))
	conv, err := c.Classify(m.Lookup("crate::alias::Ta").Aliased, pos)
	return conv, c.uses, err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		src  string
		pos  Position
		kind ConversionKind
		ffi  string
		owns bool
	}{
		{"u32", PosField, KindPrimitive, "u32", false},
		{"bool", PosArg, KindPrimitive, "bool", false},
		{"String", PosField, KindString, cChar, true},
		{"char", PosField, KindString, cChar, true},
		{"&str", PosArg, KindStrSlice, cChar, true},
		{"Option<u32>", PosField, KindOption, "u32", false},
		{"Option<u32>", PosElement, KindOption, "*mut u32", true},
		{"Option<String>", PosField, KindOption, cChar, true},
		{"Vec<u8>", PosField, KindVec, "*mut crate::fermented::generics::Vec_u8", true},
		{"[u8; 20]", PosField, KindArray, "*mut crate::fermented::generics::Arr_u8_20", true},
		{"(u32, String)", PosField, KindTuple, "*mut crate::fermented::generics::Tuple_2_u32_String", true},
		{"Result<u32, String>", PosReturn, KindResult, "*mut crate::fermented::generics::Result_ok_u32_err_String", true},
		{"crate::model::Hash160", PosField, KindComplex, "*mut crate::fermented::types::model::model_Hash160", true},
		{"Box<crate::model::Hash160>", PosField, KindBoxed, "*mut crate::fermented::types::model::model_Hash160", true},
		{"Arc<String>", PosField, KindBoxed, cChar, true},
		{"crate::model::Cache", PosArg, KindOpaque, "*mut crate::model::Cache", true},
		{"&crate::model::Hash160", PosArg, KindComplex, "*mut crate::fermented::types::model::model_Hash160", true},
		{"&[u32]", PosArg, KindSlice, "*mut crate::fermented::generics::Slice_u32", true},
		{"*const u8", PosArg, KindPrimitive, "*const u8", false},
		{"Box<dyn Fn(u32)>", PosField, KindCallback, "*mut crate::fermented::generics::Fn_ARGS_u32", true},
	}
	for _, tt := range tests {
		conv, err := classifyAlias(t, config.Default(), tt.src, tt.pos)
		if err != nil {
			t.Errorf("Classify(%s, %s): %v", tt.src, tt.pos, err)
			continue
		}
		if conv.Kind != tt.kind {
			t.Errorf("Classify(%s, %s).Kind = %s, want %s", tt.src, tt.pos, conv.Kind, tt.kind)
		}
		if conv.FFI != tt.ffi {
			t.Errorf("Classify(%s, %s).FFI = %q, want %q", tt.src, tt.pos, conv.FFI, tt.ffi)
		}
		if conv.Owns() != tt.owns {
			t.Errorf("Classify(%s, %s).Owns() = %v, want %v", tt.src, tt.pos, conv.Owns(), tt.owns)
		}
		// A conversion that owns its FFI value always knows how to free it.
		if conv.Owns() != (conv.Drop("x") != "") {
			t.Errorf("Classify(%s, %s): Owns and Drop disagree", tt.src, tt.pos)
		}
	}
}

func TestClassify_Errors(t *testing.T) {
	tests := []struct {
		src string
		pos Position
		msg string
	}{
		{"&str", PosField, "cannot be owned by a mirror"},
		{"Vec<&str>", PosField, "cannot be owned by a mirror"},
		{"Option<Option<u32>>", PosField, "nested Option"},
		{"Option<&u32>", PosArg, "optional reference"},
		{"!", PosReturn, "never type"},
		{"fn(u32)", PosArg, "bare function pointer"},
		{"Vec<*const u8>", PosField, "raw pointer"},
		{"Vec<u8, u8>", PosField, "expects 1 type argument"},
		{"Box<&u32>", PosArg, "boxed reference"},
		{"Box<dyn crate::chain::Settings>", PosField, "owned by both the mirror and the native value"},
		{"Vec<Box<dyn crate::chain::Settings>>", PosReturn, "in element position would be owned by both"},
		{"impl crate::chain::Settings", PosField, "unsized trait object"},
		{"Box<dyn crate::chain::Consume>", PosReturn, "method into_name is not called through &self"},
	}
	for _, tt := range tests {
		_, err := classifyAlias(t, config.Default(), tt.src, tt.pos)
		if err == nil {
			t.Errorf("Classify(%s, %s): expected error", tt.src, tt.pos)
			continue
		}
		if !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("Classify(%s, %s) = %q, want it to mention %q", tt.src, tt.pos, err, tt.msg)
		}
	}
}

func TestClassify_ReturnedTraitObject(t *testing.T) {
	tests := []struct {
		src    string
		key    GenericKey
		stored string
		value  string
	}{
		{"Box<dyn crate::chain::Settings>", "Box_dyn_chain_Settings", "Box<dyn crate::chain::Settings>", "e"},
		{"Box<dyn crate::chain::Settings + Send>", "Box_dyn_chain_Settings", "Box<dyn crate::chain::Settings>", "e"},
		{"std::sync::Arc<dyn crate::chain::Settings>", "Arc_dyn_chain_Settings", "std::sync::Arc<dyn crate::chain::Settings>", "e"},
		{"impl crate::chain::Settings", "Box_dyn_chain_Settings", "Box<dyn crate::chain::Settings>", "Box::new(e)"},
	}
	for _, tt := range tests {
		conv, uses, err := classifyAliasUses(t, config.Default(), tt.src, PosReturn)
		if err != nil {
			t.Errorf("Classify(%s): %v", tt.src, err)
			continue
		}
		if conv.Kind != KindTraitObject || conv.FFI != "crate::fermented::types::chain::chain_Settings_TraitObject" {
			t.Errorf("Classify(%s) = %s %q", tt.src, conv.Kind, conv.FFI)
		}
		var found bool
		for _, u := range uses {
			if u.Key == tt.key && u.Kind == KindTraitObject && u.Native.String() == tt.stored {
				found = true
			}
		}
		if !found {
			t.Errorf("Classify(%s) did not record %s as %s, got %+v", tt.src, tt.key, tt.stored, uses)
		}
		want := "{ let o: " + tt.stored + " = " + tt.value + "; crate::fermented::types::chain::chain_Settings_TraitObject { object: runtime::boxed(o) as *const std::os::raw::c_void, vtable: &crate::fermented::generics::" + string(tt.key) + "_as_chain_Settings_VTABLE } }"
		if got := conv.To("e"); got != want {
			t.Errorf("Classify(%s).To = %q, want %q", tt.src, got, want)
		}
	}
}

func TestClassify_ForeignNeedsConfig(t *testing.T) {
	_, err := classifyAlias(t, config.Default(), "other::Thing", PosField)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a configuration error, got %v", err)
	}

	cfg := config.Default()
	cfg.CustomConversions = map[string]config.CustomConversion{
		"other::Thing": {FFIType: "*mut u8", From: "other::Thing::read({})", To: "other::Thing::write({})", Ownership: config.OwnershipOwned},
	}
	conv, err := classifyAlias(t, cfg, "other::Thing", PosField)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.From("p") != "other::Thing::read(p)" {
		t.Errorf("From = %q", conv.From("p"))
	}
	// Owned pointers without an explicit drop are unboxed.
	if conv.Drop("p") != "runtime::unbox_any(p)" {
		t.Errorf("Drop = %q", conv.Drop("p"))
	}
}

func TestConversion_Expressions(t *testing.T) {
	opt := optionalConversion(mirrorConversion(KindComplex, "M", "crate::T"))
	if got := opt.From("p"); got != "(!p.is_null()).then(|| <M as runtime::FFIConversion<crate::T>>::ffi_from(p))" {
		t.Errorf("optional From = %q", got)
	}
	if got := opt.Drop("p"); got != "runtime::unbox_any_opt(p)" {
		t.Errorf("optional Drop = %q", got)
	}

	boxedStr := optionalConversion(primitiveConversion("u64"))
	if got := boxedStr.To("v"); got != "match v { Some(v) => runtime::boxed(v), None => std::ptr::null_mut() }" {
		t.Errorf("optional primitive To = %q", got)
	}

	arc := boxedConversion(stringConversion(), "std::sync::Arc", "std::sync::Arc<String>")
	if got := arc.To("s"); got != "runtime::string_to_ffi((*s).clone())" {
		t.Errorf("Arc To = %q", got)
	}
	if got := arc.From("p"); got != "std::sync::Arc::new(runtime::string_from_ffi(p))" {
		t.Errorf("Arc From = %q", got)
	}

	if got := nullPointer("*const u8"); got != "std::ptr::null()" {
		t.Errorf("nullPointer(*const) = %q", got)
	}
	if got := stmt("runtime::unbox_any(p)"); got != "runtime::unbox_any(p);" {
		t.Errorf("stmt = %q", got)
	}
}
