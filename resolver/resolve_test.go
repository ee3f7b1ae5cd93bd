package resolver

import (
	"strings"
	"testing"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/diag"
	"github.com/pankcuf/ferment-sub000/model"
)

func testCrate() *model.Crate {
	return &model.Crate{
		Name: "example",
		File: "example.yaml",
		Items: []model.Item{
			{Path: "crate::model::Hash160", Kind: model.KindTupleStruct, Fields: []model.Field{{Name: "0", Type: "[u8; 20]"}}, Line: 3},
			{Path: "crate::model::Entry", Kind: model.KindStruct, Fields: []model.Field{
				{Name: "hash", Type: "Hash160"},
				{Name: "height", Type: "Option<u32>"},
				{Name: "parent", Type: "&mut crate::model::Hash160"},
				{Name: "peers", Type: "HashMap<u32, String>"},
			}},
			{Path: "crate::chain::ChainType", Kind: model.KindEnum, Variants: []model.Variant{
				{Name: "MainNet"},
				{Name: "DevNet", Fields: []model.Field{{Name: "0", Type: "super::model::Hash160"}}},
			}},
			{Path: "crate::chain::IHaveChainSettings", Kind: model.KindTrait, Methods: []model.Method{
				{Name: "name", Signature: model.Signature{Receiver: model.ReceiverRef, Returns: "String"}},
				{Name: "same", Signature: model.Signature{Receiver: model.ReceiverRef, Returns: "Self"}},
			}},
			{Path: "crate::chain", Kind: model.KindImpl, Trait: "IHaveChainSettings", SelfType: "ChainType", Methods: []model.Method{
				{Name: "name", Signature: model.Signature{Receiver: model.ReceiverRef, Returns: "String"}},
				{Name: "same", Signature: model.Signature{Receiver: model.ReceiverRef, Returns: "Self"}},
			}},
			{Path: "crate::gated::Gated", Kind: model.KindUnitStruct, Attrs: model.Attrs{Cfg: []string{`feature = "objc"`}}},
			{Path: "crate::lookup", Kind: model.KindFn, Generics: []string{"'a"}, Signature: &model.Signature{
				Params:   []model.Param{{Name: "key", Type: "&'a str"}, {Name: "_", Type: "T"}},
				Generics: []string{"T"},
				Returns:  "&'a Entry",
			}},
		},
		Reexports: []model.Reexport{{Module: "crate", Path: "crate::model::Hash160"}},
	}
}

func resolveTest(t *testing.T, crate *model.Crate, cfg *config.Config) (*Model, *diag.Collector) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	sink := diag.NewCollector(nil)
	m, err := Resolve(crate, cfg, sink)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return m, sink
}

func TestResolve_Paths(t *testing.T) {
	m, sink := resolveTest(t, testCrate(), nil)
	if sink.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", sink.Error())
	}

	entry := m.Lookup("crate::model::Entry")
	if entry == nil {
		t.Fatal("Entry not resolved")
	}
	tests := []struct {
		field  string
		want   string
		origin model.Origin
	}{
		{"hash", "crate::model::Hash160", model.OriginModel},
		{"height", "Option<u32>", model.OriginBuiltin},
		{"parent", "&mut crate::model::Hash160", model.OriginUnresolved},
		{"peers", "std::collections::HashMap<u32, String>", model.OriginBuiltin},
	}
	for i, tt := range tests {
		f := entry.Fields[i]
		if f.Name != tt.field {
			t.Fatalf("field %d: got %q, want %q", i, f.Name, tt.field)
		}
		if got := f.Type.String(); got != tt.want {
			t.Errorf("field %s: got %q, want %q", f.Name, got, tt.want)
		}
		if f.Type.Origin != tt.origin {
			t.Errorf("field %s: origin %s, want %s", f.Name, f.Type.Origin, tt.origin)
		}
	}
	if !entry.Fields[1].Optional {
		t.Error("height should be optional")
	}
	if !entry.Fields[2].Mutable {
		t.Error("parent should be mutable")
	}
	if entry.Fields[2].Type.Elem.Origin != model.OriginModel {
		t.Error("reference pointee should resolve to the model")
	}

	chain := m.Lookup("crate::chain::ChainType")
	if got := chain.Variants[1].Fields[0].Type.String(); got != "crate::model::Hash160" {
		t.Errorf("super:: path: got %q", got)
	}
	if chain.Variants[0].Shape != model.ShapeUnit || chain.Variants[1].Shape != model.ShapeTuple {
		t.Errorf("variant shapes: %s, %s", chain.Variants[0].Shape, chain.Variants[1].Shape)
	}
}

func TestResolve_Impl(t *testing.T) {
	m, _ := resolveTest(t, testCrate(), nil)
	var impl *ItemRef
	for _, it := range m.Items {
		if it.Kind == model.KindImpl {
			impl = it
		}
	}
	if impl == nil {
		t.Fatal("impl not resolved")
	}
	if got := impl.Trait.String(); got != "crate::chain::IHaveChainSettings" {
		t.Errorf("trait: %q", got)
	}
	if got := impl.SelfType.String(); got != "crate::chain::ChainType" {
		t.Errorf("self type: %q", got)
	}
	if got := impl.Methods[1].Signature.Returns.String(); got != "crate::chain::ChainType" {
		t.Errorf("Self inside impl: %q", got)
	}
	if strings.Join(impl.Module(), "::") != "crate::chain" {
		t.Errorf("impl module: %v", impl.Module())
	}

	trait := m.Lookup("crate::chain::IHaveChainSettings")
	if trait.Methods[1].Signature.Returns.Origin != model.OriginGeneric {
		t.Error("Self inside a trait should stay a placeholder")
	}
}

func TestResolve_Signature(t *testing.T) {
	m, _ := resolveTest(t, testCrate(), nil)
	fn := m.Lookup("crate::lookup")
	if fn == nil {
		t.Fatal("lookup not resolved")
	}
	sig := fn.Signature
	if !sig.ReturnLifetime {
		t.Error("expected ReturnLifetime for &'a return")
	}
	if sig.Params[1].Name != "arg1" {
		t.Errorf("unnamed param: %q", sig.Params[1].Name)
	}
	if sig.Params[1].Type.Origin != model.OriginGeneric {
		t.Error("T should be a generic placeholder")
	}
}

func TestResolve_Features(t *testing.T) {
	m, _ := resolveTest(t, testCrate(), nil)
	if m.Lookup("crate::gated::Gated") != nil {
		t.Error("gated item should be excluded without its feature")
	}
	if !m.Excluded("crate::gated::Gated") {
		t.Error("gated item should be recorded as excluded")
	}

	cfg := config.Default()
	cfg.Features = []string{"objc"}
	m, _ = resolveTest(t, testCrate(), cfg)
	if m.Lookup("crate::gated::Gated") == nil {
		t.Error("gated item should be included with its feature")
	}
}

func TestResolve_Reexports(t *testing.T) {
	m, _ := resolveTest(t, testCrate(), nil)
	if len(m.Reexports) != 1 {
		t.Fatalf("expected 1 re-export, got %d", len(m.Reexports))
	}
	if m.Reexports[0].Item.Name() != "Hash160" {
		t.Errorf("re-export target: %s", m.Reexports[0].Item.PathString())
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		item model.Item
		want string
	}{
		{"bad path", model.Item{Path: "model::X", Kind: model.KindUnitStruct}, "must start with crate::"},
		{"bad type", model.Item{Path: "crate::X", Kind: model.KindStruct, Fields: []model.Field{{Name: "a", Type: "Vec<"}}}, "field a"},
		{"unknown crate path", model.Item{Path: "crate::X", Kind: model.KindStruct, Fields: []model.Field{{Name: "a", Type: "crate::Missing"}}}, "unknown item crate::Missing"},
		{"alias without target", model.Item{Path: "crate::X", Kind: model.KindTypeAlias}, "without aliased type"},
		{"fn without signature", model.Item{Path: "crate::f", Kind: model.KindFn}, "without signature"},
		{"impl without self", model.Item{Path: "crate", Kind: model.KindImpl}, "without self_type"},
		{"bad cfg", model.Item{Path: "crate::X", Kind: model.KindUnitStruct, Attrs: model.Attrs{Cfg: []string{`all(`}}}, "cfg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crate := &model.Crate{Name: "x", Items: []model.Item{tt.item}}
			m, sink := resolveTest(t, crate, nil)
			if len(m.Items) != 0 {
				t.Errorf("expected the item to be skipped")
			}
			if !strings.Contains(sink.Error(), tt.want) {
				t.Errorf("expected error containing %q, got:\n%s", tt.want, sink.Error())
			}
		})
	}
}

func TestResolve_Duplicate(t *testing.T) {
	crate := &model.Crate{Name: "x", Items: []model.Item{
		{Path: "crate::X", Kind: model.KindUnitStruct},
		{Path: "crate::X", Kind: model.KindUnitStruct},
	}}
	m, sink := resolveTest(t, crate, nil)
	if len(m.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(m.Items))
	}
	if !strings.Contains(sink.Error(), "duplicate definition") {
		t.Errorf("expected duplicate diagnostic, got:\n%s", sink.Error())
	}
}

func TestResolve_DeepCopy(t *testing.T) {
	crate := testCrate()
	m, _ := resolveTest(t, crate, nil)
	crate.Items[1].Fields[0].Name = "changed"
	if m.Lookup("crate::model::Entry").Raw.Fields[0].Name != "hash" {
		t.Error("resolved item should not alias the decoded model")
	}
}
