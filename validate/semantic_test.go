package validate

import (
	"strings"
	"testing"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/loader"
	"github.com/pankcuf/ferment-sub000/model"
)

func minimalCrate() *model.Crate {
	return &model.Crate{
		Name: "test_crate",
		Items: []model.Item{
			{
				Path:   "crate::model::Hash160",
				Kind:   model.KindTupleStruct,
				Fields: []model.Field{{Name: "0", Type: "[u8; 20]"}},
			},
			{
				Path: "crate::model::Entry",
				Kind: model.KindStruct,
				Fields: []model.Field{
					{Name: "height", Type: "u32"},
					{Name: "hash", Type: "Hash160"},
				},
			},
			{
				Path: "crate::chain::Status",
				Kind: model.KindEnum,
				Variants: []model.Variant{
					{Name: "Idle"},
					{Name: "Synced", Fields: []model.Field{{Name: "0", Type: "u32"}}},
				},
			},
			{
				Path: "crate::chain::Named",
				Kind: model.KindTrait,
				Methods: []model.Method{
					{Name: "name", Signature: model.Signature{Receiver: model.ReceiverRef, Returns: "String"}},
				},
			},
			{
				Path:     "crate::model",
				Kind:     model.KindImpl,
				Trait:    "Named",
				SelfType: "Entry",
				Methods: []model.Method{
					{Name: "name", Signature: model.Signature{Receiver: model.ReceiverRef, Returns: "String"}},
				},
			},
			{
				Path: "crate::ffi::height_of",
				Kind: model.KindFn,
				Signature: &model.Signature{
					Params:  []model.Param{{Name: "entry", Type: "&Entry"}},
					Returns: "u32",
				},
			},
		},
		Reexports: []model.Reexport{{Module: "crate", Path: "crate::model::Hash160"}},
	}
}

func TestValidate_ValidMinimal(t *testing.T) {
	result := Validate(minimalCrate(), config.Default())
	if !result.IsValid() {
		t.Errorf("expected valid, got errors:\n%s", result.Error())
	}
}

func TestValidate_Fixtures(t *testing.T) {
	for _, name := range []string{"minimal.yaml", "full.yaml"} {
		t.Run(name, func(t *testing.T) {
			crate, err := loader.LoadCrate("../testdata/" + name)
			if err != nil {
				t.Fatalf("LoadCrate: %v", err)
			}
			result := Validate(crate, config.Default())
			if !result.IsValid() {
				t.Errorf("expected valid, got errors:\n%s", result.Error())
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	disc := func(v int64) *int64 { return &v }
	tests := []struct {
		name    string
		mutate  func(c *model.Crate)
		path    string
		wantMsg string
	}{
		{
			name:    "empty crate name",
			mutate:  func(c *model.Crate) { c.Name = "" },
			path:    "crate",
			wantMsg: "must not be empty",
		},
		{
			name:    "path outside crate",
			mutate:  func(c *model.Crate) { c.Items[0].Path = "model::Hash160" },
			path:    "items[0].path",
			wantMsg: "must start with crate",
		},
		{
			name:    "bare crate path",
			mutate:  func(c *model.Crate) { c.Items[0].Path = "crate" },
			path:    "items[0].path",
			wantMsg: "names no item",
		},
		{
			name: "duplicate ungated item",
			mutate: func(c *model.Crate) {
				c.Items = append(c.Items, c.Items[0])
			},
			path:    "items[6].path",
			wantMsg: "duplicate definition of crate::model::Hash160",
		},
		{
			name:    "named field in tuple struct",
			mutate:  func(c *model.Crate) { c.Items[0].Fields[0].Name = "inner" },
			path:    "items[0].fields[0].name",
			wantMsg: "positional field 0",
		},
		{
			name:    "positional field in struct",
			mutate:  func(c *model.Crate) { c.Items[1].Fields[1].Name = "1" },
			path:    "items[1].fields[1].name",
			wantMsg: "named field must have an identifier",
		},
		{
			name:    "duplicate field",
			mutate:  func(c *model.Crate) { c.Items[1].Fields[1].Name = "height" },
			path:    "items[1].fields[1].name",
			wantMsg: `duplicate field "height"`,
		},
		{
			name:    "malformed field type",
			mutate:  func(c *model.Crate) { c.Items[1].Fields[0].Type = "Vec<u8" },
			path:    "items[1].fields[0].type",
			wantMsg: "",
		},
		{
			name:    "empty field type",
			mutate:  func(c *model.Crate) { c.Items[1].Fields[0].Type = "" },
			path:    "items[1].fields[0].type",
			wantMsg: "type must not be empty",
		},
		{
			name: "fields on unit struct",
			mutate: func(c *model.Crate) {
				c.Items[1].Kind = model.KindUnitStruct
			},
			path:    "items[1].fields",
			wantMsg: "unit struct must not declare fields",
		},
		{
			name:    "section of another kind",
			mutate:  func(c *model.Crate) { c.Items[1].Aliased = "u32" },
			path:    "items[1].aliased",
			wantMsg: "struct items do not take aliased",
		},
		{
			name:    "enum without variants",
			mutate:  func(c *model.Crate) { c.Items[2].Variants = nil },
			path:    "items[2].variants",
			wantMsg: "at least one variant",
		},
		{
			name:    "duplicate variant",
			mutate:  func(c *model.Crate) { c.Items[2].Variants[1].Name = "Idle" },
			path:    "items[2].variants[1].name",
			wantMsg: `duplicate variant "Idle"`,
		},
		{
			name:    "discriminant on data variant",
			mutate:  func(c *model.Crate) { c.Items[2].Variants[1].Discriminant = disc(4) },
			path:    "items[2].variants[1].discriminant",
			wantMsg: "carries data",
		},
		{
			name: "duplicate discriminant",
			mutate: func(c *model.Crate) {
				c.Items[2].Variants = []model.Variant{
					{Name: "A", Discriminant: disc(1)},
					{Name: "B", Discriminant: disc(1)},
				}
			},
			path:    "items[2].variants[1].discriminant",
			wantMsg: `discriminant 1 already used by "A"`,
		},
		{
			name: "unit shape with fields",
			mutate: func(c *model.Crate) {
				c.Items[2].Variants[1].Shape = model.ShapeUnit
			},
			path:    "items[2].variants[1].fields",
			wantMsg: "unit variant",
		},
		{
			name:    "function without signature",
			mutate:  func(c *model.Crate) { c.Items[5].Signature = nil },
			path:    "items[5].signature",
			wantMsg: "must declare a signature",
		},
		{
			name:    "free function receiver",
			mutate:  func(c *model.Crate) { c.Items[5].Signature.Receiver = model.ReceiverRef },
			path:    "items[5].signature.receiver",
			wantMsg: "must not take a receiver",
		},
		{
			name: "duplicate parameter",
			mutate: func(c *model.Crate) {
				sig := c.Items[5].Signature
				sig.Params = append(sig.Params, model.Param{Name: "entry", Type: "u8"})
			},
			path:    "items[5].signature.params[1].name",
			wantMsg: `duplicate parameter "entry"`,
		},
		{
			name:    "malformed return",
			mutate:  func(c *model.Crate) { c.Items[5].Signature.Returns = "Option<" },
			path:    "items[5].signature.returns",
			wantMsg: "",
		},
		{
			name:    "opaque function",
			mutate:  func(c *model.Crate) { c.Items[5].Attrs.Opaque = true },
			path:    "items[5].attrs.opaque",
			wantMsg: "fn items cannot be opaque",
		},
		{
			name:    "malformed cfg",
			mutate:  func(c *model.Crate) { c.Items[1].Attrs.Cfg = []string{`all(feature = "a"`} },
			path:    "items[1].attrs.cfg[0]",
			wantMsg: "",
		},
		{
			name:    "type alias without target",
			mutate:  func(c *model.Crate) { c.Items[0] = model.Item{Path: "crate::model::Id", Kind: model.KindTypeAlias} },
			path:    "items[0].aliased",
			wantMsg: "must name the aliased type",
		},
		{
			name:    "duplicate generic",
			mutate:  func(c *model.Crate) { c.Items[1].Generics = []string{"T", "T"} },
			path:    "items[1].generics[1]",
			wantMsg: `duplicate generic parameter "T"`,
		},
		{
			name:    "duplicate trait method",
			mutate:  func(c *model.Crate) { c.Items[3].Methods = append(c.Items[3].Methods, c.Items[3].Methods[0]) },
			path:    "items[3].methods[1].name",
			wantMsg: `duplicate method "name"`,
		},
		{
			name:    "impl without self type",
			mutate:  func(c *model.Crate) { c.Items[4].SelfType = "" },
			path:    "items[4].self_type",
			wantMsg: "must name its self type",
		},
		{
			name:    "impl method not in trait",
			mutate:  func(c *model.Crate) { c.Items[4].Methods[0].Name = "title" },
			path:    "items[4].methods[0].name",
			wantMsg: `method "title" is not declared by trait crate::chain::Named`,
		},
		{
			name:    "impl missing trait method",
			mutate:  func(c *model.Crate) { c.Items[4].Methods = nil },
			path:    "items[4].methods",
			wantMsg: `missing method "name"`,
		},
		{
			name:    "impl receiver mismatch",
			mutate:  func(c *model.Crate) { c.Items[4].Methods[0].Signature.Receiver = model.ReceiverRefMut },
			path:    "items[4].methods[0].signature.receiver",
			wantMsg: "but trait crate::chain::Named declares",
		},
		{
			name: "impl arity mismatch",
			mutate: func(c *model.Crate) {
				c.Items[4].Methods[0].Signature.Params = []model.Param{{Name: "x", Type: "u8"}}
			},
			path:    "items[4].methods[0].signature.params",
			wantMsg: "takes 1 parameter(s) but trait crate::chain::Named declares 0",
		},
		{
			name:    "reexport module outside crate",
			mutate:  func(c *model.Crate) { c.Reexports[0].Module = "model" },
			path:    "reexports[0].module",
			wantMsg: "must start with crate",
		},
		{
			name:    "reexport of unknown item",
			mutate:  func(c *model.Crate) { c.Reexports[0].Path = "crate::model::Missing" },
			path:    "reexports[0].path",
			wantMsg: "re-export of unknown item",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crate := minimalCrate()
			tt.mutate(crate)
			result := Validate(crate, config.Default())
			if result.IsValid() {
				t.Fatal("expected validation error")
			}
			for _, e := range result.Errors {
				if e.Path == tt.path && strings.Contains(e.Message, tt.wantMsg) {
					return
				}
			}
			t.Errorf("expected error at %s containing %q, got:\n%s", tt.path, tt.wantMsg, result.Error())
		})
	}
}

func TestValidate_GatedAlternatives(t *testing.T) {
	crate := minimalCrate()
	alt := crate.Items[0]
	alt.Attrs.Cfg = []string{`feature = "wide"`}
	alt.Fields = []model.Field{{Name: "0", Type: "[u8; 32]"}}
	crate.Items = append(crate.Items, alt)

	result := Validate(crate, config.Default())
	if !result.IsValid() {
		t.Errorf("gated alternative should not be a duplicate, got:\n%s", result.Error())
	}
}

func TestValidate_ForeignTraitImpl(t *testing.T) {
	crate := minimalCrate()
	crate.Items[4].Trait = "std::fmt::Display"
	crate.Items[4].Methods[0].Name = "fmt"

	result := Validate(crate, config.Default())
	if !result.IsValid() {
		t.Errorf("impls of foreign traits are not checked, got:\n%s", result.Error())
	}
}

func TestValidate_Config(t *testing.T) {
	cfg := config.Default()
	cfg.OptionPrimitives = "boxed"

	result := Validate(minimalCrate(), cfg)
	if result.IsValid() {
		t.Fatal("expected config error")
	}
	if result.Errors[0].Path != "config" || !strings.Contains(result.Errors[0].Message, "option_primitives") {
		t.Errorf("unexpected error: %s", result.Error())
	}

	if result := Validate(minimalCrate(), nil); !result.IsValid() {
		t.Errorf("nil config should skip config checks, got:\n%s", result.Error())
	}
}

func TestValidationResult_Error(t *testing.T) {
	result := &ValidationResult{}
	if result.Error() != "" {
		t.Errorf("empty result should render empty, got %q", result.Error())
	}
	result.addError("items[0].path", "first")
	result.addError("items[1].path", "second")
	want := "items[0].path: first\nitems[1].path: second"
	if got := result.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
