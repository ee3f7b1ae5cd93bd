package gen

import (
	"strings"
	"testing"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/resolver"
)

func TestToPascalCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"create_engine", "CreateEngine"},
		{"begin_frame", "BeginFrame"},
		{"a", "A"},
		{"model_Hash160_ctor", "ModelHash160Ctor"},
		{"Vec_u8", "VecU8"},
	}
	for _, tt := range tests {
		got := ToPascalCase(tt.input)
		if got != tt.want {
			t.Errorf("ToPascalCase(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestToCamelCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"create_engine", "createEngine"},
		{"begin_frame", "beginFrame"},
		{"a", "a"},
		{"", ""},
	}
	for _, tt := range tests {
		got := ToCamelCase(tt.input)
		if got != tt.want {
			t.Errorf("ToCamelCase(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBindingName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ffi_chain_get_height", "chainGetHeight"},
		{"model_Hash160_destroy", "modelHash160Destroy"},
		{"Map_keys_u32_values_String_value_by_key", "mapKeysU32ValuesStringValueByKey"},
	}
	for _, tt := range tests {
		got := BindingName(tt.input)
		if got != tt.want {
			t.Errorf("BindingName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestGeneratedFileHeader(t *testing.T) {
	cfg := config.Default()
	cfg.Features = []string{"std", "serde"}
	ctx := &Context{
		Model:     &resolver.Model{Crate: "example"},
		Config:    cfg,
		ModelPath: "testdata/full.yaml",
	}
	h := GeneratedFileHeader(ctx, "//")
	for _, want := range []string{
		"// Code generated by ferment from full.yaml. DO NOT EDIT.",
		"// Crate: example",
		"// Features: std, serde",
	} {
		if !strings.Contains(h, want) {
			t.Errorf("header missing %q:\n%s", want, h)
		}
	}

	h = GeneratedFileHeader(&Context{}, "#")
	if !strings.HasPrefix(h, "# Code generated by ferment from the resolved model.") {
		t.Errorf("unexpected header without model: %q", h)
	}
}
