package config

import (
	"strings"
	"testing"
)

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestOverlay_NonEmptyWins(t *testing.T) {
	dst := Default()
	dst.Features = []string{"std"}
	src := &Config{CrateRoot: "example", Manifest: true}

	if err := Overlay(dst, src); err != nil {
		t.Fatalf("overlay failed: %v", err)
	}
	if dst.CrateRoot != "example" {
		t.Errorf("expected crate_root %q, got %q", "example", dst.CrateRoot)
	}
	if !dst.Manifest {
		t.Error("expected manifest to be enabled")
	}
	if dst.RootModule != "fermented" {
		t.Errorf("empty root_module should not override default, got %q", dst.RootModule)
	}
	if len(dst.Features) != 1 || dst.Features[0] != "std" {
		t.Errorf("empty features should not override, got %v", dst.Features)
	}
	if dst.OptionPrimitives != OptionSentinel {
		t.Errorf("expected default option_primitives, got %q", dst.OptionPrimitives)
	}
}

func TestOverlay_MergesCustomConversions(t *testing.T) {
	dst := Default()
	dst.CustomConversions["std::time::Duration"] = CustomConversion{
		FFIType: "u64", From: "std::time::Duration::from_millis({})", To: "{}.as_millis() as u64", Ownership: OwnershipOwned,
	}
	src := &Config{CustomConversions: map[string]CustomConversion{
		"crate::ext::Handle": {FFIType: "*mut std::os::raw::c_void", From: "crate::ext::Handle::wrap({})", To: "{}.raw()", Ownership: OwnershipBorrowed},
	}}
	if err := Overlay(dst, src); err != nil {
		t.Fatalf("overlay failed: %v", err)
	}
	if len(dst.CustomConversions) != 2 {
		t.Fatalf("expected 2 custom conversions, got %d", len(dst.CustomConversions))
	}
	paths := dst.CustomConversionPaths()
	if paths[0] != "crate::ext::Handle" || paths[1] != "std::time::Duration" {
		t.Errorf("unexpected sorted paths %v", paths)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad option mode", func(c *Config) { c.OptionPrimitives = "magic" }, "option_primitives"},
		{"zero cap", func(c *Config) { c.MaxGenericIterations = 0 }, "max_generic_iterations"},
		{"empty root", func(c *Config) { c.RootModule = "" }, "root_module"},
		{"missing placeholder", func(c *Config) {
			c.CustomConversions["a::B"] = CustomConversion{FFIType: "u8", From: "x", To: "{}", Ownership: OwnershipOwned}
		}, "placeholder"},
		{"missing ffi type", func(c *Config) {
			c.CustomConversions["a::B"] = CustomConversion{From: "{}", To: "{}", Ownership: OwnershipOwned}
		}, "ffi_type"},
		{"bad ownership", func(c *Config) {
			c.CustomConversions["a::B"] = CustomConversion{FFIType: "u8", From: "{}", To: "{}", Ownership: "shared"}
		}, "ownership"},
		{"borrowed with drop", func(c *Config) {
			c.CustomConversions["a::B"] = CustomConversion{FFIType: "*mut u8", From: "{}", To: "{}", Drop: "free({})", Ownership: OwnershipBorrowed}
		}, "borrowed"},
	}
	for _, tt := range tests {
		c := Default()
		tt.mutate(c)
		err := c.Validate()
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q should mention %q", tt.name, err, tt.want)
		}
	}
}

func TestCustomConversion_Owned(t *testing.T) {
	owned := CustomConversion{Ownership: OwnershipOwned}
	borrowed := CustomConversion{Ownership: OwnershipBorrowed}
	if !owned.Owned() {
		t.Error("owned conversion should report Owned")
	}
	if borrowed.Owned() {
		t.Error("borrowed conversion should not report Owned")
	}
}

func TestCrateRootSegments(t *testing.T) {
	c := Default()
	if segs := c.CrateRootSegments(); segs != nil {
		t.Errorf("expected nil segments for empty root, got %v", segs)
	}
	c.CrateRoot = "dash::spv"
	segs := c.CrateRootSegments()
	if len(segs) != 2 || segs[0] != "dash" || segs[1] != "spv" {
		t.Errorf("unexpected segments %v", segs)
	}
}
