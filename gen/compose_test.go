package gen

import (
	"strings"
	"testing"
)

func TestTree_Render(t *testing.T) {
	tree := newTree("fermented")
	f := newFragment("crate::model::Entry", []string{"types", "model"}, `feature = "x"`)
	f.declare("model_Entry", RoleMirror)
	f.add("pub struct model_Entry {}")
	f.addFn(exportedFn("model_Entry_destroy", []Param{{Name: "ffi", Type: "*mut model_Entry"}}, "", "runtime::unbox_any_opt(ffi);"), RoleDestroy)
	tree.place(f)

	content := tree.Render()
	if !strings.HasPrefix(content, "#![allow(") {
		t.Error("missing crate-level allow attribute")
	}
	for _, want := range []string{
		"pub mod generics {\n    use crate::fermented::runtime;\n}",
		"pub mod types {\n    use crate::fermented::runtime;\n",
		"    pub mod model {\n        use crate::fermented::runtime;\n",
		"        #[cfg(feature = \"x\")]\n        pub struct model_Entry {}\n",
		"        #[cfg(feature = \"x\")]\n        #[no_mangle]\n        pub unsafe extern \"C\" fn model_Entry_destroy(ffi: *mut model_Entry) {\n            runtime::unbox_any_opt(ffi);\n        }\n",
		"pub mod runtime {",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q in:\n%s", want, content)
		}
	}
	// generics sorts before types; runtime comes last.
	if strings.Index(content, "pub mod generics") > strings.Index(content, "pub mod types") {
		t.Error("modules should render in name order")
	}
	if strings.Index(content, "pub mod runtime") < strings.Index(content, "pub mod types") {
		t.Error("runtime should render last")
	}
}

func TestTree_Symbols(t *testing.T) {
	tree := newTree("fermented")
	f := newFragment("crate::A", []string{"types"}, `feature = "x"`)
	f.declare("A", RoleMirror)
	f.addFn(exportedFn("A_ctor", nil, "*mut A", "runtime::boxed(A {})"), RoleCtor)
	f.addFn(&externFn{name: "A_private", body: []string{"()"}}, RoleMethod)
	tree.place(f)

	syms := tree.Symbols()
	if len(syms) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(syms))
	}
	if syms[0].Extern || syms[0].Role != RoleMirror {
		t.Errorf("unexpected type symbol %+v", syms[0])
	}
	if !syms[1].Extern || syms[1].Name != "A_ctor" || syms[1].Returns != "*mut A" {
		t.Errorf("unexpected function symbol %+v", syms[1])
	}
	for _, s := range syms {
		if s.Cfg != `feature = "x"` {
			t.Errorf("symbol %s lost its gate", s.Name)
		}
	}
	if tree.Fragment("crate::A") != f {
		t.Error("Fragment lookup failed")
	}
	if tree.Fragment("crate::B") != nil {
		t.Error("expected no fragment for crate::B")
	}
}

func TestModule_Lookup(t *testing.T) {
	root := newModule("fermented")
	root.Child("types").Child("model")
	root.Child("generics")

	if root.Lookup("types", "model") == nil {
		t.Error("expected types::model")
	}
	if root.Lookup("types", "chain") != nil {
		t.Error("unexpected types::chain")
	}
	children := root.Children()
	if len(children) != 2 || children[0].Name != "generics" || children[1].Name != "types" {
		t.Errorf("unexpected children order")
	}
}

func TestExternFn_Render(t *testing.T) {
	fn := exportedFn("ffi_sum", []Param{{Name: "a", Type: "u32"}, {Name: "b", Type: "u32"}}, "u32", "a + b")
	want := "#[no_mangle]\npub unsafe extern \"C\" fn ffi_sum(a: u32, b: u32) -> u32 {\n    a + b\n}"
	if got := fn.render(); got != want {
		t.Errorf("render =\n%s\nwant\n%s", got, want)
	}
}

func TestArgName(t *testing.T) {
	if argName("obj") != "obj_" {
		t.Error("reserved names should be suffixed")
	}
	if argName("height") != "height" {
		t.Error("plain names should pass through")
	}
}
