package gen

import (
	"fmt"
	"sort"
	"strings"
)

// Symbol roles recorded in fragments and the manifest.
const (
	RoleMirror             = "mirror"
	RoleVTable             = "vtable"
	RoleTraitObjectType    = "trait_object_type"
	RoleVTableStatic       = "vtable_static"
	RoleCtor               = "ctor"
	RoleDestroy            = "destroy"
	RoleGetter             = "getter"
	RoleSetter             = "setter"
	RoleVariantCtor        = "variant_ctor"
	RoleMethod             = "method"
	RoleFunction           = "function"
	RoleTraitObject        = "trait_object"
	RoleTraitObjectDestroy = "trait_object_destroy"
	RoleValueAtIndex       = "value_at_index"
	RoleSetValueAtIndex    = "set_value_at_index"
	RoleValueByKey         = "value_by_key"
	RoleSetValueForKey     = "set_value_for_key"
)

// Param is one parameter of an emitted extern function.
type Param struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Symbol is one named thing a fragment declares. Extern symbols are part of
// the C ABI; the rest are Rust-level type and static names.
type Symbol struct {
	Name    string
	Role    string
	Owner   string
	Extern  bool
	Params  []Param
	Returns string
	Cfg     string
}

// Fragment is the emission for one item or one generic instantiation.
type Fragment struct {
	Owner   string
	Module  []string // path under the root module
	Cfg     string
	Items   []string
	Symbols []Symbol
}

func newFragment(owner string, module []string, cfg string) *Fragment {
	return &Fragment{Owner: owner, Module: module, Cfg: cfg}
}

// add appends a Rust item.
func (f *Fragment) add(item string) {
	f.Items = append(f.Items, item)
}

// declare records a non-extern name without emitting anything.
func (f *Fragment) declare(name, role string) {
	f.Symbols = append(f.Symbols, Symbol{Name: name, Role: role, Owner: f.Owner})
}

// addFn appends an extern function and, when exported, its symbol.
func (f *Fragment) addFn(fn *externFn, role string) {
	f.add(fn.render())
	if fn.exported {
		f.Symbols = append(f.Symbols, Symbol{
			Name:    fn.name,
			Role:    role,
			Owner:   f.Owner,
			Extern:  true,
			Params:  fn.params,
			Returns: fn.returns,
		})
	}
}

// Module is one node of the emitted module tree.
type Module struct {
	Name      string
	Fragments []*Fragment
	Reexports []Reexport
	children  map[string]*Module
}

// Reexport is a `pub use` inside a module.
type Reexport struct {
	Path string
	Cfg  string
}

func newModule(name string) *Module {
	return &Module{Name: name, children: make(map[string]*Module)}
}

// Child returns the child module with the given name, creating it.
func (m *Module) Child(name string) *Module {
	c, ok := m.children[name]
	if !ok {
		c = newModule(name)
		m.children[name] = c
	}
	return c
}

// Lookup returns the descendant at path, or nil.
func (m *Module) Lookup(path ...string) *Module {
	cur := m
	for _, seg := range path {
		cur = cur.children[seg]
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Children returns the child modules sorted by name.
func (m *Module) Children() []*Module {
	out := make([]*Module, 0, len(m.children))
	for _, c := range m.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tree is the complete emission: a root module holding the types mirror
// hierarchy, the flat generics module and the runtime support module.
type Tree struct {
	RootModule string
	Root       *Module
	Skipped    []string

	fragments []*Fragment
}

const (
	typesModule    = "types"
	genericsModule = "generics"
	runtimeModule  = "runtime"
)

func newTree(root string) *Tree {
	t := &Tree{RootModule: root, Root: newModule(root)}
	t.Root.Child(typesModule)
	t.Root.Child(genericsModule)
	return t
}

// place files a fragment under its module.
func (t *Tree) place(f *Fragment) {
	m := t.Root
	for _, seg := range f.Module {
		m = m.Child(seg)
	}
	m.Fragments = append(m.Fragments, f)
	t.fragments = append(t.fragments, f)
}

// Fragments returns every fragment in emission order.
func (t *Tree) Fragments() []*Fragment {
	return t.fragments
}

// Symbols returns every declared symbol in emission order, each carrying
// its fragment's gate.
func (t *Tree) Symbols() []Symbol {
	var out []Symbol
	for _, f := range t.fragments {
		for _, s := range f.Symbols {
			s.Cfg = f.Cfg
			out = append(out, s)
		}
	}
	return out
}

// Fragment returns the fragment emitted for owner, or nil.
func (t *Tree) Fragment(owner string) *Fragment {
	for _, f := range t.fragments {
		if f.Owner == owner {
			return f
		}
	}
	return nil
}

// Render returns the Rust source of the root module's contents.
func (t *Tree) Render() string {
	var b strings.Builder
	b.WriteString("#![allow(clippy::all, dead_code, non_camel_case_types, non_snake_case, non_upper_case_globals, unused_imports, unused_unsafe, unused_variables, unused_mut)]\n")
	for _, c := range t.Root.Children() {
		b.WriteString("\n")
		t.renderModule(&b, c, 0)
	}
	b.WriteString("\n")
	writeIndented(&b, runtimeSource(), 0)
	return b.String()
}

func (t *Tree) renderModule(b *strings.Builder, m *Module, depth int) {
	pad := strings.Repeat("    ", depth)
	fmt.Fprintf(b, "%spub mod %s {\n", pad, m.Name)
	fmt.Fprintf(b, "%s    use crate::%s::%s;\n", pad, t.RootModule, runtimeModule)
	for _, r := range m.Reexports {
		b.WriteString("\n")
		if r.Cfg != "" {
			fmt.Fprintf(b, "%s    #[cfg(%s)]\n", pad, r.Cfg)
		}
		fmt.Fprintf(b, "%s    pub use %s;\n", pad, r.Path)
	}
	for _, f := range m.Fragments {
		for _, item := range f.Items {
			b.WriteString("\n")
			if f.Cfg != "" {
				item = "#[cfg(" + f.Cfg + ")]\n" + item
			}
			writeIndented(b, item, depth+1)
		}
	}
	for _, c := range m.Children() {
		b.WriteString("\n")
		t.renderModule(b, c, depth+1)
	}
	fmt.Fprintf(b, "%s}\n", pad)
}

func writeIndented(b *strings.Builder, text string, depth int) {
	pad := strings.Repeat("    ", depth)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(pad)
		b.WriteString(line)
		b.WriteString("\n")
	}
}
