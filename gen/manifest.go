package gen

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

func init() {
	Register("manifest", func() Generator { return &ManifestGenerator{} })
}

// Manifest lists the C surface of an emission for header and binding
// post-processors.
type Manifest struct {
	Crate      string             `yaml:"crate"`
	RootModule string             `yaml:"root_module"`
	Functions  []ManifestFunction `yaml:"functions"`
	Types      []ManifestType     `yaml:"types"`
	Skipped    []string           `yaml:"skipped,omitempty"`
}

// ManifestFunction is one extern "C" symbol.
type ManifestFunction struct {
	Symbol  string  `yaml:"symbol"`
	Binding string  `yaml:"binding"`
	Role    string  `yaml:"role"`
	Owner   string  `yaml:"owner"`
	Params  []Param `yaml:"params,omitempty"`
	Returns string  `yaml:"returns,omitempty"`
	Cfg     string  `yaml:"cfg,omitempty"`
}

// ManifestType is one #[repr(C)] type or static the surface refers to.
type ManifestType struct {
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
	Owner string `yaml:"owner"`
	Cfg   string `yaml:"cfg,omitempty"`
}

// BuildManifest collects the symbols of tree.
func BuildManifest(crate string, tree *Tree) *Manifest {
	m := &Manifest{
		Crate:      crate,
		RootModule: tree.RootModule,
		Functions:  []ManifestFunction{},
		Types:      []ManifestType{},
		Skipped:    tree.Skipped,
	}
	// Camel-casing drops the escaping of the mangled names, so a binding
	// that is already taken falls back to the symbol itself.
	bindings := map[string]bool{}
	for _, s := range tree.Symbols() {
		if !s.Extern {
			m.Types = append(m.Types, ManifestType{Name: s.Name, Role: s.Role, Owner: s.Owner, Cfg: s.Cfg})
			continue
		}
		binding := BindingName(s.Name)
		if bindings[binding] {
			binding = s.Name
		}
		bindings[binding] = true
		m.Functions = append(m.Functions, ManifestFunction{
			Symbol:  s.Name,
			Binding: binding,
			Role:    s.Role,
			Owner:   s.Owner,
			Params:  s.Params,
			Returns: s.Returns,
			Cfg:     s.Cfg,
		})
	}
	return m
}

// ManifestGenerator writes <crate>_ffi.yaml.
type ManifestGenerator struct{}

func (g *ManifestGenerator) Name() string { return "manifest" }

func (g *ManifestGenerator) Generate(ctx *Context) ([]*OutputFile, error) {
	if ctx.Tree == nil {
		return nil, fmt.Errorf("no emission to describe")
	}
	crate := ctx.Tree.RootModule
	if ctx.Model != nil && ctx.Model.Crate != "" {
		crate = ctx.Model.Crate
	}

	var buf bytes.Buffer
	buf.WriteString(GeneratedFileHeader(ctx, "#"))
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(BuildManifest(crate, ctx.Tree)); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return []*OutputFile{
		{Path: crate + "_ffi.yaml", Content: buf.Bytes()},
	}, nil
}
