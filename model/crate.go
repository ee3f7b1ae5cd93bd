package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Crate is the top-level structure of a resolved model YAML file.
type Crate struct {
	Name      string     `yaml:"crate"`
	Items     []Item     `yaml:"items"`
	Reexports []Reexport `yaml:"reexports,omitempty"`

	// File is the path the model was loaded from. Set by the loader.
	File string `yaml:"-"`
}

// ItemKind is the kind of a top-level definition.
type ItemKind string

const (
	KindStruct      ItemKind = "struct"
	KindTupleStruct ItemKind = "tuple_struct"
	KindUnitStruct  ItemKind = "unit_struct"
	KindEnum        ItemKind = "enum"
	KindTypeAlias   ItemKind = "type_alias"
	KindFn          ItemKind = "fn"
	KindTrait       ItemKind = "trait"
	KindImpl        ItemKind = "impl"
)

// AllKinds lists every valid item kind.
var AllKinds = []ItemKind{
	KindStruct, KindTupleStruct, KindUnitStruct, KindEnum,
	KindTypeAlias, KindFn, KindTrait, KindImpl,
}

// Item is one top-level definition of the source model.
type Item struct {
	Path      string     `yaml:"path"`
	Kind      ItemKind   `yaml:"kind"`
	Generics  []string   `yaml:"generics,omitempty"`
	Attrs     Attrs      `yaml:"attrs,omitempty"`
	Source    string     `yaml:"source,omitempty"`
	Fields    []Field    `yaml:"fields,omitempty"`
	Variants  []Variant  `yaml:"variants,omitempty"`
	Aliased   string     `yaml:"aliased,omitempty"`
	Signature *Signature `yaml:"signature,omitempty"`
	Methods   []Method   `yaml:"methods,omitempty"`
	Trait     string     `yaml:"trait,omitempty"`
	SelfType  string     `yaml:"self_type,omitempty"`

	// Line is the YAML line the item starts on, used when Source is empty.
	Line int `yaml:"-"`
}

// UnmarshalYAML records the item's line before decoding its fields.
func (it *Item) UnmarshalYAML(node *yaml.Node) error {
	type plain Item
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*it = Item(p)
	it.Line = node.Line
	return nil
}

// Attrs holds the attribute metadata of an item.
type Attrs struct {
	Cfg           []string `yaml:"cfg,omitempty"`
	Doc           string   `yaml:"doc,omitempty"`
	Repr          string   `yaml:"repr,omitempty"`
	NonExhaustive bool     `yaml:"non_exhaustive,omitempty"`
	Opaque        bool     `yaml:"opaque,omitempty"`
}

// Field is a named or positional field.
type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Doc  string `yaml:"doc,omitempty"`
}

// VariantShape is the shape of an enum variant.
type VariantShape string

const (
	ShapeUnit  VariantShape = "unit"
	ShapeTuple VariantShape = "tuple"
	ShapeNamed VariantShape = "named"
)

// Variant is one enum variant.
type Variant struct {
	Name         string       `yaml:"name"`
	Shape        VariantShape `yaml:"shape,omitempty"`
	Fields       []Field      `yaml:"fields,omitempty"`
	Discriminant *int64       `yaml:"discriminant,omitempty"`
	Doc          string       `yaml:"doc,omitempty"`
}

// EffectiveShape returns the declared shape, inferring it from the fields when omitted.
func (v *Variant) EffectiveShape() VariantShape {
	if v.Shape != "" {
		return v.Shape
	}
	if len(v.Fields) == 0 {
		return ShapeUnit
	}
	if IsPositional(v.Fields[0].Name) {
		return ShapeTuple
	}
	return ShapeNamed
}

// Param is a function parameter.
type Param struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Signature is a function or method signature.
type Signature struct {
	Params   []Param  `yaml:"params,omitempty"`
	Returns  string   `yaml:"returns,omitempty"`
	Async    bool     `yaml:"async,omitempty"`
	Receiver Receiver `yaml:"receiver,omitempty"`
	Generics []string `yaml:"generics,omitempty"`
}

// Receiver is the self parameter of a method.
type Receiver string

const (
	ReceiverNone   Receiver = ""
	ReceiverRef    Receiver = "&self"
	ReceiverRefMut Receiver = "&mut self"
	ReceiverValue  Receiver = "self"
)

// Method is a trait or impl method.
type Method struct {
	Name      string    `yaml:"name"`
	Doc       string    `yaml:"doc,omitempty"`
	Signature Signature `yaml:"signature"`
}

// Reexport re-exports an item from a module.
type Reexport struct {
	Module string `yaml:"module"`
	Path   string `yaml:"path"`
}

// SplitPath splits a canonical path into its segments.
// e.g., "crate::model::Hash160" → ["crate", "model", "Hash160"]
func SplitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "::")
}

// JoinPath joins path segments with "::".
func JoinPath(segs []string) string {
	return strings.Join(segs, "::")
}

// IsPositional returns true if a field name is a tuple index ("0", "1", ...).
func IsPositional(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsLifetime returns true if a generic parameter is a lifetime ('a).
func IsLifetime(g string) bool {
	return strings.HasPrefix(g, "'")
}

// Location returns a human-readable source location for the item.
func (it *Item) Location(file string) string {
	if it.Source != "" {
		return it.Source
	}
	if file == "" {
		return fmt.Sprintf("line %d", it.Line)
	}
	return fmt.Sprintf("%s:%d", file, it.Line)
}

// Name returns the last segment of the item's path.
func (it *Item) Name() string {
	segs := SplitPath(it.Path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Module returns the module path segments containing the item.
func (it *Item) Module() []string {
	segs := SplitPath(it.Path)
	if len(segs) == 0 {
		return nil
	}
	return segs[:len(segs)-1]
}
