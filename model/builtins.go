package model

// Canonical paths of the well-known types the generator converts structurally.
const (
	BuiltinVec      = "Vec"
	BuiltinString   = "String"
	BuiltinOption   = "Option"
	BuiltinResult   = "Result"
	BuiltinBox      = "Box"
	BuiltinArc      = "std::sync::Arc"
	BuiltinRc       = "std::rc::Rc"
	BuiltinHashMap  = "std::collections::HashMap"
	BuiltinBTreeMap = "std::collections::BTreeMap"
	BuiltinIndexMap = "indexmap::IndexMap"
)

// Marker traits that may appear as extra trait-object bounds.
var markerTraits = map[string]bool{
	"Send":               true,
	"Sync":               true,
	"Unpin":              true,
	"std::marker::Send":  true,
	"std::marker::Sync":  true,
	"std::marker::Unpin": true,
}

// IsMarkerTrait reports whether a bound path is an auto/marker trait.
func IsMarkerTrait(path string) bool {
	return markerTraits[path]
}

var builtinAliases = map[string]string{
	"Vec":                          BuiltinVec,
	"std::vec::Vec":                BuiltinVec,
	"alloc::vec::Vec":              BuiltinVec,
	"String":                       BuiltinString,
	"std::string::String":          BuiltinString,
	"alloc::string::String":        BuiltinString,
	"Option":                       BuiltinOption,
	"std::option::Option":          BuiltinOption,
	"core::option::Option":         BuiltinOption,
	"Result":                       BuiltinResult,
	"std::result::Result":          BuiltinResult,
	"core::result::Result":         BuiltinResult,
	"Box":                          BuiltinBox,
	"std::boxed::Box":              BuiltinBox,
	"alloc::boxed::Box":            BuiltinBox,
	"Arc":                          BuiltinArc,
	"std::sync::Arc":               BuiltinArc,
	"alloc::sync::Arc":             BuiltinArc,
	"Rc":                           BuiltinRc,
	"std::rc::Rc":                  BuiltinRc,
	"alloc::rc::Rc":                BuiltinRc,
	"HashMap":                      BuiltinHashMap,
	"std::collections::HashMap":    BuiltinHashMap,
	"BTreeMap":                     BuiltinBTreeMap,
	"std::collections::BTreeMap":   BuiltinBTreeMap,
	"alloc::collections::BTreeMap": BuiltinBTreeMap,
	"IndexMap":                     BuiltinIndexMap,
	"indexmap::IndexMap":           BuiltinIndexMap,
	"indexmap::map::IndexMap":      BuiltinIndexMap,
}

// CanonicalBuiltin returns the canonical path of a well-known type, if path names one.
func CanonicalBuiltin(path string) (string, bool) {
	c, ok := builtinAliases[path]
	return c, ok
}

// IsMapPath reports whether a canonical builtin path is a map type.
func IsMapPath(path string) bool {
	return path == BuiltinHashMap || path == BuiltinBTreeMap || path == BuiltinIndexMap
}
