// Package config holds the immutable configuration record read by the generator.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/copier"
)

// Option primitive encodings.
const (
	OptionSentinel = "sentinel"
	OptionPointer  = "pointer"
)

// Ownership of a custom conversion's FFI value.
const (
	OwnershipOwned    = "owned"
	OwnershipBorrowed = "borrowed"
)

// DefaultMaxGenericIterations bounds the generic collector's fixed point loop.
const DefaultMaxGenericIterations = 10000

// Config is the generator configuration.
type Config struct {
	// CrateRoot replaces the `crate` segment in mangled names, e.g. "example".
	// Empty drops the segment.
	CrateRoot string `yaml:"crate_root,omitempty"`
	// RootModule names the emitted root module.
	RootModule string `yaml:"root_module,omitempty"`
	// Features lists enabled feature tags.
	Features []string `yaml:"features,omitempty"`
	// OptionPrimitives selects how Option<integer> crosses the boundary.
	OptionPrimitives string `yaml:"option_primitives,omitempty"`
	// CustomConversions maps a fully-qualified path to its hand-written conversion.
	CustomConversions map[string]CustomConversion `yaml:"custom_conversions,omitempty"`
	// MaxGenericIterations caps the generic collector.
	MaxGenericIterations int `yaml:"max_generic_iterations,omitempty"`
	// Output is the emit-writer destination directory.
	Output string `yaml:"output,omitempty"`
	// Manifest enables the C-ABI symbol manifest.
	Manifest bool `yaml:"manifest,omitempty"`
	// Makefile enables the build Makefile scaffold next to the output directory.
	Makefile bool `yaml:"makefile,omitempty"`
}

// CustomConversion is the escape hatch for types whose conversion is not derivable.
// From and To are expression templates where "{}" stands for the converted value.
type CustomConversion struct {
	FFIType   string `yaml:"ffi_type"`
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Drop      string `yaml:"drop,omitempty"`
	Ownership string `yaml:"ownership"`
}

// Owned reports whether the mirror owns the FFI value.
func (c *CustomConversion) Owned() bool {
	return c.Ownership != OwnershipBorrowed
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		RootModule:           "fermented",
		OptionPrimitives:     OptionSentinel,
		MaxGenericIterations: DefaultMaxGenericIterations,
		Output:               "./generated",
		CustomConversions:    map[string]CustomConversion{},
	}
}

// Overlay copies every non-empty field of src over dst.
func Overlay(dst, src *Config) error {
	if src == nil {
		return nil
	}
	custom := dst.CustomConversions
	if err := copier.CopyWithOption(dst, src, copier.Option{IgnoreEmpty: true, DeepCopy: true}); err != nil {
		return fmt.Errorf("overlaying config: %w", err)
	}
	// Custom conversions merge per key rather than replacing the whole map.
	if len(src.CustomConversions) > 0 {
		merged := make(map[string]CustomConversion, len(custom)+len(src.CustomConversions))
		for k, v := range custom {
			merged[k] = v
		}
		for k, v := range src.CustomConversions {
			merged[k] = v
		}
		dst.CustomConversions = merged
	} else {
		dst.CustomConversions = custom
	}
	return nil
}

// Validate checks option values the schema cannot express.
func (c *Config) Validate() error {
	var problems []string
	switch c.OptionPrimitives {
	case OptionSentinel, OptionPointer:
	default:
		problems = append(problems, fmt.Sprintf("option_primitives must be %q or %q, got %q", OptionSentinel, OptionPointer, c.OptionPrimitives))
	}
	if c.MaxGenericIterations <= 0 {
		problems = append(problems, "max_generic_iterations must be positive")
	}
	if c.RootModule == "" {
		problems = append(problems, "root_module must not be empty")
	}
	for _, path := range c.CustomConversionPaths() {
		cc := c.CustomConversions[path]
		if cc.FFIType == "" {
			problems = append(problems, fmt.Sprintf("custom_conversions[%s]: ffi_type is required", path))
		}
		if !strings.Contains(cc.From, "{}") || !strings.Contains(cc.To, "{}") {
			problems = append(problems, fmt.Sprintf("custom_conversions[%s]: from and to must contain the {} placeholder", path))
		}
		if cc.Drop != "" && !strings.Contains(cc.Drop, "{}") {
			problems = append(problems, fmt.Sprintf("custom_conversions[%s]: drop must contain the {} placeholder", path))
		}
		if cc.Ownership != OwnershipOwned && cc.Ownership != OwnershipBorrowed {
			problems = append(problems, fmt.Sprintf("custom_conversions[%s]: ownership must be %q or %q", path, OwnershipOwned, OwnershipBorrowed))
		}
		if !cc.Owned() && cc.Drop != "" {
			problems = append(problems, fmt.Sprintf("custom_conversions[%s]: borrowed conversions cannot declare drop", path))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// CustomConversionPaths returns the configured custom conversion paths, sorted.
func (c *Config) CustomConversionPaths() []string {
	paths := make([]string, 0, len(c.CustomConversions))
	for p := range c.CustomConversions {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FeatureEnabled reports whether a feature tag is enabled.
func (c *Config) FeatureEnabled(name string) bool {
	for _, f := range c.Features {
		if f == name {
			return true
		}
	}
	return false
}

// CrateRootSegments returns the crate root as path segments.
func (c *Config) CrateRootSegments() []string {
	if c.CrateRoot == "" {
		return nil
	}
	return strings.Split(c.CrateRoot, "::")
}
