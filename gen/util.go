package gen

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ToPascalCase converts a snake_case string to PascalCase. Existing
// capitals inside a part are kept, so "model_Hash160" becomes "ModelHash160".
func ToPascalCase(s string) string {
	caser := cases.Title(language.Und, cases.NoLower)
	var result strings.Builder
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		result.WriteString(caser.String(part))
	}
	return result.String()
}

// ToCamelCase converts a snake_case string to camelCase.
func ToCamelCase(s string) string {
	pascal := ToPascalCase(s)
	if pascal == "" {
		return ""
	}
	return strings.ToLower(pascal[:1]) + pascal[1:]
}

// BindingName is the name a foreign binding exposes for a C symbol:
// the camelCase form with any ffi_ prefix dropped.
func BindingName(symbol string) string {
	return ToCamelCase(strings.TrimPrefix(symbol, "ffi_"))
}

// GeneratedFileHeader returns the "do not edit" banner of a generated file,
// written with the given line comment prefix.
func GeneratedFileHeader(ctx *Context, comment string) string {
	var b strings.Builder
	source := "the resolved model"
	if ctx.ModelPath != "" {
		source = filepath.Base(ctx.ModelPath)
	}
	fmt.Fprintf(&b, "%s Code generated by ferment from %s. DO NOT EDIT.\n", comment, source)
	if ctx.Model != nil && ctx.Model.Crate != "" {
		fmt.Fprintf(&b, "%s Crate: %s\n", comment, ctx.Model.Crate)
	}
	if ctx.Config != nil && len(ctx.Config.Features) > 0 {
		fmt.Fprintf(&b, "%s Features: %s\n", comment, strings.Join(ctx.Config.Features, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

func prependHeader(header string, content []byte) []byte {
	return append([]byte(header), content...)
}
