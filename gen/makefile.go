package gen

import (
	"fmt"
	"path/filepath"
	"strings"
)

func init() {
	Register("makefile", func() Generator { return &MakefileGenerator{} })
}

// crossTargets are the Rust target triples the cross rule builds by default.
var crossTargets = []string{
	"aarch64-apple-ios",
	"aarch64-apple-ios-sim",
	"x86_64-apple-ios",
	"aarch64-linux-android",
	"armv7-linux-androideabi",
	"x86_64-linux-android",
	"i686-linux-android",
}

// MakefileGenerator produces a scaffold Makefile that reruns ferment when
// the model or its configuration changes and drives cargo around the
// generated module. It is a project file: it lands next to the output
// directory and is never overwritten.
type MakefileGenerator struct{}

func (g *MakefileGenerator) Name() string { return "makefile" }

func (g *MakefileGenerator) Generate(ctx *Context) ([]*OutputFile, error) {
	if ctx.Tree == nil {
		return nil, fmt.Errorf("no emission to build")
	}
	var b strings.Builder

	MakefileHeader(&b, ctx)
	MakefilePlatformConfig(&b)
	MakefileCodegenStamp(&b, ctx)

	b.WriteString(`.PHONY: generate shared-lib test cross clean

generate: $(STAMP)

shared-lib: $(SHARED_LIB)

$(SHARED_LIB): $(STAMP)
	cargo build --release $(CARGO_FEATURES)
	@mkdir -p $(BUILD_DIR)
	cp target/release/$(LIB_NAME).$(DYLIB_EXT) $(SHARED_LIB)

test: $(STAMP)
	cargo test $(CARGO_FEATURES)

`)
	MakefileCrossTargets(&b)

	b.WriteString(`clean:
	cargo clean
	rm -rf $(GEN_DIR) $(BUILD_DIR) $(DIST_DIR)
`)

	return []*OutputFile{
		{Path: "Makefile", Content: []byte(b.String()), Scaffold: true, ProjectFile: true},
	}, nil
}

// projectRelPath computes the path of p relative to the project root.
// The Makefile is a ProjectFile, so it lives at filepath.Dir(outputDir),
// not in the output dir itself.
func projectRelPath(ctx *Context, p string) string {
	base := filepath.Dir(ctx.OutputDir)
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// MakefileHeader emits the scaffold banner and core variables.
func MakefileHeader(b *strings.Builder, ctx *Context) {
	crate := "crate"
	if ctx.Model != nil && ctx.Model.Crate != "" {
		crate = ctx.Model.Crate
	}
	libName := "lib" + strings.ReplaceAll(crate, "-", "_")

	b.WriteString("# Scaffold generated by ferment. Edit freely, it is not regenerated.\n\n")

	fmt.Fprintf(b, "FERMENT ?= ferment\n")
	fmt.Fprintf(b, "MODEL   := %s\n", projectRelPath(ctx, ctx.ModelPath))
	if ctx.ConfigPath != "" {
		fmt.Fprintf(b, "CONFIG  := %s\n", projectRelPath(ctx, ctx.ConfigPath))
	} else {
		fmt.Fprintf(b, "CONFIG  :=\n")
	}
	fmt.Fprintf(b, "GEN_DIR := %s\n\n", projectRelPath(ctx, ctx.OutputDir))

	fmt.Fprintf(b, "CRATE_NAME  := %s\n", crate)
	fmt.Fprintf(b, "LIB_NAME    := %s\n", libName)
	fmt.Fprintf(b, "ROOT_MODULE := %s\n", ctx.Tree.RootModule)
	var features []string
	if ctx.Config != nil {
		features = ctx.Config.Features
	}
	fmt.Fprintf(b, "FEATURES    ?= %s\n", strings.Join(features, ","))
	b.WriteString("CARGO_FEATURES := $(if $(FEATURES),--features $(FEATURES))\n")
	fmt.Fprintf(b, "BUILD_DIR := build\n")
	fmt.Fprintf(b, "DIST_DIR  := dist\n")
	fmt.Fprintf(b, "STAMP     := $(BUILD_DIR)/.generated\n\n")
}

// MakefilePlatformConfig emits host platform detection.
func MakefilePlatformConfig(b *strings.Builder) {
	b.WriteString("# ── Platform detection ────────────────────────────────────────────────────────\n\n")
	b.WriteString("UNAME_S := $(shell uname -s)\n")
	b.WriteString("ifeq ($(UNAME_S),Darwin)\n")
	b.WriteString("  DYLIB_EXT := dylib\n")
	b.WriteString("else\n")
	b.WriteString("  DYLIB_EXT := so\n")
	b.WriteString("endif\n")
	b.WriteString("SHARED_LIB := $(BUILD_DIR)/$(LIB_NAME).$(DYLIB_EXT)\n\n")
}

// MakefileCodegenStamp emits the STAMP rule that reruns ferment generate.
func MakefileCodegenStamp(b *strings.Builder, ctx *Context) {
	b.WriteString("# ── Codegen ──────────────────────────────────────────────────────────────────\n\n")
	fmt.Fprintf(b, "$(STAMP): $(MODEL) $(CONFIG)\n")
	fmt.Fprintf(b, "\t@mkdir -p $(BUILD_DIR)\n")
	fmt.Fprintf(b, "\t$(FERMENT) generate $(if $(CONFIG),-c $(CONFIG)) -o $(GEN_DIR) $(if $(FEATURES),--features $(FEATURES)) $(MODEL)\n")
	fmt.Fprintf(b, "\t@touch $@\n\n")
}

// MakefileCrossTargets emits one static library rule per target triple and
// the aggregate cross target.
func MakefileCrossTargets(b *strings.Builder) {
	b.WriteString("# ══════════════════════════════════════════════════════════════════════════════\n")
	b.WriteString("# Cross-compilation: one static library per target triple\n")
	b.WriteString("# ══════════════════════════════════════════════════════════════════════════════\n\n")
	fmt.Fprintf(b, "CROSS_TARGETS ?= %s\n\n", strings.Join(crossTargets, " "))
	b.WriteString("$(DIST_DIR)/%/$(LIB_NAME).a: $(STAMP)\n")
	b.WriteString("\tcargo build --release --target $* $(CARGO_FEATURES)\n")
	b.WriteString("\t@mkdir -p $(dir $@)\n")
	b.WriteString("\tcp target/$*/release/$(LIB_NAME).a $@\n\n")
	b.WriteString("cross: $(foreach t,$(CROSS_TARGETS),$(DIST_DIR)/$(t)/$(LIB_NAME).a)\n")
	b.WriteString("\t@echo \"Built: $(CROSS_TARGETS)\"\n\n")
}
