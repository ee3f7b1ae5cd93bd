package gen

import (
	"fmt"
)

func init() {
	Register("fermented", func() Generator { return &FermentedGenerator{} })
}

// FermentedGenerator renders the emitted tree as the Rust source of the
// root module, <root_module>.rs.
type FermentedGenerator struct{}

func (g *FermentedGenerator) Name() string { return "fermented" }

func (g *FermentedGenerator) Generate(ctx *Context) ([]*OutputFile, error) {
	if ctx.Tree == nil {
		return nil, fmt.Errorf("no emission to render")
	}
	content := prependHeader(GeneratedFileHeader(ctx, "//"), []byte(ctx.Tree.Render()))
	return []*OutputFile{
		{Path: ctx.Tree.RootModule + ".rs", Content: content},
	}, nil
}
