package gen

import (
	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/resolver"
)

// Context holds everything a generator needs to produce output.
type Context struct {
	Model      *resolver.Model
	Config     *config.Config
	Tree       *Tree
	OutputDir  string
	ModelPath  string // Path to the model YAML the tree was built from
	ConfigPath string // Path to the ferment.yaml in effect, empty for defaults
	Verbose    bool
	DryRun     bool
}

// NewContext creates a new generation context.
func NewContext(m *resolver.Model, cfg *config.Config, tree *Tree, outputDir string) *Context {
	return &Context{
		Model:     m,
		Config:    cfg,
		Tree:      tree,
		OutputDir: outputDir,
		ModelPath: m.File,
	}
}
