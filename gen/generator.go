package gen

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pankcuf/ferment-sub000/config"
)

// OutputFile represents a single generated file.
type OutputFile struct {
	Path        string // Relative path within output directory
	Content     []byte
	Scaffold    bool // If true, only write when file doesn't already exist
	ProjectFile bool // If true, write to parent of output directory
}

// Generator is the interface all code generators implement.
// Each generator renders one view of the emitted tree (the Rust module, the symbol manifest, the build scaffold).
// Adding an output requires only implementing this interface and calling Register() in init().
type Generator interface {
	// Name returns the generator name (e.g., "fermented", "manifest").
	Name() string

	// Generate produces output files for the given emission.
	Generate(ctx *Context) ([]*OutputFile, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Generator{}
)

// Register adds a generator factory to the registry.
// Typically called from init() in each generator's file.
func Register(name string, factory func() Generator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("generator %q already registered", name))
	}
	registry[name] = factory
}

// Get returns a new instance of the named generator.
func Get(name string) (Generator, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// All returns the names of all registered generators, sorted.
func All() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GeneratorsForConfig returns the generator names a configuration asks for.
func GeneratorsForConfig(cfg *config.Config) []string {
	names := []string{"fermented"}
	if cfg.Manifest {
		names = append(names, "manifest")
	}
	if cfg.Makefile {
		names = append(names, "makefile")
	}
	return names
}
