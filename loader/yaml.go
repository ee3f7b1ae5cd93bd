package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/model"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the configuration file looked up next to a model.
const ConfigFileName = "ferment.yaml"

// LoadCrate reads and parses a resolved model file.
// It validates the YAML against the JSON Schema before unmarshalling.
func LoadCrate(path string) (*model.Crate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}

	// First validate against JSON Schema
	if err := ValidateModelSchema(data); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	crate, err := LoadCrateNoValidate(data)
	if err != nil {
		return nil, err
	}
	crate.File = path
	return crate, nil
}

// LoadCrateNoValidate parses a model without schema validation.
// Used internally when schema validation has already been performed.
func LoadCrateNoValidate(data []byte) (*model.Crate, error) {
	var crate model.Crate
	if err := yaml.Unmarshal(data, &crate); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}
	return &crate, nil
}

// LoadConfig reads a configuration file and merges it over the defaults.
// An empty path yields the defaults.
func LoadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := ValidateConfigSchema(data); err != nil {
		return nil, fmt.Errorf("config schema validation: %w", err)
	}
	var file config.Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := config.Overlay(cfg, &file); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FindConfig returns the ferment.yaml next to the model file, or "" when
// there is none.
func FindConfig(modelPath string) (string, error) {
	candidate := filepath.Join(filepath.Dir(modelPath), ConfigFileName)
	_, err := os.Stat(candidate)
	switch {
	case err == nil:
		return candidate, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	}
	return "", fmt.Errorf("looking for %s: %w", ConfigFileName, err)
}
