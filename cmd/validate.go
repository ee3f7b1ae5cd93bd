package cmd

import (
	"fmt"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/diag"
	"github.com/pankcuf/ferment-sub000/gen"
	"github.com/pankcuf/ferment-sub000/logger"
	"github.com/pankcuf/ferment-sub000/resolver"
	"github.com/pankcuf/ferment-sub000/validate"
	"github.com/spf13/cobra"
)

var (
	valConfig   string
	valFeatures []string
)

var validateCmd = &cobra.Command{
	Use:   "validate [model.yaml]",
	Short: "Run every model and configuration check without writing output",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&valConfig, "config", "c", "", "Configuration file (default: ferment.yaml next to the model)")
	validateCmd.Flags().StringSliceVar(&valFeatures, "features", nil, "Enabled feature tags (comma-separated)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	modelPath := args[0]

	if !quiet {
		fmt.Printf("Validating %s\n", modelPath)
	}

	in, err := loadInputs(modelPath, valConfig, &config.Config{Features: valFeatures})
	if err != nil {
		return err
	}
	crate, cfg := in.crate, in.cfg

	if verbose {
		fmt.Printf("  Crate: %s\n", crate.Name)
		fmt.Printf("  Items: %d\n", len(crate.Items))
		fmt.Printf("  Re-exports: %d\n", len(crate.Reexports))
		fmt.Printf("  Features: %v\n", cfg.Features)
	}

	result := validate.Validate(crate, cfg)
	if !result.IsValid() {
		return fmt.Errorf("semantic validation failed:\n%s", result.Error())
	}

	// Emission checks (classification, ownership, generics) only surface
	// while building, so build the tree and discard it.
	sink := diag.NewCollector(logger.With("component", "diag"))
	m, err := resolver.Resolve(crate, cfg, sink)
	if err != nil {
		return fmt.Errorf("resolving model: %w", err)
	}
	tree, err := gen.Build(m, cfg, sink)
	if err != nil {
		return fmt.Errorf("building mirror tree: %w", err)
	}
	if sink.HasErrors() {
		return fmt.Errorf("%d item(s) cannot be exported:\n%s", len(sink.SkippedItems()), sink.Error())
	}

	if verbose {
		fmt.Printf("  Exported symbols: %d\n", len(tree.Symbols()))
	}
	if !quiet {
		fmt.Println("Validation passed.")
	}
	return nil
}
