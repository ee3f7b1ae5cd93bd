package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pankcuf/ferment-sub000/config"
	"github.com/pankcuf/ferment-sub000/diag"
	"github.com/pankcuf/ferment-sub000/gen"
	"github.com/pankcuf/ferment-sub000/loader"
	"github.com/pankcuf/ferment-sub000/logger"
	"github.com/pankcuf/ferment-sub000/model"
	"github.com/pankcuf/ferment-sub000/resolver"
	"github.com/pankcuf/ferment-sub000/validate"
	"github.com/spf13/cobra"
)

var (
	genConfig    string
	genOutput    string
	genFeatures  []string
	genCrateRoot string
	genDryRun    bool
	genClean     bool
	genManifest  bool
	genMakefile  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [model.yaml]",
	Short: "Generate the FFI mirror module for a resolved crate model",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genConfig, "config", "c", "", "Configuration file (default: ferment.yaml next to the model)")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output directory (default: ./generated)")
	generateCmd.Flags().StringSliceVar(&genFeatures, "features", nil, "Enabled feature tags (comma-separated), replaces the configured list")
	generateCmd.Flags().StringVar(&genCrateRoot, "crate-root", "", "Prefix replacing the crate segment of mangled names")
	generateCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "Show what would be generated without writing")
	generateCmd.Flags().BoolVar(&genClean, "clean", false, "Remove previously generated files first")
	generateCmd.Flags().BoolVar(&genManifest, "manifest", false, "Also write the C-ABI symbol manifest")
	generateCmd.Flags().BoolVar(&genMakefile, "makefile", false, "Also scaffold a build Makefile next to the output directory")
	rootCmd.AddCommand(generateCmd)
}

// inputs is a loaded model with its effective configuration.
type inputs struct {
	crate      *model.Crate
	cfg        *config.Config
	configPath string
}

// loadInputs loads the model and the effective configuration: the config
// file (explicit or found next to the model) overlaid with CLI flags.
func loadInputs(modelPath, configPath string, flags *config.Config) (*inputs, error) {
	crate, err := loader.LoadCrate(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}

	if configPath == "" {
		configPath, err = loader.FindConfig(modelPath)
		if err != nil {
			return nil, err
		}
	}
	cfg, err := loader.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.Overlay(cfg, flags); err != nil {
		return nil, err
	}
	if verbose && configPath != "" {
		fmt.Printf("  Config: %s\n", configPath)
	}
	return &inputs{crate: crate, cfg: cfg, configPath: configPath}, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	modelPath := args[0]

	if !quiet {
		fmt.Printf("Generating from %s\n", modelPath)
	}

	flags := &config.Config{
		CrateRoot: genCrateRoot,
		Features:  genFeatures,
		Output:    genOutput,
		Manifest:  genManifest,
		Makefile:  genMakefile,
	}
	in, err := loadInputs(modelPath, genConfig, flags)
	if err != nil {
		return err
	}
	crate, cfg := in.crate, in.cfg
	if result := validate.Validate(crate, cfg); !result.IsValid() {
		return fmt.Errorf("validation failed:\n%s", result.Error())
	}

	sink := diag.NewCollector(logger.With("component", "diag"))
	m, err := resolver.Resolve(crate, cfg, sink)
	if err != nil {
		return fmt.Errorf("resolving model: %w", err)
	}
	tree, err := gen.Build(m, cfg, sink)
	if err != nil {
		return fmt.Errorf("building mirror tree: %w", err)
	}
	if verbose {
		for _, item := range sink.SkippedItems() {
			fmt.Printf("  Skipped: %s\n", item)
		}
	}

	outputDir := cfg.Output
	if genClean {
		if !quiet {
			fmt.Printf("Cleaning %s\n", outputDir)
		}
		if !genDryRun {
			if err := os.RemoveAll(outputDir); err != nil {
				return fmt.Errorf("cleaning %s: %w", outputDir, err)
			}
		}
	}

	ctx := gen.NewContext(m, cfg, tree, outputDir)
	ctx.ConfigPath = in.configPath
	ctx.Verbose = verbose
	ctx.DryRun = genDryRun

	var allFiles []*gen.OutputFile
	for _, name := range gen.GeneratorsForConfig(cfg) {
		g, ok := gen.Get(name)
		if !ok {
			if verbose {
				fmt.Printf("  Skipping unavailable generator: %s\n", name)
			}
			continue
		}

		if verbose {
			fmt.Printf("  Running generator: %s\n", g.Name())
		}

		files, err := g.Generate(ctx)
		if err != nil {
			return fmt.Errorf("generator %s failed: %w", name, err)
		}
		allFiles = append(allFiles, files...)
	}

	written, err := writeFiles(allFiles, outputDir, genDryRun)
	if err != nil {
		return err
	}

	if !quiet {
		skippedMsg := ""
		if n := len(tree.Skipped); n > 0 {
			skippedMsg = fmt.Sprintf(", %d item(s) skipped", n)
		}
		fmt.Printf("Generated %d files in %s%s\n", written, outputDir, skippedMsg)
	}
	return nil
}

func writeFiles(files []*gen.OutputFile, outputDir string, dryRun bool) (int, error) {
	var written int
	for _, f := range files {
		base := outputDir
		if f.ProjectFile {
			base = filepath.Dir(outputDir)
		}
		outPath := filepath.Join(base, f.Path)

		// Scaffold files are only written when they don't already exist.
		if f.Scaffold {
			if _, err := os.Stat(outPath); err == nil {
				if verbose {
					fmt.Printf("  Scaffold exists, skipped: %s\n", outPath)
				}
				continue
			}
		}

		if dryRun {
			fmt.Printf("  Would write: %s\n", outPath)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return written, fmt.Errorf("creating directory for %s: %w", outPath, err)
		}
		if err := os.WriteFile(outPath, f.Content, 0644); err != nil {
			return written, fmt.Errorf("writing %s: %w", outPath, err)
		}

		written++
		if verbose {
			fmt.Printf("  Wrote: %s\n", outPath)
		}
	}
	return written, nil
}
