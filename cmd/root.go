package cmd

import (
	"fmt"

	"github.com/pankcuf/ferment-sub000/logger"
	"github.com/spf13/cobra"
)

var (
	verbose   bool
	quiet     bool
	logFormat string
	logFile   string
)

var rootCmd = &cobra.Command{
	Use:   "ferment",
	Short: "FFI mirror generator for Rust crates",
	Long:  "ferment walks a resolved model of a Rust crate and emits #[repr(C)] mirror types, conversions, extern \"C\" functions, generic monomorphizations and trait vtables.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := logger.DefaultConfig()
		cfg.Level = logger.LevelFor(verbose, quiet)
		cfg.Format = logFormat
		cfg.LogFile = logFile
		if _, err := logger.Init(cfg); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append logs to this file instead of stderr")
}

func Execute() error {
	return rootCmd.Execute()
}
