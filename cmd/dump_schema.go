package cmd

import (
	"fmt"
	"os"

	"github.com/pankcuf/ferment-sub000/loader"
	"github.com/spf13/cobra"
)

var (
	dumpSchemaName   string
	dumpSchemaOutput string
)

var dumpSchemaCmd = &cobra.Command{
	Use:   "dump_schema",
	Short: "Print a built-in JSON Schema",
	Long:  "Prints the JSON Schema used to validate ferment model files (--schema model) or ferment.yaml configuration files (--schema config). Use -o to write to a file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := loader.SchemaJSON(dumpSchemaName)
		if err != nil {
			return err
		}
		if dumpSchemaOutput == "" {
			fmt.Println(schema)
			return nil
		}
		if err := os.WriteFile(dumpSchemaOutput, []byte(schema+"\n"), 0644); err != nil {
			return fmt.Errorf("writing schema to %s: %w", dumpSchemaOutput, err)
		}
		if !quiet {
			fmt.Fprintf(os.Stderr, "Schema written to %s\n", dumpSchemaOutput)
		}
		return nil
	},
}

func init() {
	dumpSchemaCmd.Flags().StringVarP(&dumpSchemaName, "schema", "s", loader.SchemaModel, "Schema to print (model, config)")
	dumpSchemaCmd.Flags().StringVarP(&dumpSchemaOutput, "output", "o", "", "Write schema to file instead of stdout")
	rootCmd.AddCommand(dumpSchemaCmd)
}
