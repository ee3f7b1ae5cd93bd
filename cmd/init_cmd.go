package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pankcuf/ferment-sub000/loader"
	"github.com/spf13/cobra"
)

var (
	initName   string
	initOutput string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a starter model and ferment.yaml",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initName, "name", "n", "my_crate", "Crate name")
	initCmd.Flags().StringVarP(&initOutput, "output", "o", ".", "Output directory")
	rootCmd.AddCommand(initCmd)
}

const starterModel = `crate: %s
items:
  - path: crate::model::Hash
    kind: tuple_struct
    attrs:
      doc: A 256-bit hash.
    fields:
      - {name: "0", type: "[u8; 32]"}
  - path: crate::model::Entry
    kind: struct
    fields:
      - {name: height, type: u32}
      - {name: hash, type: Hash}
      - {name: tags, type: "Vec<String>"}
  - path: crate::model::Kind
    kind: enum
    variants:
      - {name: Regular, discriminant: 0}
      - {name: Special, discriminant: 1}
  - path: crate::ffi::latest_entry
    kind: fn
    signature:
      params:
        - {name: entries, type: "Vec<Entry>"}
      returns: "Option<Entry>"
`

const starterConfig = `# ferment configuration
crate_root: %s
root_module: fermented
features: []
option_primitives: sentinel
manifest: false
# custom_conversions:
#   std::net::SocketAddr:
#     ffi_type: "*mut std::os::raw::c_char"
#     from: "runtime::string_from_ffi({}).parse().unwrap()"
#     to: "runtime::string_to_ffi({}.to_string())"
#     drop: "runtime::unbox_string({})"
#     ownership: owned
`

func runInit(cmd *cobra.Command, args []string) error {
	if !quiet {
		fmt.Printf("Initializing crate model %s in %s\n", initName, initOutput)
	}

	if err := os.MkdirAll(initOutput, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(initOutput, initName+".yaml"), fmt.Sprintf(starterModel, initName)},
		{filepath.Join(initOutput, loader.ConfigFileName), fmt.Sprintf(starterConfig, initName)},
	}

	var created []string
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			if !quiet {
				fmt.Printf("  Exists, skipped: %s\n", f.path)
			}
			continue
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		created = append(created, f.path)
	}

	if !quiet && len(created) > 0 {
		fmt.Printf("Created:\n")
		for _, p := range created {
			fmt.Printf("  %s\n", p)
		}
		fmt.Printf("\nNext: ferment validate %s\n", files[0].path)
	}
	return nil
}
