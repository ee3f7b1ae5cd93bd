package cmd

import (
	"fmt"
	"strings"

	"github.com/pankcuf/ferment-sub000/gen"
	"github.com/spf13/cobra"
)

// Version of the ferment binary, stamped at release:
//
//	go build -ldflags "-X github.com/pankcuf/ferment-sub000/cmd.Version=0.3.0"
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ferment version and its registered generators",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ferment %s\n", Version)
		if verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "generators: %s\n", strings.Join(gen.All(), ", "))
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
