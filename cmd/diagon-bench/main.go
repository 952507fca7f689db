// Command diagon-bench is a thin harness for exercising a diagon index from
// the shell: build one from a directory of text files, run a query against
// it, or print its segment manifest. It is a development/benchmark tool, not
// part of the library's public contract — grounded on vellum's own
// cmd/vellum/cmd harness (github.com/couchbase/vellum/cmd/vellum/cmd), which
// the teacher vendors for exactly this purpose: a small cobra root command
// with one subcommand per operation, each a package-level *cobra.Command
// registered from an init func.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "diagon-bench",
	Short: "Build and query diagon search indexes from the command line",
	Long:  `diagon-bench is a development harness for the diagon full-text search library.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
