package main

import (
	"fmt"

	"github.com/model-collapse/diagon-sub000/index"
	"github.com/model-collapse/diagon-sub000/store"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <index-dir>",
	Short: "Print segment and document counts for an index",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	dir, err := store.OpenFSDirectory(args[0])
	if err != nil {
		return fmt.Errorf("opening index directory: %w", err)
	}
	defer dir.Close()

	reader, err := index.OpenDirectoryReader(dir)
	if err != nil {
		return fmt.Errorf("opening reader: %w", err)
	}
	defer reader.Close()

	fmt.Printf("generation: %d\n", reader.Generation())
	fmt.Printf("documents:  %d live / %d max\n", reader.NumDocs(), reader.MaxDoc())
	fmt.Printf("segments:   %d\n", len(reader.Leaves()))
	for _, leaf := range reader.Leaves() {
		fmt.Printf("  %-20s docBase=%-8d maxDoc=%-8d numDocs=%d\n",
			leaf.Reader.Name(), leaf.DocBase, leaf.Reader.MaxDoc(), leaf.Reader.NumDocs())
	}
	return nil
}
