package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/model-collapse/diagon-sub000/document"
	"github.com/model-collapse/diagon-sub000/index"
	"github.com/model-collapse/diagon-sub000/store"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <index-dir> <source-dir>",
	Short: "Index every .txt file under source-dir into index-dir",
	Args:  cobra.ExactArgs(2),
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	indexDir, sourceDir := args[0], args[1]
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return err
	}
	dir, err := store.OpenFSDirectory(indexDir)
	if err != nil {
		return fmt.Errorf("opening index directory: %w", err)
	}
	defer dir.Close()

	w, err := index.NewWriter(dir, index.DefaultWriterConfig())
	if err != nil {
		return fmt.Errorf("opening writer: %w", err)
	}

	var added int
	err = filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".txt" {
			return nil
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc := document.NewDocument().
			AddField(document.NewKeywordField("path", path).WithStore()).
			AddField(document.NewTextField("body", string(body)))
		if _, err := w.AddDocument(doc); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		w.Rollback()
		return fmt.Errorf("walking %s: %w", sourceDir, err)
	}

	if err := w.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Printf("indexed %d document(s) into %s\n", added, indexDir)
	return nil
}
