package main

import (
	"fmt"
	"strings"

	"github.com/model-collapse/diagon-sub000/document"
	"github.com/model-collapse/diagon-sub000/index"
	"github.com/model-collapse/diagon-sub000/search"
	"github.com/model-collapse/diagon-sub000/store"
	"github.com/spf13/cobra"
)

var (
	searchField string
	searchTopK  int
	searchAny   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <index-dir> <query terms...>",
	Short: "Run a query against an index and print the top hits",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchField, "field", "body", "field to query")
	searchCmd.Flags().IntVar(&searchTopK, "k", 10, "number of hits to return")
	searchCmd.Flags().BoolVar(&searchAny, "any", false, "match any term (OR) instead of all terms (AND)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	indexDir := args[0]
	terms := args[1:]

	dir, err := store.OpenFSDirectory(indexDir)
	if err != nil {
		return fmt.Errorf("opening index directory: %w", err)
	}
	defer dir.Close()

	reader, err := index.OpenDirectoryReader(dir)
	if err != nil {
		return fmt.Errorf("opening reader: %w", err)
	}
	defer reader.Close()

	q := buildQuery(searchField, terms, searchAny)
	searcher := search.NewSearcher(reader)
	top, err := searcher.Search(q, searchTopK)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	fmt.Printf("%d total hit(s), showing up to %d:\n", top.TotalHits, searchTopK)
	for _, h := range top.Hits {
		fmt.Printf("  doc %d  score %.4f\n", h.DocID, h.Score)
	}
	return nil
}

// buildQuery tokenizes the query string the same way the analyzer does and
// combines one TermQuery per token into a BooleanQuery, SHOULD-occur for an
// OR search or MUST-occur for an AND search.
func buildQuery(field string, terms []string, any bool) search.Query {
	tokens := document.Analyze(strings.Join(terms, " "))
	if len(tokens) == 1 {
		return search.NewTermQuery(string(tokens[0].Term)).SetField(field)
	}
	bq := search.NewBooleanQuery()
	for _, tok := range tokens {
		tq := search.NewTermQuery(string(tok.Term)).SetField(field)
		if any {
			bq.AddShould(tq)
		} else {
			bq.AddMust(tq)
		}
	}
	return bq
}
