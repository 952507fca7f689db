package search

import (
	"testing"

	"github.com/model-collapse/diagon-sub000/document"
	"github.com/model-collapse/diagon-sub000/index"
	"github.com/model-collapse/diagon-sub000/store"
)

// testDoc is a (body text, popularity) pair used to build small fixture
// indexes across this package's tests.
type testDoc struct {
	body       string
	popularity int64
}

// buildSearcher indexes docs into a fresh FS directory under t.TempDir and
// returns an IndexSearcher over the committed result, closing everything on
// test cleanup.
func buildSearcher(t *testing.T, docs []testDoc) *IndexSearcher {
	t.Helper()

	dir, err := store.OpenFSDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFSDirectory: %v", err)
	}
	t.Cleanup(func() { dir.Close() })

	w, err := index.NewWriter(dir, index.DefaultWriterConfig())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, d := range docs {
		doc := document.NewDocument().
			AddField(document.NewTextField("body", d.body)).
			AddField(document.NewNumericField("popularity", d.popularity))
		if _, err := w.AddDocument(doc); err != nil {
			t.Fatalf("AddDocument: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	reader, err := index.OpenDirectoryReader(dir)
	if err != nil {
		t.Fatalf("OpenDirectoryReader: %v", err)
	}
	t.Cleanup(func() { reader.Close() })

	return NewSearcher(reader)
}

var sampleDocs = []testDoc{
	{body: "the quick brown fox jumps over the lazy dog", popularity: 10},
	{body: "the lazy dog sleeps all day", popularity: 20},
	{body: "quick quick quick fox fox", popularity: 5},
	{body: "an unrelated sentence about cats", popularity: 30},
	{body: "the brown fox and the brown dog", popularity: 1},
}
