package index

import (
	"testing"

	"github.com/model-collapse/diagon-sub000/document"
	"github.com/model-collapse/diagon-sub000/store"
)

func openTestDir(t *testing.T) store.Directory {
	t.Helper()
	dir, err := store.OpenFSDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFSDirectory: %v", err)
	}
	t.Cleanup(func() { dir.Close() })
	return dir
}

func addTextDoc(t *testing.T, w *Writer, id, body string) {
	t.Helper()
	doc := document.NewDocument().
		AddField(document.NewKeywordField("id", id)).
		AddField(document.NewTextField("body", body))
	if _, err := w.AddDocument(doc); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
}

func TestWriterCommitIsVisibleAfterReopen(t *testing.T) {
	dir := openTestDir(t)

	w, err := NewWriter(dir, DefaultWriterConfig())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	addTextDoc(t, w, "1", "alpha beta")
	addTextDoc(t, w, "2", "beta gamma")
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err := OpenDirectoryReader(dir)
	if err != nil {
		t.Fatalf("OpenDirectoryReader: %v", err)
	}
	defer reader.Close()

	if reader.NumDocs() != 2 {
		t.Fatalf("expected 2 live docs, got %d", reader.NumDocs())
	}
	if reader.MaxDoc() != 2 {
		t.Fatalf("expected max_doc 2, got %d", reader.MaxDoc())
	}
}

func TestWriterDeleteDocumentsClearsLiveDocs(t *testing.T) {
	dir := openTestDir(t)

	w, err := NewWriter(dir, DefaultWriterConfig())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	addTextDoc(t, w, "1", "alpha beta")
	addTextDoc(t, w, "2", "beta gamma")
	addTextDoc(t, w, "3", "gamma delta")
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := w.DeleteDocuments(Term{Field: "id", Bytes: []byte("2")}); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit after delete: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err := OpenDirectoryReader(dir)
	if err != nil {
		t.Fatalf("OpenDirectoryReader: %v", err)
	}
	defer reader.Close()

	if reader.NumDocs() != 2 {
		t.Fatalf("expected 2 live docs after deleting 1 of 3, got %d", reader.NumDocs())
	}
	if reader.MaxDoc() != 3 {
		t.Fatalf("expected max_doc to stay 3 (tombstone, not physical removal), got %d", reader.MaxDoc())
	}

	found := false
	for _, leaf := range reader.Leaves() {
		live := leaf.Reader.LiveDocs()
		for d := uint32(0); d < leaf.Reader.MaxDoc(); d++ {
			if live != nil && !live.Get(d) {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected at least one cleared live-docs bit across leaves")
	}
}

func TestOpenIfChangedReflectsNewCommit(t *testing.T) {
	dir := openTestDir(t)

	w, err := NewWriter(dir, DefaultWriterConfig())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	addTextDoc(t, w, "1", "alpha beta")
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reader, err := OpenDirectoryReader(dir)
	if err != nil {
		t.Fatalf("OpenDirectoryReader: %v", err)
	}
	defer reader.Close()
	if reader.NumDocs() != 1 {
		t.Fatalf("expected 1 doc, got %d", reader.NumDocs())
	}

	addTextDoc(t, w, "2", "beta gamma")
	if err := w.Commit(); err != nil {
		t.Fatalf("second Commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := reader.OpenIfChanged()
	if err != nil {
		t.Fatalf("OpenIfChanged: %v", err)
	}
	if reopened == nil {
		t.Fatalf("expected OpenIfChanged to return a new reader after a second commit")
	}
	defer reopened.Close()
	if reopened.NumDocs() != 2 {
		t.Fatalf("expected reopened reader to see 2 docs, got %d", reopened.NumDocs())
	}
	if reopened.Generation() <= reader.Generation() {
		t.Fatalf("expected a newer generation: old=%d new=%d", reader.Generation(), reopened.Generation())
	}
}

func TestForceMergeReducesSegmentCount(t *testing.T) {
	dir := openTestDir(t)

	cfg := DefaultWriterConfig()
	w, err := NewWriter(dir, cfg)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 3; i++ {
		addTextDoc(t, w, "doc", "alpha beta gamma")
		if err := w.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reader, err := OpenDirectoryReader(dir)
	if err != nil {
		t.Fatalf("OpenDirectoryReader: %v", err)
	}
	before := len(reader.Leaves())
	reader.Close()
	if before < 2 {
		t.Fatalf("expected at least 2 segments before force_merge, got %d", before)
	}

	if err := w.ForceMerge(1); err != nil {
		t.Fatalf("ForceMerge: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err = OpenDirectoryReader(dir)
	if err != nil {
		t.Fatalf("OpenDirectoryReader after force_merge: %v", err)
	}
	defer reader.Close()
	if len(reader.Leaves()) != 1 {
		t.Fatalf("expected exactly 1 segment after force_merge(1), got %d", len(reader.Leaves()))
	}
	if reader.NumDocs() != 3 {
		t.Fatalf("expected 3 live docs to survive the merge, got %d", reader.NumDocs())
	}
}

func TestRollbackDiscardsUncommittedDocuments(t *testing.T) {
	dir := openTestDir(t)

	w, err := NewWriter(dir, DefaultWriterConfig())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	addTextDoc(t, w, "1", "alpha beta")
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	addTextDoc(t, w, "2", "beta gamma")
	if err := w.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	reader, err := OpenDirectoryReader(dir)
	if err != nil {
		t.Fatalf("OpenDirectoryReader: %v", err)
	}
	defer reader.Close()
	if reader.NumDocs() != 1 {
		t.Fatalf("expected rollback to discard the uncommitted 2nd doc, got %d live docs", reader.NumDocs())
	}
}

func TestAppendModeRequiresExistingCommit(t *testing.T) {
	dir := openTestDir(t)

	cfg := DefaultWriterConfig()
	cfg.OpenMode = OpenModeAppend
	if _, err := NewWriter(dir, cfg); err == nil {
		t.Fatalf("expected append mode against an empty directory to fail")
	}
}

func TestWriterAfterCloseRejectsAddDocument(t *testing.T) {
	dir := openTestDir(t)

	w, err := NewWriter(dir, DefaultWriterConfig())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	doc := document.NewDocument().AddField(document.NewTextField("body", "x"))
	if _, err := w.AddDocument(doc); err == nil {
		t.Fatalf("expected AddDocument after Close to fail")
	}
}
