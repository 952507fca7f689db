package codec

import "testing"

func TestBM25TermComponentZeroFreq(t *testing.T) {
	if v := BM25TermComponent(0, 10, 10); v != 0 {
		t.Fatalf("expected 0 for freq=0, got %f", v)
	}
}

func TestBM25TermComponentMatchesManualFormula(t *testing.T) {
	freq, docLen, avgLen := 3, 40.0, 20.0
	norm := (1 - DefaultBM25B) + DefaultBM25B*docLen/avgLen
	want := (float64(freq) * (DefaultBM25K1 + 1)) / (float64(freq) + DefaultBM25K1*norm)
	if got := BM25TermComponent(freq, docLen, avgLen); got != want {
		t.Fatalf("BM25TermComponent=%f, want %f", got, want)
	}
}

func TestBM25TermComponentKBMatchesDefaultWhenParamsAreDefault(t *testing.T) {
	freq, docLen, avgLen := 5, 15.0, 30.0
	a := BM25TermComponent(freq, docLen, avgLen)
	b := BM25TermComponentKB(freq, docLen, avgLen, DefaultBM25K1, DefaultBM25B)
	if a != b {
		t.Fatalf("BM25TermComponentKB with default k1/b disagreed with BM25TermComponent: %f vs %f", b, a)
	}
}

func TestBM25TermComponentCapsAsFreqGrowsLarge(t *testing.T) {
	// As freq -> infinity the saturating component approaches k1+1; it
	// should never exceed that bound.
	v := BM25TermComponent(1_000_000, 20, 20)
	if v > DefaultBM25K1+1 {
		t.Fatalf("expected component to stay <= k1+1=%f, got %f", DefaultBM25K1+1, v)
	}
}
