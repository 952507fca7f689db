package index

import (
	"github.com/blevesearch/vellum"

	"github.com/model-collapse/diagon-sub000/errs"
	"github.com/model-collapse/diagon-sub000/store"
)

// newFSTBuilder opens a fresh vellum.Builder writing into out, the same
// construction ice/dict.go uses for its term-dictionary FST.
func newFSTBuilder(out store.IndexOutput) (*vellum.Builder, error) {
	b, err := vellum.New(out, nil)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "new fst builder", err)
	}
	return b, nil
}
