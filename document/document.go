// Package document defines the document/field data model: an ordered list
// of typed, flagged fields with no identity until a writer assigns a
// segment-local doc-id at flush time. Grounded on bluge's Document/Field
// types (github.com/blugelabs/bluge/document.go, field.go), generalized from
// bluge's single composite analyzed-token-stream model to the spec's
// explicit FieldType flag set and ValueKind enum.
package document

// ValueKind is the closed set of typed field values a Document can carry.
type ValueKind int

const (
	KindText ValueKind = iota
	KindExactString
	KindInt64
	KindBytes
	KindFloat64
)

// IndexOptions controls how much posting detail is produced for a field.
type IndexOptions int

const (
	IndexOptionsNone IndexOptions = iota
	IndexOptionsDocs
	IndexOptionsDocsAndFreqs
	IndexOptionsDocsFreqsAndPositions
)

// DocValuesType selects the per-doc column storage kind for a field.
type DocValuesType int

const (
	DocValuesNone DocValuesType = iota
	DocValuesNumeric
	DocValuesBinary
	DocValuesSorted
)

// FieldType carries the indexing flags the spec's data model names.
type FieldType struct {
	Indexed       bool
	Tokenized     bool
	Stored        bool
	IndexOptions  IndexOptions
	OmitNorms     bool
	DocValuesType DocValuesType
}

// Field is one named, typed, flagged value within a Document.
type Field struct {
	Name string
	Type FieldType

	Kind  ValueKind
	Text  string
	Bytes []byte
	Int   int64
	Float float64
}

// NewTextField builds a tokenized, indexed-with-positions text field, the
// default shape for full-text search content.
func NewTextField(name, value string) Field {
	return Field{
		Name: name,
		Type: FieldType{
			Indexed:      true,
			Tokenized:    true,
			IndexOptions: IndexOptionsDocsFreqsAndPositions,
		},
		Kind: KindText,
		Text: value,
	}
}

// NewKeywordField builds an indexed-but-untokenized exact-match field.
func NewKeywordField(name, value string) Field {
	return Field{
		Name: name,
		Type: FieldType{
			Indexed:      true,
			Tokenized:    false,
			IndexOptions: IndexOptionsDocsAndFreqs,
			OmitNorms:    true,
		},
		Kind: KindExactString,
		Text: value,
	}
}

// NewNumericField builds a field indexed only via numeric doc-values, the
// storage NumericRangeQuery scans.
func NewNumericField(name string, value int64) Field {
	return Field{
		Name: name,
		Type: FieldType{
			DocValuesType: DocValuesNumeric,
		},
		Kind: KindInt64,
		Int:  value,
	}
}

func (f Field) WithStore() Field {
	f.Type.Stored = true
	return f
}

// Document is an ordered list of fields; it has no identity until a writer
// assigns it a segment-local doc-id at flush time.
type Document struct {
	Fields []Field
}

func NewDocument() *Document {
	return &Document{}
}

func (d *Document) AddField(f Field) *Document {
	d.Fields = append(d.Fields, f)
	return d
}

func (d *Document) EachField(fn func(Field)) {
	for _, f := range d.Fields {
		fn(f)
	}
}
