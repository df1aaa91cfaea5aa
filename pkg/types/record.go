// Package types provides core data types for the Strata index.
package types

// DocID identifies a record within a single index segment. IDs are
// assigned densely in insertion order and are not stable across segments.
type DocID uint32

// FieldKind distinguishes the physical representations a field value can
// be stored under.
type FieldKind int

const (
	// KindPoint is the indexed point representation. It supports exact,
	// set, and range lookups over the encoded value.
	KindPoint FieldKind = iota

	// KindColumn is the column representation. It supports per-document
	// scalar retrieval for sorting and aggregation, and is not
	// searchable by term.
	KindColumn
)

// String returns the kind name used in segment files.
func (k FieldKind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindColumn:
		return "column"
	default:
		return "unknown"
	}
}

// Field is one physical field entry on a record: a named 64-bit signed
// integer value under one of the physical representations.
type Field struct {
	// Name is the field name. Names starting with an underscore are
	// reserved for internal metadata fields.
	Name string

	// Kind selects the physical representation.
	Kind FieldKind

	// Value is the signed 64-bit integer stored under Name.
	Value int64
}

// Record is the indexable unit produced by parsing. A record holds an
// ordered list of physical fields plus, for root records, the compressed
// document source.
type Record struct {
	// Fields lists the physical field entries in insertion order.
	// Duplicate entries are permitted by the store.
	Fields []Field

	// Source holds the Snappy-compressed document source. Only set on
	// root records.
	Source []byte
}

// Add appends a physical field entry to the record.
func (r *Record) Add(f Field) {
	r.Fields = append(r.Fields, f)
}

// Value returns the first value stored under the given name and kind.
func (r *Record) Value(name string, kind FieldKind) (int64, bool) {
	for _, f := range r.Fields {
		if f.Name == name && f.Kind == kind {
			return f.Value, true
		}
	}
	return 0, false
}

// LogicalDocument is one input document's full parse result: exactly one
// root record plus zero or more nested records materialized from nested
// structures within the same input.
type LogicalDocument struct {
	Root   *Record
	Nested []*Record
}

// Records returns all records of the document, root first.
func (d *LogicalDocument) Records() []*Record {
	out := make([]*Record, 0, 1+len(d.Nested))
	out = append(out, d.Root)
	out = append(out, d.Nested...)
	return out
}
