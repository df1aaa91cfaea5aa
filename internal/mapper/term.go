// Package mapper implements the internal metadata fields attached to
// every indexed document, and the field-type descriptors the query layer
// consults when a filter, sort, or range request targets one of them.
package mapper

import "fmt"

// TermKind enumerates the input shapes accepted by metadata field term
// parsing.
type TermKind int

const (
	// TermInt is a signed 64-bit integer term.
	TermInt TermKind = iota

	// TermFloat is a double-precision numeric term. It must be integral
	// and inside the signed 64-bit domain to parse.
	TermFloat

	// TermBytes is an encoded byte term. It is decoded as UTF-8 text and
	// then parsed like a string term.
	TermBytes

	// TermString is a textual term parsed as a base-10 signed 64-bit
	// integer.
	TermString
)

// Term is a tagged-variant query input value. Each variant carries its
// own conversion rule; see VersionFieldType.Parse.
type Term struct {
	Kind  TermKind
	Int   int64
	Float float64
	Bytes []byte
	Str   string
}

// IntTerm builds an integer term.
func IntTerm(v int64) Term {
	return Term{Kind: TermInt, Int: v}
}

// FloatTerm builds a double-precision numeric term.
func FloatTerm(f float64) Term {
	return Term{Kind: TermFloat, Float: f}
}

// BytesTerm builds an encoded byte term.
func BytesTerm(b []byte) Term {
	return Term{Kind: TermBytes, Bytes: b}
}

// StringTerm builds a textual term.
func StringTerm(s string) Term {
	return Term{Kind: TermString, Str: s}
}

// String renders the term's payload for error messages.
func (t Term) String() string {
	switch t.Kind {
	case TermInt:
		return fmt.Sprintf("%d", t.Int)
	case TermFloat:
		return fmt.Sprintf("%v", t.Float)
	case TermBytes:
		return string(t.Bytes)
	case TermString:
		return t.Str
	default:
		return "<invalid term>"
	}
}
