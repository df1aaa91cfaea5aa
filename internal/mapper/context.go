package mapper

import (
	"github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/pkg/types"
)

type parsePhase int

const (
	phaseParsing parsePhase = iota
	phaseParsed
)

// ParseContext carries the per-document state for one parse: the root
// record, the nested records discovered while parsing, and the version
// fields registered for the document.
//
// The context moves through two phases. While parsing, nested records may
// be added and the version stamp is being attached to the root. After
// FinishParsing, the record tree is final and the post-parse hooks may
// propagate metadata onto the nested records. The phase check is what
// keeps propagation from ever observing a half-built tree.
type ParseContext struct {
	root    *types.Record
	nested  []*types.Record
	version *VersionFields
	stamp   int64
	phase   parsePhase
}

// NewParseContext starts a parse for a document rooted at root. The
// stamp is the mapping version in effect for the document, fixed for the
// whole parse; zero when the pipeline supplies none.
func NewParseContext(root *types.Record, stamp int64) *ParseContext {
	return &ParseContext{root: root, stamp: stamp}
}

// Doc returns the document's root record.
func (c *ParseContext) Doc() *types.Record {
	return c.root
}

// Stamp returns the mapping version in effect for the document.
func (c *ParseContext) Stamp() int64 {
	return c.stamp
}

// AddNested records a nested record produced while parsing. It fails once
// parsing has finished.
func (c *ParseContext) AddNested(rec *types.Record) error {
	if c.phase != phaseParsing {
		return errors.NewInternalError("cannot add nested record after parsing finished", nil)
	}
	c.nested = append(c.nested, rec)
	return nil
}

// NonRootDocuments returns the nested records collected during parsing.
func (c *ParseContext) NonRootDocuments() []*types.Record {
	return c.nested
}

// SetVersion registers the document's version fields. Called exactly once
// by the version field mapper's pre-parse hook.
func (c *ParseContext) SetVersion(v *VersionFields) {
	c.version = v
}

// Version returns the registered version fields, or nil before the
// pre-parse hook has run.
func (c *ParseContext) Version() *VersionFields {
	return c.version
}

// FinishParsing marks the record tree as complete. After this call
// AddNested fails and the post-parse hooks may run.
func (c *ParseContext) FinishParsing() {
	c.phase = phaseParsed
}

// Parsed reports whether the record tree is complete.
func (c *ParseContext) Parsed() bool {
	return c.phase == phaseParsed
}
