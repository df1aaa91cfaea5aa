package index

import (
	"sort"

	"github.com/stratadb/strata/pkg/types"
)

// SortedColumn is a read-only view over the column representation of one
// field, used for sorting and aggregation. It carries no per-call mutable
// state and is safe for concurrent use by independent search operations.
type SortedColumn struct {
	seg *Segment
	col *column
}

// Value returns the column value for a document. The second return is
// false if the document has no value for the field.
func (c *SortedColumn) Value(doc types.DocID) (int64, bool) {
	c.seg.mu.RLock()
	defer c.seg.mu.RUnlock()
	v, ok := c.col.values[doc]
	return v, ok
}

// Count returns the number of documents carrying a value.
func (c *SortedColumn) Count() int {
	c.seg.mu.RLock()
	defer c.seg.mu.RUnlock()
	return len(c.col.values)
}

// Sort orders the given documents ascending by column value. Documents
// without a value sort after all documents with one; ties keep ascending
// DocID order so the result is deterministic.
func (c *SortedColumn) Sort(docs []types.DocID) {
	c.seg.mu.RLock()
	defer c.seg.mu.RUnlock()

	sort.SliceStable(docs, func(i, j int) bool {
		vi, oki := c.col.values[docs[i]]
		vj, okj := c.col.values[docs[j]]
		if oki != okj {
			return oki
		}
		if vi != vj {
			return vi < vj
		}
		return docs[i] < docs[j]
	})
}
