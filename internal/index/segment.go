// Package index provides the in-memory searchable segment that holds the
// point-indexed and column representations of record fields.
package index

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/stratadb/strata/pkg/types"
)

// Segment is an open, append-only collection of records. Point fields go
// into a per-field posting structure supporting exact, set, and range
// lookups; column fields go into a per-field column supporting
// per-document scalar retrieval.
//
// A segment is safe for concurrent use: adds take the write lock, lookups
// take the read lock.
type Segment struct {
	mu      sync.RWMutex
	nextDoc types.DocID
	points  map[string]*pointIndex
	columns map[string]*column
	sources map[types.DocID][]byte
}

// NewSegment creates an empty open segment.
func NewSegment() *Segment {
	return &Segment{
		points:  make(map[string]*pointIndex),
		columns: make(map[string]*column),
		sources: make(map[types.DocID][]byte),
	}
}

// Add indexes one record and returns its assigned DocID. Duplicate field
// entries are permitted and index the value twice.
func (s *Segment) Add(rec *types.Record) types.DocID {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.nextDoc
	s.nextDoc++

	for _, f := range rec.Fields {
		switch f.Kind {
		case types.KindPoint:
			s.pointFor(f.Name).add(f.Value, doc)
		case types.KindColumn:
			s.columnFor(f.Name).set(doc, f.Value)
		}
	}
	if rec.Source != nil {
		s.sources[doc] = rec.Source
	}
	return doc
}

// AddDocument indexes all records of a logical document, root first, and
// returns the assigned DocIDs in the same order.
func (s *Segment) AddDocument(doc *types.LogicalDocument) []types.DocID {
	recs := doc.Records()
	ids := make([]types.DocID, len(recs))
	for i, rec := range recs {
		ids[i] = s.Add(rec)
	}
	return ids
}

// NumDocs returns the number of records added so far.
func (s *Segment) NumDocs() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(s.nextDoc)
}

// Source returns the stored source bytes for a record, or nil if the
// record carries none.
func (s *Segment) Source(doc types.DocID) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sources[doc]
}

// PointExact returns the documents whose point field equals v.
func (s *Segment) PointExact(field string, v int64) *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pi, ok := s.points[field]
	if !ok {
		return roaring.New()
	}
	return pi.exact(v)
}

// PointSet returns the documents whose point field equals any of vs.
func (s *Segment) PointSet(field string, vs []int64) *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pi, ok := s.points[field]
	if !ok {
		return roaring.New()
	}
	parts := make([]*roaring.Bitmap, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, pi.exact(v))
	}
	return roaring.FastOr(parts...)
}

// PointRange returns the documents whose point field lies in the
// inclusive range [lower, upper].
func (s *Segment) PointRange(field string, lower, upper int64) *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pi, ok := s.points[field]
	if !ok || lower > upper {
		return roaring.New()
	}
	return pi.rng(lower, upper)
}

// Column returns a reader over the column representation of a field. A
// field no column value was ever written for reads as empty.
func (s *Segment) Column(field string) *SortedColumn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &SortedColumn{seg: s, col: s.columnFor(field)}
}

// PointFields returns the names of all fields with a point representation.
func (s *Segment) PointFields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.points))
	for name := range s.points {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PointStats returns the min and max point value for a field, and false
// if the field has no point values.
func (s *Segment) PointStats(field string) (min, max int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pi, exists := s.points[field]
	if !exists || len(pi.values) == 0 {
		return 0, 0, false
	}
	return pi.values[0], pi.values[len(pi.values)-1], true
}

// ForEachPoint visits every (value, doc) point entry of a field in
// ascending value order. Used by the segment sealer.
func (s *Segment) ForEachPoint(field string, fn func(value int64, doc types.DocID)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pi, ok := s.points[field]
	if !ok {
		return
	}
	for _, v := range pi.values {
		it := pi.postings[v].Iterator()
		for it.HasNext() {
			fn(v, types.DocID(it.Next()))
		}
	}
}

// ColumnFields returns the names of all fields with a column representation.
func (s *Segment) ColumnFields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.columns))
	for name := range s.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForEachColumn visits every (doc, value) column entry of a field in
// ascending doc order. Used by the segment sealer.
func (s *Segment) ForEachColumn(field string, fn func(doc types.DocID, value int64)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.columns[field]
	if !ok {
		return
	}
	docs := make([]types.DocID, 0, len(col.values))
	for doc := range col.values {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i] < docs[j] })
	for _, doc := range docs {
		fn(doc, col.values[doc])
	}
}

func (s *Segment) pointFor(name string) *pointIndex {
	pi, ok := s.points[name]
	if !ok {
		pi = &pointIndex{postings: make(map[int64]*roaring.Bitmap)}
		s.points[name] = pi
	}
	return pi
}

func (s *Segment) columnFor(name string) *column {
	col, ok := s.columns[name]
	if !ok {
		col = &column{values: make(map[types.DocID]int64)}
		s.columns[name] = col
	}
	return col
}

// pointIndex holds the postings for one point field: value -> bitmap of
// documents, plus the sorted distinct values for range scans. The values
// slice stays sorted across inserts so lookups never mutate state.
type pointIndex struct {
	postings map[int64]*roaring.Bitmap
	values   []int64
}

func (pi *pointIndex) add(v int64, doc types.DocID) {
	bm, ok := pi.postings[v]
	if !ok {
		bm = roaring.New()
		pi.postings[v] = bm
		i := sort.Search(len(pi.values), func(i int) bool { return pi.values[i] >= v })
		pi.values = append(pi.values, 0)
		copy(pi.values[i+1:], pi.values[i:])
		pi.values[i] = v
	}
	bm.Add(uint32(doc))
}

func (pi *pointIndex) exact(v int64) *roaring.Bitmap {
	bm, ok := pi.postings[v]
	if !ok {
		return roaring.New()
	}
	return bm.Clone()
}

func (pi *pointIndex) rng(lower, upper int64) *roaring.Bitmap {
	lo := sort.Search(len(pi.values), func(i int) bool { return pi.values[i] >= lower })
	hi := sort.Search(len(pi.values), func(i int) bool { return pi.values[i] > upper })
	parts := make([]*roaring.Bitmap, 0, hi-lo)
	for i := lo; i < hi; i++ {
		parts = append(parts, pi.postings[pi.values[i]])
	}
	return roaring.FastOr(parts...)
}

// column holds the per-document values for one column field.
type column struct {
	values map[types.DocID]int64
}

func (c *column) set(doc types.DocID, v int64) {
	c.values[doc] = v
}
