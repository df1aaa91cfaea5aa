// Package query defines the predicate objects evaluated against index
// segments. Predicates are built by field types and executed by the
// search layer; execution returns the matching documents as a bitmap.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/stratadb/strata/internal/index"
)

// Query is the generic predicate interface the store evaluates.
type Query interface {
	// Execute returns the documents in the segment matching the predicate.
	Execute(seg *index.Segment) (*roaring.Bitmap, error)

	// String renders the predicate for logs and query explains.
	String() string
}

// PointExact matches documents whose point field equals Value.
type PointExact struct {
	Field string
	Value int64
}

func (q *PointExact) Execute(seg *index.Segment) (*roaring.Bitmap, error) {
	return seg.PointExact(q.Field, q.Value), nil
}

func (q *PointExact) String() string {
	return fmt.Sprintf("%s:%d", q.Field, q.Value)
}

// PointSet matches documents whose point field equals any of Values.
// Order is irrelevant and duplicates are harmless.
type PointSet struct {
	Field  string
	Values []int64
}

func (q *PointSet) Execute(seg *index.Segment) (*roaring.Bitmap, error) {
	return seg.PointSet(q.Field, q.Values), nil
}

func (q *PointSet) String() string {
	vs := append([]int64(nil), q.Values...)
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("%s:{%s}", q.Field, strings.Join(parts, ","))
}

// PointRange matches documents whose point field lies in the inclusive
// range [Lower, Upper].
type PointRange struct {
	Field string
	Lower int64
	Upper int64
}

func (q *PointRange) Execute(seg *index.Segment) (*roaring.Bitmap, error) {
	return seg.PointRange(q.Field, q.Lower, q.Upper), nil
}

func (q *PointRange) String() string {
	return fmt.Sprintf("%s:[%d TO %d]", q.Field, q.Lower, q.Upper)
}

// MatchNone matches no documents. Returned where a predicate is provably
// unsatisfiable, e.g. an exclusive range bound that cannot be adjusted
// without overflowing the 64-bit domain.
type MatchNone struct{}

func (q *MatchNone) Execute(seg *index.Segment) (*roaring.Bitmap, error) {
	return roaring.New(), nil
}

func (q *MatchNone) String() string {
	return "MatchNone"
}
