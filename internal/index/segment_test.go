package index

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/pkg/types"
)

func pointRec(field string, v int64) *types.Record {
	rec := &types.Record{}
	rec.Add(types.Field{Name: field, Kind: types.KindPoint, Value: v})
	return rec
}

func TestSegment_AddAssignsSequentialDocIDs(t *testing.T) {
	seg := NewSegment()

	assert.Equal(t, types.DocID(0), seg.Add(pointRec("v", 1)))
	assert.Equal(t, types.DocID(1), seg.Add(pointRec("v", 2)))
	assert.Equal(t, types.DocID(2), seg.Add(pointRec("v", 1)))
	assert.Equal(t, uint64(3), seg.NumDocs())
}

func TestSegment_AddDocumentRootFirst(t *testing.T) {
	seg := NewSegment()
	doc := &types.LogicalDocument{
		Root:   pointRec("v", 1),
		Nested: []*types.Record{pointRec("v", 2), pointRec("v", 3)},
	}

	ids := seg.AddDocument(doc)
	assert.Equal(t, []types.DocID{0, 1, 2}, ids)
}

func TestSegment_PointExact(t *testing.T) {
	seg := NewSegment()
	for _, v := range []int64{10, 20, 10, 30} {
		seg.Add(pointRec("v", v))
	}

	assert.Equal(t, []uint32{0, 2}, seg.PointExact("v", 10).ToArray())
	assert.True(t, seg.PointExact("v", 99).IsEmpty())
	assert.True(t, seg.PointExact("missing", 10).IsEmpty())
}

func TestSegment_PointSet(t *testing.T) {
	seg := NewSegment()
	for _, v := range []int64{10, 20, 10, 30} {
		seg.Add(pointRec("v", v))
	}

	bm := seg.PointSet("v", []int64{10, 30, 99})
	assert.Equal(t, []uint32{0, 2, 3}, bm.ToArray())

	assert.True(t, seg.PointSet("v", nil).IsEmpty())
}

func TestSegment_PointRange(t *testing.T) {
	seg := NewSegment()
	for _, v := range []int64{5, 10, 15, 20, 25} {
		seg.Add(pointRec("v", v))
	}

	tests := []struct {
		name         string
		lower, upper int64
		want         []uint32
	}{
		{name: "interior", lower: 10, upper: 20, want: []uint32{1, 2, 3}},
		{name: "exact single", lower: 15, upper: 15, want: []uint32{2}},
		{name: "full domain", lower: math.MinInt64, upper: math.MaxInt64, want: []uint32{0, 1, 2, 3, 4}},
		{name: "below all", lower: math.MinInt64, upper: 4, want: nil},
		{name: "above all", lower: 26, upper: math.MaxInt64, want: nil},
		{name: "inverted", lower: 20, upper: 10, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bm := seg.PointRange("v", tt.lower, tt.upper)
			if tt.want == nil {
				assert.True(t, bm.IsEmpty())
				return
			}
			assert.Equal(t, tt.want, bm.ToArray())
		})
	}
}

func TestSegment_ResultBitmapsAreIndependent(t *testing.T) {
	seg := NewSegment()
	seg.Add(pointRec("v", 1))

	bm := seg.PointExact("v", 1)
	bm.Add(12345)

	assert.Equal(t, []uint32{0}, seg.PointExact("v", 1).ToArray())
}

func TestSegment_ColumnReadsAndSorts(t *testing.T) {
	seg := NewSegment()
	for i, v := range []int64{30, 10, 20} {
		rec := &types.Record{}
		rec.Add(types.Field{Name: "v", Kind: types.KindColumn, Value: v})
		id := seg.Add(rec)
		assert.Equal(t, types.DocID(i), id)
	}

	col := seg.Column("v")
	assert.Equal(t, 3, col.Count())

	v, ok := col.Value(0)
	require.True(t, ok)
	assert.Equal(t, int64(30), v)

	_, ok = col.Value(99)
	assert.False(t, ok)

	docs := []types.DocID{0, 1, 2}
	col.Sort(docs)
	assert.Equal(t, []types.DocID{1, 2, 0}, docs)
}

func TestSegment_SortPlacesMissingValuesLast(t *testing.T) {
	seg := NewSegment()

	withValue := &types.Record{}
	withValue.Add(types.Field{Name: "v", Kind: types.KindColumn, Value: 5})
	seg.Add(withValue)

	seg.Add(&types.Record{})

	alsoWithValue := &types.Record{}
	alsoWithValue.Add(types.Field{Name: "v", Kind: types.KindColumn, Value: 1})
	seg.Add(alsoWithValue)

	docs := []types.DocID{0, 1, 2}
	seg.Column("v").Sort(docs)
	assert.Equal(t, []types.DocID{2, 0, 1}, docs)
}

func TestSegment_PointStats(t *testing.T) {
	seg := NewSegment()

	_, _, ok := seg.PointStats("v")
	assert.False(t, ok)

	for _, v := range []int64{7, -3, 12} {
		seg.Add(pointRec("v", v))
	}

	min, max, ok := seg.PointStats("v")
	require.True(t, ok)
	assert.Equal(t, int64(-3), min)
	assert.Equal(t, int64(12), max)
}

func TestSegment_FieldEnumeration(t *testing.T) {
	seg := NewSegment()
	rec := &types.Record{}
	rec.Add(types.Field{Name: "b", Kind: types.KindPoint, Value: 1})
	rec.Add(types.Field{Name: "a", Kind: types.KindPoint, Value: 1})
	rec.Add(types.Field{Name: "c", Kind: types.KindColumn, Value: 1})
	seg.Add(rec)

	assert.Equal(t, []string{"a", "b"}, seg.PointFields())
	assert.Equal(t, []string{"c"}, seg.ColumnFields())
}

func TestSegment_ForEachPointAscendingValueOrder(t *testing.T) {
	seg := NewSegment()
	for _, v := range []int64{20, 5, 20, 10} {
		seg.Add(pointRec("v", v))
	}

	var values []int64
	var docs []types.DocID
	seg.ForEachPoint("v", func(v int64, doc types.DocID) {
		values = append(values, v)
		docs = append(docs, doc)
	})

	assert.Equal(t, []int64{5, 10, 20, 20}, values)
	assert.Equal(t, []types.DocID{1, 3, 0, 2}, docs)
}

func TestSegment_ForEachColumnAscendingDocOrder(t *testing.T) {
	seg := NewSegment()
	for _, v := range []int64{9, 4, 6} {
		rec := &types.Record{}
		rec.Add(types.Field{Name: "v", Kind: types.KindColumn, Value: v})
		seg.Add(rec)
	}

	var docs []types.DocID
	var values []int64
	seg.ForEachColumn("v", func(doc types.DocID, v int64) {
		docs = append(docs, doc)
		values = append(values, v)
	})

	assert.Equal(t, []types.DocID{0, 1, 2}, docs)
	assert.Equal(t, []int64{9, 4, 6}, values)
}

func TestSegment_SourceRoundTrip(t *testing.T) {
	seg := NewSegment()

	rec := &types.Record{Source: []byte(`{"a":1}`)}
	doc := seg.Add(rec)

	assert.Equal(t, []byte(`{"a":1}`), seg.Source(doc))
	assert.Nil(t, seg.Source(doc+1))
}

func TestSegment_ConcurrentAddAndQuery(t *testing.T) {
	seg := NewSegment()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				seg.Add(pointRec("v", int64(i%10)))
				seg.PointExact("v", int64(i%10))
				seg.PointRange("v", 0, 5)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, uint64(1000), seg.NumDocs())
	total := uint64(0)
	for v := int64(0); v < 10; v++ {
		total += seg.PointExact("v", v).GetCardinality()
	}
	assert.Equal(t, uint64(1000), total)
}
