package segment

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/internal/index"
	"github.com/stratadb/strata/internal/mapper"
	"github.com/stratadb/strata/pkg/types"
)

func buildSegment(t *testing.T, stamps []int64) *index.Segment {
	t.Helper()
	seg := index.NewSegment()
	for i, s := range stamps {
		rec := &types.Record{Source: []byte(`{"n":` + string(rune('0'+i%10)) + `}`)}
		mapper.NewVersionFields(s).AddTo(rec)
		rec.Add(types.Field{Name: "n", Kind: types.KindPoint, Value: int64(i)})
		rec.Add(types.Field{Name: "n", Kind: types.KindColumn, Value: int64(i)})
		seg.Add(rec)
	}
	return seg
}

func TestBuilder_SealRejectsEmptySegment(t *testing.T) {
	b := NewBuilder(t.TempDir(), 0.01)

	_, err := b.Seal(context.Background(), index.NewSegment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty segment")
}

func TestBuilder_SealRejectsUnstampedSegment(t *testing.T) {
	seg := index.NewSegment()
	rec := &types.Record{}
	rec.Add(types.Field{Name: "n", Kind: types.KindPoint, Value: 1})
	seg.Add(rec)

	b := NewBuilder(t.TempDir(), 0.01)
	_, err := b.Seal(context.Background(), seg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), mapper.VersionFieldName)
}

func TestBuilder_SealWritesMetadata(t *testing.T) {
	seg := buildSegment(t, []int64{5, 3, 9, 3})
	b := NewBuilder(t.TempDir(), 0.01)

	info, err := b.Seal(context.Background(), seg)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(info.SegmentID, "seg_"))
	assert.Equal(t, int64(4), info.DocCount)
	assert.Equal(t, int64(3), info.MinStamp)
	assert.Equal(t, int64(9), info.MaxStamp)
	assert.Greater(t, info.SizeBytes, int64(0))
	assert.False(t, info.CreatedAt.IsZero())
	assert.FileExists(t, info.Path)
}

func TestSealAndOpen_RoundTrip(t *testing.T) {
	ctx := context.Background()
	stamps := []int64{40, 42, 42, 45}
	seg := buildSegment(t, stamps)
	b := NewBuilder(t.TempDir(), 0.01)

	info, err := b.Seal(ctx, seg)
	require.NoError(t, err)

	sealed, err := Open(ctx, info.Path)
	require.NoError(t, err)

	assert.Equal(t, info.SegmentID, sealed.Info.SegmentID)
	assert.Equal(t, info.DocCount, sealed.Info.DocCount)

	reopened := sealed.Segment()
	assert.Equal(t, uint64(len(stamps)), reopened.NumDocs())

	// DocIDs survive the round trip.
	assert.Equal(t, []uint32{1, 2}, reopened.PointExact(mapper.VersionFieldName, 42).ToArray())
	assert.Equal(t, []uint32{0, 1, 2}, reopened.PointRange(mapper.VersionFieldName, 40, 42).ToArray())

	// Column values survive too.
	col := reopened.Column(mapper.VersionFieldName)
	for doc, want := range stamps {
		v, ok := col.Value(types.DocID(doc))
		require.True(t, ok)
		assert.Equal(t, want, v)
	}

	// Stored sources survive.
	assert.Equal(t, seg.Source(0), reopened.Source(0))
}

func TestSealed_MayContainStamp(t *testing.T) {
	ctx := context.Background()
	seg := buildSegment(t, []int64{40, 42, 45})
	b := NewBuilder(t.TempDir(), 0.01)

	info, err := b.Seal(ctx, seg)
	require.NoError(t, err)
	sealed, err := Open(ctx, info.Path)
	require.NoError(t, err)

	assert.True(t, sealed.MayContainStamp(42))
	assert.False(t, sealed.MayContainStamp(39), "below zone map minimum")
	assert.False(t, sealed.MayContainStamp(46), "above zone map maximum")
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), t.TempDir()+"/does-not-exist.sqlite")
	require.Error(t, err)
}
