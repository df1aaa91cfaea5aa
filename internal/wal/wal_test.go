package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAL_AppendAssignsIncreasingLSNs(t *testing.T) {
	w, err := NewWAL(t.TempDir(), 64*1024*1024)
	require.NoError(t, err)
	defer w.Close()

	for i := 1; i <= 5; i++ {
		lsn, err := w.Append(&Entry{Stamp: 1, Source: []byte(`{"n":1}`)})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), lsn)
	}
	assert.Equal(t, uint64(5), w.CurrentLSN())
}

func TestWAL_ReadAllReturnsEntriesInOrder(t *testing.T) {
	w, err := NewWAL(t.TempDir(), 64*1024*1024)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 10; i++ {
		_, err := w.Append(&Entry{
			Stamp:  int64(i),
			Source: []byte(fmt.Sprintf(`{"n":%d}`, i)),
		})
		require.NoError(t, err)
	}
	require.NoError(t, w.Sync())

	entries, err := w.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 10)
	for i, entry := range entries {
		assert.Equal(t, uint64(i+1), entry.LSN)
		assert.Equal(t, int64(i), entry.Stamp)
		assert.Equal(t, []byte(fmt.Sprintf(`{"n":%d}`, i)), entry.Source)
	}
}

func TestWAL_RotatesAtSegmentSizeLimit(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWAL(dir, 256)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 50; i++ {
		_, err := w.Append(&Entry{Stamp: 1, Source: []byte(`{"some":"document","with":"padding"}`)})
		require.NoError(t, err)
	}
	require.NoError(t, w.Sync())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Greater(t, len(files), 1, "expected rotation to produce multiple segments")

	entries, err := w.ReadAll()
	require.NoError(t, err)
	assert.Len(t, entries, 50)
}

func TestWAL_ResumesLSNAfterReopen(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWAL(dir, 64*1024*1024)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := w.Append(&Entry{Stamp: 1, Source: []byte(`{"n":1}`)})
		require.NoError(t, err)
	}
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	w2, err := NewWAL(dir, 64*1024*1024)
	require.NoError(t, err)
	defer w2.Close()

	assert.Equal(t, uint64(3), w2.CurrentLSN())
	lsn, err := w2.Append(&Entry{Stamp: 1, Source: []byte(`{"n":2}`)})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), lsn)
}

func TestWAL_CorruptFrameEndsSegmentRead(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWAL(dir, 64*1024*1024)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := w.Append(&Entry{Stamp: int64(i), Source: []byte(`{"n":1}`)})
		require.NoError(t, err)
	}
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	// Flip a byte in the middle of the file to break the second frame's CRC.
	path := filepath.Join(dir, "wal_0000000000000000.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	w2, err := NewWAL(dir, 64*1024*1024)
	require.NoError(t, err)
	defer w2.Close()

	entries, err := w2.ReadAll()
	require.NoError(t, err)
	assert.Less(t, len(entries), 3)
	assert.GreaterOrEqual(t, len(entries), 1)
}

func TestWAL_TruncatedTailIsDropped(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWAL(dir, 64*1024*1024)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := w.Append(&Entry{Stamp: int64(i), Source: []byte(`{"n":1}`)})
		require.NoError(t, err)
	}
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "wal_0000000000000000.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0644))

	w2, err := NewWAL(dir, 64*1024*1024)
	require.NoError(t, err)
	defer w2.Close()

	entries, err := w2.ReadAll()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
