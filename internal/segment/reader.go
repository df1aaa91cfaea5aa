package segment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stratadb/strata/internal/bloom"
	"github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/index"
	"github.com/stratadb/strata/pkg/types"
)

// Sealed is a sealed segment reopened for search. The record data is
// loaded back into an in-memory searchable segment; the zone map and
// bloom filter support pruning by stamp before any lookup runs.
type Sealed struct {
	Info   Info
	seg    *index.Segment
	filter *bloom.Filter
}

// Open reads a sealed segment file and rebuilds its searchable form.
// DocIDs are preserved from seal time.
func Open(ctx context.Context, path string) (*Sealed, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("segment: failed to open segment file: %w", err)
	}
	defer db.Close()

	info, filter, err := readMeta(ctx, db, path)
	if err != nil {
		return nil, err
	}

	records := make([]*types.Record, info.DocCount)
	for i := range records {
		records[i] = &types.Record{}
	}

	if err := readPoints(ctx, db, records); err != nil {
		return nil, err
	}
	if err := readColumns(ctx, db, records); err != nil {
		return nil, err
	}
	if err := readSources(ctx, db, records); err != nil {
		return nil, err
	}

	seg := index.NewSegment()
	for _, rec := range records {
		seg.Add(rec)
	}

	return &Sealed{Info: *info, seg: seg, filter: filter}, nil
}

// Segment returns the searchable segment.
func (s *Sealed) Segment() *index.Segment {
	return s.seg
}

// MayContainStamp reports whether the segment can contain a document with
// the given stamp. False is definitive; true may be a bloom false
// positive.
func (s *Sealed) MayContainStamp(v int64) bool {
	if v < s.Info.MinStamp || v > s.Info.MaxStamp {
		return false
	}
	return s.filter.ContainsInt64(v)
}

func readMeta(ctx context.Context, db *sql.DB, path string) (*Info, *bloom.Filter, error) {
	var info Info
	var bloomBytes []byte
	var createdAtUnix int64

	err := db.QueryRowContext(ctx,
		"SELECT segment_id, doc_count, min_stamp, max_stamp, bloom, created_at FROM segment_meta",
	).Scan(&info.SegmentID, &info.DocCount, &info.MinStamp, &info.MaxStamp, &bloomBytes, &createdAtUnix)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCategoryStorage, errors.CodeSegmentCorrupt,
			fmt.Sprintf("segment %s has no readable meta row", path), err)
	}
	info.Path = path
	info.CreatedAt = time.Unix(createdAtUnix, 0)

	filter, err := bloom.Deserialize(bloomBytes)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCategoryStorage, errors.CodeSegmentCorrupt,
			fmt.Sprintf("segment %s has a corrupt bloom filter", path), err)
	}
	return &info, filter, nil
}

func readPoints(ctx context.Context, db *sql.DB, records []*types.Record) error {
	rows, err := db.QueryContext(ctx, "SELECT field, value, doc FROM points")
	if err != nil {
		return fmt.Errorf("segment: failed to read points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var field string
		var value, doc int64
		if err := rows.Scan(&field, &value, &doc); err != nil {
			return fmt.Errorf("segment: failed to scan point entry: %w", err)
		}
		if doc < 0 || doc >= int64(len(records)) {
			return errors.New(errors.ErrCategoryStorage, errors.CodeSegmentCorrupt,
				fmt.Sprintf("point entry references doc %d outside segment", doc))
		}
		records[doc].Add(types.Field{Name: field, Kind: types.KindPoint, Value: value})
	}
	return rows.Err()
}

func readColumns(ctx context.Context, db *sql.DB, records []*types.Record) error {
	rows, err := db.QueryContext(ctx, "SELECT field, doc, value FROM columns")
	if err != nil {
		return fmt.Errorf("segment: failed to read columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var field string
		var doc, value int64
		if err := rows.Scan(&field, &doc, &value); err != nil {
			return fmt.Errorf("segment: failed to scan column entry: %w", err)
		}
		if doc < 0 || doc >= int64(len(records)) {
			return errors.New(errors.ErrCategoryStorage, errors.CodeSegmentCorrupt,
				fmt.Sprintf("column entry references doc %d outside segment", doc))
		}
		records[doc].Add(types.Field{Name: field, Kind: types.KindColumn, Value: value})
	}
	return rows.Err()
}

func readSources(ctx context.Context, db *sql.DB, records []*types.Record) error {
	rows, err := db.QueryContext(ctx, "SELECT doc, source FROM sources")
	if err != nil {
		return fmt.Errorf("segment: failed to read sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc int64
		var source []byte
		if err := rows.Scan(&doc, &source); err != nil {
			return fmt.Errorf("segment: failed to scan source: %w", err)
		}
		if doc < 0 || doc >= int64(len(records)) {
			return errors.New(errors.ErrCategoryStorage, errors.CodeSegmentCorrupt,
				fmt.Sprintf("source entry references doc %d outside segment", doc))
		}
		records[doc].Source = source
	}
	return rows.Err()
}
