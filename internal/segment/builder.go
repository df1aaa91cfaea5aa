// Package segment seals open in-memory index segments into immutable
// SQLite files and reopens them for search. Sealed segments carry a zone
// map and a bloom filter over the mapping version stamp so readers can
// prune segments without scanning them.
package segment

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stratadb/strata/internal/bloom"
	"github.com/stratadb/strata/internal/index"
	"github.com/stratadb/strata/internal/mapper"
	"github.com/stratadb/strata/pkg/types"
)

// Info contains metadata about a sealed segment.
type Info struct {
	SegmentID string
	Path      string
	DocCount  int64
	MinStamp  int64
	MaxStamp  int64
	SizeBytes int64
	CreatedAt time.Time
}

// Builder seals open segments into SQLite files.
type Builder struct {
	outputDir string
	bloomFPR  float64
}

// NewBuilder creates a segment builder writing into outputDir.
func NewBuilder(outputDir string, bloomFPR float64) *Builder {
	if bloomFPR <= 0 || bloomFPR >= 1 {
		bloomFPR = 0.01
	}
	return &Builder{outputDir: outputDir, bloomFPR: bloomFPR}
}

const sealedDDL = `
CREATE TABLE points (
    field TEXT NOT NULL,
    value INTEGER NOT NULL,
    doc   INTEGER NOT NULL
);
CREATE INDEX idx_points_field_value ON points(field, value);

CREATE TABLE columns (
    field TEXT NOT NULL,
    doc   INTEGER NOT NULL,
    value INTEGER NOT NULL,
    PRIMARY KEY (field, doc)
) WITHOUT ROWID;

CREATE TABLE sources (
    doc    INTEGER PRIMARY KEY,
    source BLOB NOT NULL
);

CREATE TABLE segment_meta (
    segment_id TEXT NOT NULL,
    doc_count  INTEGER NOT NULL,
    min_stamp  INTEGER NOT NULL,
    max_stamp  INTEGER NOT NULL,
    bloom      BLOB NOT NULL,
    created_at INTEGER NOT NULL
);
`

// Seal writes the open segment to a new SQLite file and returns its
// metadata. The segment must contain at least one record.
func (b *Builder) Seal(ctx context.Context, seg *index.Segment) (*Info, error) {
	docCount := int64(seg.NumDocs())
	if docCount == 0 {
		return nil, fmt.Errorf("segment: cannot seal an empty segment")
	}

	if err := os.MkdirAll(b.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("segment: failed to create output directory: %w", err)
	}

	segmentID := fmt.Sprintf("seg_%s", uuid.New().String()[:8])
	path := filepath.Clean(filepath.Join(b.outputDir, segmentID+".sqlite"))
	createdAt := time.Now()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("segment: failed to create segment file: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sealedDDL); err != nil {
		return nil, fmt.Errorf("segment: failed to create tables: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("segment: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := writePoints(ctx, tx, seg); err != nil {
		return nil, err
	}
	if err := writeColumns(ctx, tx, seg); err != nil {
		return nil, err
	}
	if err := writeSources(ctx, tx, seg, docCount); err != nil {
		return nil, err
	}

	// Zone map + bloom filter over the stamp field.
	minStamp, maxStamp, ok := seg.PointStats(mapper.VersionFieldName)
	if !ok {
		return nil, fmt.Errorf("segment: segment has no %s field", mapper.VersionFieldName)
	}
	filter := bloom.NewWithEstimates(int(docCount), b.bloomFPR)
	seg.ForEachPoint(mapper.VersionFieldName, func(value int64, _ types.DocID) {
		filter.AddInt64(value)
	})
	bloomBytes, err := filter.Serialize()
	if err != nil {
		return nil, fmt.Errorf("segment: failed to serialize bloom filter: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO segment_meta (segment_id, doc_count, min_stamp, max_stamp, bloom, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		segmentID, docCount, minStamp, maxStamp, bloomBytes, createdAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("segment: failed to write segment meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("segment: failed to commit: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("segment: failed to close segment file: %w", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("segment: failed to stat segment file: %w", err)
	}

	return &Info{
		SegmentID: segmentID,
		Path:      path,
		DocCount:  docCount,
		MinStamp:  minStamp,
		MaxStamp:  maxStamp,
		SizeBytes: stat.Size(),
		CreatedAt: createdAt,
	}, nil
}

func writePoints(ctx context.Context, tx *sql.Tx, seg *index.Segment) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO points (field, value, doc) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("segment: failed to prepare points insert: %w", err)
	}
	defer stmt.Close()

	for _, field := range seg.PointFields() {
		var insertErr error
		seg.ForEachPoint(field, func(value int64, doc types.DocID) {
			if insertErr != nil {
				return
			}
			_, insertErr = stmt.ExecContext(ctx, field, value, int64(doc))
		})
		if insertErr != nil {
			return fmt.Errorf("segment: failed to insert point entry: %w", insertErr)
		}
	}
	return nil
}

func writeColumns(ctx context.Context, tx *sql.Tx, seg *index.Segment) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO columns (field, doc, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("segment: failed to prepare columns insert: %w", err)
	}
	defer stmt.Close()

	for _, field := range seg.ColumnFields() {
		var insertErr error
		seg.ForEachColumn(field, func(doc types.DocID, value int64) {
			if insertErr != nil {
				return
			}
			_, insertErr = stmt.ExecContext(ctx, field, int64(doc), value)
		})
		if insertErr != nil {
			return fmt.Errorf("segment: failed to insert column entry: %w", insertErr)
		}
	}
	return nil
}

func writeSources(ctx context.Context, tx *sql.Tx, seg *index.Segment, docCount int64) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO sources (doc, source) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("segment: failed to prepare sources insert: %w", err)
	}
	defer stmt.Close()

	for doc := int64(0); doc < docCount; doc++ {
		source := seg.Source(types.DocID(doc))
		if source == nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx, doc, source); err != nil {
			return fmt.Errorf("segment: failed to insert source: %w", err)
		}
	}
	return nil
}
