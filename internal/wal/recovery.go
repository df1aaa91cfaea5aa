package wal

import (
	"context"
	"log"
	"time"

	"github.com/stratadb/strata/internal/index"
	"github.com/stratadb/strata/internal/pipeline"
)

// Recovery replays journal entries into an open segment after a crash.
// Entries are re-parsed with the stamp recorded at append time, so
// recovered documents carry the same mapping version they were originally
// assigned, not the registry's current one.
type Recovery struct {
	wal    *WAL
	parser *pipeline.Parser
}

// NewRecovery creates a recovery instance.
func NewRecovery(wal *WAL, parser *pipeline.Parser) *Recovery {
	return &Recovery{wal: wal, parser: parser}
}

// Replay re-indexes every journal entry with an LSN above sealedLSN into
// seg. It returns the count of replayed entries; entries that no longer
// parse are skipped and logged, not fatal.
func (r *Recovery) Replay(ctx context.Context, seg *index.Segment, sealedLSN uint64) (int, error) {
	start := time.Now()

	entries, err := r.wal.ReadAll()
	if err != nil {
		return 0, err
	}

	var replayed int
	for _, entry := range entries {
		if entry.LSN <= sealedLSN {
			continue
		}
		if err := ctx.Err(); err != nil {
			return replayed, err
		}

		doc, err := r.parser.Parse(entry.Source, entry.Stamp)
		if err != nil {
			log.Printf("wal: skipping unparseable entry lsn=%d: %v", entry.LSN, err)
			continue
		}
		seg.AddDocument(doc)
		replayed++
	}

	if replayed > 0 {
		log.Printf("wal: replayed %d entries in %v", replayed, time.Since(start))
	}
	return replayed, nil
}
