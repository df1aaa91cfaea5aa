// Package main implements the strata binary: a thin command around the
// index engine for ingesting JSON documents and querying them by mapping
// version stamp.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stratadb/strata/internal/config"
	"github.com/stratadb/strata/internal/index"
	"github.com/stratadb/strata/internal/mapper"
	"github.com/stratadb/strata/internal/mapping"
	"github.com/stratadb/strata/internal/pipeline"
	"github.com/stratadb/strata/internal/query"
	"github.com/stratadb/strata/internal/segment"
	"github.com/stratadb/strata/internal/wal"
)

var version = "dev"

func main() {
	var (
		configFile  string
		dataDir     string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Strata - versioned columnar document index\n\n")
		fmt.Fprintf(os.Stderr, "Usage: strata [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  ingest <file.jsonl>      Index one JSON document per line and seal a segment\n")
		fmt.Fprintf(os.Stderr, "  query <predicate>        Query sealed segments by mapping version stamp\n\n")
		fmt.Fprintf(os.Stderr, "Predicates:\n")
		fmt.Fprintf(os.Stderr, "  exact:42    set:1,2,3    range:40..45\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  STRATA_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  STRATA_STORAGE_TYPE    Storage type (local, s3)\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("strata %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(configFile, dataDir)
	if err != nil {
		log.Fatalf("strata: %v", err)
	}

	ctx := context.Background()
	switch args[0] {
	case "ingest":
		if len(args) != 2 {
			log.Fatal("strata: ingest requires a file argument")
		}
		err = runIngest(ctx, cfg, args[1])
	case "query":
		if len(args) != 2 {
			log.Fatal("strata: query requires a predicate argument")
		}
		err = runQuery(ctx, cfg, args[1])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("strata: %v", err)
	}
}

func loadConfig(configFile, dataDir string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runIngest(ctx context.Context, cfg *config.Config, path string) error {
	registry, err := mapping.Open(cfg.RegistryPath())
	if err != nil {
		return err
	}
	defer registry.Close()

	stamp, err := registry.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	journal, err := wal.NewWAL(cfg.WAL.Dir, cfg.WAL.MaxSegmentSize)
	if err != nil {
		return err
	}
	defer journal.Close()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	parser := pipeline.NewParser(mapper.NewVersionFieldMapper())
	seg := index.NewSegment()

	start := time.Now()
	var docs int
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		source := []byte(line)

		doc, err := parser.Parse(source, stamp)
		if err != nil {
			return fmt.Errorf("line %d: %w", docs+1, err)
		}
		if _, err := journal.Append(&wal.Entry{
			Stamp:     stamp,
			Source:    source,
			Timestamp: time.Now().UnixNano(),
		}); err != nil {
			return err
		}
		seg.AddDocument(doc)
		docs++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if err := journal.Sync(); err != nil {
		return err
	}
	if docs == 0 {
		return fmt.Errorf("no documents in %s", path)
	}

	builder := segment.NewBuilder(cfg.Segment.Dir, cfg.Segment.BloomFPR)
	info, err := builder.Seal(ctx, seg)
	if err != nil {
		return err
	}

	log.Printf("ingested %d documents (%d records) into %s in %v, stamp=%d",
		docs, info.DocCount, info.SegmentID, time.Since(start), stamp)
	return nil
}

func runQuery(ctx context.Context, cfg *config.Config, predicate string) error {
	fieldType := mapper.NewVersionFieldType()
	q, stamps, err := buildQuery(fieldType, predicate)
	if err != nil {
		return err
	}

	paths, err := filepath.Glob(filepath.Join(cfg.Segment.Dir, "seg_*.sqlite"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no sealed segments under %s", cfg.Segment.Dir)
	}

	var total uint64
	for _, path := range paths {
		sealed, err := segment.Open(ctx, path)
		if err != nil {
			return err
		}
		if len(stamps) > 0 && !anyStampPossible(sealed, stamps) {
			continue
		}

		matches, err := q.Execute(sealed.Segment())
		if err != nil {
			return err
		}
		if matches.IsEmpty() {
			continue
		}
		fmt.Printf("%s: %d matches, docs %v\n",
			sealed.Info.SegmentID, matches.GetCardinality(), matches.ToArray())
		total += matches.GetCardinality()
	}

	fmt.Printf("query %s matched %d records across %d segments\n", q, total, len(paths))
	return nil
}

// buildQuery parses the CLI predicate syntax. For exact and set
// predicates it also returns the stamp values so segments can be pruned
// by zone map and bloom filter before opening postings.
func buildQuery(fieldType *mapper.VersionFieldType, predicate string) (query.Query, []int64, error) {
	kind, arg, ok := strings.Cut(predicate, ":")
	if !ok {
		return nil, nil, fmt.Errorf("invalid predicate %q", predicate)
	}

	switch kind {
	case "exact":
		q, err := fieldType.TermQuery(mapper.StringTerm(arg))
		if err != nil {
			return nil, nil, err
		}
		v, _ := fieldType.Parse(mapper.StringTerm(arg))
		return q, []int64{v}, nil

	case "set":
		var terms []mapper.Term
		var values []int64
		for _, part := range strings.Split(arg, ",") {
			terms = append(terms, mapper.StringTerm(strings.TrimSpace(part)))
		}
		q, err := fieldType.TermsQuery(terms)
		if err != nil {
			return nil, nil, err
		}
		for _, t := range terms {
			v, _ := fieldType.Parse(t)
			values = append(values, v)
		}
		return q, values, nil

	case "range":
		lo, hi, ok := strings.Cut(arg, "..")
		if !ok {
			return nil, nil, fmt.Errorf("range predicate needs the form range:lo..hi")
		}
		var lower, upper *mapper.Term
		if lo != "" {
			t := mapper.StringTerm(lo)
			lower = &t
		}
		if hi != "" {
			t := mapper.StringTerm(hi)
			upper = &t
		}
		q, err := fieldType.RangeQuery(lower, upper, true, true)
		return q, nil, err

	default:
		return nil, nil, fmt.Errorf("unknown predicate kind %q", kind)
	}
}

func anyStampPossible(sealed *segment.Sealed, stamps []int64) bool {
	for _, v := range stamps {
		if sealed.MayContainStamp(v) {
			return true
		}
	}
	return false
}
