// Package mapping tracks mapping versions for an index. The registry
// assigns monotonically increasing version numbers as the mapping
// evolves; the assigned number is the stamp the parsing pipeline records
// on every document indexed under that mapping.
package mapping

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/pkg/types"
)

// Registry stores mapping versions in a SQLite catalog.
type Registry struct {
	db *sql.DB
}

const registryDDL = `
CREATE TABLE IF NOT EXISTS mapping_versions (
    version      INTEGER PRIMARY KEY,
    mapping_json TEXT NOT NULL,
    created_at   INTEGER NOT NULL
);
`

// Open opens (creating if needed) a mapping registry at path.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("mapping: failed to open registry: %w", err)
	}
	if _, err := db.Exec(registryDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("mapping: failed to create mapping_versions table: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// VersionRecord is one stored mapping version.
type VersionRecord struct {
	Version   int64
	Mapping   types.Mapping
	CreatedAt time.Time
}

// CurrentVersion returns the latest mapping version number. Returns 0 if
// no mapping has been registered.
func (r *Registry) CurrentVersion(ctx context.Context) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM mapping_versions",
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("mapping: failed to get current version: %w", err)
	}
	return version, nil
}

// GetVersion retrieves a specific mapping version record.
func (r *Registry) GetVersion(ctx context.Context, version int64) (*VersionRecord, error) {
	var mappingJSON string
	var createdAtUnix int64

	err := r.db.QueryRowContext(ctx,
		"SELECT mapping_json, created_at FROM mapping_versions WHERE version = ?",
		version,
	).Scan(&mappingJSON, &createdAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrCategoryMapping, errors.CodeVersionNotFound,
				fmt.Sprintf("mapping version %d not found", version))
		}
		return nil, fmt.Errorf("mapping: failed to get version %d: %w", version, err)
	}

	var m types.Mapping
	if err := json.Unmarshal([]byte(mappingJSON), &m); err != nil {
		return nil, fmt.Errorf("mapping: failed to unmarshal mapping for version %d: %w", version, err)
	}

	return &VersionRecord{
		Version:   version,
		Mapping:   m,
		CreatedAt: time.Unix(createdAtUnix, 0),
	}, nil
}

// Register registers a mapping. If it differs structurally from the
// current version a new version is created with an incremented number;
// if it matches, the existing version number is returned.
func (r *Registry) Register(ctx context.Context, m types.Mapping) (int64, error) {
	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}

	if current > 0 {
		record, err := r.GetVersion(ctx, current)
		if err != nil {
			return 0, err
		}
		if record.Mapping.Equal(m) {
			return current, nil
		}
	}

	next := current + 1
	m.Version = next

	mappingJSON, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("mapping: failed to marshal mapping: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO mapping_versions (version, mapping_json, created_at) VALUES (?, ?, ?)",
		next, string(mappingJSON), time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("mapping: failed to insert version %d: %w", next, err)
	}

	return next, nil
}

// ListVersions returns all registered versions ordered ascending.
func (r *Registry) ListVersions(ctx context.Context) ([]VersionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT version, mapping_json, created_at FROM mapping_versions ORDER BY version ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("mapping: failed to list versions: %w", err)
	}
	defer rows.Close()

	var records []VersionRecord
	for rows.Next() {
		var version, createdAtUnix int64
		var mappingJSON string

		if err := rows.Scan(&version, &mappingJSON, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("mapping: failed to scan version: %w", err)
		}

		var m types.Mapping
		if err := json.Unmarshal([]byte(mappingJSON), &m); err != nil {
			return nil, fmt.Errorf("mapping: failed to unmarshal mapping: %w", err)
		}

		records = append(records, VersionRecord{
			Version:   version,
			Mapping:   m,
			CreatedAt: time.Unix(createdAtUnix, 0),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mapping: error iterating versions: %w", err)
	}

	return records, nil
}
