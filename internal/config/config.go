// Package config provides unified configuration for the Strata index.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for an index instance.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// WAL configuration
	WAL WALConfig `json:"wal" yaml:"wal"`

	// Segment configuration
	Segment SegmentConfig `json:"segment" yaml:"segment"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// WALConfig holds indexing journal configuration.
type WALConfig struct {
	// Dir is the journal directory
	Dir string `json:"dir" yaml:"dir"`

	// MaxSegmentSize is the journal segment rotation threshold in bytes
	MaxSegmentSize int64 `json:"max_segment_size" yaml:"max_segment_size"`
}

// SegmentConfig holds sealed segment configuration.
type SegmentConfig struct {
	// Dir is the sealed segment output directory
	Dir string `json:"dir" yaml:"dir"`

	// BloomFPR is the target false positive rate for the per-segment
	// stamp bloom filter (0 < FPR < 1)
	BloomFPR float64 `json:"bloom_fpr" yaml:"bloom_fpr"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/strata",
		WAL: WALConfig{
			MaxSegmentSize: 64 * 1024 * 1024,
		},
		Segment: SegmentConfig{
			BloomFPR: 0.01,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/strata"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = filepath.Join(c.DataDir, "wal")
	}
	if c.Segment.Dir == "" {
		c.Segment.Dir = filepath.Join(c.DataDir, "segments")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// RegistryPath returns the path to the mapping registry database.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "mappings.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Segment.BloomFPR <= 0 || c.Segment.BloomFPR >= 1 {
		return fmt.Errorf("segment.bloom_fpr must be in (0, 1), got %v", c.Segment.BloomFPR)
	}

	if c.WAL.MaxSegmentSize <= 0 {
		return fmt.Errorf("wal.max_segment_size must be positive, got %d", c.WAL.MaxSegmentSize)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file, overlaying
// the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overlays configuration from environment variables.
// Environment variables use the STRATA_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STRATA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("STRATA_WAL_DIR"); v != "" {
		cfg.WAL.Dir = v
	}
	if v := os.Getenv("STRATA_SEGMENT_DIR"); v != "" {
		cfg.Segment.Dir = v
	}
	if v := os.Getenv("STRATA_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("STRATA_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("STRATA_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("STRATA_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("STRATA_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}
