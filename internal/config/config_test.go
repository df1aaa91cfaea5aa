package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	assert.NoError(t, cfg.Validate())
}

func TestResolveDerivesPathsFromDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/strata"
	cfg.Resolve()

	assert.Equal(t, "/var/lib/strata/wal", cfg.WAL.Dir)
	assert.Equal(t, "/var/lib/strata/segments", cfg.Segment.Dir)
	assert.Equal(t, "/var/lib/strata/storage", cfg.Storage.Path)
	assert.Equal(t, "/var/lib/strata/mappings.db", cfg.RegistryPath())
}

func TestResolveKeepsExplicitPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WAL.Dir = "/mnt/fast/wal"
	cfg.Resolve()

	assert.Equal(t, "/mnt/fast/wal", cfg.WAL.Dir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "missing data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: "data_dir",
		},
		{
			name:    "bad storage type",
			mutate:  func(c *Config) { c.Storage.Type = "ftp" },
			wantErr: "storage type",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Type = "s3" },
			wantErr: "s3.bucket",
		},
		{
			name:    "bloom fpr too high",
			mutate:  func(c *Config) { c.Segment.BloomFPR = 1.5 },
			wantErr: "bloom_fpr",
		},
		{
			name:    "bloom fpr zero",
			mutate:  func(c *Config) { c.Segment.BloomFPR = 0 },
			wantErr: "bloom_fpr",
		},
		{
			name:    "non-positive wal segment size",
			mutate:  func(c *Config) { c.WAL.MaxSegmentSize = 0 },
			wantErr: "max_segment_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /tmp/strata-test
wal:
  max_segment_size: 1048576
segment:
  bloom_fpr: 0.05
storage:
  type: s3
  s3:
    bucket: strata-segments
    region: us-east-1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/strata-test", cfg.DataDir)
	assert.Equal(t, int64(1048576), cfg.WAL.MaxSegmentSize)
	assert.Equal(t, 0.05, cfg.Segment.BloomFPR)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "strata-segments", cfg.Storage.S3.Bucket)
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"data_dir": "/tmp/strata-json", "segment": {"bloom_fpr": 0.02}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/strata-json", cfg.DataDir)
	assert.Equal(t, 0.02, cfg.Segment.BloomFPR)
	// Defaults survive for fields the file does not set.
	assert.Equal(t, int64(64*1024*1024), cfg.WAL.MaxSegmentSize)
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STRATA_DATA_DIR", "/env/data")
	t.Setenv("STRATA_STORAGE_TYPE", "s3")
	t.Setenv("STRATA_S3_BUCKET", "env-bucket")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, "/env/data", cfg.DataDir)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "env-bucket", cfg.Storage.S3.Bucket)
}
