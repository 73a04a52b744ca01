package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("endpoint", "", "")
	flags.String("access-key", "", "")
	flags.String("secret-key", "", "")
	flags.Bool("secure", false, "")
	flags.String("bucket", "", "")
	flags.String("key-prefix", "", "")
	flags.String("credentials-file", "", "")
	flags.String("project-id", "", "")
	flags.Int("parallelism", 16, "")
	flags.Int("max-retries", 5, "")
	flags.Int64("resumable-threshold", 5*1024*1024, "")
	flags.Int64("chunk-size", 8*1024*1024, "")
	flags.Int("retry-backoff-ms", 1000, "")
	flags.Bool("send-content-md5", true, "")
	flags.Int("status-interval-secs", 10, "")
	flags.String("root", "", "")
	flags.String("prefix", "", "")
	flags.Bool("remove-after-upload", false, "")
	flags.Bool("dry-run", false, "")
	flags.String("journal", "", "")
	flags.Bool("no-journal", false, "")
	flags.String("log-level", "info", "")
	flags.String("metrics-addr", "", "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	flags := newFlagSet()
	require.NoError(t, flags.Set("endpoint", "minio.local:9000"))
	require.NoError(t, flags.Set("access-key", "ak"))
	require.NoError(t, flags.Set("secret-key", "sk"))
	require.NoError(t, flags.Set("bucket", "data"))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Transfer.Parallelism)
	assert.Equal(t, 5, cfg.Transfer.MaxRetries)
	assert.Equal(t, int64(5*1024*1024), cfg.Transfer.ResumableThreshold)
	assert.Equal(t, int64(8*1024*1024), cfg.Transfer.ChunkSize)
	assert.Equal(t, 1000, cfg.Transfer.RetryBackoffMs)
	assert.True(t, cfg.Transfer.SendContentMD5)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "./uplink-history.db", cfg.Journal.Path)
	assert.False(t, cfg.Journal.Disable)
}

func TestLoadFromFile(t *testing.T) {
	content := `
store:
  endpoint: s3.example.com
  access_key: file-ak
  secret_key: file-sk
  secure: true
  bucket: artifacts
  key_prefix: team-a
  project_id: proj-42
transfer:
  parallelism: 8
  max_retries: 3
  chunk_size: 16777216
source:
  root: /data/out
  destination_prefix: runs
  remove_after_upload: true
log_level: debug
metrics_addr: ":9090"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, newFlagSet())
	require.NoError(t, err)

	assert.Equal(t, "s3.example.com", cfg.Store.Endpoint)
	assert.True(t, cfg.Store.Secure)
	assert.Equal(t, "artifacts", cfg.Store.Bucket)
	assert.Equal(t, "team-a", cfg.Store.KeyPrefix)
	assert.Equal(t, "proj-42", cfg.Store.ProjectID)
	assert.Equal(t, 8, cfg.Transfer.Parallelism)
	assert.Equal(t, 3, cfg.Transfer.MaxRetries)
	assert.Equal(t, int64(16777216), cfg.Transfer.ChunkSize)
	assert.Equal(t, "/data/out", cfg.Source.Root)
	assert.Equal(t, "runs", cfg.Source.DestinationPrefix)
	assert.True(t, cfg.Source.RemoveAfterUpload)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.MetricsAddr)

	// Untouched sections keep their defaults.
	assert.Equal(t, int64(5*1024*1024), cfg.Transfer.ResumableThreshold)
	assert.Equal(t, 1000, cfg.Transfer.RetryBackoffMs)
}

func TestFlagsOverrideFile(t *testing.T) {
	content := `
store:
  endpoint: s3.example.com
  access_key: file-ak
  secret_key: file-sk
  bucket: artifacts
transfer:
  parallelism: 8
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	flags := newFlagSet()
	require.NoError(t, flags.Set("parallelism", "2"))
	require.NoError(t, flags.Set("bucket", "override-bucket"))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Transfer.Parallelism)
	assert.Equal(t, "override-bucket", cfg.Store.Bucket)
	assert.Equal(t, "s3.example.com", cfg.Store.Endpoint)
}

func TestCredentialsFileReplacesStaticKeys(t *testing.T) {
	flags := newFlagSet()
	require.NoError(t, flags.Set("endpoint", "minio.local:9000"))
	require.NoError(t, flags.Set("bucket", "data"))
	require.NoError(t, flags.Set("credentials-file", "/etc/uplink/credentials"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "/etc/uplink/credentials", cfg.Store.CredentialsFile)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(flags *pflag.FlagSet)
		wantErr string
	}{
		{
			name:    "missing endpoint",
			prepare: func(flags *pflag.FlagSet) {},
			wantErr: "endpoint is required",
		},
		{
			name: "missing bucket",
			prepare: func(flags *pflag.FlagSet) {
				flags.Set("endpoint", "minio.local:9000")
				flags.Set("access-key", "ak")
				flags.Set("secret-key", "sk")
			},
			wantErr: "bucket is required",
		},
		{
			name: "missing credentials",
			prepare: func(flags *pflag.FlagSet) {
				flags.Set("endpoint", "minio.local:9000")
				flags.Set("bucket", "data")
			},
			wantErr: "access key is required",
		},
		{
			name: "zero parallelism",
			prepare: func(flags *pflag.FlagSet) {
				flags.Set("endpoint", "minio.local:9000")
				flags.Set("access-key", "ak")
				flags.Set("secret-key", "sk")
				flags.Set("bucket", "data")
				flags.Set("parallelism", "0")
			},
			wantErr: "parallelism must be positive",
		},
		{
			name: "negative retries",
			prepare: func(flags *pflag.FlagSet) {
				flags.Set("endpoint", "minio.local:9000")
				flags.Set("access-key", "ak")
				flags.Set("secret-key", "sk")
				flags.Set("bucket", "data")
				flags.Set("max-retries", "-1")
			},
			wantErr: "max retries cannot be negative",
		},
		{
			name: "chunk below S3 minimum",
			prepare: func(flags *pflag.FlagSet) {
				flags.Set("endpoint", "minio.local:9000")
				flags.Set("access-key", "ak")
				flags.Set("secret-key", "sk")
				flags.Set("bucket", "data")
				flags.Set("chunk-size", "1048576")
			},
			wantErr: "chunk size must be at least 5MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := newFlagSet()
			tt.prepare(flags)

			_, err := Load("", flags)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), newFlagSet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}
