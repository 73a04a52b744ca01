package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uplink/internal/config"
	"uplink/internal/storage"
)

// fakeClient is a minimal in-memory object store for wiring tests.
type fakeClient struct {
	mu       sync.Mutex
	failures map[string]int // key -> failures left to inject
	puts     []string
}

func (f *fakeClient) BucketExists(ctx context.Context) (bool, error) {
	return true, nil
}

func (f *fakeClient) PutObject(ctx context.Context, key string, reader io.Reader, size int64, opts storage.PutOptions) error {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, key)
	if left := f.failures[key]; left > 0 {
		f.failures[key] = left - 1
		return errors.New("injected failure")
	}
	return nil
}

func (f *fakeClient) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{
			Endpoint:  "minio.local:9000",
			AccessKey: "ak",
			SecretKey: "sk",
			Bucket:    "data",
		},
		Transfer: config.TransferConfig{
			Parallelism:    2,
			MaxRetries:     0,
			RetryBackoffMs: 1,
		},
		Source: config.SourceConfig{
			Root:  "/data",
			Paths: []string{"a.txt", "b.txt"},
		},
		Journal: config.JournalConfig{Disable: true},
	}
}

func writeAppTestFile(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte("payload"), 0o644))
}

func TestRunCleansUpAfterSuccess(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeAppTestFile(t, fs, "/data/a.txt")
	writeAppTestFile(t, fs, "/data/b.txt")

	cfg := testConfig()
	cfg.Source.RemoveAfterUpload = true

	store := &fakeClient{}
	u := newUploader(cfg, zap.NewNop(), store, fs, nil)

	require.NoError(t, u.Run(context.Background(), nil))
	assert.Equal(t, 2, store.putCount())

	for _, p := range []string{"/data/a.txt", "/data/b.txt"} {
		exists, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.False(t, exists, "%s should be removed after a successful batch", p)
	}
}

func TestRunSkipsCleanupAfterFailedBatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeAppTestFile(t, fs, "/data/a.txt")
	writeAppTestFile(t, fs, "/data/b.txt")

	cfg := testConfig()
	cfg.Source.RemoveAfterUpload = true

	store := &fakeClient{failures: map[string]int{"a.txt": 100}}
	u := newUploader(cfg, zap.NewNop(), store, fs, nil)

	require.Error(t, u.Run(context.Background(), nil))

	// The batch aborted, so every local file survives regardless of how
	// far individual uploads got.
	for _, p := range []string{"/data/a.txt", "/data/b.txt"} {
		exists, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.True(t, exists, "%s must not be cleaned up after a failed batch", p)
	}
}

func TestRunReuploadsEverythingOnRerun(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeAppTestFile(t, fs, "/data/a.txt")
	writeAppTestFile(t, fs, "/data/b.txt")

	cfg := testConfig()
	store := &fakeClient{}
	u := newUploader(cfg, zap.NewNop(), store, fs, nil)

	require.NoError(t, u.Run(context.Background(), nil))
	require.Equal(t, 2, store.putCount())

	// No state survives a batch: a second run sends every file again.
	require.NoError(t, u.Run(context.Background(), nil))
	assert.Equal(t, 4, store.putCount())
}
