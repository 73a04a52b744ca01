package transfer

import (
	"context"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanupRemovesPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "/data/a.txt", 1)
	writeTestFile(t, fs, "/data/sub/b.txt", 1)
	writeTestFile(t, fs, "/data/keep.txt", 1)

	svc := New(newFakeStore(), fs, fastSettings(2, 0), zap.NewNop(), nil, nil)

	var done completion
	var progress progressLog
	svc.CleanupLocalPaths(context.Background(), "/data", []string{"a.txt", "sub"}, done.callback(), progress.add)

	assert.Equal(t, 1, done.calls)
	assert.NoError(t, done.err)

	gone, err := afero.Exists(fs, "/data/a.txt")
	require.NoError(t, err)
	assert.False(t, gone)
	gone, err = afero.Exists(fs, "/data/sub/b.txt")
	require.NoError(t, err)
	assert.False(t, gone)

	kept, err := afero.Exists(fs, "/data/keep.txt")
	require.NoError(t, err)
	assert.True(t, kept)

	assert.True(t, progress.contains("cleaned up 2 paths"))
}

func TestCleanupIsBestEffort(t *testing.T) {
	base := afero.NewMemMapFs()
	writeTestFile(t, base, "/data/a.txt", 1)
	fs := afero.NewReadOnlyFs(base)

	svc := New(newFakeStore(), fs, fastSettings(2, 0), zap.NewNop(), nil, nil)

	var done completion
	var progress progressLog
	svc.CleanupLocalPaths(context.Background(), "/data", []string{"a.txt"}, done.callback(), progress.add)

	assert.Equal(t, 1, done.calls)
	assert.NoError(t, done.err, "cleanup failures are reported, never returned")
	assert.True(t, progress.contains("warning: cleanup a.txt"))
	assert.True(t, progress.contains("could not be removed"))
}

func TestUploadThenCleanup(t *testing.T) {
	fs := afero.NewMemMapFs()
	paths := make([]string, 20)
	for i := range paths {
		paths[i] = fmt.Sprintf("out/part-%02d.json", i)
		writeTestFile(t, fs, "/data/"+paths[i], 256)
	}

	store := newFakeStore()
	svc := New(store, fs, fastSettings(4, 5), zap.NewNop(), nil, nil)

	var uploaded completion
	svc.UploadPaths(context.Background(), "/data", "batch-1", paths, uploaded.callback(), nil)
	require.NoError(t, uploaded.err)
	require.Len(t, store.objects, 20)
	assert.Contains(t, store.objects, "batch-1/out/part-00.json")

	var cleaned completion
	svc.CleanupLocalPaths(context.Background(), "/data", paths, cleaned.callback(), nil)
	require.NoError(t, cleaned.err)

	for _, p := range paths {
		exists, err := afero.Exists(fs, "/data/"+p)
		require.NoError(t, err)
		assert.False(t, exists, "%s should be removed", p)
	}
}
