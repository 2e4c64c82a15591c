package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func writeCollectionDir(t *testing.T, root, name string, files ...string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("gob"), 0o600))
	}
}

func TestCheckChromemDir(t *testing.T) {
	root := t.TempDir()
	writeCollectionDir(t, root, "0a1b2c3d", "00000000.gob", "11111111.gob")
	writeCollectionDir(t, root, "1a2b3c4d", "00000000.gob.gz")
	writeCollectionDir(t, root, "deadbeef", "22222222.gob")
	writeCollectionDir(t, root, "feedface")
	writeCollectionDir(t, root, "not-a-collection", "33333333.gob")
	require.NoError(t, os.WriteFile(filepath.Join(root, chromemDimensionsFile), []byte("{}"), 0o600))

	health, err := CheckChromemDir(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"0a1b2c3d", "1a2b3c4d"}, health.Healthy)
	assert.Equal(t, []string{"deadbeef"}, health.Corrupt)
	assert.Equal(t, []string{"feedface"}, health.Empty)
	assert.False(t, health.IsHealthy())

	missing, err := CheckChromemDir(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.True(t, missing.IsHealthy())
}

func TestQuarantineChromemDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vectors")
	writeCollectionDir(t, root, "0a1b2c3d", "00000000.gob")
	writeCollectionDir(t, root, "deadbeef", "22222222.gob")

	moved, err := quarantineChromemDir(root, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"deadbeef"}, moved)
	assert.DirExists(t, filepath.Join(root+".quarantine", "deadbeef"))
	assert.NoDirExists(t, filepath.Join(root, "deadbeef"))
	assert.DirExists(t, filepath.Join(root, "0a1b2c3d"))

	moved, err = quarantineChromemDir(root, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, moved)
}

func TestChromemStore_OpensWithCorruptCollection(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vectors")
	ctx := context.Background()

	s := NewChromemStore(ChromemConfig{Path: dir}, zap.NewNop())
	require.NoError(t, s.CreateCollection(ctx, "code", 3))
	require.NoError(t, s.Insert(ctx, "code", chromemFixtures()))
	require.NoError(t, s.Close())

	writeCollectionDir(t, dir, "deadbeef", "22222222.gob")

	reopened := newTestChromemStore(t, dir)
	results, err := reopened.Search(ctx, "code", []float32{1, 0, 0}, SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "main.go:1-20", results[0].Document.ID)
	assert.DirExists(t, filepath.Join(dir+".quarantine", "deadbeef"))
}
