package indexer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commitTree turns root into a repository with a single commit of all files.
func commitTree(t *testing.T, root string) string {
	t.Helper()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:fyrsmithlabs/example.git"},
	})
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddGlob("."))
	hash, err := wt.Commit("initial import", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestDetectRepo(t *testing.T) {
	root := writeTree(t, map[string]string{"pkg/a.go": numberedLines(2)})
	_, ok := DetectRepo(root)
	assert.False(t, ok)

	commit := commitTree(t, root)
	info, ok := DetectRepo(filepath.Join(root, "pkg"))
	require.True(t, ok)
	assert.Equal(t, commit, info.Commit)
	assert.Equal(t, "master", info.Branch)
	assert.Equal(t, "git@github.com:fyrsmithlabs/example.git", info.Remote)
}

func TestDetectRepo_NoCommits(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)
	_, ok := DetectRepo(root)
	assert.False(t, ok)
}

func TestIndexer_RecordsCommit(t *testing.T) {
	root := writeTree(t, map[string]string{"main.go": numberedLines(3)})
	commit := commitTree(t, root)
	store := newTestStore(t)
	ctx := context.Background()

	ix, err := New(store, &fakeEmbedder{}, Options{ChunkLines: 10}, nil)
	require.NoError(t, err)
	stats, err := ix.Index(ctx, root, "code", false)
	require.NoError(t, err)
	require.NotNil(t, stats.Repo)
	assert.Equal(t, commit, stats.Repo.Commit)
	assert.Equal(t, 1, stats.Files)

	rows, err := store.Query(ctx, "code", "", []string{"metadata"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"language": "go", "commit": commit, "branch": "master"}, rows[0]["metadata"])
}
