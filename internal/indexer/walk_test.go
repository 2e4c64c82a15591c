package indexer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files under a temp dir; keys are slash-separated paths.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func relPaths(res *WalkResult) []string {
	out := make([]string, len(res.Files))
	for i, f := range res.Files {
		out[i] = f.RelPath
	}
	return out
}

func sampleTree(t *testing.T) string {
	return writeTree(t, map[string]string{
		"main.go":             "package main\n",
		"README.md":           "# readme\n",
		"sub/util.go":         "package sub\n",
		"sub/deep/notes.txt":  "notes\n",
		".git/config":         "[core]\n",
		"node_modules/x.js":   "module.exports = 1\n",
		"vendor/lib/y.go":     "package lib\n",
		"assets/logo.png":     "PNG\x00\x01\x02",
		"generated/big.txt":   strings.Repeat("x", 200),
		"docs/guide/intro.md": "intro\n",
	})
}

func TestWalk(t *testing.T) {
	root := sampleTree(t)

	tests := []struct {
		name        string
		opts        WalkOptions
		want        []string
		wantSkipped map[SkipReason]int
	}{
		{
			name:        "defaults skip vcs and dependency dirs",
			opts:        WalkOptions{MaxFileBytes: 100},
			want:        []string{"README.md", "docs/guide/intro.md", "main.go", "sub/deep/notes.txt", "sub/util.go"},
			wantSkipped: map[SkipReason]int{SkipBinary: 1, SkipTooLarge: 1},
		},
		{
			name:        "include by extension",
			opts:        WalkOptions{Include: []string{"**/*.go"}},
			want:        []string{"main.go", "sub/util.go"},
			wantSkipped: map[SkipReason]int{},
		},
		{
			name:        "base name pattern",
			opts:        WalkOptions{Include: []string{"*.md"}},
			want:        []string{"README.md", "docs/guide/intro.md"},
			wantSkipped: map[SkipReason]int{},
		},
		{
			name: "exclude prunes directories",
			opts: WalkOptions{
				Exclude:      []string{"docs/**", "sub/deep/**"},
				MaxFileBytes: 1000,
			},
			want:        []string{"README.md", "generated/big.txt", "main.go", "sub/util.go"},
			wantSkipped: map[SkipReason]int{SkipBinary: 1},
		},
		{
			name:        "exclude wins over include",
			opts:        WalkOptions{Include: []string{"**/*.go"}, Exclude: []string{"sub/**"}},
			want:        []string{"main.go"},
			wantSkipped: map[SkipReason]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Walk(root, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, relPaths(res))
			assert.Equal(t, tt.wantSkipped, res.Skipped)
		})
	}
}

func TestWalk_AbsolutePaths(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n"})

	res, err := Walk(root, WalkOptions{})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.True(t, filepath.IsAbs(res.Files[0].Path))
	assert.Equal(t, int64(len("package a\n")), res.Files[0].Size)
}

func TestWalk_InvalidRoot(t *testing.T) {
	_, err := Walk("", WalkOptions{})
	assert.ErrorIs(t, err, ErrInvalidRoot)

	_, err = Walk(filepath.Join(t.TempDir(), "missing"), WalkOptions{})
	assert.ErrorIs(t, err, ErrInvalidRoot)

	file := filepath.Join(t.TempDir(), "file.go")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = Walk(file, WalkOptions{})
	assert.ErrorIs(t, err, ErrInvalidRoot)
}

func TestWalk_InvalidPattern(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n"})

	_, err := Walk(root, WalkOptions{Include: []string{"[unclosed"}})
	assert.ErrorContains(t, err, "invalid include pattern")

	_, err = Walk(root, WalkOptions{Exclude: []string{"[unclosed"}})
	assert.ErrorContains(t, err, "invalid exclude pattern")
}

func TestLanguage(t *testing.T) {
	for path, want := range map[string]string{
		"main.go":           "go",
		"web/App.TSX":       "typescript",
		"scripts/build.sh":  "shell",
		"Dockerfile":        "dockerfile",
		"deploy/Dockerfile": "dockerfile",
		"LICENSE":           "",
		"data.unknown":      "",
	} {
		assert.Equal(t, want, Language(path), path)
	}
}
