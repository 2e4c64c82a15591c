package indexer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxFileBytes applies when WalkOptions.MaxFileBytes is zero.
const DefaultMaxFileBytes int64 = 1 << 20

// sniffLen is how much of a file is checked for NUL bytes.
const sniffLen = 512

// skipDirs are pruned regardless of patterns. They hold VCS data,
// dependencies or build output.
var skipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
}

// WalkOptions filters the files Walk returns.
type WalkOptions struct {
	// Include keeps only matching files; empty keeps everything.
	Include []string
	// Exclude drops matching files and takes precedence over Include.
	Exclude      []string
	MaxFileBytes int64
}

// File is a candidate for indexing.
type File struct {
	Path    string
	RelPath string // slash-separated, relative to the walk root
	Size    int64
}

// SkipReason explains why Walk dropped a file.
type SkipReason string

const (
	SkipTooLarge SkipReason = "too_large"
	SkipBinary   SkipReason = "binary"
)

// WalkResult lists the files to index and counts the ones skipped.
type WalkResult struct {
	Files   []File
	Skipped map[SkipReason]int
}

// ErrInvalidRoot is returned when the root is missing or not a directory.
var ErrInvalidRoot = errors.New("invalid index root")

// Walk returns the indexable files under root in lexical order.
func Walk(root string, opts WalkOptions) (*WalkResult, error) {
	root, err := validateRoot(root)
	if err != nil {
		return nil, err
	}
	wf, err := newWalkFilter(opts)
	if err != nil {
		return nil, err
	}

	res := &WalkResult{Skipped: map[SkipReason]int{}}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if wf.pruneDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", rel, err)
		}
		f, reason, err := wf.admit(path, rel, info)
		if err != nil {
			return err
		}
		switch {
		case reason != "":
			res.Skipped[reason]++
		case f != nil:
			res.Files = append(res.Files, *f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return res, nil
}

// walkFilter applies WalkOptions to one path at a time, for Walk and for
// single files reported by the watcher.
type walkFilter struct {
	opts     WalkOptions
	maxBytes int64
}

func newWalkFilter(opts WalkOptions) (walkFilter, error) {
	if err := validatePatterns(opts.Include); err != nil {
		return walkFilter{}, fmt.Errorf("invalid include pattern: %w", err)
	}
	if err := validatePatterns(opts.Exclude); err != nil {
		return walkFilter{}, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	wf := walkFilter{opts: opts, maxBytes: opts.MaxFileBytes}
	if wf.maxBytes <= 0 {
		wf.maxBytes = DefaultMaxFileBytes
	}
	return wf, nil
}

// pruneDir reports whether the directory rel is skipped with everything
// below it. A directory is pruned when a file directly inside it would be
// excluded.
func (wf walkFilter) pruneDir(rel string) bool {
	return skipDirs[rel[strings.LastIndex(rel, "/")+1:]] || matchesAny(rel+"/_", wf.opts.Exclude)
}

// admit returns the File for a regular file, or the reason it was skipped.
// Both are empty when the patterns drop it.
func (wf walkFilter) admit(path, rel string, info fs.FileInfo) (*File, SkipReason, error) {
	if matchesAny(rel, wf.opts.Exclude) {
		return nil, "", nil
	}
	if len(wf.opts.Include) > 0 && !matchesAny(rel, wf.opts.Include) {
		return nil, "", nil
	}
	if info.Size() > wf.maxBytes {
		return nil, SkipTooLarge, nil
	}
	binary, err := looksBinary(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", rel, err)
	}
	if binary {
		return nil, SkipBinary, nil
	}
	return &File{Path: path, RelPath: rel, Size: info.Size()}, "", nil
}

// lookup applies the filter to the single file rel under root, including
// the directory pruning Walk would have done above it. It returns nil when
// the file is gone or not indexable.
func (wf walkFilter) lookup(root, rel string) (*File, error) {
	for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
		if wf.pruneDir(dir) {
			return nil, nil
		}
	}
	abs := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Lstat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}
	f, _, err := wf.admit(abs, rel, info)
	return f, err
}

func validateRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidRoot)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, abs)
	}
	return abs, nil
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return fmt.Errorf("%q", p)
		}
	}
	return nil
}

// matchesAny matches rel against each pattern, and against its base name so
// that "*.md" works without a leading "**/".
func matchesAny(rel string, patterns []string) bool {
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, p := range patterns {
		p = filepath.ToSlash(p)
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// looksBinary reports whether the first sniffLen bytes contain a NUL.
func looksBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}
