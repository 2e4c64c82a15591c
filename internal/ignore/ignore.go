// Package ignore turns gitignore-style files into doublestar exclude
// patterns for the indexer.
//
// Only the files at the index root are read. Negated patterns ("!keep.go")
// are not supported and are dropped.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultFiles are read when a Parser has no files configured.
var DefaultFiles = []string{".gitignore", ".codeindexignore"}

// Parser reads ignore files from a directory.
type Parser struct {
	Files []string
}

// NewParser returns a parser for files, or DefaultFiles when none are given.
func NewParser(files ...string) *Parser {
	if len(files) == 0 {
		files = DefaultFiles
	}
	return &Parser{Files: files}
}

// Patterns reads every configured file under root and returns the combined
// patterns without duplicates. Missing files are skipped.
func (p *Parser) Patterns(root string) ([]string, error) {
	var patterns []string
	for _, name := range p.Files {
		f, err := os.Open(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		filePatterns, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		patterns = append(patterns, filePatterns...)
	}
	return deduplicate(patterns), nil
}

// Parse converts each line of r. Lines that do not yield a valid pattern are
// ignored.
func Parse(r io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		for _, p := range translate(scanner.Text()) {
			if doublestar.ValidatePattern(p) {
				patterns = append(patterns, p)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// translate maps one gitignore line onto patterns relative to the root.
//
//	*.log         -> **/*.log, **/*.log/**
//	build/        -> **/build/**
//	/dist         -> dist, dist/**
//	docs/gen      -> docs/gen, docs/gen/**
func translate(line string) []string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return nil
	}
	line = strings.TrimPrefix(line, `\`)

	dirOnly := strings.HasSuffix(line, "/")
	line = strings.TrimSuffix(line, "/")

	// A slash anywhere but the end anchors the pattern to the root.
	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return nil
	}
	if !anchored && !strings.HasPrefix(line, "**/") {
		line = "**/" + line
	}

	if dirOnly {
		return []string{line + "/**"}
	}
	return []string{line, line + "/**"}
}

func deduplicate(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
