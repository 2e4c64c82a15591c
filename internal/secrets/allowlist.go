package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// ProjectAllowlistFile is read from the root of an indexed tree. It uses the
// gitleaks [allowlist] layout so an existing file keeps working.
const ProjectAllowlistFile = ".gitleaks.toml"

// Allowlist holds regular expressions for paths and matches that are not
// treated as secrets.
type Allowlist struct {
	Paths   []string
	Regexes []string
}

// LoadAllowlists merges root/.gitleaks.toml with the file at userPath.
// Either may be empty or missing.
func LoadAllowlists(root, userPath string) (*Allowlist, error) {
	merged := &Allowlist{}
	var files []string
	if root != "" {
		files = append(files, filepath.Join(root, ProjectAllowlistFile))
	}
	if userPath != "" {
		files = append(files, userPath)
	}
	for _, path := range files {
		list, err := loadTOML(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		merged.Paths = append(merged.Paths, list.Paths...)
		merged.Regexes = append(merged.Regexes, list.Regexes...)
	}
	return merged, nil
}

func loadTOML(path string) (*Allowlist, error) {
	var file struct {
		Allowlist struct {
			Paths   []string `toml:"paths"`
			Regexes []string `toml:"regexes"`
		} `toml:"allowlist"`
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	list := &Allowlist{Paths: file.Allowlist.Paths, Regexes: file.Allowlist.Regexes}
	if _, err := compileAll(list.Paths); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := compileAll(list.Regexes); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidRegex, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
