package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadAllowlists(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectAllowlistFile), `[allowlist]
paths = ['''testdata/.*''', '''docs/.*\.md''']
regexes = ['''DEMO_API_KEY''']
`)
	user := filepath.Join(t.TempDir(), "allowlist.toml")
	writeFile(t, user, `[allowlist]
regexes = ['''EXAMPLE_SECRET_.*''']
`)

	list, err := LoadAllowlists(root, user)
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}
	if len(list.Paths) != 2 {
		t.Errorf("got %d paths, want 2", len(list.Paths))
	}
	if len(list.Regexes) != 2 || list.Regexes[1] != "EXAMPLE_SECRET_.*" {
		t.Errorf("Regexes = %q, want project then user entries", list.Regexes)
	}
}

func TestLoadAllowlists_Missing(t *testing.T) {
	list, err := LoadAllowlists(t.TempDir(), filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}
	if len(list.Paths) != 0 || len(list.Regexes) != 0 {
		t.Errorf("LoadAllowlists() = %+v, want empty", list)
	}
}

func TestLoadAllowlists_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"bad toml", "[allowlist\npaths = 1", ErrInvalidTOML},
		{"bad path regex", "[allowlist]\npaths = ['''([a-z''']\n", ErrInvalidRegex},
		{"bad content regex", "[allowlist]\nregexes = ['''*oops''']\n", ErrInvalidRegex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, filepath.Join(root, ProjectAllowlistFile), tt.content)
			_, err := LoadAllowlists(root, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadAllowlists() error = %v, want %v", err, tt.want)
			}
		})
	}
}
