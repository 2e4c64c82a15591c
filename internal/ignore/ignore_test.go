package ignore

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"# comment", nil},
		{"!keep.go", nil},
		{"/", nil},
		{"*.log", []string{"**/*.log", "**/*.log/**"}},
		{"node_modules/", []string{"**/node_modules/**"}},
		{"build", []string{"**/build", "**/build/**"}},
		{"/dist", []string{"dist", "dist/**"}},
		{"docs/gen", []string{"docs/gen", "docs/gen/**"}},
		{"docs/gen/", []string{"docs/gen/**"}},
		{"**/tmp", []string{"**/tmp", "**/tmp/**"}},
		{`\#notes`, []string{"**/#notes", "**/#notes/**"}},
		{"trailing.txt  ", []string{"**/trailing.txt", "**/trailing.txt/**"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := translate(tt.line); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("translate(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestParse_DropsInvalidPatterns(t *testing.T) {
	got, err := Parse(strings.NewReader("[unclosed\n*.tmp\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []string{"**/*.tmp", "**/*.tmp/**"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %q, want %q", got, want)
	}
}

func TestParser_Patterns(t *testing.T) {
	root := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(".gitignore", "# build output\ndist/\n*.pyc\n")
	write(".codeindexignore", "dist/\ngenerated/\n")

	got, err := NewParser().Patterns(root)
	if err != nil {
		t.Fatalf("Patterns() error = %v", err)
	}
	want := []string{"**/dist/**", "**/*.pyc", "**/*.pyc/**", "**/generated/**"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Patterns() = %q, want %q", got, want)
	}
}

func TestParser_PatternsMissingFiles(t *testing.T) {
	got, err := NewParser(".gitignore", ".dockerignore").Patterns(t.TempDir())
	if err != nil {
		t.Fatalf("Patterns() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Patterns() = %q, want none", got)
	}
}

func TestDeduplicate(t *testing.T) {
	got := deduplicate([]string{"a", "b", "a", "c", "b"})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("deduplicate() = %q, want %q", got, want)
	}
}
