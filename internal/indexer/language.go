package indexer

import (
	"path/filepath"
	"strings"
)

var extensionLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyi":   "python",
	".ts":    "typescript",
	".tsx":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".java":  "java",
	".kt":    "kotlin",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".proto": "protobuf",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".tf":    "terraform",
	".html":  "html",
	".css":   "css",
}

var filenameLanguages = map[string]string{
	"Dockerfile": "dockerfile",
	"Makefile":   "makefile",
	"go.mod":     "go-module",
}

// Language names the language of relPath, or "" when unknown.
func Language(relPath string) string {
	base := filepath.Base(relPath)
	if lang, ok := filenameLanguages[base]; ok {
		return lang
	}
	return extensionLanguages[strings.ToLower(filepath.Ext(base))]
}
