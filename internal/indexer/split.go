package indexer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Chunk is a window of consecutive lines. Lines are 1-based and inclusive.
type Chunk struct {
	Content       string
	StartLine     int
	EndLine       int
	FileExtension string
}

// LineSplitter cuts files into windows of ChunkLines lines, each starting
// ChunkLines-Overlap lines after the previous one.
type LineSplitter struct {
	ChunkLines int
	Overlap    int
}

// Validate rejects windows that would not advance.
func (s LineSplitter) Validate() error {
	if s.ChunkLines < 1 {
		return fmt.Errorf("chunk lines must be positive, got %d", s.ChunkLines)
	}
	if s.Overlap < 0 || s.Overlap >= s.ChunkLines {
		return fmt.Errorf("overlap must be in [0, %d), got %d", s.ChunkLines, s.Overlap)
	}
	return nil
}

// Split returns the non-blank windows of content. relPath only supplies the
// extension.
func (s LineSplitter) Split(content, relPath string) []Chunk {
	lines := strings.Split(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	ext := strings.ToLower(filepath.Ext(relPath))
	step := s.ChunkLines - s.Overlap

	var chunks []Chunk
	for start := 0; start < len(lines); start += step {
		end := min(start+s.ChunkLines, len(lines))
		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, Chunk{
				Content:       text,
				StartLine:     start + 1,
				EndLine:       end,
				FileExtension: ext,
			})
		}
		if end == len(lines) {
			break
		}
	}
	return chunks
}

// ChunkID identifies a chunk within a collection.
func ChunkID(relPath string, c Chunk) string {
	return fmt.Sprintf("%s:%d-%d", relPath, c.StartLine, c.EndLine)
}
