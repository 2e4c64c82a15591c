package indexer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindex/internal/config"
	"github.com/fyrsmithlabs/codeindex/internal/embeddings"
	"github.com/fyrsmithlabs/codeindex/internal/ignore"
	"github.com/fyrsmithlabs/codeindex/internal/secrets"
	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

// DefaultEmbedBatchSize is the number of chunks embedded and written together.
const DefaultEmbedBatchSize = 64

// Options configures an Indexer.
type Options struct {
	Include      []string
	Exclude      []string
	ChunkLines   int
	ChunkOverlap int
	MaxFileBytes int64

	// IgnoreFiles are gitignore-style files read from the root; their
	// patterns extend Exclude.
	IgnoreFiles []string

	// RedactSecrets replaces credentials found by gitleaks with markers
	// before chunks are embedded. SecretsAllowlist names an extra allowlist
	// file merged with the root's .gitleaks.toml.
	RedactSecrets    bool
	SecretsAllowlist string

	// EmbedBatchSize bounds how many chunks are held before embedding.
	EmbedBatchSize int

	// Progress receives a progress bar when non-nil.
	Progress io.Writer
}

// OptionsFromConfig maps the indexer section of the config file.
func OptionsFromConfig(cfg config.IndexerConfig) Options {
	return Options{
		Include:      cfg.Include,
		Exclude:      cfg.Exclude,
		ChunkLines:   cfg.ChunkLines,
		ChunkOverlap: cfg.ChunkOverlap,
		MaxFileBytes: cfg.MaxFileBytes,
		IgnoreFiles:  cfg.IgnoreFiles,

		RedactSecrets:    cfg.RedactSecrets,
		SecretsAllowlist: cfg.SecretsAllowlist,
	}
}

// Stats summarizes an Index run.
type Stats struct {
	Files   int `json:"files"`
	Chunks  int `json:"chunks"`
	Skipped int `json:"skipped"`

	// Redacted counts secrets replaced across all files.
	Redacted int `json:"redacted"`
	// Repo is set when root is inside a git checkout; its commit and branch
	// are stored in every chunk's metadata.
	Repo *RepoInfo `json:"repo,omitempty"`
}

// secretScanner is satisfied by *secrets.Redactor.
type secretScanner interface {
	Scan(relPath, content string) []secrets.Finding
}

// Indexer turns a source tree into vector documents.
type Indexer struct {
	store    vectorstore.VectorDatabase
	embedder embeddings.Provider
	splitter LineSplitter
	opts     Options
	logger   *zap.Logger

	newScanner func(root string) (secretScanner, error)
}

// New validates opts and returns an Indexer writing to store.
func New(store vectorstore.VectorDatabase, embedder embeddings.Provider, opts Options, logger *zap.Logger) (*Indexer, error) {
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if embedder == nil {
		return nil, errors.New("embedding provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	splitter := LineSplitter{ChunkLines: opts.ChunkLines, Overlap: opts.ChunkOverlap}
	if err := splitter.Validate(); err != nil {
		return nil, err
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = DefaultEmbedBatchSize
	}
	ix := &Indexer{
		store:    store,
		embedder: embedder,
		splitter: splitter,
		opts:     opts,
		logger:   logger,
	}
	ix.newScanner = ix.loadRedactor
	return ix, nil
}

// loadRedactor builds the gitleaks redactor with the allowlists for root.
func (ix *Indexer) loadRedactor(root string) (secretScanner, error) {
	allow, err := secrets.LoadAllowlists(root, ix.opts.SecretsAllowlist)
	if err != nil {
		return nil, err
	}
	return secrets.NewRedactor(allow)
}

// Index walks root, chunks every eligible file and writes the chunks to
// collection, creating it first if needed. Re-indexing overwrites chunks
// with the same path and line range.
func (ix *Indexer) Index(ctx context.Context, root, collection string, hybrid bool) (Stats, error) {
	var stats Stats

	r, err := ix.prepare(ctx, root, collection, hybrid)
	if err != nil {
		return stats, err
	}
	walked, err := r.walk()
	if err != nil {
		return stats, err
	}
	for _, n := range walked.Skipped {
		stats.Skipped += n
	}
	stats.Repo = r.repo

	ix.logger.Info("indexing started",
		zap.String("root", r.root),
		zap.String("collection", collection),
		zap.Bool("hybrid", hybrid),
		zap.Int("files", len(walked.Files)))

	bar := ix.newProgressBar(len(walked.Files))
	for _, f := range walked.Files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := r.indexFile(ctx, f, &stats); err != nil {
			return stats, err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if err := r.writer.flush(ctx); err != nil {
		return stats, err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	ix.logger.Info("indexing finished",
		zap.String("collection", collection),
		zap.Int("files", stats.Files),
		zap.Int("chunks", stats.Chunks),
		zap.Int("skipped", stats.Skipped),
		zap.Int("redacted", stats.Redacted))
	return stats, nil
}

// run holds what one root needs across Index and every Watch sync.
type run struct {
	ix      *Indexer
	root    string
	exclude []string
	scanner secretScanner
	repo    *RepoInfo
	writer  *batchWriter
}

// prepare resolves root, loads its ignore files and secret rules, and makes
// sure collection exists.
func (ix *Indexer) prepare(ctx context.Context, root, collection string, hybrid bool) (*run, error) {
	absRoot, err := validateRoot(root)
	if err != nil {
		return nil, err
	}
	r := &run{
		ix:     ix,
		root:   absRoot,
		writer: &batchWriter{ix: ix, collection: collection, hybrid: hybrid},
	}
	if err := r.loadExclude(); err != nil {
		return nil, err
	}
	if ix.opts.RedactSecrets {
		if r.scanner, err = ix.newScanner(absRoot); err != nil {
			return nil, fmt.Errorf("load secret rules: %w", err)
		}
	}
	r.detectRepo()

	if err := ix.ensureCollection(ctx, collection, hybrid); err != nil {
		return nil, err
	}
	return r, nil
}

// loadExclude combines the configured excludes with the patterns of the
// root's ignore files.
func (r *run) loadExclude() error {
	r.exclude = r.ix.opts.Exclude
	if len(r.ix.opts.IgnoreFiles) == 0 {
		return nil
	}
	ignored, err := ignore.NewParser(r.ix.opts.IgnoreFiles...).Patterns(r.root)
	if err != nil {
		return err
	}
	r.exclude = append(append([]string(nil), r.exclude...), ignored...)
	return nil
}

func (r *run) detectRepo() {
	r.repo = nil
	if info, ok := DetectRepo(r.root); ok {
		r.repo = &info
	}
}

func (r *run) walk() (*WalkResult, error) {
	return Walk(r.root, WalkOptions{
		Include:      r.ix.opts.Include,
		Exclude:      r.exclude,
		MaxFileBytes: r.ix.opts.MaxFileBytes,
	})
}

// indexFile queues the chunks of f and adds them to stats.
func (r *run) indexFile(ctx context.Context, f File, stats *Stats) error {
	n, redacted, err := r.ix.indexFile(ctx, f, r.writer, r.scanner, r.repo)
	if err != nil {
		return fmt.Errorf("index %s: %w", f.RelPath, err)
	}
	stats.Redacted += redacted
	if n > 0 {
		stats.Files++
		stats.Chunks += n
	} else {
		stats.Skipped++
	}
	return nil
}

func (ix *Indexer) ensureCollection(ctx context.Context, collection string, hybrid bool) error {
	dim := ix.embedder.Dimension()
	var err error
	if hybrid {
		err = ix.store.CreateHybridCollection(ctx, collection, dim)
	} else {
		err = ix.store.CreateCollection(ctx, collection, dim)
	}
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", collection, err)
	}
	return nil
}

// indexFile queues the chunks of f and returns how many it produced and how
// many secrets were redacted from them. Files that are not valid UTF-8
// produce none.
func (ix *Indexer) indexFile(ctx context.Context, f File, w *batchWriter, scanner secretScanner, repo *RepoInfo) (int, int, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, 0, err
	}
	if !utf8.Valid(content) {
		ix.logger.Debug("skipping non-utf8 file", zap.String("path", f.RelPath))
		return 0, 0, nil
	}

	relPath := filepath.ToSlash(f.RelPath)
	text := string(content)
	var findings []secrets.Finding
	if scanner != nil {
		// Scan the whole file so secrets spanning a chunk boundary are found.
		findings = scanner.Scan(relPath, text)
		if len(findings) > 0 {
			ix.logger.Warn("redacting secrets",
				zap.String("path", relPath),
				zap.Any("rules", secrets.RuleCounts(findings)))
		}
	}

	lang := Language(relPath)
	chunks := ix.splitter.Split(text, relPath)
	for _, c := range chunks {
		doc := vectorstore.VectorDocument{
			ID:            ChunkID(relPath, c),
			Content:       secrets.Apply(c.Content, findings),
			RelativePath:  relPath,
			StartLine:     c.StartLine,
			EndLine:       c.EndLine,
			FileExtension: c.FileExtension,
			Metadata:      repo.metadata(lang),
		}
		if err := w.add(ctx, doc); err != nil {
			return 0, 0, err
		}
	}
	return len(chunks), len(findings), nil
}

func (ix *Indexer) newProgressBar(total int) *progressbar.ProgressBar {
	if ix.opts.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ix.opts.Progress),
		progressbar.OptionSetDescription("Indexing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// batchWriter embeds and writes documents in groups of EmbedBatchSize.
type batchWriter struct {
	ix         *Indexer
	collection string
	hybrid     bool
	pending    []vectorstore.VectorDocument
}

func (w *batchWriter) add(ctx context.Context, doc vectorstore.VectorDocument) error {
	w.pending = append(w.pending, doc)
	if len(w.pending) < w.ix.opts.EmbedBatchSize {
		return nil
	}
	return w.flush(ctx)
}

func (w *batchWriter) flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	texts := make([]string, len(w.pending))
	for i, doc := range w.pending {
		texts[i] = doc.Content
	}
	vectors, err := w.ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(w.pending) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(w.pending))
	}
	for i := range w.pending {
		w.pending[i].Vector = vectors[i]
	}

	if w.hybrid {
		err = w.ix.store.InsertHybrid(ctx, w.collection, w.pending)
	} else {
		err = w.ix.store.Insert(ctx, w.collection, w.pending)
	}
	if err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	w.ix.logger.Debug("chunks written",
		zap.String("collection", w.collection),
		zap.Int("count", len(w.pending)))
	w.pending = w.pending[:0]
	return nil
}

// CollectionName derives a stable collection name from the absolute path of
// root, so each codebase gets its own collection.
func CollectionName(root string, hybrid bool) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	sum := md5.Sum([]byte(abs))
	prefix := "code_chunks_"
	if hybrid {
		prefix = "hybrid_code_chunks_"
	}
	return prefix + hex.EncodeToString(sum[:])[:8], nil
}
