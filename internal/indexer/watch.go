package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

// DefaultDebounce is how long Watch waits after the last change before it
// re-indexes.
const DefaultDebounce = 500 * time.Millisecond

// removeBatch bounds how many chunk IDs are fetched per delete round.
const removeBatch = 500

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// WatchOptions configures Watch.
type WatchOptions struct {
	Debounce time.Duration

	// OnSync, when set, is called after every batch of changes is applied.
	OnSync func(SyncResult)
}

// SyncResult reports one batch of changed paths.
type SyncResult struct {
	Paths []string
	// Removed counts chunks deleted before the paths were indexed again.
	Removed int
	Stats   Stats
	Err     error
}

// Watch keeps collection in step with root until ctx is done. Changed files
// have their chunks deleted and are indexed again, so a file that shrank
// leaves no stale windows behind and a deleted file disappears.
//
// Watch does not run an initial Index; callers that need a full pass do it
// first.
func (ix *Indexer) Watch(ctx context.Context, root, collection string, hybrid bool, opts WatchOptions) error {
	r, err := ix.prepare(ctx, root, collection, hybrid)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer watcher.Close()

	if _, err := r.watchTree(watcher, r.root); err != nil {
		return err
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ix.logger.Info("watching for changes",
		zap.String("root", r.root),
		zap.String("collection", collection))

	pending := map[string]struct{}{}
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			for _, rel := range r.changed(watcher, event) {
				pending[rel] = struct{}{}
			}
			if len(pending) > 0 {
				fire = time.After(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ix.logger.Warn("filesystem watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for rel := range pending {
				paths = append(paths, rel)
			}
			clear(pending)
			slices.Sort(paths)

			res := r.sync(ctx, paths)
			if res.Err != nil {
				ix.logger.Error("re-index failed", zap.Strings("paths", paths), zap.Error(res.Err))
			} else {
				ix.logger.Info("re-indexed changes",
					zap.Int("paths", len(paths)),
					zap.Int("removed", res.Removed),
					zap.Int("chunks", res.Stats.Chunks),
					zap.Int("redacted", res.Stats.Redacted))
			}
			if opts.OnSync != nil {
				opts.OnSync(res)
			}
		}
	}
}

// changed maps a filesystem event to the root-relative paths that need
// re-indexing. New directories are added to the watcher and their files
// reported, since they may have been populated before the watch took hold.
func (r *run) changed(w *fsnotify.Watcher, event fsnotify.Event) []string {
	if event.Op == fsnotify.Chmod {
		return nil
	}
	rel, err := filepath.Rel(r.root, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	rel = filepath.ToSlash(rel)
	for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
		if skipDirs[path.Base(dir)] {
			return nil
		}
	}
	if event.Has(fsnotify.Create) {
		if files, err := r.watchTree(w, event.Name); err == nil && files != nil {
			return files
		}
	}
	return []string{rel}
}

// watchTree adds dir and its unpruned subdirectories to w. It returns the
// regular files found, or nil when dir is not a directory.
func (r *run) watchTree(w *fsnotify.Watcher, dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil
	}
	wf, err := r.filter()
	if err != nil {
		return nil, err
	}
	files := []string{}
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !d.IsDir() {
			if d.Type().IsRegular() {
				files = append(files, rel)
			}
			return nil
		}
		if rel != "." && wf.pruneDir(rel) {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *run) filter() (walkFilter, error) {
	return newWalkFilter(WalkOptions{
		Include:      r.ix.opts.Include,
		Exclude:      r.exclude,
		MaxFileBytes: r.ix.opts.MaxFileBytes,
	})
}

// sync deletes the chunks of each path and indexes the ones that still pass
// the filters. A failed sync drops its queued chunks; the next change to the
// same file retries it.
func (r *run) sync(ctx context.Context, paths []string) (res SyncResult) {
	res.Paths = paths
	defer func() {
		if res.Err != nil {
			r.writer.pending = r.writer.pending[:0]
		}
	}()
	for _, rel := range paths {
		if slices.Contains(r.ix.opts.IgnoreFiles, rel) {
			if res.Err = r.loadExclude(); res.Err != nil {
				return res
			}
			break
		}
	}
	r.detectRepo()
	res.Stats.Repo = r.repo

	wf, err := r.filter()
	if err != nil {
		res.Err = err
		return res
	}
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		n, err := r.removeChunks(ctx, rel)
		res.Removed += n
		if err != nil {
			res.Err = fmt.Errorf("remove %s: %w", rel, err)
			return res
		}
		f, err := wf.lookup(r.root, rel)
		if err != nil {
			res.Err = err
			return res
		}
		if f == nil {
			continue
		}
		if err := r.indexFile(ctx, *f, &res.Stats); err != nil {
			res.Err = err
			return res
		}
	}
	res.Err = r.writer.flush(ctx)
	return res
}

// removeChunks deletes every chunk stored for rel.
func (r *run) removeChunks(ctx context.Context, rel string) (int, error) {
	filter, ok := vectorstore.EqualityFilter("relativePath", rel)
	if !ok {
		r.ix.logger.Warn("cannot filter on path, stale chunks kept", zap.String("path", rel))
		return 0, nil
	}
	store, collection := r.ix.store, r.writer.collection

	removed := 0
	for {
		rows, err := store.Query(ctx, collection, filter, []string{"relativePath"}, removeBatch)
		if err != nil {
			return removed, err
		}
		var ids []string
		for _, row := range rows {
			id, _ := row["id"].(string)
			if p, _ := row["relativePath"].(string); p == rel && id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return removed, nil
		}
		if err := store.Delete(ctx, collection, ids); err != nil {
			return removed, err
		}
		removed += len(ids)
		if len(rows) < removeBatch {
			return removed, nil
		}
	}
}
