package vectorstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// chromem keeps each collection in a directory named by a hash prefix of the
// collection name, with the collection metadata in 00000000.gob and one file
// per document.
const chromemMetadataName = "00000000"

var chromemCollectionDir = regexp.MustCompile(`^[a-f0-9]{8}$`)

var chromemQuarantinedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "codeindex",
	Subsystem: "vectorstore",
	Name:      "chromem_quarantined_collections_total",
	Help:      "Persisted chromem collections moved aside because their metadata file was missing.",
})

// ChromemDirHealth classifies the collection directories under a chromem
// persistence path.
type ChromemDirHealth struct {
	Healthy []string `json:"healthy"`
	// Corrupt collections have documents but no metadata file; chromem
	// refuses to open a database containing one.
	Corrupt []string `json:"corrupt"`
	Empty   []string `json:"empty"`
}

// IsHealthy reports whether no collection is corrupt.
func (h *ChromemDirHealth) IsHealthy() bool {
	return len(h.Corrupt) == 0
}

// CheckChromemDir scans path without modifying it. A missing path is healthy.
func CheckChromemDir(path string) (*ChromemDirHealth, error) {
	health := &ChromemDirHealth{}
	entries, err := os.ReadDir(path)
	if errors.Is(err, os.ErrNotExist) {
		return health, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chromem directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || !chromemCollectionDir.MatchString(entry.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(path, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading collection %s: %w", entry.Name(), err)
		}
		hasMetadata, documents := false, 0
		for _, f := range files {
			if f.IsDir() || !strings.Contains(f.Name(), ".gob") {
				continue
			}
			if strings.HasPrefix(f.Name(), chromemMetadataName+".") {
				hasMetadata = true
			} else {
				documents++
			}
		}
		switch {
		case hasMetadata:
			health.Healthy = append(health.Healthy, entry.Name())
		case documents > 0:
			health.Corrupt = append(health.Corrupt, entry.Name())
		default:
			health.Empty = append(health.Empty, entry.Name())
		}
	}
	return health, nil
}

// quarantineChromemDir moves every collection directory without metadata to
// a sibling "<path>.quarantine" directory so the database can still open.
// It returns the moved directory names.
func quarantineChromemDir(path string, logger *zap.Logger) ([]string, error) {
	health, err := CheckChromemDir(path)
	if err != nil {
		return nil, err
	}
	broken := append(health.Corrupt, health.Empty...)
	if len(broken) == 0 {
		return nil, nil
	}

	quarantine := path + ".quarantine"
	if err := os.MkdirAll(quarantine, 0o700); err != nil {
		return nil, fmt.Errorf("creating quarantine directory: %w", err)
	}
	var moved []string
	for _, name := range broken {
		src := filepath.Join(path, name)
		dst := filepath.Join(quarantine, name)
		if _, err := os.Stat(dst); err == nil {
			dst = fmt.Sprintf("%s.%d", dst, os.Getpid())
		}
		if err := os.Rename(src, dst); err != nil {
			return moved, fmt.Errorf("quarantining collection %s: %w", name, err)
		}
		logger.Warn("quarantined chromem collection without metadata",
			zap.String("collection_dir", name),
			zap.String("moved_to", dst))
		chromemQuarantinedTotal.Inc()
		moved = append(moved, name)
	}
	return moved, nil
}
