package vectorstore

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// denseNames remembers which dense vector each Qdrant collection is searched
// by: AnnsFieldDense for hybrid collections, "" for the unnamed vector of
// plain ones. The zero value is ready to use.
type denseNames struct {
	mu    sync.Mutex
	names map[string]string
}

// namedDenseLookup reports whether collection stores its dense vector under
// AnnsFieldDense.
type namedDenseLookup func(ctx context.Context, collection string) (bool, error)

// resolve returns the vector name to search collection with. When the layout
// cannot be read, requested is used and nothing is remembered.
func (d *denseNames) resolve(ctx context.Context, collection, requested string, lookup namedDenseLookup, logger *zap.Logger) string {
	d.mu.Lock()
	name, ok := d.names[collection]
	d.mu.Unlock()
	if ok {
		return name
	}

	named, err := lookup(ctx, collection)
	if err != nil {
		logger.Debug("collection vector layout unavailable",
			zap.String("collection", collection),
			zap.String("vector", requested),
			zap.Error(err))
		return requested
	}
	if named {
		name = AnnsFieldDense
	}

	d.mu.Lock()
	if d.names == nil {
		d.names = map[string]string{}
	}
	d.names[collection] = name
	d.mu.Unlock()
	return name
}

func (d *denseNames) forget(collection string) {
	d.mu.Lock()
	delete(d.names, collection)
	d.mu.Unlock()
}
