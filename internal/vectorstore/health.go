package vectorstore

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var storeHealthy = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "codeindex",
	Subsystem: "vectorstore",
	Name:      "healthy",
	Help:      "1 when the last vector database health check succeeded, 0 otherwise.",
})

// HealthChecker reports whether a backend is reachable.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// PingChecker probes a VectorDatabase by listing its collections.
type PingChecker struct {
	db      VectorDatabase
	timeout time.Duration
	logger  *zap.Logger
}

// NewPingChecker returns a checker that fails when ListCollections takes
// longer than timeout or returns an error.
func NewPingChecker(db VectorDatabase, timeout time.Duration, logger *zap.Logger) *PingChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PingChecker{db: db, timeout: timeout, logger: logger}
}

// IsHealthy implements HealthChecker.
func (p *PingChecker) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := p.db.ListCollections(ctx); err != nil {
		p.logger.Debug("vector database health check failed", zap.Error(err))
		return false
	}
	return true
}

// HealthMonitor polls a HealthChecker and notifies callbacks when the result
// changes.
type HealthMonitor struct {
	checker   HealthChecker
	interval  time.Duration
	healthy   atomic.Bool
	lastCheck atomic.Value // time.Time
	mu        sync.RWMutex
	callbacks []func(bool)
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *zap.Logger
}

// NewHealthMonitor creates a stopped monitor. It reports healthy until the
// first check runs.
func NewHealthMonitor(checker HealthChecker, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	hm := &HealthMonitor{checker: checker, interval: interval, logger: logger}
	hm.healthy.Store(true)
	return hm
}

// Start checks once synchronously, then keeps polling until Stop or ctx ends.
func (hm *HealthMonitor) Start(ctx context.Context) {
	ctx, hm.cancel = context.WithCancel(ctx)
	hm.done = make(chan struct{})
	hm.update(hm.checker.IsHealthy(ctx))

	go func() {
		defer close(hm.done)
		ticker := time.NewTicker(hm.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hm.update(hm.checker.IsHealthy(ctx))
			}
		}
	}()
}

func (hm *HealthMonitor) update(healthy bool) {
	previous := hm.healthy.Swap(healthy)
	hm.lastCheck.Store(time.Now())
	if healthy {
		storeHealthy.Set(1)
	} else {
		storeHealthy.Set(0)
	}
	if previous == healthy {
		return
	}
	hm.logger.Info("vector database health changed",
		zap.Bool("healthy", healthy),
		zap.Bool("previous", previous))

	hm.mu.RLock()
	callbacks := slices.Clone(hm.callbacks)
	hm.mu.RUnlock()
	for _, cb := range callbacks {
		hm.notify(cb, healthy)
	}
}

// notify runs cb without letting a panic escape the polling loop.
func (hm *HealthMonitor) notify(cb func(bool), healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			hm.logger.Error("health callback panic", zap.Any("panic", r))
		}
	}()
	cb(healthy)
}

// IsHealthy returns the result of the latest check.
func (hm *HealthMonitor) IsHealthy() bool {
	return hm.healthy.Load()
}

// LastCheck returns when the latest check ran, or the zero time.
func (hm *HealthMonitor) LastCheck() time.Time {
	t, _ := hm.lastCheck.Load().(time.Time)
	return t
}

// RegisterCallback adds cb, called synchronously on every health change.
func (hm *HealthMonitor) RegisterCallback(cb func(bool)) error {
	if cb == nil {
		return errors.New("health: callback cannot be nil")
	}
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.callbacks = append(hm.callbacks, cb)
	return nil
}

// Stop ends polling and waits for the loop to exit.
func (hm *HealthMonitor) Stop() {
	if hm.cancel == nil {
		return
	}
	hm.cancel()
	<-hm.done
}
