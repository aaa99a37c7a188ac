// internal/app/system/workers/maintenance.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/fermehub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Maintainer runs one full maintenance pass (status healing and occupancy
// sweeps across every farm).
type Maintainer interface {
	MaintainAll(ctx context.Context) error
}

// Maintenance is a background worker that runs a Maintainer on an interval.
type Maintenance struct {
	target   Maintainer
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup

	// passes counts completed passes.
	mu     sync.Mutex
	passes int
}

// NewMaintenance creates the worker. interval must be positive.
func NewMaintenance(target Maintainer, logger *zap.Logger, interval time.Duration) *Maintenance {
	return &Maintenance{
		target:   target,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a first pass right away, then one per interval.
func (w *Maintenance) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("maintenance worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for the running pass to finish.
func (w *Maintenance) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("maintenance worker stopped")
}

// Passes reports how many passes have completed.
func (w *Maintenance) Passes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.passes
}

func (w *Maintenance) run() {
	defer w.wg.Done()

	w.pass()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.pass()
		}
	}
}

func (w *Maintenance) pass() {
	ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Bulk(), w.log, "maintenance pass")
	defer cancel()

	start := time.Now()
	if err := w.target.MaintainAll(ctx); err != nil {
		w.log.Error("maintenance pass failed", zap.Error(err))
	} else {
		w.log.Debug("maintenance pass done", zap.Duration("took", time.Since(start)))
	}

	w.mu.Lock()
	w.passes++
	w.mu.Unlock()
}
