// Package lifecycle orchestrates worker lifecycle transitions:
//
//	new → active                 CreateWorker
//	active → active              EditWorker
//	active → inactive            EditWorker with an exit date
//	inactive → active            ReactivateWorker, TransferWorker
//	active/inactive → deleted    DeleteWorker, BulkDeleteWorkers
//
// Each operation classifies identity first, then decides the new worker
// state, then reconciles rooms, and commits the worker, its rooms and the
// farm counters in one unit of work. Notifications are built from the
// committed state and delivered after the commit.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/conflict"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/notify"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/occupancy"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/app/system/auditlog"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SystemActor is recorded as the author of changes made by maintenance passes.
const SystemActor = "system"

// Notifier delivers notifications. Delivery happens after the commit and its
// failures are logged, never returned to the caller.
type Notifier interface {
	Notify(ctx context.Context, notes []models.Notification) error
}

// Config tunes the service. Zero values pick the package defaults.
type Config struct {
	RoomRetryLimit      int
	SimilarityThreshold float64
	BaseURL             string
}

// Service is the worker lifecycle orchestrator.
type Service struct {
	repo     storage.Repository
	rooms    *occupancy.Synchronizer
	resolver *conflict.Resolver
	notes    notify.Builder
	notifier Notifier
	audit    *auditlog.Logger
	log      *zap.Logger
	now      func() time.Time
}

// New creates a Service. notifier and audit may be nil.
func New(repo storage.Repository, notifier Notifier, audit *auditlog.Logger, logger *zap.Logger, cfg Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := cfg.RoomRetryLimit
	if retries <= 0 {
		retries = occupancy.DefaultRetryLimit
	}
	return &Service{
		repo:     repo,
		rooms:    occupancy.New(logger, retries),
		resolver: conflict.New(logger, cfg.SimilarityThreshold),
		notes:    notify.NewBuilder(cfg.BaseURL),
		notifier: notifier,
		audit:    audit,
		log:      logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Tests use it to pin "today".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.rooms.WithClock(now)
	return s
}

func (s *Service) today() time.Time { return models.DayOf(s.now()) }

// GetWorker returns one worker.
func (s *Service) GetWorker(ctx context.Context, id primitive.ObjectID) (models.Worker, error) {
	return getWorker(ctx, s.repo, id)
}

// ListWorkers returns a farm's workers, optionally filtered by status.
func (s *Service) ListWorkers(ctx context.Context, farmID primitive.ObjectID, status string) ([]models.Worker, error) {
	if _, err := getFarm(ctx, s.repo, farmID); err != nil {
		return nil, err
	}
	switch status {
	case "", models.StatusActive, models.StatusInactive:
	default:
		return nil, invalid("unknown status %q", status)
	}
	return s.repo.ListWorkersByFarm(ctx, farmID, status)
}

// deliver hands committed notifications to the notifier.
func (s *Service) deliver(ctx context.Context, notes []models.Notification) {
	if s.notifier == nil || len(notes) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, notes); err != nil {
		s.log.Error("notification delivery failed",
			zap.String("type", notes[0].Type),
			zap.String("correlation_id", notes[0].CorrelationID),
			zap.Int("count", len(notes)),
			zap.Error(err))
	}
}

// recount stores the farm's active worker count.
func (s *Service) recount(ctx context.Context, tx storage.Tx, farmID primitive.ObjectID) error {
	n, err := tx.CountActiveWorkers(ctx, farmID)
	if err != nil {
		return fmt.Errorf("count active workers: %w", err)
	}
	if err := tx.SetActiveWorkerCount(ctx, farmID, n); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("active worker count not stored: farm missing", zap.String("farm_id", farmID.Hex()))
			return nil
		}
		return fmt.Errorf("store active worker count: %w", err)
	}
	return nil
}

// returnAllItems returns every outstanding allocation of w and touches the
// stock items involved.
func (s *Service) returnAllItems(ctx context.Context, stock storage.Stock, w *models.Worker, at time.Time) (int, error) {
	n := 0
	for i := range w.AllocatedItems {
		a := &w.AllocatedItems[i]
		if !a.Return(at) {
			continue
		}
		n++
		if a.StockItemID.IsZero() {
			continue
		}
		if err := stock.TouchStockItem(ctx, a.StockItemID, at); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.log.Warn("returned item has no stock record",
					zap.String("worker_id", w.ID.Hex()),
					zap.String("stock_item_id", a.StockItemID.Hex()))
				continue
			}
			return n, fmt.Errorf("touch stock item: %w", err)
		}
	}
	return n, nil
}

func sectorFor(farm models.Farm, room string) string {
	if room == "" {
		return farm.Name
	}
	return fmt.Sprintf("%s · Chambre %s", farm.Name, room)
}

type workerGetter interface {
	GetWorker(ctx context.Context, id primitive.ObjectID) (models.Worker, error)
}

type farmGetter interface {
	GetFarm(ctx context.Context, id primitive.ObjectID) (models.Farm, error)
}

func getWorker(ctx context.Context, g workerGetter, id primitive.ObjectID) (models.Worker, error) {
	w, err := g.GetWorker(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Worker{}, fmt.Errorf("%w: worker %s", ErrNotFound, id.Hex())
	}
	if err != nil {
		return models.Worker{}, fmt.Errorf("load worker: %w", err)
	}
	return w, nil
}

func getFarm(ctx context.Context, g farmGetter, id primitive.ObjectID) (models.Farm, error) {
	if id.IsZero() {
		return models.Farm{}, invalid("farm id is required")
	}
	f, err := g.GetFarm(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Farm{}, fmt.Errorf("%w: farm %s", ErrNotFound, id.Hex())
	}
	if err != nil {
		return models.Farm{}, fmt.Errorf("load farm: %w", err)
	}
	return f, nil
}

// recheck repeats the national ID classification against tx, so a record
// committed after the first check still blocks. With activeOnly set, only a
// match that is currently active blocks.
func (s *Service) recheck(ctx context.Context, tx storage.Tx, c conflict.Candidate, activeOnly bool) error {
	d, err := s.resolver.Classify(ctx, tx, c)
	if err != nil {
		return fmt.Errorf("classify national id: %w", err)
	}
	if !d.Blocking() || d.Existing == nil {
		return nil
	}
	if activeOnly && !d.Existing.IsActive() {
		return nil
	}
	return &DuplicateError{Disposition: d.Disposition, Existing: *d.Existing}
}

// cloneWorker copies w including the slices the orchestrator mutates.
func cloneWorker(w models.Worker) models.Worker {
	c := w
	c.WorkHistory = append([]models.WorkPeriod(nil), w.WorkHistory...)
	c.AllocatedItems = append([]models.ItemAllocation(nil), w.AllocatedItems...)
	return c
}
