package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.uber.org/zap"
)

// AllocateItem hands the farm's stock item named req.ItemName to an active
// worker. Stock quantities are not changed; only the item's last-updated
// marker is touched.
func (s *Service) AllocateItem(ctx context.Context, req AllocateItemRequest) (models.ItemAllocation, error) {
	name := htmlsanitize.PlainText(req.ItemName)
	if name == "" {
		return models.ItemAllocation{}, invalid("item name is required")
	}

	now := s.now()
	var (
		alloc  models.ItemAllocation
		holder models.Worker
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		w, err := getWorker(ctx, tx, req.WorkerID)
		if err != nil {
			return err
		}
		if !w.IsActive() {
			return fmt.Errorf("%w: items are only allocated to active workers", ErrInvalidTransition)
		}
		item, err := tx.FindStockItem(ctx, name, w.FarmID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: stock item %q", ErrNotFound, name)
		}
		if err != nil {
			return fmt.Errorf("find stock item: %w", err)
		}

		alloc = models.ItemAllocation{
			ItemName:    item.ItemName,
			AllocatedAt: now,
			Status:      models.AllocationAllocated,
			StockItemID: item.ID,
			FarmID:      w.FarmID,
		}
		w = cloneWorker(w)
		w.AllocatedItems = append(w.AllocatedItems, alloc)
		w.UpdatedAt = now
		if err := tx.TouchStockItem(ctx, item.ID, now); err != nil {
			return fmt.Errorf("touch stock item: %w", err)
		}
		if err := tx.UpdateWorker(ctx, w); err != nil {
			return fmt.Errorf("update worker: %w", err)
		}
		holder = w
		return nil
	})
	if err != nil {
		return models.ItemAllocation{}, err
	}

	s.log.Info("item allocated",
		zap.String("worker_id", holder.ID.Hex()),
		zap.String("item_name", alloc.ItemName))
	s.audit.ItemAllocated(ctx, req.Actor, holder, alloc.ItemName)
	return alloc, nil
}

// ReturnItem marks the worker's oldest outstanding allocation of the stock
// item as returned.
func (s *Service) ReturnItem(ctx context.Context, req ReturnItemRequest) (models.ItemAllocation, error) {
	if req.StockItemID.IsZero() {
		return models.ItemAllocation{}, invalid("stock item id is required")
	}

	now := s.now()
	var (
		returned models.ItemAllocation
		holder   models.Worker
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		w, err := getWorker(ctx, tx, req.WorkerID)
		if err != nil {
			return err
		}
		w = cloneWorker(w)
		idx := -1
		for i, a := range w.AllocatedItems {
			if a.StockItemID == req.StockItemID && a.Status == models.AllocationAllocated {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: no outstanding allocation of stock item %s", ErrNotFound, req.StockItemID.Hex())
		}
		w.AllocatedItems[idx].Return(now)
		w.UpdatedAt = now

		if err := tx.TouchStockItem(ctx, req.StockItemID, now); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("touch stock item: %w", err)
		}
		if err := tx.UpdateWorker(ctx, w); err != nil {
			return fmt.Errorf("update worker: %w", err)
		}
		returned = w.AllocatedItems[idx]
		holder = w
		return nil
	})
	if err != nil {
		return models.ItemAllocation{}, err
	}

	s.audit.ItemReturned(ctx, req.Actor, holder, returned.ItemName)
	return returned, nil
}
