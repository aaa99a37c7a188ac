package lifecycle

import (
	"context"
	"fmt"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DeleteWorker removes a worker record and releases its room.
func (s *Service) DeleteWorker(ctx context.Context, req DeleteRequest) (Result, error) {
	var deleted models.Worker
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		w, err := getWorker(ctx, tx, req.WorkerID)
		if err != nil {
			return err
		}
		if err := s.release(ctx, tx, w); err != nil {
			return err
		}
		if err := tx.DeleteWorker(ctx, w.ID); err != nil {
			return fmt.Errorf("delete worker: %w", err)
		}
		if err := s.recount(ctx, tx, w.FarmID); err != nil {
			return err
		}
		deleted = w
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Info("worker deleted",
		zap.String("worker_id", deleted.ID.Hex()),
		zap.String("farm_id", deleted.FarmID.Hex()))
	s.audit.WorkerDeleted(ctx, req.Actor, deleted)
	return Result{Worker: &deleted}, nil
}

type farmTally struct {
	deleted      int
	active       int
	roomsCleared int
}

// BulkDeleteWorkers removes every listed worker in one unit of work. When the
// batch removes the last active worker of a farm, every room of that farm is
// emptied, stray occupant ids included. An unknown id aborts the whole batch.
func (s *Service) BulkDeleteWorkers(ctx context.Context, req BulkDeleteRequest) (BulkDeleteResult, error) {
	ids := uniqueIDs(req.WorkerIDs)
	if len(ids) == 0 {
		return BulkDeleteResult{}, invalid("no workers selected")
	}

	var (
		res     BulkDeleteResult
		tallies map[primitive.ObjectID]*farmTally
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		res = BulkDeleteResult{}
		tallies = make(map[primitive.ObjectID]*farmTally)

		for _, id := range ids {
			w, err := getWorker(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := s.release(ctx, tx, w); err != nil {
				return err
			}
			if err := tx.DeleteWorker(ctx, w.ID); err != nil {
				return fmt.Errorf("delete worker %s: %w", w.ID.Hex(), err)
			}
			t, ok := tallies[w.FarmID]
			if !ok {
				t = &farmTally{}
				tallies[w.FarmID] = t
				res.Farms = append(res.Farms, w.FarmID)
			}
			t.deleted++
			if w.IsActive() {
				t.active++
			}
			res.Deleted++
		}

		for _, farmID := range res.Farms {
			t := tallies[farmID]
			remaining, err := tx.CountActiveWorkers(ctx, farmID)
			if err != nil {
				return fmt.Errorf("count active workers: %w", err)
			}
			if t.active > 0 && remaining == 0 {
				n, err := s.rooms.ClearFarmRooms(ctx, tx, farmID)
				if err != nil {
					return fmt.Errorf("clear rooms of farm %s: %w", farmID.Hex(), err)
				}
				t.roomsCleared = n
				res.RoomsCleared += n
			}
			if err := s.recount(ctx, tx, farmID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BulkDeleteResult{}, err
	}

	for _, farmID := range res.Farms {
		t := tallies[farmID]
		s.audit.WorkersBulkDeleted(ctx, req.Actor, farmID, t.deleted, t.roomsCleared)
	}
	s.log.Info("workers bulk deleted",
		zap.Int("deleted", res.Deleted),
		zap.Int("farms", len(res.Farms)),
		zap.Int("rooms_cleared", res.RoomsCleared))
	return res, nil
}

// release removes an active worker from the room it claims.
func (s *Service) release(ctx context.Context, tx storage.Tx, w models.Worker) error {
	if !w.IsActive() || !w.HasRoom() {
		return nil
	}
	if err := s.rooms.RemoveWorkerFromRoom(ctx, tx, w.ID, w.FarmID, w.RoomNumber); err != nil {
		return fmt.Errorf("remove from room %s: %w", w.RoomNumber, err)
	}
	return nil
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
