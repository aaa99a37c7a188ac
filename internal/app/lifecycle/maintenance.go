package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/occupancy"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/workperiod"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// WorkTimeline returns the worker's reconstructed periods with day counts as
// of now.
func (s *Service) WorkTimeline(ctx context.Context, workerID primitive.ObjectID) (workperiod.Timeline, error) {
	w, err := getWorker(ctx, s.repo, workerID)
	if err != nil {
		return workperiod.Timeline{}, err
	}
	return workperiod.Reconstruct(w, s.now()), nil
}

// SweepOccupancy drops occupants that no longer belong in the farm's rooms
// and realigns the counts.
func (s *Service) SweepOccupancy(ctx context.Context, farmID primitive.ObjectID) (occupancy.SweepReport, error) {
	if _, err := getFarm(ctx, s.repo, farmID); err != nil {
		return occupancy.SweepReport{}, err
	}
	var rep occupancy.SweepReport
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		rep, err = s.rooms.SweepInactiveOccupants(ctx, tx, farmID)
		return err
	})
	if err != nil {
		return occupancy.SweepReport{}, fmt.Errorf("sweep farm %s: %w", farmID.Hex(), err)
	}
	if rep.RoomsCorrected > 0 {
		s.audit.OccupancySwept(ctx, farmID, rep.RoomsCorrected, rep.OccupantsRemoved)
	}
	return rep, nil
}

type healKind int

const (
	healNone healKind = iota
	healDeactivated
	healExitFilled
	healNormalized
)

// HealLifecycle makes every worker's status agree with its exit date:
//   - an active worker whose exit date has passed is deactivated, with the
//     same side effects as an exit recorded through EditWorker
//   - an inactive worker without a past exit date gets today as exit date
//   - any other status value becomes active
//
// Each corrected worker is committed on its own and audited.
func (s *Service) HealLifecycle(ctx context.Context, farmID primitive.ObjectID) (HealReport, error) {
	farm, err := getFarm(ctx, s.repo, farmID)
	if err != nil {
		return HealReport{}, err
	}
	workers, err := s.repo.ListWorkersByFarm(ctx, farmID, "")
	if err != nil {
		return HealReport{}, fmt.Errorf("list workers: %w", err)
	}

	var rep HealReport
	today := s.today()
	for _, w := range workers {
		rep.Checked++
		if w.StatusConsistent(today) && (w.Status == models.StatusActive || w.Status == models.StatusInactive) {
			continue
		}
		kind, err := s.healWorker(ctx, farm, w.ID)
		if err != nil {
			return rep, err
		}
		switch kind {
		case healDeactivated:
			rep.Deactivated++
		case healExitFilled:
			rep.ExitDatesFilled++
		case healNormalized:
			rep.Normalized++
		}
	}
	if rep.Deactivated+rep.ExitDatesFilled+rep.Normalized > 0 {
		s.log.Info("lifecycle statuses healed",
			zap.String("farm_id", farmID.Hex()),
			zap.Int("deactivated", rep.Deactivated),
			zap.Int("exit_dates_filled", rep.ExitDatesFilled),
			zap.Int("normalized", rep.Normalized))
	}
	return rep, nil
}

func (s *Service) healWorker(ctx context.Context, farm models.Farm, workerID primitive.ObjectID) (healKind, error) {
	now := s.now()
	today := models.DayOf(now)

	var (
		kind   healKind
		prev   models.Worker
		healed models.Worker
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		kind = healNone
		var err error
		if prev, err = getWorker(ctx, tx, workerID); err != nil {
			return err
		}
		exited := prev.ExitDate != nil && !models.DayOf(*prev.ExitDate).After(today)
		next := cloneWorker(prev)
		history := workperiod.Canonical(prev)

		switch {
		case exited && prev.Status != models.StatusInactive:
			kind = healDeactivated
			next.Deactivate(*prev.ExitDate, prev.ExitReason)
			history, _ = workperiod.Close(history, next.EntryDate, *next.ExitDate, next.ExitReason, workperiod.FromWorker(next))
			if _, err := s.returnAllItems(ctx, tx, &next, now); err != nil {
				return err
			}
		case !exited && prev.Status == models.StatusInactive:
			kind = healExitFilled
			next.Deactivate(today, prev.ExitReason)
			history, _ = workperiod.Close(history, next.EntryDate, today, next.ExitReason, workperiod.FromWorker(next))
			if _, err := s.returnAllItems(ctx, tx, &next, now); err != nil {
				return err
			}
		case !exited && prev.Status != models.StatusActive:
			kind = healNormalized
			next.Status = models.StatusActive
		default:
			return nil
		}
		next.WorkHistory = history
		next.UpdatedAt = now

		// prev claimed active-like status, so its room listing is released.
		if prev.Status != models.StatusInactive && !next.IsActive() {
			p := prev
			p.Status = models.StatusActive
			if _, err := s.rooms.ReconcileOnChange(ctx, tx, &p, &next); err != nil {
				return err
			}
		}
		if err := tx.UpdateWorker(ctx, next); err != nil {
			return fmt.Errorf("update worker: %w", err)
		}
		if err := s.recount(ctx, tx, next.FarmID); err != nil {
			return err
		}
		healed = next
		return nil
	})
	if err != nil || kind == healNone {
		return kind, err
	}

	s.log.Info("worker status healed",
		zap.String("worker_id", healed.ID.Hex()),
		zap.String("previous_status", prev.Status),
		zap.String("status", healed.Status))
	s.audit.LifecycleStatusHealed(ctx, healed, prev.Status)
	if kind == healDeactivated {
		s.deliver(ctx, s.notes.ExitRecorded(SystemActor, farm, healed, now))
	}
	return kind, nil
}

// MaintainAll heals statuses and sweeps rooms of every farm. A failing farm
// is logged and skipped.
func (s *Service) MaintainAll(ctx context.Context) error {
	farms, err := s.repo.ListFarms(ctx)
	if err != nil {
		return fmt.Errorf("list farms: %w", err)
	}
	start := time.Now()
	for _, f := range farms {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.HealLifecycle(ctx, f.ID); err != nil {
			s.log.Error("heal lifecycle failed", zap.String("farm_id", f.ID.Hex()), zap.Error(err))
		}
		if _, err := s.SweepOccupancy(ctx, f.ID); err != nil {
			s.log.Error("occupancy sweep failed", zap.String("farm_id", f.ID.Hex()), zap.Error(err))
		}
	}
	s.log.Debug("maintenance pass complete",
		zap.Int("farms", len(farms)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
