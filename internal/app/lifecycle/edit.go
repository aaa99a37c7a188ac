package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/conflict"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/workperiod"
	"github.com/dalemusser/fermehub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.uber.org/zap"
)

// EditWorker replaces a worker's editable fields.
//
// An exit date on or before today deactivates the worker, returns its
// allocated items and releases its room. A future exit date is stored as
// scheduled; the worker stays active until HealLifecycle passes that day.
// Clearing the exit date of an inactive worker is refused: returns go
// through ReactivateWorker so the history gets a new period.
func (s *Service) EditWorker(ctx context.Context, req EditRequest) (Result, error) {
	in, err := req.Worker.normalize()
	if err != nil {
		return Result{}, err
	}
	reason := htmlsanitize.PlainText(req.ExitReason)

	current, err := getWorker(ctx, s.repo, req.WorkerID)
	if err != nil {
		return Result{}, err
	}
	targetFarmID := current.FarmID
	if !req.FarmID.IsZero() {
		targetFarmID = req.FarmID
	}
	if in.NationalID != current.NationalID {
		decision, err := s.resolver.Classify(ctx, s.repo, conflict.Candidate{
			NationalID: in.NationalID,
			FullName:   in.FullName,
			FarmID:     targetFarmID,
			ExcludeID:  current.ID,
		})
		if err != nil {
			return Result{}, fmt.Errorf("classify national id: %w", err)
		}
		if decision.Blocking() {
			return Result{Disposition: decision.Disposition, Existing: decision.Existing},
				&DuplicateError{Disposition: decision.Disposition, Existing: *decision.Existing}
		}
	}

	now := s.now()
	today := models.DayOf(now)

	var (
		res            Result
		edited         models.Worker
		farm           models.Farm
		exitTookEffect bool
		itemsReturned  int
	)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		res = Result{}
		exitTookEffect = false
		itemsReturned = 0

		prev, err := getWorker(ctx, tx, req.WorkerID)
		if err != nil {
			return err
		}
		if farm, err = getFarm(ctx, tx, targetFarmID); err != nil {
			return err
		}
		if !prev.IsActive() && farm.ID != prev.FarmID {
			return fmt.Errorf("%w: inactive workers change farm through a transfer", ErrInvalidTransition)
		}
		if in.NationalID != prev.NationalID {
			if err := s.recheck(ctx, tx, conflict.Candidate{
				NationalID: in.NationalID,
				FullName:   in.FullName,
				FarmID:     farm.ID,
				ExcludeID:  prev.ID,
			}, false); err != nil {
				return err
			}
		}

		input := in
		if input.EntryDate.IsZero() {
			input.EntryDate = models.DayOf(prev.EntryDate)
		}
		next := cloneWorker(prev)
		input.apply(&next, today)
		next.FarmID = farm.ID
		next.UpdatedAt = now

		history := workperiod.Canonical(prev)
		if !models.SameDay(prev.EntryDate, next.EntryDate) {
			if p, ok := workperiod.Overlap(history, prev.EntryDate, next.EntryDate); ok {
				return invalid("entry date %s overlaps the stay of %s",
					next.EntryDate.Format("2006-01-02"), p.EntryDate.Format("2006-01-02"))
			}
			history = workperiod.Retime(history, prev.EntryDate, next.EntryDate)
		}

		switch {
		case req.ExitDate != nil:
			exit := models.DayOf(*req.ExitDate)
			if exit.Before(next.EntryDate) {
				return invalid("exit date %s is before entry date %s",
					exit.Format("2006-01-02"), next.EntryDate.Format("2006-01-02"))
			}
			if !prev.IsActive() && exit.After(today) {
				return fmt.Errorf("%w: an inactive worker cannot get a future exit date", ErrInvalidTransition)
			}
			var anomaly bool
			history, anomaly = workperiod.Close(history, next.EntryDate, exit, reason, workperiod.FromWorker(next))
			if anomaly {
				s.log.Warn("no period matched the current stay; synthesized a closed one",
					zap.String("worker_id", prev.ID.Hex()),
					zap.Time("entry_date", next.EntryDate))
			}
			if exit.After(today) {
				next.ScheduleExit(exit, reason)
				break
			}
			next.Deactivate(exit, reason)
			if prev.IsActive() {
				exitTookEffect = true
				if itemsReturned, err = s.returnAllItems(ctx, tx, &next, now); err != nil {
					return err
				}
			}

		case prev.ExitDate != nil:
			if !prev.IsActive() {
				return fmt.Errorf("%w: reactivate the worker instead of clearing its exit date", ErrInvalidTransition)
			}
			history = workperiod.Unclose(history, next.EntryDate)
			next.Activate()
		}

		if roomsNeedReconcile(prev, next) {
			out, err := s.rooms.ReconcileOnChange(ctx, tx, &prev, &next)
			if err != nil {
				return err
			}
			if out.Warning != "" {
				res.Warnings = append(res.Warnings, out.Warning)
			}
		}
		next.Sector = sectorFor(farm, next.RoomNumber)
		next.WorkHistory = workperiod.Relabel(history, next.EntryDate, next.FarmID, next.RoomNumber, next.Sector)

		if err := tx.UpdateWorker(ctx, next); err != nil {
			return fmt.Errorf("update worker: %w", err)
		}
		if err := s.recount(ctx, tx, next.FarmID); err != nil {
			return err
		}
		if prev.FarmID != next.FarmID {
			if err := s.recount(ctx, tx, prev.FarmID); err != nil {
				return err
			}
		}
		edited = next
		return nil
	})
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return Result{Disposition: dup.Disposition, Existing: &dup.Existing}, err
	}
	if err != nil {
		return Result{}, err
	}

	if exitTookEffect {
		s.log.Info("worker exit recorded",
			zap.String("worker_id", edited.ID.Hex()),
			zap.String("farm_id", edited.FarmID.Hex()),
			zap.Int("items_returned", itemsReturned))
		s.audit.WorkerExitRecorded(ctx, req.Actor, edited, itemsReturned)
		res.Notifications = s.notes.ExitRecorded(req.Actor, farm, edited, now)
		s.deliver(ctx, res.Notifications)
	} else {
		s.audit.WorkerUpdated(ctx, req.Actor, edited)
	}

	res.Worker = &edited
	return res, nil
}

// roomsNeedReconcile reports whether the change can affect room listings.
func roomsNeedReconcile(prev, next models.Worker) bool {
	return prev.FarmID != next.FarmID ||
		prev.RoomNumber != next.RoomNumber ||
		prev.Status != next.Status ||
		prev.Gender != next.Gender
}
