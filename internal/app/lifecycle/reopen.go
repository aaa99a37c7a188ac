package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/conflict"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/workperiod"
	"github.com/dalemusser/fermehub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ReactivateWorker brings an inactive worker back into the farm it left.
func (s *Service) ReactivateWorker(ctx context.Context, req ReactivateRequest) (Result, error) {
	return s.reopen(ctx, reopenRequest{
		actor:    req.Actor,
		workerID: req.WorkerID,
		entry:    req.EntryDate,
		room:     htmlsanitize.PlainText(req.RoomNumber),
	})
}

// TransferWorker brings an inactive worker into another farm.
func (s *Service) TransferWorker(ctx context.Context, req TransferRequest) (Result, error) {
	if req.ToFarmID.IsZero() {
		return Result{}, invalid("destination farm is required")
	}
	return s.reopen(ctx, reopenRequest{
		actor:    req.Actor,
		workerID: req.WorkerID,
		toFarmID: req.ToFarmID,
		entry:    req.EntryDate,
		room:     htmlsanitize.PlainText(req.RoomNumber),
		transfer: true,
	})
}

type reopenRequest struct {
	actor    string
	workerID primitive.ObjectID
	// toFarmID is the farm the worker returns to; zero means its own farm.
	toFarmID primitive.ObjectID
	entry    time.Time
	room     string
	transfer bool
	// refresh carries registration data when the reopen comes from
	// CreateWorker; identity and contact fields are taken from it.
	refresh *WorkerInput
}

// reopen appends a new open period to an inactive worker and makes it active
// in the target farm.
func (s *Service) reopen(ctx context.Context, r reopenRequest) (Result, error) {
	now := s.now()
	today := models.DayOf(now)
	entry := today
	if !r.entry.IsZero() {
		entry = models.DayOf(r.entry)
	}

	var (
		res      Result
		reopened models.Worker
		from, to models.Farm
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		res = Result{}
		prev, err := getWorker(ctx, tx, r.workerID)
		if err != nil {
			return err
		}
		if prev.IsActive() {
			return fmt.Errorf("%w: worker %s is active", ErrInvalidTransition, prev.ID.Hex())
		}
		if from, err = getFarm(ctx, tx, prev.FarmID); err != nil {
			return err
		}
		to = from
		switch {
		case r.transfer:
			if r.toFarmID == prev.FarmID {
				return invalid("worker already belongs to this farm; reactivate instead")
			}
			if to, err = getFarm(ctx, tx, r.toFarmID); err != nil {
				return err
			}
		case !r.toFarmID.IsZero() && r.toFarmID != prev.FarmID:
			return invalid("worker belongs to another farm; transfer instead")
		}
		if prev.ExitDate != nil && entry.Before(models.DayOf(*prev.ExitDate)) {
			return invalid("entry date %s is before the last exit %s",
				entry.Format("2006-01-02"), prev.ExitDate.Format("2006-01-02"))
		}
		if err := s.recheck(ctx, tx, conflict.Candidate{
			NationalID: prev.NationalID,
			FarmID:     to.ID,
			ExcludeID:  prev.ID,
		}, true); err != nil {
			return err
		}
		history := workperiod.Canonical(prev)
		if p, ok := workperiod.Overlap(history, time.Time{}, entry); ok {
			return invalid("entry date %s overlaps the stay of %s",
				entry.Format("2006-01-02"), p.EntryDate.Format("2006-01-02"))
		}

		next := cloneWorker(prev)
		if r.refresh != nil {
			in := *r.refresh
			in.EntryDate = entry
			in.apply(&next, today)
		}
		next.FarmID = to.ID
		next.EntryDate = entry
		next.RoomNumber = r.room
		next.ReturnCount++
		next.Activate()
		next.Age = next.AgeAt(today)
		next.UpdatedAt = now

		out, err := s.rooms.ReconcileOnChange(ctx, tx, &prev, &next)
		if err != nil {
			return err
		}
		if out.Warning != "" {
			res.Warnings = append(res.Warnings, out.Warning)
		}
		next.Sector = sectorFor(to, next.RoomNumber)
		next.WorkHistory = workperiod.Reopen(history, models.WorkPeriod{
			EntryDate:  entry,
			RoomNumber: next.RoomNumber,
			Sector:     next.Sector,
			FarmID:     to.ID,
		})

		if err := tx.UpdateWorker(ctx, next); err != nil {
			return fmt.Errorf("update worker: %w", err)
		}
		if err := s.recount(ctx, tx, to.ID); err != nil {
			return err
		}
		if from.ID != to.ID {
			if err := s.recount(ctx, tx, from.ID); err != nil {
				return err
			}
		}
		reopened = next
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	var notes []models.Notification
	if r.transfer {
		s.log.Info("worker transferred",
			zap.String("worker_id", reopened.ID.Hex()),
			zap.String("from_farm_id", from.ID.Hex()),
			zap.String("to_farm_id", to.ID.Hex()),
			zap.Int("return_count", reopened.ReturnCount))
		s.audit.WorkerTransferred(ctx, r.actor, reopened, from.ID)
		notes = append(notes, s.notes.WorkerTransferred(r.actor, from, to, reopened, now)...)
	} else {
		s.log.Info("worker reactivated",
			zap.String("worker_id", reopened.ID.Hex()),
			zap.String("farm_id", to.ID.Hex()),
			zap.Int("return_count", reopened.ReturnCount))
		s.audit.WorkerReactivated(ctx, r.actor, reopened)
	}
	notes = append(notes, s.notes.WorkerReturned(r.actor, to, reopened, now)...)
	s.deliver(ctx, notes)

	res.Worker = &reopened
	res.Notifications = notes
	return res, nil
}
