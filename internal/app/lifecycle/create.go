package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/conflict"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/workperiod"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CreateWorker registers a worker in a farm. The national ID is classified
// before anything is written:
//   - proceed: the worker is created active with one open period
//   - reject: a *DuplicateError is returned
//   - cross-farm conflict: a pending result; the holding farm is notified
//   - reactivation/transfer candidate: the offer is returned, or carried out
//     when req.ApplyResolution is set
func (s *Service) CreateWorker(ctx context.Context, req CreateRequest) (Result, error) {
	in, err := req.Worker.normalize()
	if err != nil {
		return Result{}, err
	}
	farm, err := getFarm(ctx, s.repo, req.FarmID)
	if err != nil {
		return Result{}, err
	}

	decision, err := s.resolver.Classify(ctx, s.repo, conflict.Candidate{
		NationalID: in.NationalID,
		FullName:   in.FullName,
		FarmID:     farm.ID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("classify national id: %w", err)
	}

	switch decision.Disposition {
	case conflict.Reject:
		s.audit.DuplicateRejected(ctx, req.Actor, farm.ID, *decision.Existing)
		return Result{Disposition: decision.Disposition, Existing: decision.Existing},
			&DuplicateError{Disposition: decision.Disposition, Existing: *decision.Existing}

	case conflict.CrossFarm:
		return s.crossFarm(ctx, req.Actor, farm, decision)

	case conflict.Reactivate, conflict.Transfer:
		if !req.ApplyResolution {
			return offer(decision), nil
		}
		res, err := s.reopen(ctx, reopenRequest{
			actor:    req.Actor,
			workerID: decision.Existing.ID,
			toFarmID: farm.ID,
			entry:    in.EntryDate,
			room:     in.RoomNumber,
			transfer: decision.Disposition == conflict.Transfer,
			refresh:  &in,
		})
		if err != nil {
			return Result{}, err
		}
		res.Disposition = decision.Disposition
		res.Existing = decision.Existing
		res.ProbableDuplicates = decision.ProbableDuplicates
		return res, nil
	}

	now := s.now()
	today := models.DayOf(now)
	base := models.Worker{
		ID:             primitive.NewObjectID(),
		FarmID:         farm.ID,
		Status:         models.StatusActive,
		EntryDate:      today,
		AllocatedItems: []models.ItemAllocation{},
		CreatedBy:      req.Actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	in.apply(&base, today)

	var (
		created  models.Worker
		warnings []string
	)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		w := base
		warnings = nil

		if err := s.recheck(ctx, tx, conflict.Candidate{
			NationalID: in.NationalID,
			FullName:   in.FullName,
			FarmID:     farm.ID,
		}, false); err != nil {
			return err
		}

		out, err := s.rooms.ReconcileOnChange(ctx, tx, nil, &w)
		if err != nil {
			return err
		}
		if out.Warning != "" {
			warnings = append(warnings, out.Warning)
		}
		w.Sector = sectorFor(farm, w.RoomNumber)
		w.WorkHistory = []models.WorkPeriod{workperiod.FromWorker(w)}

		if err := tx.CreateWorker(ctx, w); err != nil {
			return fmt.Errorf("create worker: %w", err)
		}
		if err := s.recount(ctx, tx, farm.ID); err != nil {
			return err
		}
		created = w
		return nil
	})
	var dup *DuplicateError
	if errors.As(err, &dup) {
		if dup.Disposition == conflict.Reject {
			s.audit.DuplicateRejected(ctx, req.Actor, farm.ID, dup.Existing)
		}
		return Result{Disposition: dup.Disposition, Existing: &dup.Existing}, err
	}
	if err != nil {
		s.log.Error("create worker failed",
			zap.String("farm_id", farm.ID.Hex()),
			zap.String("national_id", in.NationalID),
			zap.Error(err))
		return Result{}, err
	}

	s.log.Info("worker created",
		zap.String("worker_id", created.ID.Hex()),
		zap.String("farm_id", farm.ID.Hex()),
		zap.String("room_number", created.RoomNumber))
	s.audit.WorkerCreated(ctx, req.Actor, created)

	notes := s.notes.NewWorker(req.Actor, farm, created, now)
	s.deliver(ctx, notes)

	return Result{
		Worker:             &created,
		Disposition:        conflict.Proceed,
		Warnings:           warnings,
		ProbableDuplicates: decision.ProbableDuplicates,
		Notifications:      notes,
	}, nil
}

// crossFarm reports a national ID held by an active worker of another farm.
// Nothing is created; the holding farm's admins are asked to record an exit.
func (s *Service) crossFarm(ctx context.Context, actor string, requesting models.Farm, d conflict.Decision) (Result, error) {
	existing := *d.Existing
	holding, err := getFarm(ctx, s.repo, existing.FarmID)
	if err != nil {
		return Result{}, err
	}

	s.audit.CrossFarmConflict(ctx, actor, requesting.ID, existing)
	notes := s.notes.CrossFarmConflict(actor, requesting, holding, existing, s.now())
	s.deliver(ctx, notes)

	return Result{
		Disposition: d.Disposition,
		Existing:    &existing,
		Pending:     true,
		Message: fmt.Sprintf("%s is still active in %s. Its administrators have been asked to record an exit before the worker can be registered here.",
			existing.FullName, holding.Name),
		ProbableDuplicates: d.ProbableDuplicates,
		Notifications:      notes,
	}, nil
}

func offer(d conflict.Decision) Result {
	msg := "An inactive record with this national id exists in this farm. It can be reactivated."
	if d.Disposition == conflict.Transfer {
		msg = "An inactive record with this national id exists in another farm. It can be transferred here."
	}
	return Result{
		Disposition:        d.Disposition,
		Existing:           d.Existing,
		Message:            msg,
		ProbableDuplicates: d.ProbableDuplicates,
	}
}
