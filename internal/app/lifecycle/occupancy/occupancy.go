// Package occupancy keeps rooms' occupant lists in step with the workers that
// live in them.
//
// A room is consistent when CurrentOccupancy == len(OccupantIDs) and every
// occupant is an active worker of the room's farm whose gender matches the
// room's category. Room writes are read-modify-write against the latest
// snapshot, guarded by the room version and retried a bounded number of times.
package occupancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultRetryLimit is the number of re-reads after a version conflict.
const DefaultRetryLimit = 3

// Soft failures. They drop the room assignment but never abort the
// surrounding worker update.
var (
	ErrGenderMismatch   = errors.New("room gender category does not match worker")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is at capacity")
	ErrRetriesExhausted = errors.New("room kept changing concurrently")
)

// IsSoft reports whether err is a recoverable room-assignment failure.
func IsSoft(err error) bool {
	return errors.Is(err, ErrGenderMismatch) ||
		errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrRoomFull) ||
		errors.Is(err, ErrRetriesExhausted)
}

// Outcome describes the result of a room assignment attempt.
type Outcome struct {
	// Assigned is true when the worker ends up listed in the target room.
	Assigned bool
	// Warning is a user-facing message when a soft failure dropped the room.
	Warning string
	// Reason is the soft failure behind Warning.
	Reason error
}

// Synchronizer applies occupancy changes to rooms.
type Synchronizer struct {
	log     *zap.Logger
	retries int
	now     func() time.Time
}

// New creates a Synchronizer. A retry limit below zero uses DefaultRetryLimit.
func New(logger *zap.Logger, retryLimit int) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryLimit < 0 {
		retryLimit = DefaultRetryLimit
	}
	return &Synchronizer{log: logger, retries: retryLimit, now: time.Now}
}

// WithClock overrides the clock used for UpdatedAt stamps.
func (s *Synchronizer) WithClock(now func() time.Time) *Synchronizer {
	s.now = now
	return s
}

// AddWorkerToRoom lists workerID in the farm's room. Soft failures come back
// as an Outcome with a warning; only storage failures are returned as errors.
func (s *Synchronizer) AddWorkerToRoom(ctx context.Context, rooms storage.Rooms, workerID, farmID primitive.ObjectID, roomNumber, gender string) (Outcome, error) {
	err := s.mutate(ctx, rooms, farmID, roomNumber, func(r *models.Room) (bool, error) {
		if !r.Accepts(gender) {
			return false, ErrGenderMismatch
		}
		if r.HasOccupant(workerID) {
			return false, nil
		}
		if r.IsFull() {
			return false, ErrRoomFull
		}
		r.OccupantIDs = append(r.OccupantIDs, workerID)
		return true, nil
	})
	switch {
	case err == nil:
		return Outcome{Assigned: true}, nil
	case IsSoft(err):
		s.log.Warn("room assignment dropped",
			zap.String("worker_id", workerID.Hex()),
			zap.String("farm_id", farmID.Hex()),
			zap.String("room_number", roomNumber),
			zap.String("gender", gender),
			zap.Error(err))
		return Outcome{Warning: warningFor(err, roomNumber), Reason: err}, nil
	default:
		return Outcome{}, err
	}
}

// RemoveWorkerFromRoom filters workerID out of the farm's room. A missing
// room is not an error: there is nothing to remove from.
func (s *Synchronizer) RemoveWorkerFromRoom(ctx context.Context, rooms storage.Rooms, workerID, farmID primitive.ObjectID, roomNumber string) error {
	err := s.mutate(ctx, rooms, farmID, roomNumber, func(r *models.Room) (bool, error) {
		before := len(r.OccupantIDs)
		r.OccupantIDs = without(r.OccupantIDs, workerID)
		return len(r.OccupantIDs) != before, nil
	})
	if errors.Is(err, ErrRoomNotFound) {
		return nil
	}
	return err
}

// ReconcileOnChange moves the worker between rooms after its state changed
// from prev to next. prev is nil for a new worker. When the target room
// refuses the worker, next.RoomNumber is cleared so the worker record never
// claims a room that does not list it.
func (s *Synchronizer) ReconcileOnChange(ctx context.Context, rooms storage.Rooms, prev *models.Worker, next *models.Worker) (Outcome, error) {
	if prev != nil && prev.IsActive() && prev.HasRoom() {
		if err := s.RemoveWorkerFromRoom(ctx, rooms, prev.ID, prev.FarmID, prev.RoomNumber); err != nil {
			return Outcome{}, fmt.Errorf("remove from room %s: %w", prev.RoomNumber, err)
		}
	}
	if next == nil || !next.IsActive() || !next.HasRoom() {
		return Outcome{}, nil
	}
	out, err := s.AddWorkerToRoom(ctx, rooms, next.ID, next.FarmID, next.RoomNumber, next.Gender)
	if err != nil {
		return Outcome{}, fmt.Errorf("add to room %s: %w", next.RoomNumber, err)
	}
	if !out.Assigned {
		next.RoomNumber = ""
	}
	return out, nil
}

// ClearFarmRooms empties every room of the farm and returns how many rooms
// were changed.
func (s *Synchronizer) ClearFarmRooms(ctx context.Context, rooms storage.Rooms, farmID primitive.ObjectID) (int, error) {
	list, err := rooms.ListRoomsByFarm(ctx, farmID)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, room := range list {
		if len(room.OccupantIDs) == 0 && room.CurrentOccupancy == 0 {
			continue
		}
		err := s.mutate(ctx, rooms, farmID, room.Number, func(r *models.Room) (bool, error) {
			changed := len(r.OccupantIDs) > 0 || r.CurrentOccupancy != 0
			r.OccupantIDs = []primitive.ObjectID{}
			return changed, nil
		})
		if errors.Is(err, ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return cleared, fmt.Errorf("clear room %s: %w", room.Number, err)
		}
		cleared++
	}
	return cleared, nil
}

// mutate runs fn against the latest snapshot of the room and writes it back
// when fn reports a change or the stored count has drifted from the list.
func (s *Synchronizer) mutate(ctx context.Context, rooms storage.Rooms, farmID primitive.ObjectID, number string, fn func(*models.Room) (bool, error)) error {
	for attempt := 0; attempt <= s.retries; attempt++ {
		room, err := rooms.FindRoom(ctx, farmID, number)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRoomNotFound
		}
		if err != nil {
			return err
		}

		changed, err := fn(&room)
		if err != nil {
			return err
		}
		drifted := room.CurrentOccupancy != len(room.OccupantIDs)
		if !changed && !drifted {
			return nil
		}
		if drifted {
			s.log.Warn("room occupancy count realigned",
				zap.String("room_id", room.ID.Hex()),
				zap.Int("stored", room.CurrentOccupancy),
				zap.Int("actual", len(room.OccupantIDs)))
		}
		room.CurrentOccupancy = len(room.OccupantIDs)
		room.UpdatedAt = s.now().UTC()

		err = rooms.UpdateRoom(ctx, room)
		if errors.Is(err, storage.ErrVersionConflict) {
			s.log.Debug("room version conflict, retrying",
				zap.String("room_id", room.ID.Hex()),
				zap.Int("attempt", attempt+1))
			continue
		}
		return err
	}
	return ErrRetriesExhausted
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, o := range ids {
		if o != id {
			out = append(out, o)
		}
	}
	return out
}

func warningFor(err error, roomNumber string) string {
	switch {
	case errors.Is(err, ErrGenderMismatch):
		return fmt.Sprintf("Room %s is reserved for the other gender; the worker was saved without a room.", roomNumber)
	case errors.Is(err, ErrRoomFull):
		return fmt.Sprintf("Room %s is full; the worker was saved without a room.", roomNumber)
	case errors.Is(err, ErrRoomNotFound):
		return fmt.Sprintf("Room %s does not exist in this farm; the worker was saved without a room.", roomNumber)
	default:
		return fmt.Sprintf("Room %s could not be updated; the worker was saved without a room.", roomNumber)
	}
}
