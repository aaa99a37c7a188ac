package occupancy

import (
	"context"
	"fmt"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SweepSource is what a sweep reads and writes.
type SweepSource interface {
	storage.Rooms
	ListWorkersByFarm(ctx context.Context, farmID primitive.ObjectID, status string) ([]models.Worker, error)
}

// SweepReport summarizes one sweep over a farm.
type SweepReport struct {
	RoomsChecked     int `json:"rooms_checked"`
	RoomsCorrected   int `json:"rooms_corrected"`
	OccupantsRemoved int `json:"occupants_removed"`
}

// SweepInactiveOccupants removes, from every room of the farm, ids that do not
// belong to an active worker of the farm whose gender fits the room and who
// claims that room. Duplicate ids are collapsed and counts realigned. A
// second run right after the first changes nothing.
func (s *Synchronizer) SweepInactiveOccupants(ctx context.Context, src SweepSource, farmID primitive.ObjectID) (SweepReport, error) {
	var rep SweepReport

	active, err := src.ListWorkersByFarm(ctx, farmID, models.StatusActive)
	if err != nil {
		return rep, fmt.Errorf("list active workers: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.Worker, len(active))
	for _, w := range active {
		byID[w.ID] = w
	}

	rooms, err := src.ListRoomsByFarm(ctx, farmID)
	if err != nil {
		return rep, fmt.Errorf("list rooms: %w", err)
	}

	for _, snapshot := range rooms {
		rep.RoomsChecked++
		if keep := legitimate(snapshot, byID); len(keep) == len(snapshot.OccupantIDs) && snapshot.CurrentOccupancy == len(keep) {
			continue
		}

		removed := 0
		err := s.mutate(ctx, src, farmID, snapshot.Number, func(r *models.Room) (bool, error) {
			keep := legitimate(*r, byID)
			removed = len(r.OccupantIDs) - len(keep)
			r.OccupantIDs = keep
			return removed > 0, nil
		})
		if err != nil {
			return rep, fmt.Errorf("sweep room %s: %w", snapshot.Number, err)
		}
		rep.RoomsCorrected++
		rep.OccupantsRemoved += removed
		s.log.Info("room occupancy healed",
			zap.String("farm_id", farmID.Hex()),
			zap.String("room_id", snapshot.ID.Hex()),
			zap.String("room_number", snapshot.Number),
			zap.Int("removed", removed))
	}
	return rep, nil
}

// legitimate returns the room's occupant ids that still belong there, in
// their original order and without duplicates.
func legitimate(r models.Room, active map[primitive.ObjectID]models.Worker) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(r.OccupantIDs))
	keep := make([]primitive.ObjectID, 0, len(r.OccupantIDs))
	for _, id := range r.OccupantIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		w, ok := active[id]
		if !ok || !r.Accepts(w.Gender) || w.RoomNumber != r.Number {
			continue
		}
		keep = append(keep, id)
	}
	return keep
}
