// internal/domain/models/room.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Room gender categories.
const (
	RoomMen   = "menRoom"
	RoomWomen = "womenRoom"
)

// Room is a dormitory room owned by one farm.
//
// NOTE:
//   - CurrentOccupancy must always equal len(OccupantIDs).
//   - Version is bumped on every write and guards read-modify-write updates.
type Room struct {
	ID               primitive.ObjectID   `bson:"_id" json:"id"`
	FarmID           primitive.ObjectID   `bson:"farm_id" json:"farm_id"`
	Number           string               `bson:"number" json:"number"`
	GenderCategory   string               `bson:"gender_category" json:"gender_category"` // menRoom | womenRoom
	TotalCapacity    int                  `bson:"total_capacity" json:"total_capacity"`
	OccupantIDs      []primitive.ObjectID `bson:"occupant_ids" json:"occupant_ids"`
	CurrentOccupancy int                  `bson:"current_occupancy" json:"current_occupancy"`
	Version          int64                `bson:"version" json:"version"`
	UpdatedAt        time.Time            `bson:"updated_at" json:"updated_at"`
}

// Accepts reports whether a worker of the given gender may live in the room.
func (r Room) Accepts(gender string) bool {
	switch r.GenderCategory {
	case RoomMen:
		return gender == GenderMale
	case RoomWomen:
		return gender == GenderFemale
	}
	return false
}

// HasOccupant reports whether id is listed in the room.
func (r Room) HasOccupant(id primitive.ObjectID) bool {
	for _, o := range r.OccupantIDs {
		if o == id {
			return true
		}
	}
	return false
}

// IsFull reports whether the room has reached its capacity. Rooms without a
// capacity are never full.
func (r Room) IsFull() bool {
	return r.TotalCapacity > 0 && len(r.OccupantIDs) >= r.TotalCapacity
}
