// internal/domain/models/workperiod.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkPeriod is one contiguous interval of employment. A nil ExitDate means
// the period is still open.
type WorkPeriod struct {
	EntryDate  time.Time          `bson:"entry_date" json:"entry_date"`
	ExitDate   *time.Time         `bson:"exit_date,omitempty" json:"exit_date,omitempty"`
	ExitReason string             `bson:"exit_reason,omitempty" json:"exit_reason,omitempty"`
	RoomNumber string             `bson:"room_number,omitempty" json:"room_number,omitempty"`
	Sector     string             `bson:"sector,omitempty" json:"sector,omitempty"`
	FarmID     primitive.ObjectID `bson:"farm_id" json:"farm_id"`
}

// IsOpen reports whether the period has no exit date yet.
func (p WorkPeriod) IsOpen() bool { return p.ExitDate == nil }
