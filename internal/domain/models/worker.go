// internal/domain/models/worker.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gender values stored on workers.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Worker status values. Status is only ever changed through Activate and
// Deactivate so it always agrees with ExitDate.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Worker is one person's current employment snapshot, scoped to the farm it is
// attached to now (or was attached to last).
//
// NOTE:
//   - NationalID is the only cross-farm identity signal and is NOT unique in
//     storage; the same person may have records in several farms over time.
//   - RoomNumber references a room of FarmID by number; the room keeps the
//     reverse reference in its OccupantIDs.
type Worker struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	NationalID string             `bson:"national_id" json:"national_id"`
	Matricule  string             `bson:"matricule,omitempty" json:"matricule,omitempty"`

	FullName   string     `bson:"full_name" json:"full_name"`
	FullNameCI string     `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	NameTokens []string   `bson:"name_tokens" json:"-"`  // folded tokens, used for similarity lookup
	Gender     string     `bson:"gender" json:"gender"`  // male | female
	BirthDate  *time.Time `bson:"birth_date,omitempty" json:"birth_date,omitempty"`
	Age        int        `bson:"age,omitempty" json:"age,omitempty"`
	Phone      string     `bson:"phone,omitempty" json:"phone,omitempty"`

	FarmID       primitive.ObjectID  `bson:"farm_id" json:"farm_id"`
	RoomNumber   string              `bson:"room_number,omitempty" json:"room_number,omitempty"`
	Sector       string              `bson:"sector,omitempty" json:"sector,omitempty"`
	SupervisorID *primitive.ObjectID `bson:"supervisor_id,omitempty" json:"supervisor_id,omitempty"`

	Status      string     `bson:"status" json:"status"` // active | inactive
	EntryDate   time.Time  `bson:"entry_date" json:"entry_date"`
	ExitDate    *time.Time `bson:"exit_date,omitempty" json:"exit_date,omitempty"`
	ExitReason  string     `bson:"exit_reason,omitempty" json:"exit_reason,omitempty"`
	ReturnCount int        `bson:"return_count" json:"return_count"`

	WorkHistory    []WorkPeriod     `bson:"work_history" json:"work_history"`
	AllocatedItems []ItemAllocation `bson:"allocated_items" json:"allocated_items"`

	CreatedBy string    `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// LifecycleState is the tagged form of a worker's status. Inactive is nil for
// active workers.
type LifecycleState struct {
	Inactive *Exit
}

// Exit describes why and when a worker left.
type Exit struct {
	Date   time.Time
	Reason string
}

// IsActive reports whether the state is the Active variant.
func (s LifecycleState) IsActive() bool { return s.Inactive == nil }

// State returns the worker's lifecycle as a tagged value.
func (w Worker) State() LifecycleState {
	if w.Status == StatusInactive && w.ExitDate != nil {
		return LifecycleState{Inactive: &Exit{Date: *w.ExitDate, Reason: w.ExitReason}}
	}
	return LifecycleState{}
}

// IsActive reports whether the worker currently counts as active.
func (w Worker) IsActive() bool { return w.Status == StatusActive }

// HasRoom reports whether the worker claims a room.
func (w Worker) HasRoom() bool { return w.RoomNumber != "" }

// Activate moves the worker to the Active state and clears exit fields.
func (w *Worker) Activate() {
	w.Status = StatusActive
	w.ExitDate = nil
	w.ExitReason = ""
}

// Deactivate moves the worker to the Inactive state.
func (w *Worker) Deactivate(exitDate time.Time, reason string) {
	d := DayOf(exitDate)
	w.Status = StatusInactive
	w.ExitDate = &d
	w.ExitReason = reason
}

// ScheduleExit records a future exit without leaving the Active state.
// The maintenance pass deactivates the worker once the date has passed.
func (w *Worker) ScheduleExit(exitDate time.Time, reason string) {
	d := DayOf(exitDate)
	w.Status = StatusActive
	w.ExitDate = &d
	w.ExitReason = reason
}

// StatusConsistent reports whether Status agrees with ExitDate as of now.
func (w Worker) StatusConsistent(now time.Time) bool {
	exited := w.ExitDate != nil && !DayOf(*w.ExitDate).After(DayOf(now))
	if exited {
		return w.Status == StatusInactive
	}
	return w.Status == StatusActive
}

// AgeAt returns the worker's age in whole years at t, or 0 without a birth date.
func (w Worker) AgeAt(t time.Time) int {
	if w.BirthDate == nil {
		return 0
	}
	b := w.BirthDate.UTC()
	t = t.UTC()
	age := t.Year() - b.Year()
	if t.Month() < b.Month() || (t.Month() == b.Month() && t.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
