package lifecycle

import (
	"strings"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/conflict"
	"github.com/dalemusser/fermehub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkerInput is the caller-supplied part of a worker record.
type WorkerInput struct {
	NationalID   string              `json:"national_id"`
	Matricule    string              `json:"matricule,omitempty"`
	FullName     string              `json:"full_name"`
	Gender       string              `json:"gender"`
	BirthDate    *time.Time          `json:"birth_date,omitempty"`
	Phone        string              `json:"phone,omitempty"`
	RoomNumber   string              `json:"room_number,omitempty"`
	SupervisorID *primitive.ObjectID `json:"supervisor_id,omitempty"`
	// EntryDate defaults to today on create and to the current entry date
	// on edit.
	EntryDate time.Time `json:"entry_date"`
}

// CreateRequest registers a worker in a farm.
type CreateRequest struct {
	Actor  string
	FarmID primitive.ObjectID
	Worker WorkerInput
	// ApplyResolution performs the reactivation or transfer the resolver
	// proposes instead of returning the offer.
	ApplyResolution bool
}

// EditRequest replaces the editable fields of a worker.
type EditRequest struct {
	Actor    string
	WorkerID primitive.ObjectID
	// FarmID moves an active worker to another farm; zero keeps the farm.
	FarmID     primitive.ObjectID
	Worker     WorkerInput
	ExitDate   *time.Time
	ExitReason string
}

// ReactivateRequest brings an inactive worker back into its farm.
type ReactivateRequest struct {
	Actor      string
	WorkerID   primitive.ObjectID
	EntryDate  time.Time
	RoomNumber string
}

// TransferRequest brings an inactive worker into another farm.
type TransferRequest struct {
	Actor      string
	WorkerID   primitive.ObjectID
	ToFarmID   primitive.ObjectID
	EntryDate  time.Time
	RoomNumber string
}

// DeleteRequest removes one worker record.
type DeleteRequest struct {
	Actor    string
	WorkerID primitive.ObjectID
}

// BulkDeleteRequest removes several worker records in one unit of work.
type BulkDeleteRequest struct {
	Actor     string
	WorkerIDs []primitive.ObjectID
}

// AllocateItemRequest hands a stock item to an active worker.
type AllocateItemRequest struct {
	Actor    string
	WorkerID primitive.ObjectID
	ItemName string
}

// ReturnItemRequest records an allocated item given back.
type ReturnItemRequest struct {
	Actor       string
	WorkerID    primitive.ObjectID
	StockItemID primitive.ObjectID
}

// Result is what lifecycle operations report back. A pending result means
// nothing was written and another farm has to act first.
type Result struct {
	Worker             *models.Worker        `json:"worker,omitempty"`
	Disposition        conflict.Disposition  `json:"disposition,omitempty"`
	Existing           *models.Worker        `json:"existing,omitempty"`
	Pending            bool                  `json:"pending"`
	Message            string                `json:"message,omitempty"`
	Warnings           []string              `json:"warnings,omitempty"`
	ProbableDuplicates []conflict.Match      `json:"probable_duplicates,omitempty"`
	Notifications      []models.Notification `json:"-"`
}

// BulkDeleteResult summarizes a bulk deletion.
type BulkDeleteResult struct {
	Deleted      int                  `json:"deleted"`
	RoomsCleared int                  `json:"rooms_cleared"`
	Farms        []primitive.ObjectID `json:"farms"`
}

// HealReport summarizes a status auto-correction pass over one farm.
type HealReport struct {
	Checked         int `json:"checked"`
	Deactivated     int `json:"deactivated"`
	ExitDatesFilled int `json:"exit_dates_filled"`
	Normalized      int `json:"normalized"`
}

// normalize sanitizes free text and checks required fields.
func (in WorkerInput) normalize() (WorkerInput, error) {
	in.NationalID = conflict.NormalizeNationalID(htmlsanitize.PlainText(in.NationalID))
	in.Matricule = htmlsanitize.PlainText(in.Matricule)
	in.FullName = htmlsanitize.PlainText(in.FullName)
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	in.Phone = htmlsanitize.PlainText(in.Phone)
	in.RoomNumber = htmlsanitize.PlainText(in.RoomNumber)

	switch {
	case in.NationalID == "":
		return in, invalid("national id is required")
	case in.FullName == "":
		return in, invalid("full name is required")
	case in.Gender != models.GenderMale && in.Gender != models.GenderFemale:
		return in, invalid("gender must be %q or %q", models.GenderMale, models.GenderFemale)
	}
	if in.BirthDate != nil {
		d := models.DayOf(*in.BirthDate)
		in.BirthDate = &d
	}
	if !in.EntryDate.IsZero() {
		in.EntryDate = models.DayOf(in.EntryDate)
	}
	return in, nil
}

// apply copies the input onto w and recomputes the derived fields.
func (in WorkerInput) apply(w *models.Worker, today time.Time) {
	w.NationalID = in.NationalID
	w.Matricule = in.Matricule
	w.FullName = in.FullName
	w.FullNameCI, w.NameTokens = conflict.NameKey(in.FullName)
	w.Gender = in.Gender
	w.BirthDate = in.BirthDate
	w.Age = w.AgeAt(today)
	w.Phone = in.Phone
	w.RoomNumber = in.RoomNumber
	w.SupervisorID = in.SupervisorID
	if !in.EntryDate.IsZero() {
		w.EntryDate = in.EntryDate
	}
}
