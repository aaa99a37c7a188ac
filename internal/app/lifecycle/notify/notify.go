// Package notify builds the notification payloads emitted by worker lifecycle
// operations. Everything here is a pure function of the before/after state;
// delivery belongs to the notification collaborator.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/fermehub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Builder carries what payloads need beyond the domain records.
type Builder struct {
	// BaseURL prefixes deep links (e.g. https://fermehub.example.com).
	BaseURL string
	// NewCorrelationID groups the per-admin copies of one event.
	NewCorrelationID func() string
}

// NewBuilder returns a Builder using random UUIDs for correlation ids.
func NewBuilder(baseURL string) Builder {
	return Builder{
		BaseURL:          strings.TrimRight(baseURL, "/"),
		NewCorrelationID: uuid.NewString,
	}
}

// DeepLink returns the link to a worker's page.
func (b Builder) DeepLink(workerID primitive.ObjectID) string {
	return fmt.Sprintf("%s/workers/%s", b.BaseURL, workerID.Hex())
}

// NewWorker announces a registration to the farm's admins.
func (b Builder) NewWorker(actor string, farm models.Farm, w models.Worker, now time.Time) []models.Notification {
	return b.toFarmAdmins(farm, models.Notification{
		Type:      models.NotifyNewWorker,
		Title:     "New worker registered",
		Message:   fmt.Sprintf("%s (%s) joined %s on %s.", w.FullName, w.NationalID, farm.Name, dateOf(w.EntryDate)),
		Priority:  models.PriorityNormal,
		CreatedBy: actor,
		ActionPayload: &models.ActionPayload{
			WorkerID:         w.ID,
			WorkerNationalID: w.NationalID,
			DeepLink:         b.DeepLink(w.ID),
		},
	}, now)
}

// ExitRecorded tells the farm's admins a worker left.
func (b Builder) ExitRecorded(actor string, farm models.Farm, w models.Worker, now time.Time) []models.Notification {
	exit := ""
	if w.ExitDate != nil {
		exit = dateOf(*w.ExitDate)
	}
	msg := fmt.Sprintf("%s (%s) left %s on %s.", w.FullName, w.NationalID, farm.Name, exit)
	if w.ExitReason != "" {
		msg = fmt.Sprintf("%s (%s) left %s on %s: %s.", w.FullName, w.NationalID, farm.Name, exit, w.ExitReason)
	}
	return b.toFarmAdmins(farm, models.Notification{
		Type:      models.NotifyExitRecorded,
		Title:     "Worker exit recorded",
		Message:   msg,
		Priority:  models.PriorityNormal,
		CreatedBy: actor,
		ActionPayload: &models.ActionPayload{
			WorkerID:         w.ID,
			WorkerNationalID: w.NationalID,
			DeepLink:         b.DeepLink(w.ID),
		},
	}, now)
}

// CrossFarmConflict asks the admins of the farm where the worker is active to
// record an exit so that requesting can register the worker.
func (b Builder) CrossFarmConflict(actor string, requesting, holding models.Farm, existing models.Worker, now time.Time) []models.Notification {
	return b.toFarmAdmins(holding, models.Notification{
		Type:  models.NotifyCrossFarmConflict,
		Title: "Worker registration blocked by an active record",
		Message: fmt.Sprintf("%s tried to register %s (%s), who is still active in %s. Record an exit date to release the worker.",
			requesting.Name, existing.FullName, existing.NationalID, holding.Name),
		Priority:  models.PriorityHigh,
		CreatedBy: actor,
		ActionPayload: &models.ActionPayload{
			WorkerID:         existing.ID,
			WorkerNationalID: existing.NationalID,
			RequiredAction:   models.ActionRecordExit,
			DeepLink:         b.DeepLink(existing.ID),
		},
	}, now)
}

// WorkerReturned tells the farm's admins an inactive worker was reactivated.
func (b Builder) WorkerReturned(actor string, farm models.Farm, w models.Worker, now time.Time) []models.Notification {
	return b.toFarmAdmins(farm, models.Notification{
		Type:  models.NotifyWorkerReturned,
		Title: "Worker returned",
		Message: fmt.Sprintf("%s (%s) returned to %s on %s (return #%d).",
			w.FullName, w.NationalID, farm.Name, dateOf(w.EntryDate), w.ReturnCount),
		Priority:  models.PriorityNormal,
		CreatedBy: actor,
		ActionPayload: &models.ActionPayload{
			WorkerID:         w.ID,
			WorkerNationalID: w.NationalID,
			DeepLink:         b.DeepLink(w.ID),
		},
	}, now)
}

// WorkerTransferred tells the previous farm's admins the worker moved away.
func (b Builder) WorkerTransferred(actor string, from, to models.Farm, w models.Worker, now time.Time) []models.Notification {
	return b.toFarmAdmins(from, models.Notification{
		Type:  models.NotifyWorkerTransferred,
		Title: "Worker transferred out",
		Message: fmt.Sprintf("%s (%s) was transferred from %s to %s on %s.",
			w.FullName, w.NationalID, from.Name, to.Name, dateOf(w.EntryDate)),
		Priority:  models.PriorityNormal,
		CreatedBy: actor,
		ActionPayload: &models.ActionPayload{
			WorkerID:         w.ID,
			WorkerNationalID: w.NationalID,
			RequiredAction:   models.ActionReview,
			DeepLink:         b.DeepLink(w.ID),
		},
	}, now)
}

// toFarmAdmins copies n once per farm admin. A farm without admins gets one
// farm-wide notification with no recipient.
func (b Builder) toFarmAdmins(farm models.Farm, n models.Notification, now time.Time) []models.Notification {
	n.RecipientFarmID = farm.ID
	n.CreatedAt = now.UTC()
	if b.NewCorrelationID != nil {
		n.CorrelationID = b.NewCorrelationID()
	}
	if len(farm.AdminIDs) == 0 {
		n.ID = primitive.NewObjectID()
		return []models.Notification{n}
	}
	out := make([]models.Notification, 0, len(farm.AdminIDs))
	for _, admin := range farm.AdminIDs {
		c := n
		c.ID = primitive.NewObjectID()
		id := admin
		c.RecipientID = &id
		if n.ActionPayload != nil {
			p := *n.ActionPayload
			c.ActionPayload = &p
		}
		out = append(out, c)
	}
	return out
}

func dateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
