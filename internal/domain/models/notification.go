// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types emitted by the lifecycle engine.
const (
	NotifyNewWorker         = "new_worker"
	NotifyExitRecorded      = "exit_recorded"
	NotifyCrossFarmConflict = "cross_farm_conflict"
	NotifyWorkerReturned    = "worker_returned"
	NotifyWorkerTransferred = "worker_transferred"
)

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Required actions carried in ActionPayload.
const (
	ActionRecordExit = "record_exit"
	ActionReview     = "review"
)

// Notification is the payload handed to the notification collaborator.
// Delivery is not the engine's concern.
type Notification struct {
	ID              primitive.ObjectID  `bson:"_id" json:"id"`
	CorrelationID   string              `bson:"correlation_id" json:"correlation_id"`
	Type            string              `bson:"type" json:"type"`
	Title           string              `bson:"title" json:"title"`
	Message         string              `bson:"message" json:"message"`
	RecipientID     *primitive.ObjectID `bson:"recipient_id,omitempty" json:"recipient_id,omitempty"` // nil = all admins of RecipientFarmID
	RecipientFarmID primitive.ObjectID  `bson:"recipient_farm_id" json:"recipient_farm_id"`
	Priority        string              `bson:"priority" json:"priority"`
	CreatedBy       string              `bson:"created_by" json:"created_by"`
	ActionPayload   *ActionPayload      `bson:"action_payload,omitempty" json:"action_payload,omitempty"`
	Read            bool                `bson:"read" json:"read"`
	CreatedAt       time.Time           `bson:"created_at" json:"created_at"`
}

// ActionPayload tells the recipient what to do about the notification.
type ActionPayload struct {
	WorkerID         primitive.ObjectID `bson:"worker_id" json:"worker_id"`
	WorkerNationalID string             `bson:"worker_national_id" json:"worker_national_id"`
	RequiredAction   string             `bson:"required_action,omitempty" json:"required_action,omitempty"`
	DeepLink         string             `bson:"deep_link,omitempty" json:"deep_link,omitempty"`
}
