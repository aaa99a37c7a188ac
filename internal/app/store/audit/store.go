// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryLifecycle   = "lifecycle"
	CategoryMaintenance = "maintenance"
)

// Lifecycle event types
const (
	EventWorkerCreated      = "worker_created"
	EventWorkerUpdated      = "worker_updated"
	EventWorkerExitRecorded = "worker_exit_recorded"
	EventWorkerReactivated  = "worker_reactivated"
	EventWorkerTransferred  = "worker_transferred"
	EventWorkerDeleted      = "worker_deleted"
	EventWorkersBulkDeleted = "workers_bulk_deleted"
	EventCrossFarmConflict  = "cross_farm_conflict"
	EventDuplicateRejected  = "duplicate_rejected"
	EventItemAllocated      = "item_allocated"
	EventItemReturned       = "item_returned"
)

// Maintenance event types
const (
	EventOccupancySwept        = "occupancy_swept"
	EventLifecycleStatusHealed = "lifecycle_status_healed"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	Timestamp time.Time           `bson:"timestamp"`
	FarmID    *primitive.ObjectID `bson:"farm_id,omitempty"`

	// Event classification
	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Who
	WorkerID *primitive.ObjectID `bson:"worker_id,omitempty"` // affected worker
	Actor    string              `bson:"actor,omitempty"`     // who performed the action

	// Outcome
	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	FarmID    *primitive.ObjectID
	WorkerID  *primitive.ObjectID
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func (f QueryFilter) query() bson.M {
	query := bson.M{}
	if f.FarmID != nil {
		query["farm_id"] = f.FarmID
	}
	if f.WorkerID != nil {
		query["worker_id"] = f.WorkerID
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["event_type"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		timeQuery := bson.M{}
		if f.StartTime != nil {
			timeQuery["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			timeQuery["$lte"] = *f.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter, most recent first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.query())
}

// GetByWorker retrieves recent audit events for a specific worker.
func (s *Store) GetByWorker(ctx context.Context, workerID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		WorkerID: &workerID,
		Limit:    limit,
	})
}

// GetByFarm retrieves recent audit events for a farm.
func (s *Store) GetByFarm(ctx context.Context, farmID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		FarmID: &farmID,
		Limit:  limit,
	})
}

// GetRecent retrieves the most recent audit events.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		Limit: limit,
	})
}
