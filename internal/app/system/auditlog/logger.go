// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/fermehub/internal/app/store/audit"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Lifecycle controls logging for worker lifecycle events (create, edit,
	// exit, reactivation, transfer, delete, item movements).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Lifecycle string
	// Maintenance controls logging for occupancy sweeps and status healing.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Maintenance string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. A nil store disables the "db" destination.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.WorkerID != nil {
		fields = append(fields, zap.String("worker_id", event.WorkerID.Hex()))
	}
	if event.FarmID != nil {
		fields = append(fields, zap.String("farm_id", event.FarmID.Hex()))
	}
	if event.Actor != "" {
		fields = append(fields, zap.String("actor", event.Actor))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryLifecycle:
		setting = l.config.Lifecycle
	case audit.CategoryMaintenance:
		setting = l.config.Maintenance
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) worker(ctx context.Context, eventType, actor string, w models.Worker, details map[string]string) {
	farmID := w.FarmID
	workerID := w.ID
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryLifecycle,
		EventType: eventType,
		FarmID:    &farmID,
		WorkerID:  &workerID,
		Actor:     actor,
		Success:   true,
		Details:   details,
	})
}

// --- Lifecycle Events ---

// WorkerCreated logs a new worker registration.
func (l *Logger) WorkerCreated(ctx context.Context, actor string, w models.Worker) {
	l.worker(ctx, audit.EventWorkerCreated, actor, w, map[string]string{
		"national_id": w.NationalID,
		"room_number": w.RoomNumber,
	})
}

// WorkerUpdated logs an edit that did not change the worker's status.
func (l *Logger) WorkerUpdated(ctx context.Context, actor string, w models.Worker) {
	l.worker(ctx, audit.EventWorkerUpdated, actor, w, map[string]string{
		"status":      w.Status,
		"room_number": w.RoomNumber,
	})
}

// WorkerExitRecorded logs an exit that took effect.
func (l *Logger) WorkerExitRecorded(ctx context.Context, actor string, w models.Worker, itemsReturned int) {
	details := map[string]string{
		"exit_reason":    w.ExitReason,
		"items_returned": strconv.Itoa(itemsReturned),
	}
	if w.ExitDate != nil {
		details["exit_date"] = w.ExitDate.Format("2006-01-02")
	}
	l.worker(ctx, audit.EventWorkerExitRecorded, actor, w, details)
}

// WorkerReactivated logs a return to the same farm.
func (l *Logger) WorkerReactivated(ctx context.Context, actor string, w models.Worker) {
	l.worker(ctx, audit.EventWorkerReactivated, actor, w, map[string]string{
		"return_count": strconv.Itoa(w.ReturnCount),
		"entry_date":   w.EntryDate.Format("2006-01-02"),
	})
}

// WorkerTransferred logs a return into another farm.
func (l *Logger) WorkerTransferred(ctx context.Context, actor string, w models.Worker, fromFarmID primitive.ObjectID) {
	l.worker(ctx, audit.EventWorkerTransferred, actor, w, map[string]string{
		"from_farm_id": fromFarmID.Hex(),
		"return_count": strconv.Itoa(w.ReturnCount),
	})
}

// WorkerDeleted logs a worker record removal.
func (l *Logger) WorkerDeleted(ctx context.Context, actor string, w models.Worker) {
	l.worker(ctx, audit.EventWorkerDeleted, actor, w, map[string]string{
		"national_id": w.NationalID,
		"status":      w.Status,
	})
}

// WorkersBulkDeleted logs one bulk deletion per affected farm.
func (l *Logger) WorkersBulkDeleted(ctx context.Context, actor string, farmID primitive.ObjectID, deleted, roomsCleared int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryLifecycle,
		EventType: audit.EventWorkersBulkDeleted,
		FarmID:    &farmID,
		Actor:     actor,
		Success:   true,
		Details: map[string]string{
			"deleted":       strconv.Itoa(deleted),
			"rooms_cleared": strconv.Itoa(roomsCleared),
		},
	})
}

// CrossFarmConflict logs a registration refused because another farm holds
// the national ID on an active worker.
func (l *Logger) CrossFarmConflict(ctx context.Context, actor string, requestingFarmID primitive.ObjectID, existing models.Worker) {
	workerID := existing.ID
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryLifecycle,
		EventType:     audit.EventCrossFarmConflict,
		FarmID:        &requestingFarmID,
		WorkerID:      &workerID,
		Actor:         actor,
		Success:       false,
		FailureReason: "active in another farm",
		Details: map[string]string{
			"national_id":     existing.NationalID,
			"holding_farm_id": existing.FarmID.Hex(),
		},
	})
}

// DuplicateRejected logs a registration refused because the farm already has
// an active worker with the national ID.
func (l *Logger) DuplicateRejected(ctx context.Context, actor string, farmID primitive.ObjectID, existing models.Worker) {
	workerID := existing.ID
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryLifecycle,
		EventType:     audit.EventDuplicateRejected,
		FarmID:        &farmID,
		WorkerID:      &workerID,
		Actor:         actor,
		Success:       false,
		FailureReason: "active duplicate",
		Details: map[string]string{
			"national_id": existing.NationalID,
		},
	})
}

// ItemAllocated logs an item handed to a worker.
func (l *Logger) ItemAllocated(ctx context.Context, actor string, w models.Worker, itemName string) {
	l.worker(ctx, audit.EventItemAllocated, actor, w, map[string]string{"item_name": itemName})
}

// ItemReturned logs an item given back by a worker.
func (l *Logger) ItemReturned(ctx context.Context, actor string, w models.Worker, itemName string) {
	l.worker(ctx, audit.EventItemReturned, actor, w, map[string]string{"item_name": itemName})
}

// --- Maintenance Events ---

// OccupancySwept logs a sweep that corrected at least one room.
func (l *Logger) OccupancySwept(ctx context.Context, farmID primitive.ObjectID, roomsCorrected, occupantsRemoved int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMaintenance,
		EventType: audit.EventOccupancySwept,
		FarmID:    &farmID,
		Success:   true,
		Details: map[string]string{
			"rooms_corrected":   strconv.Itoa(roomsCorrected),
			"occupants_removed": strconv.Itoa(occupantsRemoved),
		},
	})
}

// LifecycleStatusHealed logs a status corrected to agree with the exit date.
func (l *Logger) LifecycleStatusHealed(ctx context.Context, w models.Worker, previousStatus string) {
	details := map[string]string{
		"previous_status": previousStatus,
		"status":          w.Status,
	}
	if w.ExitDate != nil {
		details["exit_date"] = w.ExitDate.Format("2006-01-02")
	}
	farmID := w.FarmID
	workerID := w.ID
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryMaintenance,
		EventType: audit.EventLifecycleStatusHealed,
		FarmID:    &farmID,
		WorkerID:  &workerID,
		Success:   true,
		Details:   details,
	})
}
