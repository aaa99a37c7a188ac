package auditlog_test

import (
	"testing"
	"time"

	"github.com/dalemusser/fermehub/internal/app/store/audit"
	"github.com/dalemusser/fermehub/internal/app/system/auditlog"
	"github.com/dalemusser/fermehub/internal/domain/models"
	"github.com/dalemusser/fermehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleWorker() models.Worker {
	return models.Worker{
		ID:         primitive.NewObjectID(),
		NationalID: "X1",
		FullName:   "Youssef Amrani",
		FarmID:     primitive.NewObjectID(),
		RoomNumber: "R1",
		Status:     models.StatusActive,
		EntryDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	w := sampleWorker()
	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.WorkerCreated(ctx, "admin", w)
	logger.LifecycleStatusHealed(ctx, w, models.StatusActive)
}

func TestLogger_LogOnly(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.Config{
		Lifecycle:   "log",
		Maintenance: "off",
	})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	w := sampleWorker()
	logger.WorkerCreated(ctx, "admin-a", w)
	logger.OccupancySwept(ctx, w.FarmID, 1, 2)

	entries := logs.FilterMessage("audit event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_type"] != audit.EventWorkerCreated {
		t.Errorf("event_type = %v, want %s", fields["event_type"], audit.EventWorkerCreated)
	}
	if fields["worker_id"] != w.ID.Hex() {
		t.Errorf("worker_id = %v, want %s", fields["worker_id"], w.ID.Hex())
	}
	if fields["actor"] != "admin-a" {
		t.Errorf("actor = %v, want admin-a", fields["actor"])
	}
}

func TestLogger_FailureLoggedAtWarn(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Lifecycle: "log"})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.CrossFarmConflict(ctx, "admin-b", primitive.NewObjectID(), sampleWorker())

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
}

func TestLogger_Log_ConfigOff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{
		Lifecycle:   "off",
		Maintenance: "off",
	})

	w := sampleWorker()
	logger.WorkerDeleted(ctx, "admin", w)

	events, err := store.GetByWorker(ctx, w.ID, 10)
	if err != nil {
		t.Fatalf("GetByWorker failed: %v", err)
	}
	if len(events) != 0 {
		t.Error("expected no events when config is 'off'")
	}
}

func TestLogger_Log_ConfigDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{
		Lifecycle:   "db",
		Maintenance: "db",
	})

	w := sampleWorker()
	exit := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	w.Deactivate(exit, "maladie")
	logger.WorkerExitRecorded(ctx, "admin", w, 2)

	events, err := store.GetByWorker(ctx, w.ID, 10)
	if err != nil {
		t.Fatalf("GetByWorker failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.EventType != audit.EventWorkerExitRecorded {
		t.Errorf("EventType = %q", e.EventType)
	}
	if e.Details["exit_date"] != "2024-03-01" || e.Details["items_returned"] != "2" {
		t.Errorf("unexpected details: %v", e.Details)
	}
	if e.FarmID == nil || *e.FarmID != w.FarmID {
		t.Error("expected farm id on event")
	}
}

func TestLogger_MaintenanceCategoryFilteredByConfig(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{
		Lifecycle:   "db",
		Maintenance: "off",
	})

	w := sampleWorker()
	logger.LifecycleStatusHealed(ctx, w, models.StatusInactive)
	logger.WorkerUpdated(ctx, "admin", w)

	events, err := store.GetByWorker(ctx, w.ID, 10)
	if err != nil {
		t.Fatalf("GetByWorker failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected only the lifecycle event, got %d", len(events))
	}
	if events[0].Category != audit.CategoryLifecycle {
		t.Errorf("Category = %q, want lifecycle", events[0].Category)
	}
}
