package bootstrap

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/fermehub/internal/testutil"
	"go.uber.org/zap"
)

func validConfig() AppConfig {
	return AppConfig{
		StoreBackend:            BackendMemory,
		MongoURI:                "mongodb://localhost:27017",
		MongoDatabase:           "fermehub",
		RoomRetryLimit:          3,
		NameSimilarityThreshold: 0.85,
		NotifyRedisStream:       "fermehub:notifications",
		MaintenanceInterval:     time.Hour,
		AuditLogLifecycle:       "all",
		AuditLogMaintenance:     "log",
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "valid memory", mutate: func(*AppConfig) {}},
		{name: "valid mongo", mutate: func(c *AppConfig) { c.StoreBackend = BackendMongo }},
		{name: "unknown backend", mutate: func(c *AppConfig) { c.StoreBackend = "sqlite" }, wantErr: "store_backend"},
		{name: "mongo without database", mutate: func(c *AppConfig) { c.StoreBackend = BackendMongo; c.MongoDatabase = "" }, wantErr: "mongo_database"},
		{name: "negative retries", mutate: func(c *AppConfig) { c.RoomRetryLimit = -1 }, wantErr: "room_retry_limit"},
		{name: "threshold zero", mutate: func(c *AppConfig) { c.NameSimilarityThreshold = 0 }, wantErr: "name_similarity_threshold"},
		{name: "threshold above one", mutate: func(c *AppConfig) { c.NameSimilarityThreshold = 1.5 }, wantErr: "name_similarity_threshold"},
		{name: "negative interval", mutate: func(c *AppConfig) { c.MaintenanceInterval = -time.Second }, wantErr: "maintenance_interval"},
		{name: "redis without stream", mutate: func(c *AppConfig) { c.NotifyRedisAddr = "localhost:6379"; c.NotifyRedisStream = "" }, wantErr: "notify_redis_stream"},
		{name: "bad audit mode", mutate: func(c *AppConfig) { c.AuditLogLifecycle = "loud" }, wantErr: "audit_log_lifecycle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(nil, cfg, zap.NewNop())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuildHandler_MemoryBackend(t *testing.T) {
	cfg := validConfig()
	cfg.MaintenanceInterval = 0
	deps := DBDeps{Background: &Background{}}

	h, err := BuildHandler(nil, cfg, deps, zap.NewNop())
	if err != nil {
		t.Fatalf("BuildHandler: %v", err)
	}
	if deps.Background.Maintenance != nil {
		t.Error("maintenance worker must stay off with a zero interval")
	}

	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, testutil.NewRequest(t, "GET", "/health", nil))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"database":"memory"`)

	// Unknown farm in an empty memory store.
	rec = testutil.NewRecorder()
	h.ServeHTTP(rec, testutil.NewRequest(t, "GET", "/api/farms/65f000000000000000000000/workers", nil))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestBuildHandler_StartsAndStopsMaintenance(t *testing.T) {
	cfg := validConfig()
	deps := DBDeps{Background: &Background{}}

	if _, err := BuildHandler(nil, cfg, deps, zap.NewNop()); err != nil {
		t.Fatalf("BuildHandler: %v", err)
	}
	if deps.Background.Maintenance == nil {
		t.Fatal("expected the maintenance worker to start")
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := Shutdown(ctx, nil, cfg, deps, zap.NewNop()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestEnsureSchema_SkipsWithoutDatabase(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := EnsureSchema(ctx, nil, validConfig(), DBDeps{}, zap.NewNop()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
}

func TestEnsureSchema_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cfg := validConfig()
	cfg.StoreBackend = BackendMongo
	if err := EnsureSchema(ctx, nil, cfg, DBDeps{MongoDatabase: db}, zap.NewNop()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	specs, err := db.Collection("workers").Indexes().ListSpecifications(ctx)
	if err != nil {
		t.Fatalf("list indexes: %v", err)
	}
	found := false
	for _, s := range specs {
		if s.Name == "idx_workers_nationalid" {
			found = true
		}
	}
	if !found {
		t.Error("expected idx_workers_nationalid on workers")
	}
}
