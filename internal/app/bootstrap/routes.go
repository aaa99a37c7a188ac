// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	healthfeature "github.com/dalemusser/fermehub/internal/app/features/health"
	workersfeature "github.com/dalemusser/fermehub/internal/app/features/workers"
	"github.com/dalemusser/fermehub/internal/app/lifecycle"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/storage"
	"github.com/dalemusser/fermehub/internal/app/store/audit"
	"github.com/dalemusser/fermehub/internal/app/store/memory"
	notificationstore "github.com/dalemusser/fermehub/internal/app/store/notifications"
	"github.com/dalemusser/fermehub/internal/app/store/unitofwork"
	"github.com/dalemusser/fermehub/internal/app/system/auditlog"
	"github.com/dalemusser/fermehub/internal/app/system/notifysink"
	"github.com/dalemusser/fermehub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// engine is the lifecycle service with the optional read paths that only the
// Mongo backend provides.
type engine struct {
	svc   *lifecycle.Service
	pager workersfeature.Pager
	inbox workersfeature.Inbox
}

// newEngine assembles the repository, notification sinks and audit logger for
// the configured backend.
func newEngine(appCfg AppConfig, deps DBDeps, logger *zap.Logger) engine {
	var (
		e          engine
		repo       storage.Repository
		auditStore *audit.Store
		sinks      []notifysink.Sink
	)

	if deps.MongoDatabase != nil {
		uow := unitofwork.New(deps.MongoDatabase, logger)
		inbox := notificationstore.New(deps.MongoDatabase)
		repo = uow
		e.pager = uow.Workers
		e.inbox = inbox
		auditStore = audit.New(deps.MongoDatabase)
		sinks = append(sinks, inbox)
	} else {
		repo = memory.New()
	}
	if deps.Redis != nil {
		sinks = append(sinks, notifysink.NewRedisStream(deps.Redis, appCfg.NotifyRedisStream, 0))
	}

	auditLog := auditlog.New(auditStore, logger, auditlog.Config{
		Lifecycle:   appCfg.AuditLogLifecycle,
		Maintenance: appCfg.AuditLogMaintenance,
	})

	e.svc = lifecycle.New(repo, notifysink.NewFanout(logger, sinks...), auditLog, logger, lifecycle.Config{
		RoomRetryLimit:      appCfg.RoomRetryLimit,
		SimilarityThreshold: appCfg.NameSimilarityThreshold,
		BaseURL:             appCfg.BaseURL,
	})
	return e
}

// BuildHandler wires the engine, starts the maintenance worker and mounts:
//
//	/health  liveness and dependency status
//	/api     worker lifecycle JSON API
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	e := newEngine(appCfg, deps, logger)

	if appCfg.MaintenanceInterval > 0 && deps.Background != nil {
		m := workers.NewMaintenance(e.svc, logger.Named("maintenance"), appCfg.MaintenanceInterval)
		m.Start()
		deps.Background.Maintenance = m
	}

	r := chi.NewRouter()

	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	workersHandler := workersfeature.NewHandler(e.svc, e.pager, e.inbox, logger)
	r.Mount("/api", workersfeature.Routes(workersHandler))

	return r, nil
}
