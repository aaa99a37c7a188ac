// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/conflict"
	"github.com/dalemusser/fermehub/internal/app/lifecycle/occupancy"
	"github.com/dalemusser/fermehub/internal/app/system/notifysink"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys are loaded from config files (mongo_uri), environment
// variables (FERMEHUB_MONGO_URI) and flags (--mongo_uri).
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: BackendMongo, Desc: "Storage backend: 'mongo' or 'memory'"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "fermehub", Desc: "MongoDB database name"},

	{Name: "room_retry_limit", Default: occupancy.DefaultRetryLimit, Desc: "Retries of a room update after a version conflict"},
	{Name: "name_similarity_threshold", Default: strconv.FormatFloat(conflict.DefaultSimilarityThreshold, 'f', -1, 64), Desc: "Name similarity score flagging a probable duplicate (0-1]"},
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for deep links in notifications"},

	{Name: "notify_redis_addr", Default: "", Desc: "Redis address for the notification stream (blank disables it)"},
	{Name: "notify_redis_stream", Default: notifysink.DefaultStream, Desc: "Redis stream receiving notifications"},

	{Name: "maintenance_interval", Default: "1h", Desc: "Interval between status healing and occupancy sweeps (0 disables)"},

	{Name: "audit_log_lifecycle", Default: "all", Desc: "Lifecycle event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_maintenance", Default: "log", Desc: "Maintenance event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and fermehub's app config. Precedence
// is flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "FERMEHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	threshold, err := strconv.ParseFloat(appValues.String("name_similarity_threshold"), 64)
	if err != nil {
		return nil, AppConfig{}, fmt.Errorf("name_similarity_threshold: %w", err)
	}

	appCfg := AppConfig{
		StoreBackend:  appValues.String("store_backend"),
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),

		RoomRetryLimit:          appValues.Int("room_retry_limit"),
		NameSimilarityThreshold: threshold,
		BaseURL:                 appValues.String("base_url"),

		NotifyRedisAddr:   appValues.String("notify_redis_addr"),
		NotifyRedisStream: appValues.String("notify_redis_stream"),

		MaintenanceInterval: appValues.Duration("maintenance_interval", time.Hour),

		AuditLogLifecycle:   appValues.String("audit_log_lifecycle"),
		AuditLogMaintenance: appValues.String("audit_log_maintenance"),
	}
	return coreCfg, appCfg, nil
}

var auditModes = map[string]bool{"all": true, "db": true, "log": true, "off": true}

// ValidateConfig rejects configurations that would fail later in startup or
// silently misbehave at run time.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.StoreBackend {
	case BackendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if appCfg.MongoDatabase == "" {
			return fmt.Errorf("mongo_database is required with the mongo backend")
		}
	case BackendMemory:
		logger.Warn("in-memory store selected; data is lost on restart")
	default:
		return fmt.Errorf("store_backend must be %q or %q, got %q", BackendMongo, BackendMemory, appCfg.StoreBackend)
	}

	if appCfg.RoomRetryLimit < 0 {
		return fmt.Errorf("room_retry_limit must not be negative")
	}
	if t := appCfg.NameSimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("name_similarity_threshold must be in (0, 1], got %v", t)
	}
	if appCfg.MaintenanceInterval < 0 {
		return fmt.Errorf("maintenance_interval must not be negative")
	}
	if appCfg.NotifyRedisAddr != "" && appCfg.NotifyRedisStream == "" {
		return fmt.Errorf("notify_redis_stream is required when notify_redis_addr is set")
	}
	for key, v := range map[string]string{
		"audit_log_lifecycle":   appCfg.AuditLogLifecycle,
		"audit_log_maintenance": appCfg.AuditLogMaintenance,
	} {
		if !auditModes[v] {
			return fmt.Errorf("%s must be all, db, log or off, got %q", key, v)
		}
	}
	return nil
}
