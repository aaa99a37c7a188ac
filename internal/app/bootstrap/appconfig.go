// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Store backends.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// AppConfig holds fermehub-specific configuration.
//
// WAFFLE's CoreConfig covers the framework side (ports, TLS, logging level,
// CORS, body limits). Everything the worker lifecycle engine needs lives here.
type AppConfig struct {
	// Storage
	StoreBackend  string // "mongo" or "memory"
	MongoURI      string // e.g. mongodb://localhost:27017
	MongoDatabase string

	// Engine tuning
	RoomRetryLimit          int     // version conflicts tolerated per room update
	NameSimilarityThreshold float64 // probable-duplicate score, in (0, 1]
	BaseURL                 string  // prefix for deep links in notifications

	// Notification stream (optional; blank address disables it)
	NotifyRedisAddr   string
	NotifyRedisStream string

	// Background maintenance; zero disables the worker.
	MaintenanceInterval time.Duration

	// Audit destinations: "all", "db", "log" or "off".
	AuditLogLifecycle   string
	AuditLogMaintenance string
}
