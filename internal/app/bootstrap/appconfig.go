// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig is passed to most lifecycle hooks, so any configuration needed
// during startup, request handling, or shutdown lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: campushub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Firebase bearer tokens; disabled when FirebaseProjectID is empty.
	FirebaseProjectID       string
	FirebaseCredentialsFile string // blank uses Application Default Credentials

	// Object storage. StorageType is "minio" or "memory" (dev/test only).
	StorageType    string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Upload limits
	UploadMaxBytes int64
	UploadTypes    []string

	// Redis relays realtime deliveries between instances; blank disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	// Websocket origins allowed besides same-host requests.
	WSAllowedOrigins []string

	// Notification outbox dispatcher
	DispatchPollInterval time.Duration
	DispatchLease        time.Duration
	DispatchMaxAttempts  int
	DispatchBaseBackoff  time.Duration
	DispatchMaxBackoff   time.Duration
	DispatchBatchSize    int
	OutboxRetention      time.Duration // how long done/failed/cancelled intents are kept

	// Time zone used to interpret event dates and audit filters.
	TimeZone string

	// Login throttling
	LoginIPLimit     int
	LoginIPWindow    time.Duration
	LoginEmailLimit  int
	LoginEmailWindow time.Duration

	// Audit logging: "all", "db", "log" or "off" per category.
	AuditLogAuth  string
	AuditLogAdmin string
	AuditLogForum string

	// SuperAdmin bootstrap
	SuperAdminEmail string
}
