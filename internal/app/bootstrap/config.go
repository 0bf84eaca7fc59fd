// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/campushub/internal/app/system/limits"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"github.com/dalemusser/campushub/internal/app/system/timezones"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for CampusHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: CAMPUSHUB_MONGO_URI, CAMPUSHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "campus_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "campushub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime (e.g., 24h, 720h)"},

	// Firebase
	{Name: "firebase_project_id", Default: "", Desc: "Firebase project ID (blank disables bearer tokens)"},
	{Name: "firebase_credentials_file", Default: "", Desc: "Service account JSON (blank uses Application Default Credentials)"},

	// Object storage
	{Name: "storage_type", Default: "minio", Desc: "Storage backend: 'minio' or 'memory'"},
	{Name: "minio_endpoint", Default: "localhost:9000", Desc: "S3-compatible endpoint (host:port)"},
	{Name: "minio_access_key", Default: "", Desc: "Object storage access key"},
	{Name: "minio_secret_key", Default: "", Desc: "Object storage secret key"},
	{Name: "minio_bucket", Default: "campushub", Desc: "Bucket for uploads"},
	{Name: "minio_region", Default: "", Desc: "Bucket region"},
	{Name: "minio_use_ssl", Default: false, Desc: "Use HTTPS to reach the endpoint"},

	// Uploads
	{Name: "upload_max_bytes", Default: limits.DefaultMaxUploadSize, Desc: "Largest accepted upload in bytes"},
	{Name: "upload_types", Default: strings.Join(limits.DefaultUploadTypes, ","), Desc: "Comma-separated accepted content types"},

	// Realtime
	{Name: "redis_addr", Default: "", Desc: "Redis address for the realtime relay (blank disables it)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "redis_channel", Default: "campushub:notifications", Desc: "Pub/sub channel for notification fan-out"},
	{Name: "ws_allowed_origins", Default: "", Desc: "Comma-separated origins allowed to open the notification websocket"},

	// Notification outbox
	{Name: "dispatch_poll_interval", Default: "1s", Desc: "How often the dispatcher looks for due intents"},
	{Name: "dispatch_lease", Default: "30s", Desc: "How long a claimed intent is reserved"},
	{Name: "dispatch_max_attempts", Default: 5, Desc: "Attempts before an intent is marked failed"},
	{Name: "dispatch_base_backoff", Default: "2s", Desc: "Retry delay after the first failure"},
	{Name: "dispatch_max_backoff", Default: "5m", Desc: "Largest retry delay"},
	{Name: "dispatch_batch_size", Default: 100, Desc: "Intents handled per pass"},
	{Name: "outbox_retention", Default: "168h", Desc: "How long finished intents are kept"},

	{Name: "time_zone", Default: "Europe/Paris", Desc: "IANA time zone for event dates"},

	// Login throttling
	{Name: "login_ip_limit", Default: 10, Desc: "Login attempts per IP per window"},
	{Name: "login_ip_window", Default: "1m", Desc: "Per-IP login window"},
	{Name: "login_email_limit", Default: 5, Desc: "Login attempts per email per window"},
	{Name: "login_email_window", Default: "5m", Desc: "Per-email login window"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_forum", Default: "all", Desc: "Forum event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// SuperAdmin bootstrap
	{Name: "superadmin_email", Default: "", Desc: "Email of the superadmin user (promotes/creates on startup)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, CAMPUSHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CAMPUSHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		FirebaseProjectID:       appValues.String("firebase_project_id"),
		FirebaseCredentialsFile: appValues.String("firebase_credentials_file"),

		StorageType:    strings.ToLower(strings.TrimSpace(appValues.String("storage_type"))),
		MinioEndpoint:  appValues.String("minio_endpoint"),
		MinioAccessKey: appValues.String("minio_access_key"),
		MinioSecretKey: appValues.String("minio_secret_key"),
		MinioBucket:    appValues.String("minio_bucket"),
		MinioRegion:    appValues.String("minio_region"),
		MinioUseSSL:    appValues.Bool("minio_use_ssl"),

		UploadMaxBytes: int64(appValues.Int("upload_max_bytes")),
		UploadTypes:    splitList(appValues.String("upload_types")),

		RedisAddr:        appValues.String("redis_addr"),
		RedisPassword:    appValues.String("redis_password"),
		RedisDB:          appValues.Int("redis_db"),
		RedisChannel:     appValues.String("redis_channel"),
		WSAllowedOrigins: splitList(appValues.String("ws_allowed_origins")),

		DispatchPollInterval: appValues.Duration("dispatch_poll_interval", time.Second),
		DispatchLease:        appValues.Duration("dispatch_lease", 30*time.Second),
		DispatchMaxAttempts:  appValues.Int("dispatch_max_attempts"),
		DispatchBaseBackoff:  appValues.Duration("dispatch_base_backoff", 2*time.Second),
		DispatchMaxBackoff:   appValues.Duration("dispatch_max_backoff", 5*time.Minute),
		DispatchBatchSize:    appValues.Int("dispatch_batch_size"),
		OutboxRetention:      appValues.Duration("outbox_retention", 7*24*time.Hour),

		TimeZone: appValues.String("time_zone"),

		LoginIPLimit:     appValues.Int("login_ip_limit"),
		LoginIPWindow:    appValues.Duration("login_ip_window", time.Minute),
		LoginEmailLimit:  appValues.Int("login_email_limit"),
		LoginEmailWindow: appValues.Duration("login_email_window", 5*time.Minute),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),
		AuditLogForum: appValues.String("audit_log_forum"),

		SuperAdminEmail: appValues.String("superadmin_email"),
	}

	// Operation timeouts are read here so ConnectDB already uses them.
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		cur := timeouts.Current()
		logger.Info("timeouts overridden from environment",
			zap.Int("count", n),
			zap.Duration("ping", cur.Ping),
			zap.Duration("short", cur.Short),
			zap.Duration("medium", cur.Medium),
			zap.Duration("long", cur.Long))
	}

	return coreCfg, appCfg, nil
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validAuditModes = map[string]bool{"all": true, "db": true, "log": true, "off": true}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked here so configuration errors surface before
// any connection attempt.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg, appCfg)
}

func validateApp(coreCfg *config.CoreConfig, appCfg AppConfig) error {
	var problems []string

	if len(appCfg.SessionKey) < 32 {
		problems = append(problems, "session_key must be at least 32 characters")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && strings.HasPrefix(appCfg.SessionKey, "dev-only") {
		problems = append(problems, "session_key must be changed in production")
	}

	switch appCfg.StorageType {
	case "minio":
		if appCfg.MinioEndpoint == "" || appCfg.MinioBucket == "" {
			problems = append(problems, "minio storage requires minio_endpoint and minio_bucket")
		}
	case "memory":
		if coreCfg != nil && coreCfg.Env == "prod" {
			problems = append(problems, "memory storage is not allowed in production")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage_type must be 'minio' or 'memory', got %q", appCfg.StorageType))
	}

	if appCfg.UploadMaxBytes <= 0 {
		problems = append(problems, "upload_max_bytes must be positive")
	}
	if len(appCfg.UploadTypes) == 0 {
		problems = append(problems, "upload_types must list at least one content type")
	}
	if !timezones.Valid(appCfg.TimeZone) {
		problems = append(problems, fmt.Sprintf("unknown time_zone %q", appCfg.TimeZone))
	}
	if appCfg.DispatchMaxBackoff < appCfg.DispatchBaseBackoff {
		problems = append(problems, "dispatch_max_backoff must not be shorter than dispatch_base_backoff")
	}

	for name, mode := range map[string]string{
		"audit_log_auth":  appCfg.AuditLogAuth,
		"audit_log_admin": appCfg.AuditLogAdmin,
		"audit_log_forum": appCfg.AuditLogForum,
	} {
		if !validAuditModes[mode] {
			problems = append(problems, fmt.Sprintf("%s must be all, db, log or off, got %q", name, mode))
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
