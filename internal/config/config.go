package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string
	DataDir  string

	// Remote document store. Backend is one of "http", "postgres",
	// "memory", "unavailable". When required values for the chosen
	// backend are missing the service falls back to local-only mode.
	RemoteBackend      string
	RemoteEndpoint     string
	RemoteProjectID    string
	RemoteDatabaseID   string
	CollectionRecords  string
	CollectionRoster   string
	CollectionStaff    string
	CollectionSessions string
	DatabaseURL        string

	// Sync queue.
	QueueBackend      string // "file" or "redis"
	RedisAddr         string
	SyncInterval      time.Duration
	SyncProbeInterval time.Duration
	SyncRetryCeiling  int

	// Auth.
	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AdminUsername string
	AdminPassword string

	RateLimitPerMin int
}

// Load returns application config populated from environment variables with
// sensible defaults. A .env file in the working directory is honored first.
func Load() App {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return App{
		Env:      getEnv("APP_ENV", "dev"),
		HTTPPort: getEnv("HTTP_PORT", "8082"),
		DataDir:  getEnv("DATA_DIR", "data"),

		RemoteBackend:      getEnv("REMOTE_BACKEND", "http"),
		RemoteEndpoint:     getEnv("REMOTE_ENDPOINT", ""),
		RemoteProjectID:    getEnv("REMOTE_PROJECT_ID", ""),
		RemoteDatabaseID:   getEnv("REMOTE_DATABASE_ID", ""),
		CollectionRecords:  getEnv("REMOTE_COLLECTION_RECORDS", "attendance-records"),
		CollectionRoster:   getEnv("REMOTE_COLLECTION_ROSTER", "roster"),
		CollectionStaff:    getEnv("REMOTE_COLLECTION_STAFF", "staff-accounts"),
		CollectionSessions: getEnv("REMOTE_COLLECTION_SESSIONS", "login-sessions"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		QueueBackend:      getEnv("QUEUE_BACKEND", "file"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		SyncInterval:      durationEnv("SYNC_INTERVAL", 30*time.Second),
		SyncProbeInterval: durationEnv("SYNC_PROBE_INTERVAL", 15*time.Second),
		SyncRetryCeiling:  intEnv("SYNC_RETRY_CEILING", 3),

		JWTIssuer:     getEnv("JWT_ISSUER", "library-attendance"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:     durationEnv("ACCESS_TTL", 8*time.Hour),
		RefreshTTL:    durationEnv("REFRESH_TTL", 7*24*time.Hour),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
	}
}

// RemoteConfigured reports whether the chosen remote backend has the values
// it needs. When false the service runs local-only.
func (a App) RemoteConfigured() bool {
	switch a.RemoteBackend {
	case "http":
		return a.RemoteEndpoint != "" && a.RemoteProjectID != "" && a.RemoteDatabaseID != ""
	case "postgres":
		return a.DatabaseURL != ""
	case "memory":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
