package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/service"
	"github.com/aussiebroadwan/tokenrefresh/pkg/didx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	SigningKeyAlias string        // Required: vault alias of the private signing key
	PublicKeyID     string        // Optional: DID URL written as "kid" (default: derived for did:key issuers)
	ParticipantDID  string        // Optional: our DID, the "iss" of every token (default: did:key of the signing key)
	Tolerance       time.Duration // Optional: expiry tolerance for clock skew (default: 5s, must be >= 0)
	AccessTTL       time.Duration // Optional: access token lifetime (default: 5m)
	RefreshTTL      time.Duration // Optional: how long a lineage may be refreshed, 0 = unbounded (default: 24h)

	StoreDriver  string // Optional: memory, sqlite or redis (default: sqlite)
	DatabaseFile string // Optional: SQLite database file (default: ./tokenrefresh.db)
	RedisURL     string // Required for redis: redis://[user:pass@]host:port/db
	RedisPrefix  string // Optional: key prefix (default: tokenrefresh:)

	VaultDir           string // Optional: sealed file vault directory (default: in-memory vault, dev only)
	VaultMasterKeyPath string // Optional: master key file for the file vault (default: ephemeral key, dev only)

	DIDCacheTTL    time.Duration // Optional: how long resolved DID documents are cached (default: 5m)
	DIDWebTimeout  time.Duration // Optional: did:web fetch timeout (default: 5s)
	DIDWebInsecure bool          // Optional: fetch did:web documents over plain HTTP (default: false)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		SigningKeyAlias: os.Getenv("TOKEN_SIGNER_PRIVATE_KEY_ALIAS"),
		PublicKeyID:     os.Getenv("TOKEN_VERIFIER_PUBLIC_KEY_ID"),
		ParticipantDID:  os.Getenv("PARTICIPANT_DID"),
		Tolerance: time.Duration(getEnvIntOrDefault(
			"TOKEN_EXPIRY_TOLERANCE_SECONDS",
			int(service.DefaultTolerance/time.Second),
		)) * time.Second,
		AccessTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL: getEnvDurationOrDefault("REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),

		StoreDriver:  strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreSQLite)),
		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "tokenrefresh.db"),
		RedisURL:     os.Getenv("REDIS_URL"),
		RedisPrefix:  os.Getenv("REDIS_PREFIX"),

		VaultDir:           os.Getenv("VAULT_DIR"),
		VaultMasterKeyPath: os.Getenv("VAULT_MASTER_KEY_PATH"),

		DIDCacheTTL:    getEnvDurationOrDefault("DID_CACHE_TTL", didx.DefaultCacheTTL),
		DIDWebTimeout:  getEnvDurationOrDefault("DID_WEB_TIMEOUT", 5*time.Second),
		DIDWebInsecure: getEnvBoolOrDefault("DID_WEB_INSECURE", false),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
	}
}

// IsDev reports whether development shortcuts (in-memory vault, generated
// keys) are allowed.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.SigningKeyAlias == "" {
		errs = append(errs, errors.New("TOKEN_SIGNER_PRIVATE_KEY_ALIAS is required"))
	}
	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("TOKEN_EXPIRY_TOLERANCE_SECONDS must not be negative, got %d", int(c.Tolerance/time.Second)))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.RefreshTTL < 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must not be negative"))
	}
	if c.ParticipantDID != "" {
		if _, err := didx.Parse(c.ParticipantDID); err != nil {
			errs = append(errs, fmt.Errorf("PARTICIPANT_DID: %w", err))
		}
	}

	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of memory, sqlite, redis", c.StoreDriver))
	}

	if !c.IsDev() {
		if c.VaultDir == "" {
			errs = append(errs, errors.New("VAULT_DIR is required outside dev"))
		}
		if c.VaultMasterKeyPath == "" {
			errs = append(errs, errors.New("VAULT_MASTER_KEY_PATH is required outside dev"))
		}
		if c.StoreDriver == StoreMemory {
			errs = append(errs, errors.New("the memory store is only allowed in dev"))
		}
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "1h", "30m", "90s"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
