package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envPort                  = "PORT"
	envServerReadTimeout     = "SERVER_READ_TIMEOUT"
	envServerWriteTimeout    = "SERVER_WRITE_TIMEOUT"
	envServerShutdownTimeout = "SERVER_SHUTDOWN_TIMEOUT"
	envEnableProfiling       = "ENABLE_PROFILING"
	envAPSBaseURL            = "APS_BASE_URL"
	envAPSHTTPTimeout        = "APS_HTTP_TIMEOUT"
	envAPSRequestsPerSecond  = "APS_REQUESTS_PER_SECOND"
	envAPSBurst              = "APS_BURST"
	envAPSUsersPageSize      = "APS_USERS_PAGE_SIZE"
	envAPSIdentityCacheTTL   = "APS_IDENTITY_CACHE_TTL"
	envStoreBackend          = "STORE_BACKEND"
	envStoreEncryptionSecret = "STORE_ENCRYPTION_SECRET"
	envStoreScryptWorkFactor = "STORE_SCRYPT_WORK_FACTOR"
	envS3Bucket              = "S3_BUCKET"
	envS3Endpoint            = "S3_ENDPOINT"
	envAWSRegion             = "REGION"
	envAWSAccessKeyID        = "AWS_ACCESS_KEY_ID"
	envAWSSecretAccessKey    = "AWS_SECRET_ACCESS_KEY"
	envDatabaseURL           = "DATABASE_URL"
	envDBMaxConns            = "DB_MAX_CONNS"
	envRedisURL              = "REDIS_URL"
	envSyncLockTTL           = "SYNC_LOCK_TTL"
	envSyncConcurrency       = "SYNC_CONCURRENCY"
	envRateLimitPerSecond    = "RATE_LIMIT_PER_SECOND"
	envRateLimitBurst        = "RATE_LIMIT_BURST"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

const (
	defaultServerPort          = "8080"
	defaultServerReadTimeout   = 10 * time.Second
	defaultServerWriteTimeout  = 5 * time.Minute
	defaultServerShutdown      = 30 * time.Second
	defaultAPSBaseURL          = "https://developer.api.autodesk.com"
	defaultAPSHTTPTimeout      = 30 * time.Second
	defaultAPSRequestsPerSec   = 20.0
	defaultAPSBurst            = 20
	defaultAPSUsersPageSize    = 200
	defaultIdentityCacheTTL    = 5 * time.Minute
	defaultScryptWorkFactor    = 15
	defaultDBMaxConns          = 10
	defaultSyncLockTTL         = 10 * time.Minute
	defaultSyncConcurrency     = 5
	defaultRateLimitPerSecond  = 10.0
	defaultRateLimitBurst      = 20
	minEncryptionSecretLength  = 32
	maxUsersPageSize           = 200
	errPortRequiredFmt         = "PORT must be set"
	errUnknownBackendFmt       = "STORE_BACKEND must be one of memory, s3, postgres (got %q)"
	errSecretMinLengthFmt      = "STORE_ENCRYPTION_SECRET must be at least %d characters"
	errWorkFactorRangeFmt      = "STORE_SCRYPT_WORK_FACTOR must be between 1 and 30 (got %d)"
	errUsersPageSizeFmt        = "APS_USERS_PAGE_SIZE must be between 1 and %d (got %d)"
	errConcurrencyFmt          = "SYNC_CONCURRENCY must be positive (got %d)"
	errAPSRateFmt              = "APS_REQUESTS_PER_SECOND must be positive"
	errInvalidConfigurationFmt = "invalid configuration: %w"
)

type Config struct {
	Server    ServerConfig
	APS       APSConfig
	Store     StoreConfig
	AWS       AWSConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Sync      SyncConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// Profiling exposes /debug/pprof and /metrics/memory.
	Profiling bool
}

// APSConfig configures calls to the Autodesk Platform Services APIs.
type APSConfig struct {
	BaseURL           string
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	Burst             int
	UsersPageSize     int
	IdentityCacheTTL  time.Duration
}

type StoreConfig struct {
	Backend          string
	EncryptionSecret string
	ScryptWorkFactor int
}

type AWSConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// DatabaseConfig is optional unless the postgres backend is selected. When
// URL is set the sync audit log is enabled.
type DatabaseConfig struct {
	URL      string
	MaxConns int
}

type RedisConfig struct {
	URL     string
	LockTTL time.Duration
}

type SyncConfig struct {
	Concurrency int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv(envPort, defaultServerPort),
			ReadTimeout:     getDurationEnv(envServerReadTimeout, defaultServerReadTimeout),
			WriteTimeout:    getDurationEnv(envServerWriteTimeout, defaultServerWriteTimeout),
			ShutdownTimeout: getDurationEnv(envServerShutdownTimeout, defaultServerShutdown),
			Profiling:       getBoolEnv(envEnableProfiling),
		},
		APS: APSConfig{
			BaseURL:           strings.TrimRight(getEnv(envAPSBaseURL, defaultAPSBaseURL), "/"),
			HTTPTimeout:       getDurationEnv(envAPSHTTPTimeout, defaultAPSHTTPTimeout),
			RequestsPerSecond: getFloatEnv(envAPSRequestsPerSecond, defaultAPSRequestsPerSec),
			Burst:             getIntEnv(envAPSBurst, defaultAPSBurst),
			UsersPageSize:     getIntEnv(envAPSUsersPageSize, defaultAPSUsersPageSize),
			IdentityCacheTTL:  getDurationEnv(envAPSIdentityCacheTTL, defaultIdentityCacheTTL),
		},
		Store: StoreConfig{
			Backend:          strings.ToLower(getEnv(envStoreBackend, BackendMemory)),
			EncryptionSecret: os.Getenv(envStoreEncryptionSecret),
			ScryptWorkFactor: getIntEnv(envStoreScryptWorkFactor, defaultScryptWorkFactor),
		},
		AWS: AWSConfig{
			Bucket:          os.Getenv(envS3Bucket),
			Endpoint:        os.Getenv(envS3Endpoint),
			Region:          os.Getenv(envAWSRegion),
			AccessKeyID:     os.Getenv(envAWSAccessKeyID),
			SecretAccessKey: os.Getenv(envAWSSecretAccessKey),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv(envDatabaseURL),
			MaxConns: getIntEnv(envDBMaxConns, defaultDBMaxConns),
		},
		Redis: RedisConfig{
			URL:     os.Getenv(envRedisURL),
			LockTTL: getDurationEnv(envSyncLockTTL, defaultSyncLockTTL),
		},
		Sync: SyncConfig{
			Concurrency: getIntEnv(envSyncConcurrency, defaultSyncConcurrency),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getFloatEnv(envRateLimitPerSecond, defaultRateLimitPerSecond),
			Burst:             getIntEnv(envRateLimitBurst, defaultRateLimitBurst),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf(errInvalidConfigurationFmt, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf(errPortRequiredFmt)
	}

	if c.APS.RequestsPerSecond <= 0 {
		return fmt.Errorf(errAPSRateFmt)
	}

	if c.APS.UsersPageSize < 1 || c.APS.UsersPageSize > maxUsersPageSize {
		return fmt.Errorf(errUsersPageSizeFmt, maxUsersPageSize, c.APS.UsersPageSize)
	}

	if c.Sync.Concurrency < 1 {
		return fmt.Errorf(errConcurrencyFmt, c.Sync.Concurrency)
	}

	switch c.Store.Backend {
	case BackendMemory:
		return nil
	case BackendS3:
		if err := requireSet(envS3Bucket, c.AWS.Bucket, envAWSRegion, c.AWS.Region,
			envAWSAccessKeyID, c.AWS.AccessKeyID, envAWSSecretAccessKey, c.AWS.SecretAccessKey); err != nil {
			return err
		}
	case BackendPostgres:
		if err := requireSet(envDatabaseURL, c.Database.URL); err != nil {
			return err
		}
	default:
		return fmt.Errorf(errUnknownBackendFmt, c.Store.Backend)
	}

	if c.Store.EncryptionSecret == "" {
		return fmt.Errorf("%s", messages.requiredForBackend(envStoreEncryptionSecret, c.Store.Backend))
	}

	if len(c.Store.EncryptionSecret) < minEncryptionSecretLength {
		return fmt.Errorf(errSecretMinLengthFmt, minEncryptionSecretLength)
	}

	if c.Store.ScryptWorkFactor < 1 || c.Store.ScryptWorkFactor > 30 {
		return fmt.Errorf(errWorkFactorRangeFmt, c.Store.ScryptWorkFactor)
	}

	return nil
}

// AuditEnabled reports whether sync runs are written to Postgres.
func (c *Config) AuditEnabled() bool {
	return c.Database.URL != ""
}

// requireSet takes name/value pairs and fails on the first empty value.
func requireSet(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%s", messages.requiredEnvNotSet(pairs[i]))
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}
