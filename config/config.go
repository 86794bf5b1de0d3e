package config

import (
	"os"
	"strconv"
	"time"
)

var EnableWebsocketEvents bool
var EnableWebhook bool

// Config holds every tunable of the lifecycle manager. All values come from
// env with the documented defaults, so tests can build one by hand with tiny
// intervals.
type Config struct {
	Port         string
	BaseURL      string
	DatabaseURL  string // whatsmeow device container
	AppDBURL     string // instances + message log
	AMQPURL      string // optional, empty disables the broker sink
	AMQPExchange string

	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string // bcrypt

	HealthCheckInterval    time.Duration
	ProbeTimeout           time.Duration
	KeepAliveInterval      time.Duration
	KeepAliveRecheckDelay  time.Duration
	ReconnectSweepInterval time.Duration
	ReconnectDelay         time.Duration // disconnect -> first attempt
	ReconnectRetryDelay    time.Duration // between failed attempts
	MaxReconnectAttempts   int
	InitializeTimeout      time.Duration
	RecoverySettleDelay    time.Duration
	ReinitCleanupDelay     time.Duration

	ProfilePicTimeout  time.Duration
	ProfilePicCacheTTL time.Duration
	EnrichBatchPause   time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "2121"),
		BaseURL:      getEnv("BASEURL", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AppDBURL:     getEnv("APP_DATABASE_URL", ""),
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gowa.events"),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		HealthCheckInterval:    getEnvDuration("HEALTH_CHECK_INTERVAL", 10*time.Second),
		ProbeTimeout:           getEnvDuration("PROBE_TIMEOUT", 3*time.Second),
		KeepAliveInterval:      getEnvDuration("KEEPALIVE_INTERVAL", 30*time.Second),
		KeepAliveRecheckDelay:  getEnvDuration("KEEPALIVE_RECHECK_DELAY", 500*time.Millisecond),
		ReconnectSweepInterval: getEnvDuration("RECONNECT_SWEEP_INTERVAL", 15*time.Second),
		ReconnectDelay:         getEnvDuration("RECONNECT_DELAY", 1*time.Second),
		ReconnectRetryDelay:    getEnvDuration("RECONNECT_RETRY_DELAY", 5*time.Second),
		MaxReconnectAttempts:   getEnvInt("MAX_RECONNECT_ATTEMPTS", 8),
		InitializeTimeout:      getEnvDuration("INITIALIZE_TIMEOUT", 120*time.Second),
		RecoverySettleDelay:    getEnvDuration("RECOVERY_SETTLE_DELAY", 3*time.Second),
		ReinitCleanupDelay:     getEnvDuration("REINIT_CLEANUP_DELAY", 500*time.Millisecond),

		ProfilePicTimeout:  getEnvDuration("PROFILE_PIC_TIMEOUT", 3*time.Second),
		ProfilePicCacheTTL: getEnvDuration("PROFILE_PIC_CACHE_TTL", 30*time.Minute),
		EnrichBatchPause:   getEnvDuration("ENRICH_BATCH_PAUSE", 500*time.Millisecond),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
