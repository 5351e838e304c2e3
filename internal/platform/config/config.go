package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration

	// PostgresDSN enables the durable audit archive when set.
	PostgresDSN string
	// RedisURL enables the shared token revocation list when set.
	RedisURL string

	OutboxSize     int
	ExpirySweep    time.Duration
	ShutdownGrace  time.Duration
	RequestTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:           getEnv("VMS_ADDR", ":8080"),
		AdminToken:     getEnv("VMS_ADMIN_TOKEN", ""),
		JWTSigningKey:  getEnv("VMS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:      getEnv("VMS_JWT_ISSUER", "securevms"),
		TokenTTL:       getDuration("VMS_TOKEN_TTL", 8*time.Hour),
		PostgresDSN:    getEnv("VMS_POSTGRES_DSN", ""),
		RedisURL:       getEnv("VMS_REDIS_URL", ""),
		OutboxSize:     getInt("VMS_OUTBOX_SIZE", 64),
		ExpirySweep:    getDuration("VMS_EXPIRY_SWEEP", 5*time.Minute),
		ShutdownGrace:  getDuration("VMS_SHUTDOWN_GRACE", 10*time.Second),
		RequestTimeout: getDuration("VMS_REQUEST_TIMEOUT", 30*time.Second),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
