package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string
	StaticDir   string

	DatabaseURL    string
	DBPingInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AdminEmails []string

	JWKSURL       string
	TokenIssuer   string
	TokenAudience string
	JWKSRefresh   time.Duration

	GatePolicyFile string
	AuditRingSize  int

	SetupStatusTTL time.Duration

	RateLimitRPM int

	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	adminEmails := getList("ADMIN_EMAILS", nil)
	if len(adminEmails) == 0 {
		return Config{}, fmt.Errorf("ADMIN_EMAILS is required")
	}

	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "couponpro-gateway"),
		StaticDir:   getEnv("STATIC_DIR", "ui/dist"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBPingInterval: getDuration("DB_PING_INTERVAL", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		AdminEmails: adminEmails,

		JWKSURL:       os.Getenv("CLERK_JWKS_URL"),
		TokenIssuer:   os.Getenv("TOKEN_ISSUER"),
		TokenAudience: os.Getenv("TOKEN_AUDIENCE"),
		JWKSRefresh:   getDuration("JWKS_REFRESH_INTERVAL", time.Hour),

		GatePolicyFile: os.Getenv("GATE_POLICY_FILE"),
		AuditRingSize:  getInt("AUDIT_RING_SIZE", 256),

		SetupStatusTTL: getDuration("SETUP_STATUS_TTL", 30*time.Second),

		RateLimitRPM: getInt("RATE_LIMIT_RPM", 600),

		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),

		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Impersonate-Tenant"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.AuditRingSize < 16 {
		cfg.AuditRingSize = 16
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
