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
	Environment       string
	HTTPPort          string
	DatabaseURL       string
	AppBaseURL        string
	SuperadminEmail   string
	SuperadminPass    string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	SessionTTL        time.Duration
	ClaimsStaleAfter  time.Duration
	VerifyTokenTTL    time.Duration
	ResetTokenTTL     time.Duration
	TwoFactorTTL      time.Duration
	TwoFactorAttempts int
	ServiceName       string
	RateLimitRPM      int
	AuditBufferSize   int
	TelemetryEndpoint string
	TelemetryInsecure bool
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	SMTPFrom          string
	OAuthGoogleID     string
	OAuthGoogleSecret string
	OAuthRedirectURL  string
	CORSOrigins       []string
	CORSMethods       []string
	CORSHeaders       []string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	superEmail := strings.ToLower(strings.TrimSpace(os.Getenv("SUPERADMIN_EMAIL")))
	if superEmail == "" {
		return Config{}, fmt.Errorf("SUPERADMIN_EMAIL is required")
	}
	superPass := strings.TrimSpace(os.Getenv("SUPERADMIN_PASSWORD"))
	if superPass == "" {
		return Config{}, fmt.Errorf("SUPERADMIN_PASSWORD is required")
	}

	cfg := Config{
		Environment:       getEnv("APP_ENV", "development"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		AppBaseURL:        getEnv("APP_BASE_URL", "http://localhost:8080"),
		SuperadminEmail:   superEmail,
		SuperadminPass:    superPass,
		RedisAddr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getInt("REDIS_DB", 0),
		SessionTTL:        getDuration("SESSION_TTL", time.Hour),
		ClaimsStaleAfter:  getDuration("CLAIMS_STALE_AFTER", 15*time.Minute),
		VerifyTokenTTL:    getDuration("VERIFY_TOKEN_TTL", 24*time.Hour),
		ResetTokenTTL:     getDuration("RESET_TOKEN_TTL", 24*time.Hour),
		TwoFactorTTL:      getDuration("TWO_FACTOR_TTL", 5*time.Minute),
		TwoFactorAttempts: getInt("TWO_FACTOR_ATTEMPTS", 5),
		ServiceName:       getEnv("SERVICE_NAME", "pcore-auth"),
		RateLimitRPM:      getInt("RATE_LIMIT_RPM", 600),
		AuditBufferSize:   getInt("AUDIT_BUFFER_SIZE", 256),
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getInt("SMTP_PORT", 587),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPass:          os.Getenv("SMTP_PASS"),
		SMTPFrom:          os.Getenv("SMTP_FROM"),
		OAuthGoogleID:     os.Getenv("OAUTH_GOOGLE_CLIENT_ID"),
		OAuthGoogleSecret: os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET"),
		OAuthRedirectURL:  os.Getenv("OAUTH_REDIRECT_URL"),
		CORSOrigins:       getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSMethods:       getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		CORSHeaders:       getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Org-ID"}),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
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
