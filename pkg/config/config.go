package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Environment string
	ServerPort  int
	LogLevel    string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// RedisURL is optional; when empty, the role cache runs in-process
	RedisURL string

	JWTSecret string

	// SendGridAPIKey is optional; when empty, notifications are logged
	// instead of sent
	SendGridAPIKey string
	EmailFromAddr  string
	EmailFromName  string

	// InviteBaseURL is the public origin invitation links point at
	InviteBaseURL string

	RateLimitPerMinute int
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	dbPort, err := getEnvInt("DATABASE_PORT", 5432)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getEnvInt("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DBHost:     getEnv("DATABASE_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DATABASE_USER", "tenantplane"),
		DBPassword: getEnv("DATABASE_PASSWORD", "dev"),
		DBName:     getEnv("DATABASE_NAME", "tenantplane"),
		DBSSLMode:  getEnv("DATABASE_SSLMODE", "disable"),

		RedisURL: os.Getenv("REDIS_URL"),

		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		EmailFromAddr:  getEnv("EMAIL_FROM_ADDR", "no-reply@tenantplane.io"),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Tenantplane"),

		InviteBaseURL: getEnv("INVITE_BASE_URL", "http://localhost:5173"),

		RateLimitPerMinute: rateLimit,
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
	}

	if cfg.Environment == "production" && cfg.JWTSecret == "change-me-in-production" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
