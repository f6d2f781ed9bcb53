package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port        string
	Env         string
	FrontendURL string
	LogLevel    string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret              string
	JWTAccessTokenDuration time.Duration

	// Vonage Verify
	VonageAPIKey      string
	VonageAPISecret   string
	VonageBaseURL     string
	VerifyBrand       string
	VerifyHTTPTimeout time.Duration

	// Security
	RateLimitRequests int
	RateLimitDuration time.Duration
	VerifyStartLimit  int
	VerifyStartWindow time.Duration

	// CORS
	AllowedOrigins []string
}

func New() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "heartline"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "heartline"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// JWT
		JWTSecret:              getEnv("JWT_SECRET", ""),
		JWTAccessTokenDuration: getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", "1h"),

		// Vonage Verify
		VonageAPIKey:      getEnv("VONAGE_API_KEY", ""),
		VonageAPISecret:   getEnv("VONAGE_API_SECRET", ""),
		VonageBaseURL:     getEnv("VONAGE_BASE_URL", "https://api.nexmo.com"),
		VerifyBrand:       getEnv("VERIFY_BRAND", "Heartline"),
		VerifyHTTPTimeout: getEnvAsDuration("VERIFY_HTTP_TIMEOUT", "10s"),

		// Security
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitDuration: getEnvAsDuration("RATE_LIMIT_DURATION", "1m"),
		VerifyStartLimit:  getEnvAsInt("VERIFY_START_LIMIT", 5),
		VerifyStartWindow: getEnvAsDuration("VERIFY_START_WINDOW", "15m"),

		// CORS
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}
}

// MissingVerificationSettings returns the names of unset keys the
// verification flow cannot run without.
func (c *Config) MissingVerificationSettings() []string {
	var missing []string
	if c.DBHost == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.VonageAPIKey == "" {
		missing = append(missing, "VONAGE_API_KEY")
	}
	if c.VonageAPISecret == "" {
		missing = append(missing, "VONAGE_API_SECRET")
	}
	return missing
}

// Validate fails when required settings are missing.
func (c *Config) Validate() error {
	if missing := c.MissingVerificationSettings(); len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Hour
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
