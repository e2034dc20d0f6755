package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port                string
	Env                 string
	AuthRateLimitPerMin int

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Attendance integrity knobs
	CadenceToleranceMinutes   int
	MissedLogGapMinutes       int
	MinDutyMinutes            int
	MaxBreakMinutes           int
	LogEditWindowMinutes      int
	WarningStrikeThreshold    int
	SuspensionStrikeThreshold int
	SuspensionDays            int
	StrikeDedupHours          int

	// SMTP
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		Env:                 getEnvOrDefault("ENV", "development"),
		AuthRateLimitPerMin: getEnvAsIntOrDefault("AUTH_RATE_LIMIT_PER_MIN", 10),
		DatabaseURL:         mustGetEnv("DATABASE_URL"),
		RedisURL:            mustGetEnv("REDIS_URL"),
		JWTSecret:           mustGetEnv("JWT_SECRET"),

		CadenceToleranceMinutes:   getEnvAsIntOrDefault("CADENCE_TOLERANCE_MINUTES", 15),
		MissedLogGapMinutes:       getEnvAsIntOrDefault("MISSED_LOG_GAP_MINUTES", 90),
		MinDutyMinutes:            getEnvAsIntOrDefault("MIN_DUTY_MINUTES", 120),
		MaxBreakMinutes:           getEnvAsIntOrDefault("MAX_BREAK_MINUTES", 30),
		LogEditWindowMinutes:      getEnvAsIntOrDefault("LOG_EDIT_WINDOW_MINUTES", 15),
		WarningStrikeThreshold:    getEnvAsIntOrDefault("WARNING_STRIKE_THRESHOLD", 3),
		SuspensionStrikeThreshold: getEnvAsIntOrDefault("SUSPENSION_STRIKE_THRESHOLD", 5),
		SuspensionDays:            getEnvAsIntOrDefault("SUSPENSION_DAYS", 7),
		StrikeDedupHours:          getEnvAsIntOrDefault("STRIKE_DEDUP_HOURS", 24),

		SMTPHost:    getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:    getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUser:    getEnvOrDefault("SMTP_USER", ""),
		SMTPPass:    getEnvOrDefault("SMTP_PASS", ""),
		SMTPFrom:    getEnvOrDefault("SMTP_FROM", "noreply@dutywatch.app"),
		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
