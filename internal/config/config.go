package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	// Remote Idest content backend that owns assignments and submissions.
	BackendBaseURL string
	BackendTimeout time.Duration

	// Session-scoped state (grading-queued flag, attempt snapshots).
	RedisURL   string
	SessionTTL time.Duration

	// Submission lifecycle events.
	KafkaBrokers []string
	KafkaTopic   string

	// Identity provider used to resolve the submitter from a bearer token.
	CasdoorEndpoint     string
	CasdoorClientID     string
	CasdoorClientSecret string
	CasdoorCertificate  string
	CasdoorOrganization string
	CasdoorApplication  string
}

func LoadConfig() (*Config, error) {
	// Missing .env is fine outside development; env vars still apply.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		BackendBaseURL: getEnv("BACKEND_BASE_URL", "https://ie-backend.fly.dev/hehe"),
		BackendTimeout: getDuration("BACKEND_TIMEOUT_SECONDS", 30),

		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379"),
		SessionTTL: getDuration("SESSION_TTL_SECONDS", 4*60*60),

		KafkaBrokers: getList("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "assignment-events"),

		CasdoorEndpoint:     getEnv("CASDOOR_ENDPOINT", "http://localhost:8000"),
		CasdoorClientID:     getEnv("CASDOOR_CLIENT_ID", ""),
		CasdoorClientSecret: getEnv("CASDOOR_CLIENT_SECRET", ""),
		CasdoorCertificate:  getEnv("CASDOOR_CERTIFICATE", ""),
		CasdoorOrganization: getEnv("CASDOOR_ORGANIZATION", "idest"),
		CasdoorApplication:  getEnv("CASDOOR_APPLICATION", "assignment-gateway"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultSeconds int) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(defaultSeconds) * time.Second
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return time.Duration(defaultSeconds) * time.Second
	}
	return time.Duration(seconds) * time.Second
}

func getList(key, defaultValue string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
