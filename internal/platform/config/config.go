package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	VizCacheTTL   time.Duration
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string

	// Validator policy knobs.
	AllowMultipleRoots  bool
	StrictLevelOrdering bool
	MaxPositionDepth    int
	VacancyWarnPercent  float64
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("ORGCHART_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:                addr,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		VizCacheTTL:         durationEnv("VIZ_CACHE_TTL", 10*time.Minute),
		KafkaBrokers:        brokers,
		KafkaTopic:          os.Getenv("KAFKA_AUDIT_TOPIC"),
		JWTSigningKey:       jwtSigningKey,
		AllowMultipleRoots:  os.Getenv("ALLOW_MULTIPLE_ROOTS") == "true",
		StrictLevelOrdering: os.Getenv("STRICT_LEVEL_ORDERING") == "true",
		MaxPositionDepth:    intEnv("MAX_POSITION_DEPTH", 6),
		VacancyWarnPercent:  floatEnv("VACANCY_WARN_PERCENT", 50),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}

func floatEnv(key string, fallback float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return fallback
}
