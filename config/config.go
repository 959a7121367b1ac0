package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // empty selects the in-memory store
	JWTSecret   string
	LogLevel    string

	PresenceTTL           time.Duration
	PresenceSweepInterval time.Duration
	SubscriberBuffer      int
	MaxContentBytes       int
	MaxChatBody           int
	DocCacheSize          int

	AllowedOrigins []string
}

// Load reads configuration from environment variables, loading a .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		Env:                   getEnv("ENV", "development"),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:             getEnv("JWT_SECRET", os.Getenv("SUPABASE_JWT_SECRET")),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		PresenceTTL:           getDuration("PRESENCE_TTL", 5*time.Second),
		PresenceSweepInterval: getDuration("PRESENCE_SWEEP_INTERVAL", time.Second),
		SubscriberBuffer:      getInt("SUBSCRIBER_BUFFER", 256),
		MaxContentBytes:       getInt("MAX_CONTENT_BYTES", 5<<20),
		MaxChatBody:           getInt("MAX_CHAT_BODY", 4000),
		DocCacheSize:          getInt("DOC_CACHE_SIZE", 1024),
		AllowedOrigins:        []string{"*"},
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if cfg.IsProduction() {
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == "" {
			return nil, errors.New("JWT_SECRET is required in production")
		}
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
