package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LiveBackendLocal    = "local"
	LiveBackendPostgres = "postgres"
)

type Config struct {
	Port          string
	SiteURL       string
	DatabaseURL   string
	SessionSecret string

	// AdminEmail is the single principal allowed to publish and delete posts.
	AdminEmail string

	GoogleClientID     string
	GoogleClientSecret string

	LiveBackend      string
	FeedStallTimeout time.Duration
	Location         *time.Location

	SMTP SMTPConfig
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Enabled reports whether every SMTP setting is present.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != "" && s.Username != "" && s.Password != "" && s.From != ""
}

// Load reads .env (if any) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading config from environment")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() Config {
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		SiteURL:            strings.TrimSuffix(getEnv("SITE_URL", "http://localhost:8080"), "/"),
		DatabaseURL:        getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=thoughts port=5432 sslmode=disable"),
		SessionSecret:      getEnv("SESSION_SECRET", "secret_key_change_me"),
		AdminEmail:         getEnv("ADMIN_EMAIL", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		LiveBackend:        strings.ToLower(getEnv("LIVE_BACKEND", LiveBackendLocal)),
		FeedStallTimeout:   getDuration("FEED_STALL_TIMEOUT", 10*time.Second),
		Location:           getLocation("TIMEZONE"),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", ""),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
	}

	if cfg.AdminEmail == "" {
		log.Println("⚠️ ADMIN_EMAIL is not set: nobody will be able to publish")
	}
	if cfg.LiveBackend != LiveBackendLocal && cfg.LiveBackend != LiveBackendPostgres {
		log.Printf("Unknown LIVE_BACKEND %q, falling back to %q", cfg.LiveBackend, LiveBackendLocal)
		cfg.LiveBackend = LiveBackendLocal
	}
	return cfg
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Invalid %s %q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func getLocation(key string) *time.Location {
	name := getEnv(key, "")
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("Invalid %s %q, using local time", key, name)
		return time.Local
	}
	return loc
}
