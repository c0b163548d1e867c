package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string
	// TokenSecret signs and verifies session tokens. Required.
	TokenSecret string
	// TokenTTL is how long an issued token stays valid.
	TokenTTL time.Duration
	// DefaultRoomID is the room every connection joins on connect.
	DefaultRoomID string
	// DefaultRoomName is the display name of the default room.
	DefaultRoomName string
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:            getEnv("PARLEY_ADDR", ":4000"),
		TokenSecret:     os.Getenv("PARLEY_TOKEN_SECRET"),
		TokenTTL:        7 * 24 * time.Hour,
		DefaultRoomID:   getEnv("PARLEY_DEFAULT_ROOM", "general"),
		DefaultRoomName: getEnv("PARLEY_DEFAULT_ROOM_NAME", "General"),
	}

	if ttl := os.Getenv("PARLEY_TOKEN_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			log.Fatalf("Invalid PARLEY_TOKEN_TTL %q: %v", ttl, err)
		}
		cfg.TokenTTL = d
	}

	if cfg.TokenSecret == "" {
		log.Fatal("Required environment variable PARLEY_TOKEN_SECRET is not set.")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
