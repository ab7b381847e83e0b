package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j topic graph
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Relational activity store (SQLite)
	ActivityDBPath string

	// Feed aggregation
	FeedTimezone string // IANA zone used for calendar-day comparisons

	// Graph transaction timeout; the server reaps transactions that
	// outlive it, so an abandoned batch never leaks a session
	GraphTxTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		Neo4jURI:       getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:      getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:  getEnv("NEO4J_PASSWORD", "password"),
		ActivityDBPath: getEnv("ACTIVITY_DB_PATH", "topichub.db"),
		FeedTimezone:   getEnv("FEED_TIMEZONE", "UTC"),
		GraphTxTimeout: time.Duration(getEnvInt("GRAPH_TX_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Neo4jUser == "" {
		return fmt.Errorf("NEO4J_USER is required")
	}
	if c.Neo4jPassword == "" {
		return fmt.Errorf("NEO4J_PASSWORD is required")
	}
	if c.ActivityDBPath == "" {
		return fmt.Errorf("ACTIVITY_DB_PATH is required")
	}
	if _, err := time.LoadLocation(c.FeedTimezone); err != nil {
		return fmt.Errorf("FEED_TIMEZONE is not a valid IANA zone: %w", err)
	}
	if c.GraphTxTimeout <= 0 {
		return fmt.Errorf("GRAPH_TX_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// Location returns the feed timezone as a *time.Location.
// Validate has already checked that the zone parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.FeedTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
