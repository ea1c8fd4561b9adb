// Package config provides configuration management for tether.
// It loads settings from environment variables with the TETHER_ prefix and
// provides sensible defaults for all configuration options. The engine's
// weight table can additionally be tuned per deployment via a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the tether application.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Engine     EngineConfig
	Enrichment EnrichmentConfig
}

// ServerConfig contains HTTP server configuration for the status surface.
type ServerConfig struct {
	Port int    // Server port (default: 6464)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory for sqlite (default: ./data)
	PostgresDSN   string // PostgreSQL connection string (required for postgres engine)
	LookupCache   int    // LRU size for value lookups, 0 disables caching (default: 0)
}

// EngineConfig contains resolution engine configuration.
type EngineConfig struct {
	MergeThreshold float64 // Minimum accumulated score to merge (default: 0.9)
	WeightsFile    string  // Optional YAML file overriding the weight table
}

// EnrichmentConfig contains enrichment provider configuration.
type EnrichmentConfig struct {
	MapsAPIKey        string  // Google Maps API key; empty disables the Places enricher
	RequestsPerSecond float64 // Outbound provider call pacing (default: 10)
	Workers           int     // Batch worker pool size (default: 4)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the TETHER_ prefix.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("TETHER_PORT", 6464),
			Host: getEnv("TETHER_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("TETHER_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("TETHER_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("TETHER_POSTGRES_DSN", ""),
			LookupCache:   getEnvInt("TETHER_LOOKUP_CACHE", 0),
		},
		Engine: EngineConfig{
			MergeThreshold: getEnvFloat("TETHER_MERGE_THRESHOLD", 0.9),
			WeightsFile:    getEnv("TETHER_WEIGHTS_FILE", ""),
		},
		Enrichment: EnrichmentConfig{
			MapsAPIKey:        getEnv("TETHER_MAPS_API_KEY", ""),
			RequestsPerSecond: getEnvFloat("TETHER_ENRICH_RPS", 10),
			Workers:           getEnvInt("TETHER_WORKERS", 4),
		},
	}, nil
}

// weightsFile is the YAML shape of a weight table override.
type weightsFile struct {
	Weights map[string]float64 `yaml:"weights"`
}

// LoadWeights reads a weight table from the YAML file at path. Entries must
// lie in (0, 1]; a violation fails loudly rather than silently skewing
// scoring. Returns nil (use engine defaults) when path is empty.
func LoadWeights(path string) (map[string]float64, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read weights file: %w", err)
	}

	var parsed weightsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("config: failed to parse weights file: %w", err)
	}
	if len(parsed.Weights) == 0 {
		return nil, fmt.Errorf("config: weights file %s has no weights section", path)
	}

	for attrType, weight := range parsed.Weights {
		if weight <= 0 || weight > 1 {
			return nil, fmt.Errorf("config: weight for %s is %v, must be in (0, 1]", attrType, weight)
		}
	}
	return parsed.Weights, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the environment variable exists but cannot be parsed as an
// integer, it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. If the environment variable exists but cannot be parsed, it
// returns the default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
