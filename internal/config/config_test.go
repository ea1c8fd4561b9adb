package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"TETHER_PORT", "TETHER_HOST", "TETHER_STORAGE_ENGINE",
		"TETHER_MERGE_THRESHOLD", "TETHER_MAPS_API_KEY",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != 6464 {
		t.Errorf("Port: got %d, want 6464", cfg.Server.Port)
	}
	if cfg.Storage.StorageEngine != "sqlite" {
		t.Errorf("StorageEngine: got %q, want sqlite", cfg.Storage.StorageEngine)
	}
	if cfg.Engine.MergeThreshold != 0.9 {
		t.Errorf("MergeThreshold: got %v, want 0.9", cfg.Engine.MergeThreshold)
	}
	if cfg.Enrichment.Workers != 4 {
		t.Errorf("Workers: got %d, want 4", cfg.Enrichment.Workers)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("TETHER_PORT", "7001")
	t.Setenv("TETHER_STORAGE_ENGINE", "postgres")
	t.Setenv("TETHER_POSTGRES_DSN", "postgres://localhost/tether_test")
	t.Setenv("TETHER_MERGE_THRESHOLD", "0.75")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != 7001 {
		t.Errorf("Port: got %d, want 7001", cfg.Server.Port)
	}
	if cfg.Storage.StorageEngine != "postgres" {
		t.Errorf("StorageEngine: got %q, want postgres", cfg.Storage.StorageEngine)
	}
	if cfg.Storage.PostgresDSN != "postgres://localhost/tether_test" {
		t.Errorf("PostgresDSN: got %q", cfg.Storage.PostgresDSN)
	}
	if cfg.Engine.MergeThreshold != 0.75 {
		t.Errorf("MergeThreshold: got %v, want 0.75", cfg.Engine.MergeThreshold)
	}
}

func TestLoadConfigIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("TETHER_PORT", "not-a-port")
	t.Setenv("TETHER_MERGE_THRESHOLD", "very high")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Server.Port != 6464 {
		t.Errorf("Port: got %d, want default on parse failure", cfg.Server.Port)
	}
	if cfg.Engine.MergeThreshold != 0.9 {
		t.Errorf("MergeThreshold: got %v, want default on parse failure", cfg.Engine.MergeThreshold)
	}
}

func TestLoadWeightsEmptyPathUsesDefaults(t *testing.T) {
	weights, err := LoadWeights("")
	if err != nil {
		t.Fatalf("LoadWeights(\"\") failed: %v", err)
	}
	if weights != nil {
		t.Errorf("got %v, want nil (engine defaults)", weights)
	}
}

func TestLoadWeightsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	content := "weights:\n  EMAIL: 0.95\n  LOYALTY_CARD: 0.6\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	weights, err := LoadWeights(path)
	if err != nil {
		t.Fatalf("LoadWeights() failed: %v", err)
	}
	if weights["EMAIL"] != 0.95 {
		t.Errorf("EMAIL: got %v, want 0.95", weights["EMAIL"])
	}
	if weights["LOYALTY_CARD"] != 0.6 {
		t.Errorf("LOYALTY_CARD: got %v, want 0.6", weights["LOYALTY_CARD"])
	}
}

func TestLoadWeightsRejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, []byte("weights:\n  EMAIL: 1.5\n"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	if _, err := LoadWeights(path); err == nil {
		t.Error("LoadWeights must reject weights outside (0, 1]")
	}
}

func TestLoadWeightsMissingFile(t *testing.T) {
	if _, err := LoadWeights(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadWeights must fail on a missing file")
	}
}
