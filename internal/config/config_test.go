package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Pool.Size != 8 {
		t.Errorf("pool size = %d, want 8", cfg.Pool.Size)
	}
	if cfg.Optimizer.TargetVolume != 300 {
		t.Errorf("target volume = %d, want 300", cfg.Optimizer.TargetVolume)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig without file: %v", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("port = %d, want default %d", cfg.Server.Port, DefaultConfig().Server.Port)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sn111.yaml")
	content := []byte("pool:\n  size: 3\ncache:\n  ttlShortSeconds: 60\n  ttlDefaultSeconds: 120\n  ttlLongSeconds: 240\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pool.Size != 3 {
		t.Errorf("pool size = %d, want 3", cfg.Pool.Size)
	}
	if cfg.Cache.TTLShortSeconds != 60 {
		t.Errorf("ttl short = %d, want 60", cfg.Cache.TTLShortSeconds)
	}
	// Untouched sections keep defaults.
	if cfg.Optimizer.Scoring.FreshWeight != 10 {
		t.Errorf("fresh weight = %d, want default 10", cfg.Optimizer.Scoring.FreshWeight)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SN111_POOL_SIZE", "2")
	t.Setenv("SN111_LOGGING_LEVEL", "debug")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pool.Size != 2 {
		t.Errorf("pool size = %d, want env override 2", cfg.Pool.Size)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want env override debug", cfg.Logging.Level)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sn111.yaml")

	cfg := DefaultConfig()
	cfg.Pool.Size = 5
	cfg.Optimizer.TargetVolume = 150
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Pool.Size != 5 {
		t.Errorf("pool size = %d, want 5", loaded.Pool.Size)
	}
	if loaded.Optimizer.TargetVolume != 150 {
		t.Errorf("target volume = %d, want 150", loaded.Optimizer.TargetVolume)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero pool", func(c *Config) { c.Pool.Size = 0 }},
		{"ttl order", func(c *Config) { c.Cache.TTLShortSeconds = c.Cache.TTLLongSeconds + 1 }},
		{"freshness above prefetch", func(c *Config) { c.Cache.FreshnessWindowSeconds = c.Cache.PrefetchWindowSeconds + 1 }},
		{"zero target volume", func(c *Config) { c.Optimizer.TargetVolume = 0 }},
		{"keep ratio above one", func(c *Config) { c.Optimizer.TruncateKeepRatio = 1.5 }},
		{"margin above deadline", func(c *Config) { c.Request.SafetyMarginMs = c.Request.DeadlineMs }},
		{"auth without hash", func(c *Config) { c.Auth.Enabled = true; c.Auth.TokenHash = "" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Cache.FreshnessWindow().Seconds(); got != 300 {
		t.Errorf("freshness window = %vs, want 300s", got)
	}
	if got := cfg.Request.Deadline().Seconds(); got != 30 {
		t.Errorf("deadline = %vs, want 30s", got)
	}
	if got := cfg.Optimizer.TruncateThreshold().Seconds(); got != 5 {
		t.Errorf("truncate threshold = %vs, want 5s", got)
	}
}
