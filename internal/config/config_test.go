package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendRTDB {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendRTDB)
	}
	if time.Duration(cfg.ScanInterval) != 500*time.Millisecond {
		t.Errorf("ScanInterval = %v", time.Duration(cfg.ScanInterval))
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{
		"backend": "memory",
		"bank_file": "bank.json",
		"scan_interval": "250ms",
		"debug": true
	}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendMemory || cfg.BankFile != "bank.json" || !cfg.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
	if time.Duration(cfg.ScanInterval) != 250*time.Millisecond {
		t.Errorf("ScanInterval = %v, want 250ms", time.Duration(cfg.ScanInterval))
	}
	if cfg.StatePath != DefaultStatePath() {
		t.Errorf("unset fields should keep defaults, StatePath = %q", cfg.StatePath)
	}
}

func TestLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"backend":`), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("QUIZFLOW_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("QUIZFLOW_DEBUG", "true")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Backend != BackendRedis || cfg.RedisAddr != "cache:6380" || cfg.RedisDB != 3 || !cfg.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail validation")
	}

	cfg = Default()
	cfg.DatabaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("rtdb without url should fail validation")
	}
}
