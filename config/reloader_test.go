package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestReloaderCurrent(t *testing.T) {
	cfg := &Config{}
	cfg.Models.Default = "claude"

	r := NewReloader("", "", cfg)
	got := r.Current()
	if got.Models.Default != "claude" {
		t.Errorf("Current().Models.Default = %q, want claude", got.Models.Default)
	}
}

func TestReloaderReload(t *testing.T) {
	dir := t.TempDir()
	dotenvPath := filepath.Join(dir, ".env")
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(dotenvPath, []byte("MY_VAR=initial\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configPath, []byte("models:\n  default: test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	initial := &Config{}
	r := NewReloader(configPath, dotenvPath, initial)

	var callCount atomic.Int32
	r.OnReload(func(cfg *Config) { callCount.Add(1) })

	if err := os.WriteFile(dotenvPath, []byte("MY_VAR=reloaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if os.Getenv("MY_VAR") != "reloaded" {
		t.Errorf("MY_VAR = %q, want 'reloaded'", os.Getenv("MY_VAR"))
	}
	if callCount.Load() != 1 {
		t.Errorf("listener called %d times, want 1", callCount.Load())
	}

	got := r.Current()
	if got == initial {
		t.Error("Current() still returns initial config after reload")
	}
	if got.Models.Default != "test" {
		t.Errorf("Current().Models.Default = %q, want test", got.Models.Default)
	}
}

func TestReloaderReloadMissingDotenv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	dotenvPath := filepath.Join(dir, ".env") // does not exist

	if err := os.WriteFile(configPath, []byte("models:\n  default: test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewReloader(configPath, dotenvPath, &Config{})
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload with missing .env: %v", err)
	}
}
