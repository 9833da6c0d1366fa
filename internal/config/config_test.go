package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandPath(t *testing.T) {
	t.Parallel()
	got := ExpandPath("~/memories.db")
	if got == "~/memories.db" {
		t.Fatalf("expected home-expanded path, got %q", got)
	}
	if !strings.Contains(got, "memories.db") {
		t.Fatalf("expected expanded path to contain file name, got %q", got)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RecallK != 5 || cfg.MinStrength != 0.15 {
		t.Fatalf("expected defaults, got recall_k=%d min_strength=%v", cfg.RecallK, cfg.MinStrength)
	}
}

func TestLoad_EnvOverridesDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvStoragePath, dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != dir {
		t.Fatalf("expected data dir %q from env, got %q", dir, cfg.DataDir)
	}
}

func TestLoad_RejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("min_strength: 3.0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for min_strength out of range")
	}
}

func TestEnsurePaths_DerivesStoragePaths(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() error = %v", err)
	}
	if cfg.DBPath != filepath.Join(cfg.DataDir, "memories.db") {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.JournalPath != filepath.Join(cfg.DataDir, "permanent_journal.jsonl") {
		t.Fatalf("unexpected journal path %q", cfg.JournalPath)
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		t.Fatalf("expected data dir to exist: %v", err)
	}
}
