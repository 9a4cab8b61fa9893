package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	content := `{
		"openai": {"apiKey": "sk-test", "model": "gpt-4o", "fallbackModel": "gpt-4o-mini"},
		"anthropic": {"apiKey": "sk-ant", "model": "claude-sonnet-4-5"},
		"store": {"engine": "sqlite", "dsn": "/tmp/test.db"},
		"detailedLog": true
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OpenAI.Model != "gpt-4o" || cfg.OpenAI.FallbackModel != "gpt-4o-mini" {
		t.Errorf("unexpected openai config: %+v", cfg.OpenAI)
	}
	if cfg.Store.Engine != "sqlite" {
		t.Errorf("expected sqlite engine, got %q", cfg.Store.Engine)
	}

	// Defaults for omitted fields.
	if cfg.ListenAddr != ":8790" {
		t.Errorf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.MaxToolIterations != DefaultMaxToolIterations {
		t.Errorf("expected default iterations %d, got %d", DefaultMaxToolIterations, cfg.MaxToolIterations)
	}
	if cfg.GatewayTimeoutSec != DefaultGatewayTimeoutSec {
		t.Errorf("expected default timeout %d, got %d", DefaultGatewayTimeoutSec, cfg.GatewayTimeoutSec)
	}
	if cfg.DefaultTimezone != "America/Mexico_City" {
		t.Errorf("expected default timezone, got %q", cfg.DefaultTimezone)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for invalid JSON")
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		ListenAddr:        ":9000",
		MaxToolIterations: 5,
	}
	cfg.ApplyDefaults()

	if cfg.ListenAddr != ":9000" {
		t.Errorf("explicit listen addr was overwritten: %q", cfg.ListenAddr)
	}
	if cfg.MaxToolIterations != 5 {
		t.Errorf("explicit iteration count was overwritten: %d", cfg.MaxToolIterations)
	}
	if cfg.Store.Engine != "mysql" {
		t.Errorf("expected default engine mysql, got %q", cfg.Store.Engine)
	}
}
