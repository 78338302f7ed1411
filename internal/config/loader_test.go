package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.jsonc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Host != "127.0.0.1" {
		t.Errorf("Host: got %q", cfg.Gateway.Host)
	}
	if cfg.Gateway.Port != 18620 {
		t.Errorf("Port: got %d", cfg.Gateway.Port)
	}
	if cfg.Chat.ReplyTimeout.Duration() != 30*time.Second {
		t.Errorf("ReplyTimeout: got %v", cfg.Chat.ReplyTimeout.Duration())
	}
	if cfg.Chat.MaxToolRounds != 8 {
		t.Errorf("MaxToolRounds: got %d", cfg.Chat.MaxToolRounds)
	}
}

func TestLoad_Comments(t *testing.T) {
	path := writeConfig(t, `{
  // gateway settings
  "gateway": {
    "host": "0.0.0.0",
    "port": 9000, // trailing comma allowed below
  },
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Host != "0.0.0.0" {
		t.Errorf("Host: got %q", cfg.Gateway.Host)
	}
	if cfg.Gateway.Port != 9000 {
		t.Errorf("Port: got %d", cfg.Gateway.Port)
	}
}

func TestLoad_EnvTemplate(t *testing.T) {
	t.Setenv("QUILL_TEST_SECRET", "s3cret-value-for-tests-0123456789")

	path := writeConfig(t, `{
  "auth": { "secret": "${{ .Env.QUILL_TEST_SECRET }}" }
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Secret != "s3cret-value-for-tests-0123456789" {
		t.Errorf("Secret: got %q", cfg.Auth.Secret)
	}
}

func TestLoad_ProviderTimeout(t *testing.T) {
	path := writeConfig(t, `{
  "models": {
    "default": "main",
    "providers": {
      "main": { "driver": "openai", "model": "gpt-4o", "timeout": "90s" }
    }
  }
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	prov, ok := cfg.Models.Providers["main"]
	if !ok {
		t.Fatal("provider main missing")
	}
	if prov.Timeout.Duration() != 90*time.Second {
		t.Errorf("Timeout: got %v", prov.Timeout.Duration())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.jsonc")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
