package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8000" {
		t.Fatalf("unexpected address: %q", cfg.HTTPAddress)
	}
	if cfg.StorageBackend != BackendFile || cfg.StoragePath != "gazette.json" {
		t.Fatalf("unexpected storage defaults: %+v", cfg)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected token TTL: %v", cfg.TokenTTL)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	if !cfg.RateLimit {
		t.Fatal("rate limiting should default on")
	}
}

func TestLoadRequiresSigningSecret(t *testing.T) {
	if _, err := Load(NewViper()); err == nil {
		t.Fatal("expected error for missing signing secret")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("storage.backend", "postgres")
	if _, err := Load(configViper); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadSplitsOriginList(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("cors.allowed_origins", "http://localhost:3000, https://gazette.example")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://gazette.example" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}
