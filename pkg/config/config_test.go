package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}

	if cfg.Backend.BaseURL != "http://localhost:8000/api" {
		t.Fatalf("unexpected backend base URL: %q", cfg.Backend.BaseURL)
	}

	if got := cfg.Cart.NoticeTTL; got != 3*time.Second {
		t.Fatalf("expected notice TTL 3s, got %v", got)
	}

	if cfg.Store.Driver != StoreDriverSQLite {
		t.Fatalf("expected sqlite store by default, got %q", cfg.Store.Driver)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvBackendURL); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvBackendURL, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_BadStoreDriver(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("STOREFRONT_STORE_DRIVER", "etcd")

	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported store driver to return an error")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvPort, "7070")
	t.Setenv(EnvBackendURL, "http://localhost:8000/api")
}
