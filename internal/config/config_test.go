package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadFrom_Valid(t *testing.T) {
	p := writeConfig(t, `server:
  host: "127.0.0.1"
  port: ":9000"
limits:
  max_upload_bytes: 1048576
  max_pdf_bytes: 2097152
cache:
  pdf_cache_enabled: true
  pdf_cache_ttl: 1h
  redis_host: "127.0.0.1:6379"
pdf:
  timeout_secs: 30
  nav_timeout_secs: 15
  chrome_no_sandbox: true
  chrome_pool_size: 3
`)
	cfg := LoadFrom(p)
	if cfg.Server.Port != ":9000" {
		t.Fatalf("unexpected port: %q", cfg.Server.Port)
	}
	if cfg.Limits.MaxUploadBytes != 1048576 {
		t.Fatalf("unexpected max_upload_bytes: %d", cfg.Limits.MaxUploadBytes)
	}
	if cfg.Cache.PDFCacheTTL != time.Hour {
		t.Fatalf("unexpected cache ttl: %v", cfg.Cache.PDFCacheTTL)
	}
	if cfg.PDF.ChromePoolSize != 3 {
		t.Fatalf("unexpected pool size: %d", cfg.PDF.ChromePoolSize)
	}
	// untouched fields keep defaults
	if cfg.Logger.Level != "info" {
		t.Fatalf("expected default log level, got %q", cfg.Logger.Level)
	}
}

func TestLoadFrom_PanicsOnInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "unreadable yaml", yml: "::not yaml::"},
		{name: "zero upload limit", yml: "limits:\n  max_upload_bytes: 0\n"},
		{name: "zero render timeout", yml: "pdf:\n  timeout_secs: 0\n"},
		{name: "negative user limit", yml: "rate_limiter:\n  user_limit: -1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yml)
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			_ = LoadFrom(p)
		})
	}
}

func TestLoadFrom_MissingFilePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for missing file")
		}
	}()
	_ = LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
}

func TestLoad_UsesConfigPathAndEnvOverrides(t *testing.T) {
	p := writeConfig(t, `server:
  port: ":7000"
`)
	t.Setenv("CONFIG_PATH", p)
	t.Setenv("PORT", "7100")
	t.Setenv("CHROME_BIN", "/opt/chrome")

	cfg := Load()
	if cfg.Server.Port != ":7100" {
		t.Fatalf("expected PORT override, got %q", cfg.Server.Port)
	}
	if cfg.PDF.ChromePath != "/opt/chrome" {
		t.Fatalf("expected CHROME_BIN override, got %q", cfg.PDF.ChromePath)
	}
}

func TestLoad_DefaultsWithoutConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PORT", "")
	t.Setenv("CHROME_BIN", "")

	cfg := Load()
	if cfg.Server.Port != ":8080" {
		t.Fatalf("unexpected default port: %q", cfg.Server.Port)
	}
	if cfg.Limits.MaxUploadBytes != 50*1024*1024 {
		t.Fatalf("unexpected default upload limit: %d", cfg.Limits.MaxUploadBytes)
	}
}
