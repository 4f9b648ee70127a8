package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration, loaded from a YAML file
// pointed at by CONFIG_PATH. Missing file or fields fall back to defaults.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Limits struct {
		MaxUploadBytes int `yaml:"max_upload_bytes"`
		MaxPDFBytes    int `yaml:"max_pdf_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
		PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
		RedisHost       string        `yaml:"redis_host"`
		RateLimitDB     int           `yaml:"redis_rate_db"`
		PDFCacheDB      int           `yaml:"redis_pdf_db"`
	} `yaml:"cache"`

	RateLimiter struct {
		UserLimit int           `yaml:"user_limit"`
		Interval  time.Duration `yaml:"interval"`
	} `yaml:"rate_limiter"`

	PDF struct {
		TimeoutSecs     int    `yaml:"timeout_secs"`
		NavTimeoutSecs  int    `yaml:"nav_timeout_secs"`
		SettleDelayMS   int    `yaml:"settle_delay_ms"`
		ChromePath      string `yaml:"chrome_path"`
		ChromeNoSandbox bool   `yaml:"chrome_no_sandbox"`
		ChromePoolSize  int    `yaml:"chrome_pool_size"`
		UserDataDir     string `yaml:"user_data_dir"`
	} `yaml:"pdf"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Server.Host = ""
	cfg.Server.Port = ":8080"
	cfg.Limits.MaxUploadBytes = 50 * 1024 * 1024
	cfg.Limits.MaxPDFBytes = 100 * 1024 * 1024
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14
	cfg.Cache.PDFCacheTTL = 24 * time.Hour
	cfg.Cache.RedisHost = "127.0.0.1:6379"
	cfg.Cache.PDFCacheDB = 1
	cfg.RateLimiter.Interval = time.Minute
	cfg.PDF.TimeoutSecs = 90
	cfg.PDF.NavTimeoutSecs = 45
	cfg.PDF.SettleDelayMS = 500
	cfg.PDF.ChromeNoSandbox = true
	cfg.PDF.ChromePoolSize = 2
	return cfg
}

// Load reads the config file named by CONFIG_PATH, or returns defaults
// when the variable is unset. PORT and CHROME_BIN env vars override the
// file for container deployments.
func Load() Config {
	cfg := Default()
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		cfg = LoadFrom(p)
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = ":" + v
	}
	if v := os.Getenv("CHROME_BIN"); v != "" && cfg.PDF.ChromePath == "" {
		cfg.PDF.ChromePath = v
	}
	return cfg
}

// LoadFrom reads and validates the YAML file at path. Invalid content
// panics: a misconfigured service should not come up half-working.
func LoadFrom(path string) Config {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: cannot read %s: %v", path, err))
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("config: cannot parse %s: %v", path, err))
	}
	if cfg.Limits.MaxUploadBytes <= 0 {
		panic("config: max_upload_bytes must be positive")
	}
	if cfg.PDF.TimeoutSecs <= 0 {
		panic("config: timeout_secs must be positive")
	}
	if cfg.RateLimiter.UserLimit < 0 {
		panic("config: user_limit must not be negative")
	}
	return cfg
}
