package backend

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected port %s, got %s", DefaultPort, cfg.Server.Port)
	}
	if cfg.Fetch.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("expected max size %d, got %d", DefaultMaxFileSize, cfg.Fetch.MaxFileSize)
	}
	if cfg.Server.AckTimeout.Duration != 30*time.Second {
		t.Errorf("expected 30s ack timeout, got %v", cfg.Server.AckTimeout)
	}
	if cfg.Server.DedupSize != 1000 {
		t.Errorf("expected dedup size 1000, got %d", cfg.Server.DedupSize)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
port = "9090"
ack_timeout = "5s"

[fetch]
max_file_size = 1048576
blocking_workers = 2

[telegram]
webhook_url = "https://bot.example.com/webhook"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.AckTimeout.Duration != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Server.AckTimeout)
	}
	if cfg.Fetch.MaxFileSize != 1048576 {
		t.Errorf("expected 1 MiB, got %d", cfg.Fetch.MaxFileSize)
	}
	if cfg.Fetch.BlockingWorkers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Fetch.BlockingWorkers)
	}
	// untouched sections keep defaults
	if cfg.Cookies.DefaultFile != "cookies.txt" {
		t.Errorf("expected default cookies file, got %s", cfg.Cookies.DefaultFile)
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nack_timeout = \"soon\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadConfigWithEnv_Overrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("PORT", "7000")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("WEBHOOK_URL", "https://example.org/webhook")
	t.Setenv("MAX_FILE_SIZE_MB", "50")

	cfg, err := LoadConfigWithEnv("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnv failed: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("expected port 7000, got %s", cfg.Server.Port)
	}
	if cfg.Telegram.BotToken != "123:abc" {
		t.Errorf("expected token from env, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Fetch.MaxFileSize != 50<<20 {
		t.Errorf("expected 50 MiB, got %d", cfg.Fetch.MaxFileSize)
	}
	if err := cfg.Validate(true); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadConfigWithEnv_BadSize(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.toml"))

	for _, v := range []string{"lots", "0", "-5", "9007199254740993", "1048577"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("MAX_FILE_SIZE_MB", v)
			if _, err := LoadConfigWithEnv(""); err == nil {
				t.Errorf("expected error for MAX_FILE_SIZE_MB=%s", v)
			}
		})
	}
}

func TestLoadConfigWithEnv_MaxSize(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("MAX_FILE_SIZE_MB", "1048576")

	cfg, err := LoadConfigWithEnv("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnv failed: %v", err)
	}
	if cfg.Fetch.MaxFileSize != 1<<40 {
		t.Errorf("expected 1 TiB, got %d", cfg.Fetch.MaxFileSize)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		requireBot bool
		wantErr    bool
	}{
		{"defaults without bot", func(c *Config) {}, false, false},
		{"missing token", func(c *Config) {}, true, true},
		{"zero size", func(c *Config) { c.Fetch.MaxFileSize = 0 }, false, true},
		{"bad port", func(c *Config) { c.Server.Port = "http" }, false, true},
		{"http webhook", func(c *Config) { c.Telegram.WebhookURL = "http://insecure/webhook" }, false, true},
		{"no workers", func(c *Config) { c.Fetch.BlockingWorkers = 0 }, false, true},
		{"zero job timeout", func(c *Config) { c.Fetch.JobTimeout.Duration = 0 }, false, true},
		{"negative job timeout", func(c *Config) { c.Fetch.JobTimeout.Duration = -time.Second }, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate(tt.requireBot)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
