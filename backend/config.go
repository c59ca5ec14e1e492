package backend

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Application configuration and settings

const (
	DefaultConfigPath  = "config.toml"
	DefaultPort        = "8080"
	DefaultMaxFileSize = 512 << 20 // 512 MiB
	DefaultDedupSize   = 1000

	// maxFileSizeMB keeps MAX_FILE_SIZE_MB<<20 far from int64 overflow.
	maxFileSizeMB = 1 << 20 // 1 TiB
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	Fetch    FetchConfig    `toml:"fetch"`
	Cookies  CookiesConfig  `toml:"cookies"`
	Tools    ToolsConfig    `toml:"tools"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

type ServerConfig struct {
	Port       string   `toml:"port"`
	AckTimeout Duration `toml:"ack_timeout"`
	DedupSize  int      `toml:"dedup_size"`
}

type TelegramConfig struct {
	BotToken   string `toml:"bot_token"`
	WebhookURL string `toml:"webhook_url"`
}

type FetchConfig struct {
	WorkDir            string   `toml:"work_dir"`
	MaxFileSize        int64    `toml:"max_file_size"` // bytes
	JobTimeout         Duration `toml:"job_timeout"`
	BlockingWorkers    int      `toml:"blocking_workers"`
	PlaceholderSeconds int      `toml:"placeholder_seconds"`
	ProxyURL           string   `toml:"proxy_url"`
	StaleArenaMaxAge   Duration `toml:"stale_arena_max_age"`
	ThumbnailTimeout   Duration `toml:"thumbnail_timeout"`
}

type CookiesConfig struct {
	DefaultFile string `toml:"default_file"`
	Dir         string `toml:"dir"`
	ProfilesINI string `toml:"profiles_ini"`
}

type ToolsConfig struct {
	YtDlpPath  string `toml:"ytdlp_path"`
	FFmpegPath string `toml:"ffmpeg_path"`
}

// Duration decodes TOML strings such as "30s" into a time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Port:       DefaultPort,
			AckTimeout: Duration{30 * time.Second},
			DedupSize:  DefaultDedupSize,
		},
		Fetch: FetchConfig{
			WorkDir:            filepath.Join(os.TempDir(), "mediabot"),
			MaxFileSize:        DefaultMaxFileSize,
			JobTimeout:         Duration{10 * time.Minute},
			BlockingWorkers:    8,
			PlaceholderSeconds: 5,
			StaleArenaMaxAge:   Duration{time.Hour},
			ThumbnailTimeout:   Duration{30 * time.Second},
		},
		Cookies: CookiesConfig{
			DefaultFile: "cookies.txt",
			Dir:         "cookies",
		},
	}
}

// LoadConfig reads path (or DefaultConfigPath) over the defaults.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigWithEnv loads .env (if present), then the config file, then applies
// environment overrides. Env vars always win over file values.
func LoadConfigWithEnv(path string) (Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.Server.Port, "PORT")
	setString(&c.Telegram.BotToken, "TELEGRAM_TOKEN")
	setString(&c.Telegram.BotToken, "BOT_TOKEN")
	setString(&c.Telegram.WebhookURL, "WEBHOOK_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Fetch.WorkDir, "WORK_DIR")
	setString(&c.Fetch.ProxyURL, "PROXY_URL")
	setString(&c.Cookies.DefaultFile, "COOKIES_FILE")
	setString(&c.Cookies.Dir, "COOKIES_DIR")
	setString(&c.Cookies.ProfilesINI, "COOKIES_PROFILES")
	setString(&c.Tools.YtDlpPath, "YTDLP_PATH")
	setString(&c.Tools.FFmpegPath, "FFMPEG_PATH")

	if v := strings.TrimSpace(os.Getenv("MAX_FILE_SIZE_MB")); v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_FILE_SIZE_MB %q: %w", v, err)
		}
		if mb <= 0 || mb > maxFileSizeMB {
			return fmt.Errorf("invalid MAX_FILE_SIZE_MB %q: must be between 1 and %d", v, maxFileSizeMB)
		}
		c.Fetch.MaxFileSize = mb << 20
	}
	return nil
}

// Validate checks values that cannot be defaulted. requireBot is set for
// commands that talk to Telegram.
func (c Config) Validate(requireBot bool) error {
	var errs []error
	if requireBot && strings.TrimSpace(c.Telegram.BotToken) == "" {
		errs = append(errs, errors.New("bot token is required (BOT_TOKEN)"))
	}
	if c.Fetch.MaxFileSize <= 0 {
		errs = append(errs, errors.New("max file size must be positive"))
	}
	if c.Server.DedupSize <= 0 {
		errs = append(errs, errors.New("dedup size must be positive"))
	}
	if c.Server.AckTimeout.Duration <= 0 {
		errs = append(errs, errors.New("ack timeout must be positive"))
	}
	if c.Fetch.JobTimeout.Duration <= 0 {
		errs = append(errs, errors.New("job timeout must be positive"))
	}
	if c.Fetch.BlockingWorkers <= 0 {
		errs = append(errs, errors.New("blocking workers must be positive"))
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Server.Port))
	}
	if c.Telegram.WebhookURL != "" {
		if u, err := url.Parse(c.Telegram.WebhookURL); err != nil || u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("webhook URL must be an https URL, got %q", c.Telegram.WebhookURL))
		}
	}
	return errors.Join(errs...)
}
