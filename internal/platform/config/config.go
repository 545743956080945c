package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Bot modes select which encodings a lookup offers.
const (
	ModeVideo = "video"
	ModeAudio = "audio"
)

// Defaults. DefaultMaxUploadBytes is the Bot API attachment limit.
const (
	DefaultMaxUploadBytes  = 50 * 1024 * 1024
	DefaultSessionTTL      = 30 * time.Minute
	DefaultTerminalGrace   = time.Minute
	DefaultFileRetention   = 60 * time.Minute
	DefaultSweepInterval   = 5 * time.Minute
	DefaultDownloadDir     = "./downloads"
	DefaultMaxHeight       = 1080
	DefaultPort            = "8080"
	DefaultUserRatePerMin  = 10
	DefaultLookupTimeout   = 60 * time.Second
	DefaultDownloadTimeout = 15 * time.Minute
)

// ErrMissingToken is returned by Validate when BOT_TOKEN is not set.
var ErrMissingToken = errors.New("BOT_TOKEN is required")

// Config is the full runtime configuration of the bot.
type Config struct {
	BotToken         string
	Mode             string
	MaxUploadBytes   int64
	SessionTTL       time.Duration
	TerminalGrace    time.Duration
	FileRetention    time.Duration
	SweepInterval    time.Duration
	DownloadDir      string
	MaxHeight        int
	Port             string
	LogLevel         string
	LogFormat        string
	WebhookURL       string
	UserRatePerMin   int
	LookupTimeout    time.Duration
	DownloadTimeout  time.Duration
	YTDLPAutoInstall bool
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from the process environment, applying defaults for
// anything unset. It does not validate; call Validate before use.
func FromEnv() *Config {
	return &Config{
		BotToken:         strings.TrimSpace(GetEnv("BOT_TOKEN", "")),
		Mode:             strings.ToLower(GetEnv("BOT_MODE", ModeVideo)),
		MaxUploadBytes:   GetEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		SessionTTL:       GetEnvDuration("SESSION_TTL", DefaultSessionTTL),
		TerminalGrace:    GetEnvDuration("TERMINAL_GRACE", DefaultTerminalGrace),
		FileRetention:    GetEnvDuration("FILE_RETENTION", DefaultFileRetention),
		SweepInterval:    GetEnvDuration("SWEEP_INTERVAL", DefaultSweepInterval),
		DownloadDir:      GetEnv("DOWNLOAD_DIR", DefaultDownloadDir),
		MaxHeight:        GetEnvInt("MAX_HEIGHT", DefaultMaxHeight),
		Port:             GetEnv("PORT", DefaultPort),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		LogFormat:        GetEnv("LOG_FORMAT", "json"),
		WebhookURL:       strings.TrimRight(GetEnv("WEBHOOK_URL", ""), "/"),
		UserRatePerMin:   GetEnvInt("USER_RATE_PER_MIN", DefaultUserRatePerMin),
		LookupTimeout:    GetEnvDuration("LOOKUP_TIMEOUT", DefaultLookupTimeout),
		DownloadTimeout:  GetEnvDuration("DOWNLOAD_TIMEOUT", DefaultDownloadTimeout),
		YTDLPAutoInstall: GetEnvBool("YTDLP_AUTO_INSTALL", false),
	}
}

// Validate reports the first configuration problem that would make the bot
// unusable. A missing token is the only startup-fatal case callers expect.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return ErrMissingToken
	}
	if c.Mode != ModeVideo && c.Mode != ModeAudio {
		return fmt.Errorf("BOT_MODE must be %q or %q, got %q", ModeVideo, ModeAudio, c.Mode)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.SessionTTL <= 0 || c.FileRetention <= 0 || c.SweepInterval <= 0 {
		return errors.New("SESSION_TTL, FILE_RETENTION and SWEEP_INTERVAL must be positive")
	}
	if c.DownloadDir == "" {
		return errors.New("DOWNLOAD_DIR must not be empty")
	}
	return nil
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvInt64 is GetEnvInt for byte counts and other 64-bit values.
func GetEnvInt64(key string, fallback int64) int64 {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses values like "30m" or "90s". Bare integers are taken
// as seconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// GetEnvBool accepts the forms understood by strconv.ParseBool.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}
