package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Config is the runtime configuration, read from environment variables.
// godotenv is loaded in main before this runs.
type Config struct {
	TelegramToken string
	DBPath        string

	// Fetcher credentials and gateways. Any key may be empty; the matching
	// platform then reports fetch errors instead of results.
	RapidAPIKey    string
	RapidAPIBaseX  string
	RapidAPIHostX  string
	RapidAPIBaseIG string
	RapidAPIHostIG string
	RapidAPIBaseFB string
	RapidAPIHostFB string
	YouTubeKey     string

	// Groq (OpenAI-compatible) credentials for AI analysis.
	GroqKey     string
	GroqBaseURL string

	AdminIDs []int64

	PostLimit     int           // max candidates taken from a fetch
	BulkSendDelay time.Duration // pause between items in "send all remaining"
	MessageTTL    time.Duration // delivered messages are deleted after this

	MetricsAddr string // empty disables the /metrics listener

	Logging LoggingConfig
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  slog.Level
	Format string // "json" or "text"
}

const (
	defaultDBPath        = "bot.db"
	defaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	defaultPostLimit     = 10
	defaultBulkSendDelay = 5 * time.Second
	defaultMessageTTL    = 24 * time.Hour
	defaultLogFormat     = "text"

	defaultRapidAPIHostX  = "twitter-x-api.p.rapidapi.com"
	defaultRapidAPIBaseX  = "https://twitter-x-api.p.rapidapi.com/api/user/tweets"
	defaultRapidAPIHostIG = "instagram-scraper-api2.p.rapidapi.com"
	defaultRapidAPIBaseIG = "https://instagram-scraper-api2.p.rapidapi.com"
	defaultRapidAPIHostFB = "facebook-pages-scraper2.p.rapidapi.com"
	defaultRapidAPIBaseFB = "https://facebook-pages-scraper2.p.rapidapi.com"
)

// Load reads configuration from the environment, applying defaults.
// Only the bot token is mandatory.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:  strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		DBPath:         getEnv("DB_PATH", defaultDBPath),
		RapidAPIKey:    os.Getenv("RAPID_API_KEY"),
		RapidAPIBaseX:  getEnv("RAPIDAPI_BASE_X", defaultRapidAPIBaseX),
		RapidAPIHostX:  getEnv("RAPIDAPI_HOST_X", defaultRapidAPIHostX),
		RapidAPIBaseIG: getEnv("RAPIDAPI_BASE_IG", defaultRapidAPIBaseIG),
		RapidAPIHostIG: getEnv("RAPIDAPI_HOST_IG", defaultRapidAPIHostIG),
		RapidAPIBaseFB: getEnv("RAPIDAPI_BASE_FB", defaultRapidAPIBaseFB),
		RapidAPIHostFB: getEnv("RAPIDAPI_HOST_FB", defaultRapidAPIHostFB),
		YouTubeKey:     os.Getenv("YOUTUBE_API_KEY"),
		GroqKey:        os.Getenv("GROQ_KEY"),
		GroqBaseURL:    getEnv("GROQ_BASE_URL", defaultGroqBaseURL),
		PostLimit:      defaultPostLimit,
		BulkSendDelay:  defaultBulkSendDelay,
		MessageTTL:     defaultMessageTTL,
		MetricsAddr:    os.Getenv("METRICS_ADDR"),
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
	}

	if cfg.TelegramToken == "" {
		return Config{}, fmt.Errorf("TELEGRAM_BOT_TOKEN not set")
	}

	ids, err := parseAdminIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ADMIN_IDS: %w", err)
	}
	cfg.AdminIDs = ids

	if v := os.Getenv("POST_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid POST_LIMIT: %q", v)
		}
		cfg.PostLimit = n
	}

	if v := os.Getenv("BULK_SEND_DELAY_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid BULK_SEND_DELAY_SECONDS: %q", v)
		}
		cfg.BulkSendDelay = time.Duration(n) * time.Second
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

// IsAdmin reports whether id is in the static admin allowlist.
func (c Config) IsAdmin(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a telegram id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL: %q", raw)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ForceMode is the operator toggle that makes fetches re-deliver posts the
// user has already seen. It is handed explicitly to the components that
// consult it rather than read from a package global, so tests can flip it
// per case.
type ForceMode struct {
	enabled atomic.Bool
}

func (f *ForceMode) Enabled() bool { return f.enabled.Load() }

func (f *ForceMode) Set(on bool) { f.enabled.Store(on) }

// Toggle flips the mode and returns the new state.
func (f *ForceMode) Toggle() bool {
	for {
		old := f.enabled.Load()
		if f.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
