package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// DatabaseURL is optional: when empty the API falls back to the
	// in-memory record store (single-process development mode).
	DatabaseURL string

	// AMQPURL is optional for the API (empty means the in-process bus) and
	// required for the standalone worker.
	AMQPURL      string
	AMQPExchange string

	StoragePath      string
	StorageBaseURL   string
	URLSigningSecret string
	SignedURLTTL     time.Duration

	GeoIPDBPath    string
	DefaultLocale  string
	AllowedOrigins []string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	SpeechAPIKey  string
	SpeechBaseURL string
	SpeechVoice   string

	PollInterval          time.Duration
	PollDeadline          time.Duration
	PollMaxTransientFails int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "story.fanout"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		URLSigningSecret: os.Getenv("URL_SIGNING_SECRET"),
		SignedURLTTL:     time.Second * time.Duration(getEnvInt("SIGNED_URL_TTL_SECONDS", 3600)),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		AllowedOrigins:   splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		SpeechAPIKey:     os.Getenv("SPEECH_API_KEY"),
		SpeechBaseURL:    os.Getenv("SPEECH_BASE_URL"),
		SpeechVoice:      getEnv("SPEECH_VOICE", "Ruth"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	cfg.StorageBaseURL = getEnv("STORAGE_BASE_URL", "http://localhost:"+cfg.Port)
	cfg.PollInterval, cfg.PollDeadline, cfg.PollMaxTransientFails = PollSettings()

	if cfg.URLSigningSecret == "" {
		return nil, fmt.Errorf("URL_SIGNING_SECRET is required")
	}

	return cfg, nil
}

// PollSettings reads the reconciler knobs from POLL_INTERVAL_MS,
// POLL_DEADLINE_MS and POLL_MAX_TRANSIENT_FAILURES. It is separate from
// LoadConfig so the storypoll CLI can pick them up without the API-side
// requirements (signing secret and friends).
func PollSettings() (interval, deadline time.Duration, maxTransientFails int) {
	interval = time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 3000))
	deadline = time.Millisecond * time.Duration(getEnvInt("POLL_DEADLINE_MS", 300000))
	maxTransientFails = getEnvInt("POLL_MAX_TRANSIENT_FAILURES", 5)
	return interval, deadline, maxTransientFails
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
