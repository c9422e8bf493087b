// Package config provides application configuration loaded from environment
// variables with defaults and validation: the bot token, storage location,
// delivery mode (polling or webhook), HTTP server settings, throttles and
// observability.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Application environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the admin API.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// WebhookConfig defines how Telegram delivers updates in webhook mode.
type WebhookConfig struct {
	URL    string // public URL Telegram posts to; empty means polling
	Path   string // local route the URL maps to
	Secret string // optional secret token echoed by Telegram
}

// Config holds all configuration values for the application.
type Config struct {
	// Bot
	BotToken    string // TELEGRAM_BOT_TOKEN
	StorageFile string // JSON file holding all nicknames
	Environment string // development|production
	Webhook     WebhookConfig

	// Server
	Port              int
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool

	// Rate limiting
	RateRPS      float64 // HTTP tokens per second per client (>= 0)
	RateBurst    int     // HTTP bucket size (>= 1)
	CommandRPS   float64 // bot commands per second per (group, user)
	CommandBurst int

	// Nicknames
	NicknameMaxLen int
	DedupeTTL      time.Duration

	// Admin API
	AdminAPIEnabled bool
	APIBasePath     string
	CORS            CORSConfig
	Security        SecurityConfig

	// Observability
	OTEL OTELConfig
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool { return c.Environment == EnvProduction }

// UseWebhook reports whether updates arrive by webhook rather than polling.
func (c Config) UseWebhook() bool { return c.IsProduction() && c.Webhook.URL != "" }

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		BotToken:    strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
		StorageFile: getenv("STORAGE_FILE", "data/nicknames.json"),
		Environment: strings.ToLower(strings.TrimSpace(getenv("APP_ENV", getenv("PYTHON_ENV", EnvDevelopment)))),
		Webhook: WebhookConfig{
			URL:    strings.TrimSpace(getenv("WEBHOOK_URL", "")),
			Path:   normalizeBasePath(getenv("WEBHOOK_PATH", "/webhook")),
			Secret: getenv("WEBHOOK_SECRET", ""),
		},

		Port:              getint("PORT", 8000),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		RateRPS:      getfloat("RATE_RPS", 5.0),
		RateBurst:    getint("RATE_BURST", 10),
		CommandRPS:   getfloat("COMMAND_RPS", 1.0),
		CommandBurst: getint("COMMAND_BURST", 5),

		NicknameMaxLen: getint("NICKNAME_MAX_LEN", 50),
		DedupeTTL:      getdur("UPDATE_DEDUPE_TTL", 10*time.Minute),

		AdminAPIEnabled: getbool("ADMIN_API_ENABLED", false),
		APIBasePath:     normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "nickname-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	switch cfg.Environment {
	case "prod":
		cfg.Environment = EnvProduction
	case "dev", "":
		cfg.Environment = EnvDevelopment
	}
	if cfg.Webhook.URL == "" && cfg.IsProduction() {
		cfg.Webhook.URL = railwayWebhookURL(cfg.Webhook.Path)
	}

	// --- validation ---
	if cfg.BotToken == "" {
		return cfg, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if !strings.Contains(cfg.BotToken, ":") {
		return cfg, errors.New("TELEGRAM_BOT_TOKEN looks malformed (expected <id>:<secret>)")
	}
	if strings.TrimSpace(cfg.StorageFile) == "" {
		return cfg, errors.New("STORAGE_FILE must not be empty")
	}
	switch cfg.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return cfg, errors.New("APP_ENV must be one of: development, production")
	}
	if cfg.IsProduction() && cfg.Webhook.URL == "" {
		return cfg, errors.New("WEBHOOK_URL is required in production (or set RAILWAY_STATIC_URL / RAILWAY_PUBLIC_DOMAIN)")
	}
	if cfg.Webhook.URL != "" && !strings.HasPrefix(cfg.Webhook.URL, "https://") && !strings.HasPrefix(cfg.Webhook.URL, "http://") {
		return cfg, errors.New("WEBHOOK_URL must be an http(s) URL")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return cfg, errors.New("PORT must be between 1 and 65535")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.CommandRPS < 0 {
		return cfg, errors.New("COMMAND_RPS must be >= 0")
	}
	if cfg.CommandBurst < 1 {
		return cfg, errors.New("COMMAND_BURST must be >= 1")
	}
	if cfg.NicknameMaxLen < 1 || cfg.NicknameMaxLen > 256 {
		return cfg, errors.New("NICKNAME_MAX_LEN must be between 1 and 256")
	}
	if cfg.DedupeTTL <= 0 {
		return cfg, errors.New("UPDATE_DEDUPE_TTL must be > 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// railwayWebhookURL derives the webhook URL from Railway's deployment
// variables, preferring the static URL.
func railwayWebhookURL(path string) string {
	if u := strings.TrimRight(getenv("RAILWAY_STATIC_URL", ""), "/"); u != "" {
		if !strings.Contains(u, "://") {
			u = "https://" + u
		}
		return u + path
	}
	if d := strings.Trim(getenv("RAILWAY_PUBLIC_DOMAIN", ""), "/"); d != "" {
		return "https://" + d + path
	}
	return ""
}

// Redacted returns the bot token with its secret part masked, for logs.
func (c Config) Redacted() string {
	id, _, ok := strings.Cut(c.BotToken, ":")
	if !ok {
		return "***"
	}
	return id + ":***"
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
