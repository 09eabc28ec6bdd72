// Package config provides application configuration loaded from environment
// variables with defaults and validation. A .env file in the working
// directory and an optional YAML file named by CONFIG_FILE are read first;
// variables already present in the process environment always win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/vibe-check/internal/sysutil"
)

// SlackConfig holds the Slack app credentials.
type SlackConfig struct {
	ClientID      string // SLACK_CLIENT_ID
	ClientSecret  string // SLACK_CLIENT_SECRET
	SigningSecret string // SLACK_SIGNING_SECRET
	BotToken      string // SLACK_BOT_TOKEN, single-workspace mode
	RedirectURL   string // SLACK_REDIRECT_URL, overrides the derived callback
	APIURL        string // SLACK_API_URL, for proxies and local fakes
}

// OAuthEnabled reports whether the multi-workspace install flow is configured.
func (s SlackConfig) OAuthEnabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// SchedulerConfig sizes the prompt scheduler.
type SchedulerConfig struct {
	PoolSize     int           // SCHEDULER_POOL_SIZE
	MaxInstances int           // SCHEDULER_MAX_INSTANCES
	MisfireGrace time.Duration // SCHEDULER_MISFIRE_GRACE
	JobTimeout   time.Duration // SCHEDULER_JOB_TIMEOUT
}

// DashboardConfig holds the credentials accepted by the dashboard and API.
type DashboardConfig struct {
	APIKeys      []string // DASHBOARD_API_KEY, comma separated
	APIKeyHashes []string // DASHBOARD_API_KEY_HASH, bcrypt, comma separated
}

// Enabled reports whether any dashboard credential is configured.
func (d DashboardConfig) Enabled() bool {
	return len(d.APIKeys) > 0 || len(d.APIKeyHashes) > 0
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
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

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	LogFile        string // rotated when set
	SwaggerEnabled bool
	APIBasePath    string

	// App
	DatabaseURL   string
	EncryptionKey string // Fernet key(s), comma separated, newest first
	Slack         SlackConfig

	// Prompts
	EnableReminders bool
	ReminderDelay   time.Duration
	RetentionDays   int
	Scheduler       SchedulerConfig

	// Dashboard
	Dashboard DashboardConfig
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads .env, the CONFIG_FILE overlay and the environment, applies
// defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := readOverlay(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}
	return src.load()
}

func (s source) load() (Config, error) {
	cfg := Config{
		// Server
		Port:              s.getenv("PORT", "8000"),
		ReadTimeout:       s.getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: s.getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      s.getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       s.getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   s.getdur("SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:    s.getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(s.getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(s.getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(s.getenv("LOG_LEVEL", "info")),
		LogPretty:      s.getbool("LOG_PRETTY", false),
		LogFile:        s.getenv("LOG_FILE", ""),
		SwaggerEnabled: s.getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(s.getenv("API_BASE_PATH", "/api")),

		// App
		DatabaseURL:   s.getenv("DATABASE_URL", "sqlite://vibecheck.db"),
		EncryptionKey: s.getenv("ENCRYPTION_KEY", ""),
		Slack: SlackConfig{
			ClientID:      s.getenv("SLACK_CLIENT_ID", ""),
			ClientSecret:  s.getenv("SLACK_CLIENT_SECRET", ""),
			SigningSecret: s.getenv("SLACK_SIGNING_SECRET", ""),
			BotToken:      s.getenv("SLACK_BOT_TOKEN", ""),
			RedirectURL:   s.getenv("SLACK_REDIRECT_URL", ""),
			APIURL:        s.getenv("SLACK_API_URL", ""),
		},

		// Prompts
		EnableReminders: s.getbool("ENABLE_REMINDERS", true),
		ReminderDelay:   time.Duration(s.getint("REMINDER_DELAY_HOURS", 4)) * time.Hour,
		RetentionDays:   s.getint("DATA_RETENTION_DAYS", 90),
		Scheduler: SchedulerConfig{
			PoolSize:     s.getint("SCHEDULER_POOL_SIZE", 20),
			MaxInstances: s.getint("SCHEDULER_MAX_INSTANCES", 3),
			MisfireGrace: s.getdur("SCHEDULER_MISFIRE_GRACE", 15*time.Minute),
			JobTimeout:   s.getdur("SCHEDULER_JOB_TIMEOUT", 2*time.Minute),
		},

		// Dashboard
		Dashboard: DashboardConfig{
			APIKeys:      splitCSV(s.getenv("DASHBOARD_API_KEY", "")),
			APIKeyHashes: splitCSV(s.getenv("DASHBOARD_API_KEY_HASH", "")),
		},
		RateRPS:   s.getfloat("RATE_RPS", 5.0),
		RateBurst: s.getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(s.getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: s.getbool("ENABLE_HSTS", false),
			HSTSMaxAge: s.getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     s.getbool("OTEL_ENABLED", false),
			Endpoint:    s.getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    s.getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: s.getenv("OTEL_SERVICE_NAME", "vibe-check"),
			SampleRatio: s.getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
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

	// --- validation ---
	if _, ok := sysutil.ParseLevel(cfg.LogLevel); !ok {
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 || cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES and MAX_BODY_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return cfg, errors.New("DATABASE_URL must not be empty")
	}
	if cfg.ReminderDelay < time.Hour {
		return cfg, errors.New("REMINDER_DELAY_HOURS must be >= 1")
	}
	if cfg.RetentionDays < 0 {
		return cfg, errors.New("DATA_RETENTION_DAYS must be >= 0")
	}
	if cfg.Scheduler.PoolSize < 1 || cfg.Scheduler.MaxInstances < 1 {
		return cfg, errors.New("SCHEDULER_POOL_SIZE and SCHEDULER_MAX_INSTANCES must be >= 1")
	}
	if cfg.Scheduler.MisfireGrace <= 0 || cfg.Scheduler.JobTimeout <= 0 {
		return cfg, errors.New("SCHEDULER_MISFIRE_GRACE and SCHEDULER_JOB_TIMEOUT must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ValidateServe checks the settings only the HTTP server needs. Offline
// commands such as migrate run without Slack credentials.
func (c Config) ValidateServe() error {
	if c.Slack.SigningSecret == "" {
		return errors.New("SLACK_SIGNING_SECRET is required")
	}
	if c.Slack.BotToken == "" && !c.Slack.OAuthEnabled() {
		return errors.New("SLACK_CLIENT_ID and SLACK_CLIENT_SECRET are required unless SLACK_BOT_TOKEN is set")
	}
	if c.EncryptionKey == "" {
		return errors.New("ENCRYPTION_KEY is required (generate one with `vibecheck genkey`)")
	}
	return nil
}

// ---- helpers ----

// source resolves keys from the process environment, then the overlay file.
type source struct {
	file map[string]string
}

func readOverlay(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
	}
	out := map[string]string{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
	}
	return out, nil
}

func (s source) lookup(k string) (string, bool) {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v, true
	}
	if v, ok := s.file[k]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (s source) getenv(k, def string) string {
	if v, ok := s.lookup(k); ok {
		return v
	}
	return def
}

func (s source) getfloat(k string, def float64) float64 {
	if v, ok := s.lookup(k); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (s source) getint(k string, def int) int {
	if v, ok := s.lookup(k); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func (s source) getbool(k string, def bool) bool {
	if v, ok := s.lookup(k); ok {
		if b, ok := sysutil.ParseBool(v); ok {
			return b
		}
	}
	return def
}

func (s source) getdur(k string, def time.Duration) time.Duration {
	if v, ok := s.lookup(k); ok {
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
		t := strings.TrimSpace(p)
		if t != "" {
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
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
