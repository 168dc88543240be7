package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const envPrefix = "HEARTH_"

type Config struct {
	Addr      string
	DBPath    string
	LogLevel  string
	LogFormat string

	JWTSecret   string
	JWTAudience string
	JWTIssuer   string

	// RedisURL enables the shared rate limiter and the Redis settings cache.
	RedisURL string

	CompleteRateLimit int
	ForgiveRateLimit  int
	SettingsCacheTTL  time.Duration
	OverdueSweepSpec  string

	BackgroundWorkers int
	BackgroundTimeout time.Duration

	AllowedOrigins []string

	OTelEnabled     bool
	OTelEndpoint    string
	OTelInsecure    bool
	OTelSampleRatio float64

	ShutdownTimeout time.Duration
}

// Load reads configuration from HEARTH_* environment variables after loading
// an optional .env file from the working directory.
func Load() (Config, error) {
	//nolint:errcheck
	godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset values.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}
	cfg := Config{
		Addr:      p.String("ADDR", ":8080"),
		DBPath:    p.String("DB_PATH", "hearth.db"),
		LogLevel:  p.String("LOG_LEVEL", "info"),
		LogFormat: p.String("LOG_FORMAT", "text"),

		JWTSecret:   p.String("JWT_SECRET", ""),
		JWTAudience: p.String("JWT_AUDIENCE", ""),
		JWTIssuer:   p.String("JWT_ISSUER", ""),

		RedisURL: p.String("REDIS_URL", ""),

		CompleteRateLimit: p.Int("COMPLETE_RATE_LIMIT", 30),
		ForgiveRateLimit:  p.Int("FORGIVE_RATE_LIMIT", 10),
		SettingsCacheTTL:  p.Duration("SETTINGS_CACHE_TTL", 5*time.Minute),
		OverdueSweepSpec:  p.String("OVERDUE_SWEEP_SPEC", "@hourly"),

		BackgroundWorkers: p.Int("BACKGROUND_WORKERS", 16),
		BackgroundTimeout: p.Duration("BACKGROUND_TIMEOUT", 10*time.Second),

		AllowedOrigins: p.List("ALLOWED_ORIGINS"),

		OTelEnabled:     p.Bool("OTEL_ENABLED", false),
		OTelEndpoint:    p.String("OTEL_ENDPOINT", ""),
		OTelInsecure:    p.Bool("OTEL_INSECURE", false),
		OTelSampleRatio: p.Float("OTEL_SAMPLE_RATIO", 1.0),

		ShutdownTimeout: p.Duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, nil
}

// Validate checks the values needed to serve requests.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("HEARTH_ADDR must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("HEARTH_DB_PATH must not be empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("HEARTH_JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("HEARTH_JWT_SECRET must be at least 32 bytes"))
	}
	if c.CompleteRateLimit < 1 {
		errs = append(errs, errors.New("HEARTH_COMPLETE_RATE_LIMIT must be positive"))
	}
	if c.ForgiveRateLimit < 1 {
		errs = append(errs, errors.New("HEARTH_FORGIVE_RATE_LIMIT must be positive"))
	}
	if c.SettingsCacheTTL <= 0 {
		errs = append(errs, errors.New("HEARTH_SETTINGS_CACHE_TTL must be positive"))
	}
	if c.BackgroundWorkers < 1 {
		errs = append(errs, errors.New("HEARTH_BACKGROUND_WORKERS must be positive"))
	}
	if _, err := cron.ParseStandard(c.OverdueSweepSpec); err != nil {
		errs = append(errs, fmt.Errorf("HEARTH_OVERDUE_SWEEP_SPEC: %w", err))
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		errs = append(errs, errors.New("HEARTH_OTEL_SAMPLE_RATIO must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) raw(key string) string {
	return strings.TrimSpace(p.getenv(envPrefix + key))
}

func (p *parser) String(key, def string) string {
	if v := p.raw(key); v != "" {
		return v
	}
	return def
}

func (p *parser) List(key string) []string {
	var out []string
	for _, v := range strings.Split(p.raw(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (p *parser) Int(key string, def int) int {
	v := p.raw(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: invalid integer %q", envPrefix, key, v))
		return def
	}
	return n
}

func (p *parser) Float(key string, def float64) float64 {
	v := p.raw(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: invalid number %q", envPrefix, key, v))
		return def
	}
	return f
}

func (p *parser) Bool(key string, def bool) bool {
	v := p.raw(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: invalid boolean %q", envPrefix, key, v))
		return def
	}
	return b
}

func (p *parser) Duration(key string, def time.Duration) time.Duration {
	v := p.raw(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: invalid duration %q", envPrefix, key, v))
		return def
	}
	return d
}
