package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	TokenDuration time.Duration `yaml:"token_duration"`
	// LogLevel is a slog level name. Empty means debug in development and
	// info otherwise.
	LogLevel      string        `yaml:"log_level"`
	Data          DataConfig    `yaml:"data"`
	Search        SearchConfig  `yaml:"search"`
	Cache         CacheConfig   `yaml:"cache"`
	Notify        NotifyConfig  `yaml:"notify"`
	Admin         AdminConfig   `yaml:"admin"`
	CORS          CORSConfig    `yaml:"cors"`
	Jobs          JobsConfig    `yaml:"jobs"`
}

type DataConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver"`
	// FixturePath overrides the embedded seed dataset.
	FixturePath string `yaml:"fixture_path"`
}

type SearchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	MinChars int           `yaml:"min_chars"`
}

type CacheConfig struct {
	// MaxAge of zero keeps entries until they are invalidated.
	MaxAge time.Duration `yaml:"max_age"`
}

type NotifyConfig struct {
	// Driver is "memory", "postgres" or "redis".
	Driver        string `yaml:"driver"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	ChannelPrefix string `yaml:"channel_prefix"`
	Schema        string `yaml:"schema"`
}

type AdminConfig struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type JobsConfig struct {
	Workers    int    `yaml:"workers"`
	WebhookURL string `yaml:"webhook_url"`
}

// LoadConfig reads .env when present, applies defaults and FOLIO_*
// environment variables, then decodes the optional YAML file at path over
// the result.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:          getEnv("FOLIO_ADDR", ":8080"),
		JWTSecret:     getEnv("FOLIO_JWT_SECRET", insecureJWTSecret),
		APITimeout:    getDuration("FOLIO_TIMEOUT", 15*time.Second),
		DatabasePath:  getEnv("FOLIO_DATABASE_PATH", "folio.db"),
		TokenDuration: getDuration("FOLIO_TOKEN_DURATION", time.Hour),
		LogLevel:      getEnv("FOLIO_LOG_LEVEL", ""),
		Data: DataConfig{
			Driver:      getEnv("FOLIO_DATA_DRIVER", "sqlite"),
			FixturePath: getEnv("FOLIO_FIXTURE_PATH", ""),
		},
		Search: SearchConfig{
			Debounce: getDuration("FOLIO_SEARCH_DEBOUNCE", 300*time.Millisecond),
			MinChars: getInt("FOLIO_SEARCH_MIN_CHARS", 1),
		},
		Cache: CacheConfig{
			MaxAge: getDuration("FOLIO_CACHE_MAX_AGE", 0),
		},
		Notify: NotifyConfig{
			Driver:        getEnv("FOLIO_NOTIFY_DRIVER", "memory"),
			PostgresDSN:   getEnv("FOLIO_POSTGRES_DSN", ""),
			RedisAddr:     getEnv("FOLIO_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("FOLIO_REDIS_PASSWORD", ""),
			RedisDB:       getInt("FOLIO_REDIS_DB", 0),
			ChannelPrefix: getEnv("FOLIO_CHANNEL_PREFIX", "realtime"),
			Schema:        getEnv("FOLIO_SCHEMA", "public"),
		},
		Admin: AdminConfig{
			Email:        getEnv("FOLIO_ADMIN_EMAIL", ""),
			PasswordHash: getEnv("FOLIO_ADMIN_PASSWORD_HASH", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("FOLIO_CORS_ORIGINS", "*")),
		},
		Jobs: JobsConfig{
			Workers:    getInt("FOLIO_JOB_WORKERS", 2),
			WebhookURL: getEnv("FOLIO_WEBHOOK_URL", ""),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Level resolves LogLevel. It must run after LoadConfig so FOLIO_ENV from
// .env is visible.
func (c *Config) Level() (slog.Level, error) {
	if c.LogLevel == "" {
		if IsDevelopment() {
			return slog.LevelDebug, nil
		}
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// IsDevelopment reports whether FOLIO_ENV is "development".
func IsDevelopment() bool {
	return strings.EqualFold(os.Getenv("FOLIO_ENV"), "development")
}

// Validate fills in missing defaults and rejects settings the server cannot
// run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = time.Hour
	}
	if c.Search.Debounce <= 0 {
		c.Search.Debounce = 300 * time.Millisecond
	}
	if c.Search.MinChars < 1 {
		c.Search.MinChars = 1
	}
	if c.Cache.MaxAge < 0 {
		return errors.New("cache.max_age must not be negative")
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 1
	}
	if c.Notify.Schema == "" {
		c.Notify.Schema = "public"
	}
	if c.Notify.ChannelPrefix == "" {
		c.Notify.ChannelPrefix = "realtime"
	}

	switch c.Data.Driver {
	case "":
		c.Data.Driver = "sqlite"
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown data driver %q", c.Data.Driver)
	}
	if c.Data.Driver == "sqlite" && c.DatabasePath == "" {
		return errors.New("database_path is required for the sqlite driver")
	}

	switch c.Notify.Driver {
	case "":
		c.Notify.Driver = "memory"
	case "memory":
	case "postgres":
		if c.Notify.PostgresDSN == "" {
			return errors.New("notify.postgres_dsn is required for the postgres driver")
		}
	case "redis":
		if c.Notify.RedisAddr == "" {
			return errors.New("notify.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown notify driver %q", c.Notify.Driver)
	}

	if c.JWTSecret == "" || (c.JWTSecret == insecureJWTSecret && !IsDevelopment()) {
		return errors.New("insecure jwt_secret: set FOLIO_JWT_SECRET")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
