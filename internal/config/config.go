// Package config loads service settings from defaults, an optional config
// file, a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
)

// EnvPrefix namespaces environment overrides, e.g. CATFOOD_UPSTREAM_URL.
const EnvPrefix = "CATFOOD"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Addr     string
	Database Database
	Basket   Basket
	JWT      JWT
	Upstream Upstream
	Session  Session
	Log      Log
	Locale   language.Tag
}

type Database struct {
	// Driver picks the basket store: memory, postgres or sqlite.
	Driver string
	URL    string
	// PgDriver is the database/sql driver used for postgres, pgx or postgres (lib/pq).
	PgDriver   string
	SQLitePath string
}

// Basket points the session pages at a remote basket store. When URL is
// empty the baskets are kept by this process in Database.
type Basket struct {
	URL string
}

type JWT struct {
	Secret string
}

type Upstream struct {
	URL           string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

type Session struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

type Log struct {
	Level       string
	Development bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("database.driver", StoreMemory)
	v.SetDefault("database.pgDriver", "pgx")
	v.SetDefault("sqlite.path", "catfood.db")
	v.SetDefault("basket.url", "")
	v.SetDefault("upstream.url", "http://localhost:8000")
	v.SetDefault("upstream.timeout", "15s")
	v.SetDefault("upstream.rate", 5.0)
	v.SetDefault("upstream.burst", 10)
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.sweep", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("locale", "en")
}

// Load reads the configuration. path names an optional config file; when
// empty, catfood.{yaml,json,toml} in the working directory is used if present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the names the deployment already uses
	_ = v.BindEnv("database.url", "DATABASE_URL", EnvPrefix+"_DATABASE_URL")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET", EnvPrefix+"_JWT_SECRET")
	_ = v.BindEnv("addr", EnvPrefix+"_ADDR", "PET_SHOP_ADDR")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catfood")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates settings already loaded into v.
func FromViper(v *viper.Viper) (Config, error) {
	tag, err := language.Parse(v.GetString("locale"))
	if err != nil {
		return Config{}, fmt.Errorf("locale %q: %w", v.GetString("locale"), err)
	}
	cfg := Config{
		Addr: v.GetString("addr"),
		Database: Database{
			Driver:     strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
			URL:        v.GetString("database.url"),
			PgDriver:   v.GetString("database.pgDriver"),
			SQLitePath: v.GetString("sqlite.path"),
		},
		Basket: Basket{URL: strings.TrimRight(v.GetString("basket.url"), "/")},
		JWT:    JWT{Secret: v.GetString("jwt.secret")},
		Upstream: Upstream{
			URL:           strings.TrimRight(v.GetString("upstream.url"), "/"),
			Timeout:       v.GetDuration("upstream.timeout"),
			RatePerSecond: v.GetFloat64("upstream.rate"),
			Burst:         v.GetInt("upstream.burst"),
		},
		Session: Session{
			IdleTTL:       v.GetDuration("session.ttl"),
			SweepInterval: v.GetDuration("session.sweep"),
		},
		Log: Log{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Locale: tag,
	}
	return cfg, cfg.Validate()
}

// Validate reports the first setting that would prevent startup.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			return errors.New("database.url (DATABASE_URL) is required for the postgres store")
		}
	case StoreSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("sqlite.path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Upstream.URL == "" {
		return errors.New("upstream.url is required")
	}
	if c.Upstream.Timeout <= 0 {
		return errors.New("upstream.timeout must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// NewLogger builds the process logger.
func NewLogger(l Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
