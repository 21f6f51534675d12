package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.Database.Driver)
	assert.Equal(t, "pgx", cfg.Database.PgDriver)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, "en", cfg.Locale.String())
	assert.Empty(t, cfg.Basket.URL)
}

func TestFromViperValidation(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"postgres without url": func(v *viper.Viper) { v.Set("database.driver", "postgres") },
		"unknown store":        func(v *viper.Viper) { v.Set("database.driver", "mongo") },
		"bad level":            func(v *viper.Viper) { v.Set("log.level", "loud") },
		"bad locale":           func(v *viper.Viper) { v.Set("locale", "!!") },
		"no upstream":          func(v *viper.Viper) { v.Set("upstream.url", "") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			mutate(v)
			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://catfood@localhost/catfood")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CATFOOD_DATABASE_DRIVER", "Postgres")
	t.Setenv("CATFOOD_UPSTREAM_URL", "http://ranker:8000/")
	t.Setenv("CATFOOD_SESSION_TTL", "5m")
	t.Setenv("CATFOOD_BASKET_URL", "http://baskets:8080/")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://catfood@localhost/catfood", cfg.Database.URL)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "http://ranker:8000", cfg.Upstream.URL)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, "http://baskets:8080", cfg.Basket.URL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "catfood.yaml")
	body := "addr: \":9090\"\ndatabase:\n  driver: sqlite\nsqlite:\n  path: /tmp/baskets.db\nlocale: th\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, StoreSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/baskets.db", cfg.Database.SQLitePath)
	assert.Equal(t, "th", cfg.Locale.String())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(Log{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger(Log{Level: "nope"})
	assert.Error(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
