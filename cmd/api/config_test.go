package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("environment over file over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
JWT_SECRET: from-file
RATELIMITER_REQUESTS_COUNT: "20"
WEATHER_API_KEY: weather-from-file
`), 0o600))

		t.Setenv("CONFIG_FILE", path)
		t.Setenv("WEATHER_API_KEY", "weather-from-env")
		t.Setenv("JWT_EXPIRE", "2h")

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.auth.token.secret)
		assert.Equal(t, 2*time.Hour, cfg.auth.token.exp)
		assert.Equal(t, "weather-from-env", cfg.upstream.weatherKey)
		assert.Equal(t, 20, cfg.rateLimiter.RequestsPerTimeFrame)
		assert.Equal(t, 15*time.Minute, cfg.rateLimiter.TimeFrame)
		assert.Equal(t, "mongo", cfg.db.driver)
		assert.Equal(t, ":5000", cfg.addr)
	})

	t.Run("every problem is reported", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("JWT_SECRET", "")
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DB_ADDR", "")
		t.Setenv("RATELIMITER_REQUESTS_COUNT", "lots")

		_, err := loadConfig()
		require.Error(t, err)
		assert.ErrorContains(t, err, "JWT_SECRET is required")
		assert.ErrorContains(t, err, "DB_ADDR is required when DB_DRIVER=postgres")
		assert.ErrorContains(t, err, `RATELIMITER_REQUESTS_COUNT: "lots" is not an integer`)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("JWT_SECRET", "s")
		t.Setenv("DB_DRIVER", "sqlite")

		_, err := loadConfig()
		assert.ErrorContains(t, err, `DB_DRIVER: unknown driver "sqlite"`)
	})
}
