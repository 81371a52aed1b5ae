package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, DriverFile, cfg.StoreDriver)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL())
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `{
		"app": {"AppPort": "9000", "JWTSecret": "from-file", "AppEnv": "development", "AllowedOrigins": ["http://a"]},
		"store": {"Driver": "SQLite", "DataDir": "/tmp/nb"},
		"redis": {"Enabled": true, "RedisPort": 6380},
		"log": {"Level": "debug"}
	}`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("APP_PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "http://x,http://y")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.AppPort)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, filepath.Join("/tmp/nb", "newsboard.db"), cfg.SQLitePath)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, 6380, cfg.RedisPort)
	assert.Equal(t, []string{"http://x", "http://y"}, cfg.AllowedOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	t.Setenv("CONFIG_PATH", writeConfig(t, `{not json`))
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CONFIG_PATH", writeConfig(t, `{}`))
	t.Setenv("STORE_DRIVER", "mongo")
	_, err = Load()
	assert.ErrorContains(t, err, "mongo")
}

func TestToGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, toGormLogLevel("debug"))
	assert.Equal(t, logger.Warn, toGormLogLevel("info"))
	assert.Equal(t, logger.Error, toGormLogLevel("error"))
	assert.Equal(t, logger.Silent, toGormLogLevel("silent"))
}

func TestDialectorForFileDriver(t *testing.T) {
	_, err := dialectorFor(AppConfig{StoreDriver: DriverFile})
	assert.Error(t, err)
}
