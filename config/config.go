package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// AppConfig holds configuration values.
// Sensitive data should never have defaults inside code and must be provided via config file or the environment.
type AppConfig struct {
	AppPort     string `env:"APP_PORT"`
	AppEnv      string `env:"APP_ENV"`
	JWTSecret   string `env:"JWT_SECRET"`
	JWTTTLHours int    `env:"JWT_TTL_HOURS"`
	StaticDir   string `env:"STATIC_DIR"`

	// Storage
	StoreDriver string `env:"STORE_DRIVER"`
	DataDir     string `env:"DATA_DIR"`
	DatabaseURI string `env:"DATABASE_URI"`
	DBHost      string `env:"DB_HOST"`
	DBPort      string `env:"DB_PORT"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME"`
	SQLitePath  string `env:"SQLITE_PATH"`

	// Redis for list caching and token revocation
	RedisEnabled    bool   `env:"REDIS_ENABLED"`
	RedisHost       string `env:"REDIS_HOST"`
	RedisPort       int    `env:"REDIS_PORT"`
	RedisDB         int    `env:"REDIS_DB"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	CacheTTLSeconds int    `env:"CACHE_TTL_SECONDS"`

	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE"`
	AllowedOrigins     []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Gin framework configuration
	GinMode string `env:"GIN_MODE"`
	GinPath string `env:"GIN_LOG_PATH"`

	// Logging configuration
	LogLevel      string `env:"LOG_LEVEL"`
	LogPath       string `env:"LOG_PATH"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS"`
	LogCompress   bool   `env:"LOG_COMPRESS"`
}

// IsDevelopment reports whether error responses may carry cause chains.
func (c AppConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// JWTTTL is the lifetime of issued tokens.
func (c AppConfig) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// CacheTTL is the lifetime of cached list pages.
func (c AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// fileConfig mirrors the grouped layout of config/config.json.
type fileConfig struct {
	App struct {
		AppPort            string
		AppEnv             string
		JWTSecret          string
		JWTTTLHours        int
		StaticDir          string
		RateLimitPerMinute int
		AllowedOrigins     []string
	} `json:"app"`
	Store struct {
		Driver     string
		DataDir    string
		SQLitePath string
	} `json:"store"`
	Database struct {
		DatabaseURI string
		DBHost      string
		DBPort      string
		DBUser      string
		DBPassword  string
		DBName      string
	} `json:"database"`
	Redis struct {
		Enabled         bool
		RedisHost       string
		RedisPort       int
		RedisDB         int
		RedisPassword   string
		CacheTTLSeconds int
	} `json:"redis"`
	Log struct {
		Level      string
		Path       string
		GinMode    string
		GinPath    string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	} `json:"log"`
}

// Load builds the configuration. Precedence, lowest first:
// config/config.json (or CONFIG_PATH) -> .env and environment -> defaults for zero values.
func Load() (AppConfig, error) {
	var cfg AppConfig

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = filepath.Join("config", "config.json")
	}
	if err := loadJSONConfig(path, &cfg); err != nil {
		return cfg, err
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET must be set in config or environment")
	}
	switch cfg.StoreDriver {
	case DriverFile, DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

// loadJSONConfig reads the grouped JSON file into out if present. A missing
// file is ignored; invalid JSON is an error.
func loadJSONConfig(path string, out *AppConfig) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	out.AppPort = fc.App.AppPort
	out.AppEnv = fc.App.AppEnv
	out.JWTSecret = fc.App.JWTSecret
	out.JWTTTLHours = fc.App.JWTTTLHours
	out.StaticDir = fc.App.StaticDir
	out.RateLimitPerMinute = fc.App.RateLimitPerMinute
	out.AllowedOrigins = fc.App.AllowedOrigins

	out.StoreDriver = strings.ToLower(fc.Store.Driver)
	out.DataDir = fc.Store.DataDir
	out.SQLitePath = fc.Store.SQLitePath

	out.DatabaseURI = fc.Database.DatabaseURI
	out.DBHost = fc.Database.DBHost
	out.DBPort = fc.Database.DBPort
	out.DBUser = fc.Database.DBUser
	out.DBPassword = fc.Database.DBPassword
	out.DBName = fc.Database.DBName

	out.RedisEnabled = fc.Redis.Enabled
	out.RedisHost = fc.Redis.RedisHost
	out.RedisPort = fc.Redis.RedisPort
	out.RedisDB = fc.Redis.RedisDB
	out.RedisPassword = fc.Redis.RedisPassword
	out.CacheTTLSeconds = fc.Redis.CacheTTLSeconds

	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.GinMode = fc.Log.GinMode
	out.GinPath = fc.Log.GinPath
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.AppEnv == "" {
		c.AppEnv = "production"
	}
	if c.JWTTTLHours == 0 {
		c.JWTTTLHours = 7 * 24
	}
	if c.StoreDriver == "" {
		c.StoreDriver = DriverFile
	}
	c.StoreDriver = strings.ToLower(c.StoreDriver)
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.DataDir, "newsboard.db")
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		if c.StoreDriver == DriverPostgres {
			c.DBPort = "5432"
		} else {
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "newsboard"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 60
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}
