package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Browser session and session store configuration
	Session SessionConfig `yaml:"session"`

	// List/search cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Authentication and admin configuration
	Auth AuthConfig `yaml:"auth"`

	// Image upload configuration
	Upload UploadConfig `yaml:"upload"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SeedSampleData  bool          `yaml:"seed_sample_data"`
	// Env is "development" for local runs; anything else is treated as production
	Env string `yaml:"env"`
}

// Development reports whether the server runs in development mode
func (c *ServerConfig) Development() bool {
	return c.Env == "development"
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver       string        `yaml:"driver"` // "postgres" or "sqlite"
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	Name         string        `yaml:"name"`
	SSLMode      string        `yaml:"sslmode"`
	Path         string        `yaml:"path"` // sqlite file
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	MaxLifetime  time.Duration `yaml:"max_lifetime"`
}

// SessionConfig holds cookie session and session store settings
type SessionConfig struct {
	CookieName    string        `yaml:"cookie_name"`
	Secret        string        `yaml:"secret"`
	MaxAge        int           `yaml:"max_age"` // seconds
	Secure        bool          `yaml:"secure"`
	RestoreWindow time.Duration `yaml:"restore_window"`
	RestoreLatest bool          `yaml:"restore_latest"`
}

// CacheConfig holds list/search cache settings
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	AdminEmails      []string      `yaml:"admin_emails"`
	MinPasswordLen   int           `yaml:"min_password_len"`
	LoginMaxAttempts int           `yaml:"login_max_attempts"`
	LoginWindow      time.Duration `yaml:"login_window"`
}

// UploadConfig holds image upload settings
type UploadConfig struct {
	MaxImageSize int64 `yaml:"max_image_size"` // in bytes
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "pretty"
}

// DefaultCookieSecret is the placeholder secret, accepted only in development
const DefaultCookieSecret = "change-me-in-production"

const minCookieSecretLen = 32

// Defaults returns the configuration used when neither a config file nor
// environment variables override a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			SeedSampleData:  true,
			Env:             "production",
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			Host:         "localhost",
			Port:         "5432",
			User:         "postgres",
			Password:     "postgres",
			Name:         "ct_protocol_manual",
			SSLMode:      "disable",
			Path:         "./data/ct_protocol_manual.db",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			MaxLifetime:  5 * time.Minute,
		},
		Session: SessionConfig{
			CookieName:    "ctmanual_session",
			Secret:        DefaultCookieSecret,
			MaxAge:        86400 * 7,
			RestoreWindow: 24 * time.Hour,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Auth: AuthConfig{
			AdminEmails:      []string{"admin@hospital.jp"},
			MinPasswordLen:   6,
			LoginMaxAttempts: 10,
			LoginWindow:      time.Minute,
		},
		Upload: UploadConfig{
			MaxImageSize: 5 * 1024 * 1024, // 5MB
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and then
// environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.SeedSampleData = getBoolEnv("SEED_SAMPLE_DATA", c.Server.SeedSampleData)
	c.Server.Env = getEnv("ENV", c.Server.Env)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.MaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.MaxLifetime = getDurationEnv("DB_MAX_LIFETIME", c.Database.MaxLifetime)

	c.Session.CookieName = getEnv("SESSION_COOKIE_NAME", c.Session.CookieName)
	c.Session.Secret = getEnv("COOKIE_SECRET", c.Session.Secret)
	c.Session.MaxAge = getIntEnv("SESSION_MAX_AGE", c.Session.MaxAge)
	c.Session.Secure = getBoolEnv("SESSION_SECURE", c.Session.Secure)
	c.Session.RestoreWindow = getDurationEnv("SESSION_RESTORE_WINDOW", c.Session.RestoreWindow)
	c.Session.RestoreLatest = getBoolEnv("SESSION_RESTORE_LATEST", c.Session.RestoreLatest)

	c.Cache.TTL = getDurationEnv("CACHE_TTL", c.Cache.TTL)

	c.Auth.AdminEmails = getListEnv("ADMIN_EMAILS", c.Auth.AdminEmails)
	c.Auth.MinPasswordLen = getIntEnv("MIN_PASSWORD_LEN", c.Auth.MinPasswordLen)
	c.Auth.LoginMaxAttempts = getIntEnv("LOGIN_MAX_ATTEMPTS", c.Auth.LoginMaxAttempts)
	c.Auth.LoginWindow = getDurationEnv("LOGIN_WINDOW", c.Auth.LoginWindow)

	c.Upload.MaxImageSize = getInt64Env("MAX_IMAGE_SIZE", c.Upload.MaxImageSize)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of: postgres, sqlite (got %q)", c.Database.Driver)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("COOKIE_SECRET is required")
	}
	if !c.Server.Development() {
		// the cookie signature is the only proof of the signed-in user
		if c.Session.Secret == DefaultCookieSecret {
			return fmt.Errorf("COOKIE_SECRET must be changed outside development")
		}
		if len(c.Session.Secret) < minCookieSecretLen {
			return fmt.Errorf("COOKIE_SECRET must be at least %d bytes", minCookieSecretLen)
		}
	}
	if c.Session.RestoreWindow <= 0 {
		return fmt.Errorf("SESSION_RESTORE_WINDOW must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.Upload.MaxImageSize <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE must be positive")
	}
	return nil
}

// IsAdminEmail reports whether email is on the admin allow-list
func (c *AuthConfig) IsAdminEmail(email string) bool {
	for _, admin := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(admin), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

// GetDSN returns the driver-specific connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", c.Path)
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
