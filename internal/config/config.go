package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all configuration for the application
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Log           LogConfig           `mapstructure:"log"`
	Security      SecurityConfig      `mapstructure:"security"`
	Session       SessionConfig       `mapstructure:"session"`
	Preferences   PreferencesConfig   `mapstructure:"preferences"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Measurements  MeasurementsConfig  `mapstructure:"measurements"`
}

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects the datastore. SQLite is the on-device default;
// PostgreSQL is supported for development setups that share one database.
type DatabaseConfig struct {
	Driver         string `mapstructure:"driver"`
	Path           string `mapstructure:"path"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the connection string for the configured driver
func (c DatabaseConfig) DSN() string {
	if c.Driver == DriverPostgres {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
		)
	}
	// foreign keys are off by default in SQLite
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", c.Path)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Password PasswordConfig `mapstructure:"password"`
	Lockout  LockoutConfig  `mapstructure:"lockout"`
}

// PasswordConfig holds password policy and hashing configuration
type PasswordConfig struct {
	// Policy is "strict" (8+ chars, upper, digit, symbol) or "relaxed" (upper, digit)
	Policy            string `mapstructure:"policy"`
	Algorithm         string `mapstructure:"algorithm"`
	BcryptCost        int    `mapstructure:"bcrypt_cost"`
	Argon2Memory      uint32 `mapstructure:"argon2_memory"`
	Argon2Iterations  uint32 `mapstructure:"argon2_iterations"`
	Argon2Parallelism uint8  `mapstructure:"argon2_parallelism"`
}

// LockoutConfig holds login lockout configuration
type LockoutConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Duration    time.Duration `mapstructure:"duration"`
}

// SessionConfig holds remembered-session configuration
type SessionConfig struct {
	// Secret signs remembered session tokens. When empty a random key is
	// generated once and kept in the preference store.
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

// PreferencesConfig selects where device preferences are kept
type PreferencesConfig struct {
	Backend string `mapstructure:"backend"`
}

// NotificationsConfig holds SMS alert configuration
type NotificationsConfig struct {
	Provider      string       `mapstructure:"provider"`
	Twilio        TwilioConfig `mapstructure:"twilio"`
	BelowTemplate string       `mapstructure:"below_template"`
	AboveTemplate string       `mapstructure:"above_template"`
}

// TwilioConfig holds Twilio API credentials
type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

// MeasurementsConfig controls how measurement timestamps are stored
type MeasurementsConfig struct {
	// Timezone is an IANA name or "Local"
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured timezone, falling back to time.Local
func (c MeasurementsConfig) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load reads configuration from .env, an optional config file and environment variables
func Load(configFile string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".weighttracker"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("WEIGHTTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Security.Password.Policy {
	case "strict", "relaxed":
	default:
		return fmt.Errorf("unsupported password policy %q", c.Security.Password.Policy)
	}
	pw := c.Security.Password
	switch pw.Algorithm {
	case "bcrypt":
		if pw.BcryptCost < bcrypt.MinCost || pw.BcryptCost > bcrypt.MaxCost {
			return fmt.Errorf("security.password.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
	case "argon2id":
		if pw.Argon2Memory < 1 || pw.Argon2Iterations < 1 || pw.Argon2Parallelism < 1 {
			return fmt.Errorf("security.password argon2 memory, iterations and parallelism must be at least 1")
		}
	default:
		return fmt.Errorf("unsupported password algorithm %q", pw.Algorithm)
	}
	switch c.Preferences.Backend {
	case "sql", "redis":
	default:
		return fmt.Errorf("unsupported preferences backend %q", c.Preferences.Backend)
	}
	switch c.Notifications.Provider {
	case "log", "twilio":
	default:
		return fmt.Errorf("unsupported notification provider %q", c.Notifications.Provider)
	}
	if c.Security.Lockout.MaxAttempts <= 0 {
		return fmt.Errorf("security.lockout.max_attempts must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	dataDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".weighttracker")
	}

	// Database defaults
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", filepath.Join(dataDir, "weight_tracker.db"))
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "weighttracker")
	v.SetDefault("database.user", "weighttracker")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 4)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "weighttracker")

	// Log defaults
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

	// Security defaults
	v.SetDefault("security.password.policy", "strict")
	v.SetDefault("security.password.algorithm", "bcrypt")
	v.SetDefault("security.password.bcrypt_cost", 12)
	v.SetDefault("security.password.argon2_memory", 65536)
	v.SetDefault("security.password.argon2_iterations", 3)
	v.SetDefault("security.password.argon2_parallelism", 4)

	v.SetDefault("security.lockout.max_attempts", 5)
	v.SetDefault("security.lockout.duration", "10m")

	// Session defaults
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", "720h")
	v.SetDefault("session.issuer", "weighttracker")

	v.SetDefault("preferences.backend", "sql")

	// Notification defaults
	v.SetDefault("notifications.provider", "log")
	v.SetDefault("notifications.below_template", "Goal reached! Your weight of %.1f is at or below your goal.")
	v.SetDefault("notifications.above_template", "Goal reached! Your weight of %.1f is at or above your goal.")

	v.SetDefault("measurements.timezone", "Local")
}
