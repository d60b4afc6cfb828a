// Package config provides application configuration management.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. KIOSK_SERVER_PORT.
const EnvPrefix = "KIOSK"

// Config holds all application configuration.
type Config struct {
	Env       string
	Server    ServerConfig
	Storage   StorageConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TrustProxy      bool
	SecureCookies   bool
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver           string
	DataDir          string
	PostgresURL      string
	PostgresMaxConns int
}

// SecurityConfig holds session and request limits.
type SecurityConfig struct {
	SessionIdleTimeout time.Duration
	SessionMaxAge      time.Duration
	SetupCodeTTL       time.Duration
	CleanupInterval    time.Duration
	MaxRequestBodySize int64
}

// RateLimitConfig holds login lockout and request throttle settings.
type RateLimitConfig struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	Requests         int
	Window           time.Duration
}

// RedisConfig holds Redis connection settings. An empty URL disables the
// request throttle.
type RedisConfig struct {
	URL        string
	MaxRetries int
	PoolSize   int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled         bool
	CollectInterval time.Duration
}

// Load reads configuration from defaults, an optional config file and
// environment variables, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Read from environment
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Env: v.GetString("env"),
	}

	// Server
	cfg.Server = ServerConfig{
		Host:            v.GetString("server.host"),
		Port:            v.GetInt("server.port"),
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		IdleTimeout:     v.GetDuration("server.idle_timeout"),
		RequestTimeout:  v.GetDuration("server.request_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		AllowedOrigins:  v.GetStringSlice("server.allowed_origins"),
		TrustProxy:      v.GetBool("server.trust_proxy"),
		SecureCookies:   v.GetBool("server.secure_cookies"),
	}

	// Storage
	cfg.Storage = StorageConfig{
		Driver:           v.GetString("storage.driver"),
		DataDir:          v.GetString("storage.data_dir"),
		PostgresURL:      v.GetString("storage.postgres_url"),
		PostgresMaxConns: v.GetInt("storage.postgres_max_conns"),
	}

	// Security
	cfg.Security = SecurityConfig{
		SessionIdleTimeout: v.GetDuration("security.session_idle_timeout"),
		SessionMaxAge:      v.GetDuration("security.session_max_age"),
		SetupCodeTTL:       v.GetDuration("security.setup_code_ttl"),
		CleanupInterval:    v.GetDuration("security.cleanup_interval"),
		MaxRequestBodySize: v.GetInt64("security.max_request_body_size"),
	}

	// Rate limiting
	cfg.RateLimit = RateLimitConfig{
		MaxLoginAttempts: v.GetInt("rate_limit.max_login_attempts"),
		LockoutDuration:  v.GetDuration("rate_limit.lockout_duration"),
		Requests:         v.GetInt("rate_limit.requests"),
		Window:           v.GetDuration("rate_limit.window"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		URL:        v.GetString("redis.url"),
		MaxRetries: v.GetInt("redis.max_retries"),
		PoolSize:   v.GetInt("redis.pool_size"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled:         v.GetBool("metrics.enabled"),
		CollectInterval: v.GetDuration("metrics.collect_interval"),
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.secure_cookies", false)

	// Storage defaults
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.postgres_url", "")
	v.SetDefault("storage.postgres_max_conns", 4)

	// Security defaults
	v.SetDefault("security.session_idle_timeout", 2*time.Hour)
	v.SetDefault("security.session_max_age", 7*24*time.Hour)
	v.SetDefault("security.setup_code_ttl", 15*time.Minute)
	v.SetDefault("security.cleanup_interval", 1*time.Hour)
	v.SetDefault("security.max_request_body_size", 1*1024*1024) // 1MB

	// Rate limiting defaults
	v.SetDefault("rate_limit.max_login_attempts", 5)
	v.SetDefault("rate_limit.lockout_duration", 5*time.Minute)
	v.SetDefault("rate_limit.requests", 60)
	v.SetDefault("rate_limit.window", 60*time.Second)

	// Redis defaults
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.collect_interval", 15*time.Second)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage data directory is required")
	}
	switch c.Storage.Driver {
	case "file", "bolt":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return errors.New("storage.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q (want file, bolt or postgres)", c.Storage.Driver)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q (want json or text)", c.Log.Format)
	}
	if c.Security.MaxRequestBodySize <= 0 {
		return errors.New("max request body size must be positive")
	}
	if c.RateLimit.MaxLoginAttempts <= 0 || c.RateLimit.LockoutDuration <= 0 {
		return errors.New("login rate limit must be positive")
	}
	if c.Redis.URL != "" && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("request throttle needs positive rate_limit.requests and rate_limit.window")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
