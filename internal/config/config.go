// Package config provides configuration management for the inventory health service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the health service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Health      HealthConfig      `mapstructure:"health"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Client      ClientConfig      `mapstructure:"client"`
	Ceph        CephConfig        `mapstructure:"ceph"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HealthConfig controls the health evaluation pipeline.
type HealthConfig struct {
	// Timeout bounds one whole evaluation, all collaborator calls included
	Timeout             time.Duration `mapstructure:"timeout"`
	PatchTimeout        time.Duration `mapstructure:"patch_timeout"`
	AlarmTimeout        time.Duration `mapstructure:"alarm_timeout"`
	CephBackend         bool          `mapstructure:"ceph_backend"`
	RequiredPatches     []string      `mapstructure:"required_patches"`
	BackupPath          string        `mapstructure:"backup_path"`
	BackupRequiredBytes uint64        `mapstructure:"backup_required_bytes"`
	// OSDLockPolicy decides whether an unknown OSD status blocks a lock: "block" or "allow"
	OSDLockPolicy       string        `mapstructure:"osd_lock_policy"`
	ReportTTL           time.Duration `mapstructure:"report_ttl"`
}

// CatalogConfig is the region-scoped service catalog.
// Endpoints maps region -> service -> base URL.
type CatalogConfig struct {
	DefaultRegion string                       `mapstructure:"default_region"`
	Endpoints     map[string]map[string]string `mapstructure:"endpoints"`
}

// ClientConfig holds settings shared by the REST collaborator clients.
type ClientConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	EnableHTTP2        bool          `mapstructure:"enable_http2"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
}

// CephConfig holds the ceph REST API location.
type CephConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MaintenanceConfig holds the maintenance service location.
type MaintenanceConfig struct {
	Address    string        `mapstructure:"address"`
	Port       int           `mapstructure:"port"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// DatabaseConfig holds the inventory PostgreSQL connection settings.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MinConnections int    `mapstructure:"min_connections"`
}

// RedisConfig holds the report store settings. An empty host keeps reports in memory.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("inventory-health")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/inventory/")
	}

	v.SetEnvPrefix("INVENTORY_HEALTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, use defaults/env)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 6385)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("health.timeout", "90s")
	v.SetDefault("health.patch_timeout", "60s")
	v.SetDefault("health.alarm_timeout", "30s")
	v.SetDefault("health.ceph_backend", false)
	v.SetDefault("health.required_patches", []string{})
	v.SetDefault("health.backup_path", "/opt/backups")
	v.SetDefault("health.backup_required_bytes", uint64(20*1024*1024*1024))
	v.SetDefault("health.osd_lock_policy", "block")
	v.SetDefault("health.report_ttl", "24h")

	v.SetDefault("catalog.default_region", "RegionOne")
	v.SetDefault("catalog.endpoints", map[string]map[string]string{
		"RegionOne": {
			"patching": "http://localhost:5487",
			"vim":      "http://localhost:4545",
			"sm":       "http://localhost:7777",
			"fm":       "http://localhost:18002",
		},
	})

	v.SetDefault("client.timeout", "10s")
	v.SetDefault("client.enable_http2", false)
	v.SetDefault("client.insecure_skip_verify", false)
	v.SetDefault("client.breaker_failures", 5)
	v.SetDefault("client.breaker_open_timeout", "30s")
	v.SetDefault("client.user_agent", "inventory/1.0")

	v.SetDefault("ceph.url", "http://localhost:5001/api/v0.1")
	v.SetDefault("ceph.timeout", "10s")

	v.SetDefault("maintenance.address", "localhost")
	v.SetDefault("maintenance.port", 2112)
	v.SetDefault("maintenance.timeout", "30s")
	v.SetDefault("maintenance.max_retries", 3)
	v.SetDefault("maintenance.retry_delay", "3s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "inventory")
	v.SetDefault("database.user", "admin-inventory")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 1)

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 10.0)
	v.SetDefault("rate_limiter.burst_size", 20)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Health.Timeout <= 0 {
		return fmt.Errorf("health timeout must be positive")
	}

	switch c.Health.OSDLockPolicy {
	case "block", "allow":
	default:
		return fmt.Errorf("health osd_lock_policy must be one of: block, allow")
	}

	if c.Catalog.DefaultRegion == "" {
		return fmt.Errorf("catalog default_region is required")
	}

	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client timeout must be positive")
	}

	if c.Ceph.URL == "" {
		return fmt.Errorf("ceph url is required")
	}

	if c.Maintenance.MaxRetries <= 0 {
		return fmt.Errorf("maintenance max_retries must be positive")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
	}

	return nil
}
