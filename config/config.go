package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Similarity SimilarityConfig
	Matching   MatchingConfig
	Store      StoreConfig
	Cache      CacheConfig
	Refresh    RefreshConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SimilarityConfig holds embedding similarity service configuration
type SimilarityConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// MatchingConfig holds matching engine configuration
type MatchingConfig struct {
	TopN int `mapstructure:"top_n"`
	// Empty means every verdict except already_exists may be inserted
	InsertStatuses []string `mapstructure:"insert_statuses"`
	EnableFuzzy    bool     `mapstructure:"enable_fuzzy"`
}

// StoreConfig holds database configuration
type StoreConfig struct {
	Driver       string        `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN          string        `mapstructure:"dsn"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type          string        `mapstructure:"type"` // "memory" or "redis"
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// RefreshConfig controls how the embedding index is told about new rows
type RefreshConfig struct {
	Mode         string        `mapstructure:"mode"` // "http", "kafka", "both" or "none"
	Timeout      time.Duration `mapstructure:"timeout"`
	KafkaBrokers []string      `mapstructure:"kafka_brokers"`
	KafkaTopic   string        `mapstructure:"kafka_topic"`

	// KafkaCompression is one of snappy, gzip, lz4, zstd or none
	KafkaCompression string `mapstructure:"kafka_compression"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFrom(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/docrecon/")
	}

	v.SetEnvPrefix("DOCRECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Comma separated env values arrive as a single element
	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)
	config.Matching.InsertStatuses = splitList(config.Matching.InsertStatuses)
	config.Refresh.KafkaBrokers = splitList(config.Refresh.KafkaBrokers)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile reads .env from the working directory when present. Variables
// already set in the environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat .env: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout", "60s")

	v.SetDefault("similarity.base_url", "http://localhost:8000")
	v.SetDefault("similarity.api_key", "")
	v.SetDefault("similarity.timeout", "30s")
	v.SetDefault("similarity.max_retries", 3)
	v.SetDefault("similarity.rate_per_second", 0)
	v.SetDefault("similarity.burst", 10)

	v.SetDefault("matching.top_n", 1)
	v.SetDefault("matching.insert_statuses", []string{})
	v.SetDefault("matching.enable_fuzzy", true)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "docrecon.db")
	v.SetDefault("store.timeout", "10s")
	v.SetDefault("store.max_open_conns", 10)

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "docrecon:")
	v.SetDefault("cache.ttl", "5m")

	v.SetDefault("refresh.mode", "http")
	v.SetDefault("refresh.timeout", "10s")
	v.SetDefault("refresh.kafka_brokers", []string{})
	v.SetDefault("refresh.kafka_topic", "docrecon.catalog.changed")
	v.SetDefault("refresh.kafka_compression", "snappy")

	v.SetDefault("ratelimit.per_ip", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

var validInsertStatuses = map[string]bool{
	"matched":   true,
	"suggested": true,
	"unmatched": true,
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Similarity.BaseURL == "" && config.Refresh.Mode != "none" && config.Refresh.Mode != "kafka" {
		return fmt.Errorf("similarity base URL is required (set DOCRECON_SIMILARITY_BASE_URL)")
	}

	if config.Store.Driver != "sqlite" && config.Store.Driver != "postgres" {
		return fmt.Errorf("store driver must be 'sqlite' or 'postgres', got: %s", config.Store.Driver)
	}

	if config.Store.Driver == "postgres" && config.Store.DSN == "" {
		return fmt.Errorf("store DSN is required when store driver is 'postgres'")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisAddr == "" {
		return fmt.Errorf("Redis address is required when cache type is 'redis'")
	}

	switch config.Refresh.Mode {
	case "http", "none":
	case "kafka", "both":
		if len(config.Refresh.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka brokers are required when refresh mode is '%s'", config.Refresh.Mode)
		}
		if config.Refresh.KafkaTopic == "" {
			return fmt.Errorf("kafka topic is required when refresh mode is '%s'", config.Refresh.Mode)
		}
		switch strings.ToLower(config.Refresh.KafkaCompression) {
		case "", "snappy", "gzip", "lz4", "zstd", "none":
		default:
			return fmt.Errorf("kafka compression must be 'snappy', 'gzip', 'lz4', 'zstd' or 'none', got: %s", config.Refresh.KafkaCompression)
		}
	default:
		return fmt.Errorf("refresh mode must be 'http', 'kafka', 'both' or 'none', got: %s", config.Refresh.Mode)
	}

	if config.Matching.TopN < 1 {
		return fmt.Errorf("matching top_n must be at least 1, got: %d", config.Matching.TopN)
	}

	for _, status := range config.Matching.InsertStatuses {
		if !validInsertStatuses[status] {
			return fmt.Errorf("matching insert_statuses contains unsupported status %q", status)
		}
	}

	return nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
