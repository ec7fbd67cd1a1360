package config

import (
	"os"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Similarity: SimilarityConfig{BaseURL: "http://localhost:8000"},
		Matching:   MatchingConfig{TopN: 1},
		Store:      StoreConfig{Driver: "sqlite"},
		Cache:      CacheConfig{Type: "memory"},
		Refresh:    RefreshConfig{Mode: "http"},
	}
}

func TestLoad(t *testing.T) {
	// Run from an empty directory so no config.yaml or .env is picked up
	originalDir, _ := os.Getwd()
	defer os.Chdir(originalDir)
	os.Chdir(t.TempDir())

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Similarity.BaseURL != "http://localhost:8000" {
			t.Errorf("Similarity.BaseURL = %s, want http://localhost:8000", cfg.Similarity.BaseURL)
		}
		if cfg.Similarity.Timeout != 30*time.Second {
			t.Errorf("Similarity.Timeout = %v, want 30s", cfg.Similarity.Timeout)
		}
		if cfg.Matching.TopN != 1 {
			t.Errorf("Matching.TopN = %d, want 1", cfg.Matching.TopN)
		}
		if !cfg.Matching.EnableFuzzy {
			t.Errorf("Matching.EnableFuzzy = false, want true")
		}
		if len(cfg.Matching.InsertStatuses) != 0 {
			t.Errorf("Matching.InsertStatuses = %v, want empty", cfg.Matching.InsertStatuses)
		}
		if cfg.Store.Driver != "sqlite" {
			t.Errorf("Store.Driver = %s, want sqlite", cfg.Store.Driver)
		}
		if cfg.Cache.Type != "memory" {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.TTL != 5*time.Minute {
			t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL)
		}
		if cfg.Refresh.Mode != "http" {
			t.Errorf("Refresh.Mode = %s, want http", cfg.Refresh.Mode)
		}
		if cfg.Refresh.KafkaCompression != "snappy" {
			t.Errorf("Refresh.KafkaCompression = %s, want snappy", cfg.Refresh.KafkaCompression)
		}
		if cfg.RateLimit.PerIP != 100 {
			t.Errorf("RateLimit.PerIP = %d, want 100", cfg.RateLimit.PerIP)
		}
		if cfg.Log.Format != "json" {
			t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		t.Setenv("DOCRECON_SERVER_PORT", "9090")
		t.Setenv("DOCRECON_SERVER_ENVIRONMENT", "production")
		t.Setenv("DOCRECON_SIMILARITY_BASE_URL", "http://embeddings:8000")
		t.Setenv("DOCRECON_SIMILARITY_API_KEY", "secret")
		t.Setenv("DOCRECON_MATCHING_TOP_N", "3")
		t.Setenv("DOCRECON_MATCHING_INSERT_STATUSES", "unmatched,suggested")
		t.Setenv("DOCRECON_STORE_DRIVER", "postgres")
		t.Setenv("DOCRECON_STORE_DSN", "postgres://localhost/docrecon")
		t.Setenv("DOCRECON_CACHE_TYPE", "redis")
		t.Setenv("DOCRECON_CACHE_REDIS_ADDR", "localhost:6379")
		t.Setenv("DOCRECON_CACHE_TTL", "1h")
		t.Setenv("DOCRECON_REFRESH_MODE", "kafka")
		t.Setenv("DOCRECON_REFRESH_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
		t.Setenv("DOCRECON_REFRESH_KAFKA_COMPRESSION", "zstd")
		t.Setenv("DOCRECON_RATELIMIT_PER_IP", "200")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if cfg.Similarity.BaseURL != "http://embeddings:8000" {
			t.Errorf("Similarity.BaseURL = %s, want http://embeddings:8000", cfg.Similarity.BaseURL)
		}
		if cfg.Similarity.APIKey != "secret" {
			t.Errorf("Similarity.APIKey = %s, want secret", cfg.Similarity.APIKey)
		}
		if cfg.Matching.TopN != 3 {
			t.Errorf("Matching.TopN = %d, want 3", cfg.Matching.TopN)
		}
		if len(cfg.Matching.InsertStatuses) != 2 || cfg.Matching.InsertStatuses[1] != "suggested" {
			t.Errorf("Matching.InsertStatuses = %v, want [unmatched suggested]", cfg.Matching.InsertStatuses)
		}
		if cfg.Store.Driver != "postgres" {
			t.Errorf("Store.Driver = %s, want postgres", cfg.Store.Driver)
		}
		if cfg.Cache.RedisAddr != "localhost:6379" {
			t.Errorf("Cache.RedisAddr = %s, want localhost:6379", cfg.Cache.RedisAddr)
		}
		if cfg.Cache.TTL != time.Hour {
			t.Errorf("Cache.TTL = %v, want 1h", cfg.Cache.TTL)
		}
		if len(cfg.Refresh.KafkaBrokers) != 2 {
			t.Errorf("Refresh.KafkaBrokers = %v, want 2 brokers", cfg.Refresh.KafkaBrokers)
		}
		if cfg.Refresh.KafkaCompression != "zstd" {
			t.Errorf("Refresh.KafkaCompression = %s, want zstd", cfg.Refresh.KafkaCompression)
		}
		if cfg.RateLimit.PerIP != 200 {
			t.Errorf("RateLimit.PerIP = %d, want 200", cfg.RateLimit.PerIP)
		}
	})

	t.Run("fails validation for invalid cache type", func(t *testing.T) {
		t.Setenv("DOCRECON_CACHE_TYPE", "invalid")

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for invalid cache type")
		}
	})

	t.Run("fails validation when redis address missing for redis cache", func(t *testing.T) {
		t.Setenv("DOCRECON_CACHE_TYPE", "redis")

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for missing Redis address")
		}
	})
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/docrecon.yaml"
	content := `
server:
  port: "7070"
matching:
  top_n: 2
  insert_statuses: [unmatched]
store:
  driver: sqlite
  dsn: /tmp/catalog.db
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v, want nil", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Server.Port = %s, want 7070", cfg.Server.Port)
	}
	if cfg.Matching.TopN != 2 {
		t.Errorf("Matching.TopN = %d, want 2", cfg.Matching.TopN)
	}
	if len(cfg.Matching.InsertStatuses) != 1 || cfg.Matching.InsertStatuses[0] != "unmatched" {
		t.Errorf("Matching.InsertStatuses = %v, want [unmatched]", cfg.Matching.InsertStatuses)
	}
	if cfg.Store.DSN != "/tmp/catalog.db" {
		t.Errorf("Store.DSN = %s, want /tmp/catalog.db", cfg.Store.DSN)
	}

	if _, err := LoadFrom(dir + "/missing.yaml"); err == nil {
		t.Error("LoadFrom() error = nil, want error for missing explicit file")
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)
		os.Chdir(t.TempDir())

		if err := loadEnvFile(); err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables from .env file", func(t *testing.T) {
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)
		os.Chdir(t.TempDir())

		envContent := `
# Comment line
TEST_VAR_1=value1
TEST_VAR_2=value2
# TEST_COMMENTED=should_not_load
`
		if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}
		defer func() {
			os.Unsetenv("TEST_VAR_1")
			os.Unsetenv("TEST_VAR_2")
		}()

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_VAR_1") != "value1" {
			t.Errorf("TEST_VAR_1 = %s, want value1", os.Getenv("TEST_VAR_1"))
		}
		if os.Getenv("TEST_VAR_2") != "value2" {
			t.Errorf("TEST_VAR_2 = %s, want value2", os.Getenv("TEST_VAR_2"))
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Errorf("TEST_COMMENTED should not be loaded from comment")
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)
		os.Chdir(t.TempDir())

		t.Setenv("TEST_OVERRIDE", "existing-value")

		if err := os.WriteFile(".env", []byte("TEST_OVERRIDE=new-value"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing similarity URL with http refresh", func(c *Config) { c.Similarity.BaseURL = "" }, true},
		{"missing similarity URL without refresh", func(c *Config) { c.Similarity.BaseURL = ""; c.Refresh.Mode = "none" }, false},
		{"unknown store driver", func(c *Config) { c.Store.Driver = "mysql" }, true},
		{"postgres without DSN", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"postgres with DSN", func(c *Config) { c.Store.Driver = "postgres"; c.Store.DSN = "postgres://x" }, false},
		{"invalid cache type", func(c *Config) { c.Cache.Type = "invalid-type" }, true},
		{"redis without address", func(c *Config) { c.Cache.Type = "redis" }, true},
		{"redis with address", func(c *Config) { c.Cache.Type = "redis"; c.Cache.RedisAddr = "localhost:6379" }, false},
		{"unknown refresh mode", func(c *Config) { c.Refresh.Mode = "smoke-signal" }, true},
		{"kafka without brokers", func(c *Config) { c.Refresh.Mode = "kafka"; c.Refresh.KafkaTopic = "t" }, true},
		{"kafka without topic", func(c *Config) { c.Refresh.Mode = "kafka"; c.Refresh.KafkaBrokers = []string{"k:9092"} }, true},
		{"both with kafka settings", func(c *Config) {
			c.Refresh.Mode = "both"
			c.Refresh.KafkaBrokers = []string{"k:9092"}
			c.Refresh.KafkaTopic = "t"
		}, false},
		{"kafka with unknown compression", func(c *Config) {
			c.Refresh.Mode = "kafka"
			c.Refresh.KafkaBrokers = []string{"k:9092"}
			c.Refresh.KafkaTopic = "t"
			c.Refresh.KafkaCompression = "brotli"
		}, true},
		{"top_n zero", func(c *Config) { c.Matching.TopN = 0 }, true},
		{"already_exists is never insertable", func(c *Config) { c.Matching.InsertStatuses = []string{"already_exists"} }, true},
		{"insert statuses subset", func(c *Config) { c.Matching.InsertStatuses = []string{"unmatched"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"a, b", "", " c "})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitList() = %v, want [a b c]", got)
	}
}
