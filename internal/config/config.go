// Package config loads application configuration from a YAML file with
// environment variable overrides for secrets and deploy-time settings.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	SES         SESConfig         `yaml:"ses"`
	BounceFeed  BounceFeedConfig  `yaml:"bounce_feed"`
	Bedrock     BedrockConfig     `yaml:"bedrock"`
	Suppression SuppressionConfig `yaml:"suppression"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Notify      NotifyConfig      `yaml:"notify"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings. An empty Addr disables the cache and
// Redis-backed locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds AWS SES credentials for the suppression list source
type SESConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// BounceFeedConfig holds the delivery platform REST feed settings
type BounceFeedConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	PageSize int    `yaml:"page_size"`
}

// BedrockConfig holds the model-backed planner settings
type BedrockConfig struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

// SuppressionConfig tunes the suppression engine
type SuppressionConfig struct {
	SoftBounceThreshold int    `yaml:"soft_bounce_threshold"`
	MirrorListID        string `yaml:"mirror_list_id"`
}

// MaintenanceConfig tunes the orchestrator
type MaintenanceConfig struct {
	Workers             int `yaml:"workers"`
	StageTimeoutSeconds int `yaml:"stage_timeout_seconds"`
	LockTTLMinutes      int `yaml:"lock_ttl_minutes"`
}

// ArchiveConfig holds the S3 plan archive settings
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
}

// NotifyConfig holds the completion webhook settings
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.BounceFeed.PageSize == 0 {
		cfg.BounceFeed.PageSize = 500
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-east-1"
	}
	if cfg.Suppression.SoftBounceThreshold == 0 {
		cfg.Suppression.SoftBounceThreshold = 3
	}
	if cfg.Maintenance.Workers == 0 {
		cfg.Maintenance.Workers = 4
	}
	if cfg.Maintenance.StageTimeoutSeconds == 0 {
		cfg.Maintenance.StageTimeoutSeconds = 120
	}
	if cfg.Maintenance.LockTTLMinutes == 0 {
		cfg.Maintenance.LockTTLMinutes = 15
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if baseURL := os.Getenv("BOUNCE_FEED_BASE_URL"); baseURL != "" {
		cfg.BounceFeed.BaseURL = baseURL
	}
	if apiKey := os.Getenv("BOUNCE_FEED_API_KEY"); apiKey != "" {
		cfg.BounceFeed.APIKey = apiKey
	}
	if modelID := os.Getenv("BEDROCK_MODEL_ID"); modelID != "" {
		cfg.Bedrock.ModelID = modelID
	}
	if bucket := os.Getenv("ARCHIVE_BUCKET"); bucket != "" {
		cfg.Archive.Bucket = bucket
		cfg.Archive.Enabled = true
	}
	if url := os.Getenv("MAINTENANCE_WEBHOOK_URL"); url != "" {
		cfg.Notify.WebhookURL = url
	}

	return cfg, nil
}
