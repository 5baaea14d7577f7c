package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Twilio   TwilioConfig   `yaml:"twilio"`
	Telegram TelegramConfig `yaml:"telegram"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Bedrock  BedrockConfig  `yaml:"bedrock"`
	Memory   MemoryConfig   `yaml:"memory"`
	Calendar CalendarConfig `yaml:"calendar"`
	Menu     MenuConfig     `yaml:"menu"`
	Search   SearchConfig   `yaml:"search"`
	Storage  StorageConfig  `yaml:"storage"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Workers  WorkersConfig  `yaml:"workers"`
	Business BusinessConfig `yaml:"business"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int    `yaml:"port"`
	Host          string `yaml:"host"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis configuration. Redis is optional: when absent
// the pending-action registry runs in-process and the reminder dispatcher
// falls back to PG advisory locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// TwilioConfig holds telephony provider configuration
type TwilioConfig struct {
	AccountSID        string `yaml:"account_sid"`
	AuthToken         string `yaml:"auth_token"`
	FromNumber        string `yaml:"from_number"`
	OperatorNumber    string `yaml:"operator_number"`
	BaseURL           string `yaml:"base_url"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	ValidateSignature bool   `yaml:"validate_signature"`
}

// Timeout returns the configured timeout as a duration
func (c TwilioConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TelegramConfig holds approval-bot configuration
type TelegramConfig struct {
	BotToken       string `yaml:"bot_token"`
	ChatID         int64  `yaml:"chat_id"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c TelegramConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OpenAIConfig holds OpenAI API configuration for draft generation
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	EmbedModel     string `yaml:"embed_model"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BedrockConfig holds AWS Bedrock configuration. When enabled it takes
// precedence over OpenAI so model traffic stays inside AWS.
type BedrockConfig struct {
	ModelID string `yaml:"model_id"`
	Region  string `yaml:"region"`
	Enabled bool   `yaml:"enabled"`
}

// MemoryConfig holds the semantic-memory vector store configuration
type MemoryConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c MemoryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CalendarConfig holds Google Calendar configuration
type CalendarConfig struct {
	Enabled        bool     `yaml:"enabled"`
	ClientID       string   `yaml:"client_id"`
	ClientSecret   string   `yaml:"client_secret"`
	RefreshToken   string   `yaml:"refresh_token"`
	CalendarIDs    []string `yaml:"calendar_ids"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c CalendarConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MenuConfig holds the downstream menu/order service configuration
type MenuConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
	MirrorEnabled  bool   `yaml:"mirror_enabled"`
}

// Timeout returns the configured timeout as a duration
func (c MenuConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SearchConfig guards the read-only search API
type SearchConfig struct {
	APIKey        string   `yaml:"api_key"`
	AllowedCIDRs  []string `yaml:"allowed_cidrs"`
	RatePerMinute int      `yaml:"rate_per_minute"`
}

// StorageConfig holds AWS storage configuration for media archival
type StorageConfig struct {
	S3Bucket   string `yaml:"s3_bucket"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// AlertsConfig holds operator email alerting (SES) configuration
type AlertsConfig struct {
	Enabled bool   `yaml:"enabled"`
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Region  string `yaml:"region"`
}

// WorkersConfig holds background worker intervals
type WorkersConfig struct {
	ReminderPollSeconds   int `yaml:"reminder_poll_seconds"`
	ReconcileIntervalMins int `yaml:"reconcile_interval_mins"`
	ReconcileBatchSize    int `yaml:"reconcile_batch_size"`
	ReconcileMaxAttempts  int `yaml:"reconcile_max_attempts"`
}

// ReminderPollInterval returns the dispatcher poll interval as a duration
func (c WorkersConfig) ReminderPollInterval() time.Duration {
	return time.Duration(c.ReminderPollSeconds) * time.Second
}

// ReconcileInterval returns the reconciler interval as a duration
func (c WorkersConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMins) * time.Minute
}

// BusinessConfig holds identity fields rendered into templates
type BusinessConfig struct {
	Name     string `yaml:"name"`
	Signoff  string `yaml:"signoff"`
	Timezone string `yaml:"timezone"`
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
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 3
	}
	if cfg.Twilio.BaseURL == "" {
		cfg.Twilio.BaseURL = "https://api.twilio.com"
	}
	if cfg.Twilio.TimeoutSeconds == 0 {
		cfg.Twilio.TimeoutSeconds = 15
	}
	if cfg.Telegram.BaseURL == "" {
		cfg.Telegram.BaseURL = "https://api.telegram.org"
	}
	if cfg.Telegram.TimeoutSeconds == 0 {
		cfg.Telegram.TimeoutSeconds = 15
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o"
	}
	if cfg.OpenAI.EmbedModel == "" {
		cfg.OpenAI.EmbedModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = 30
	}
	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-east-1"
	}
	if cfg.Memory.TimeoutSeconds == 0 {
		cfg.Memory.TimeoutSeconds = 20
	}
	if cfg.Calendar.TimeoutSeconds == 0 {
		cfg.Calendar.TimeoutSeconds = 20
	}
	if cfg.Menu.TimeoutSeconds == 0 {
		cfg.Menu.TimeoutSeconds = 15
	}
	if cfg.Search.RatePerMinute == 0 {
		cfg.Search.RatePerMinute = 30
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Alerts.Region == "" {
		cfg.Alerts.Region = cfg.Storage.AWSRegion
	}
	if cfg.Workers.ReminderPollSeconds == 0 {
		cfg.Workers.ReminderPollSeconds = 30
	}
	if cfg.Workers.ReconcileIntervalMins == 0 {
		cfg.Workers.ReconcileIntervalMins = 10
	}
	if cfg.Workers.ReconcileBatchSize == 0 {
		cfg.Workers.ReconcileBatchSize = 10
	}
	if cfg.Workers.ReconcileMaxAttempts == 0 {
		cfg.Workers.ReconcileMaxAttempts = 5
	}
	if cfg.Business.Name == "" {
		cfg.Business.Name = "Copperline Cocktail Co."
	}
	if cfg.Business.Timezone == "" {
		cfg.Business.Timezone = "America/Chicago"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Server.PublicBaseURL = v
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.Twilio.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.Twilio.AuthToken = v
	}
	if v := os.Getenv("TWILIO_FROM_NUMBER"); v != "" {
		cfg.Twilio.FromNumber = v
	}
	if v := os.Getenv("TWILIO_OPERATOR_NUMBER"); v != "" {
		cfg.Twilio.OperatorNumber = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
		if !cfg.Telegram.Enabled {
			cfg.Telegram.Enabled = true
		}
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
		if !cfg.OpenAI.Enabled {
			cfg.OpenAI.Enabled = true
		}
	}
	if v := os.Getenv("MEMORY_BASE_URL"); v != "" {
		cfg.Memory.BaseURL = v
	}
	if v := os.Getenv("MEMORY_API_KEY"); v != "" {
		cfg.Memory.APIKey = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Calendar.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Calendar.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_REFRESH_TOKEN"); v != "" {
		cfg.Calendar.RefreshToken = v
	}
	if v := os.Getenv("GOOGLE_CALENDAR_IDS"); v != "" {
		cfg.Calendar.CalendarIDs = splitAndTrim(v)
	}
	if v := os.Getenv("MENU_BASE_URL"); v != "" {
		cfg.Menu.BaseURL = v
	}
	if v := os.Getenv("MENU_API_KEY"); v != "" {
		cfg.Menu.APIKey = v
	}
	if v := os.Getenv("SEARCH_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("BARBACK_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("ALERTS_FROM"); v != "" {
		cfg.Alerts.From = v
	}
	if v := os.Getenv("ALERTS_TO"); v != "" {
		cfg.Alerts.To = v
	}

	return cfg, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
