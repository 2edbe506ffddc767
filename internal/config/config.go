package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Auth          AuthConfig          `mapstructure:"auth"`
	CORS          CORSConfig          `mapstructure:"cors"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Supabase      SupabaseConfig      `mapstructure:"supabase"`
	Queue         QueueConfig         `mapstructure:"queue"`
	SendRateLimit SendRateLimitConfig `mapstructure:"send_rate_limit"`
	Retention     RetentionConfig     `mapstructure:"retention"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Termii        TermiiConfig        `mapstructure:"termii"`
	Twilio        TwilioConfig        `mapstructure:"twilio"`
	AWS           AWSConfig           `mapstructure:"aws"`
	Org           OrgConfig           `mapstructure:"org"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds global HTTP rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SupabaseConfig holds Supabase project settings.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// QueueConfig holds async queue settings.
type QueueConfig struct {
	Concurrency   int `mapstructure:"concurrency"`
	MaxRetry      int `mapstructure:"max_retry"`
	RetryDelaySec int `mapstructure:"retry_delay_sec"`
}

// SendRateLimitConfig holds per-actor dispatch limiting settings.
type SendRateLimitConfig struct {
	MaxPerHour int `mapstructure:"max_per_hour"`
}

// RetentionConfig holds audit log retention settings (durations as days
// for YAML/env compat). MaxAgeDays of 0 disables pruning.
type RetentionConfig struct {
	SweepIntervalSec int `mapstructure:"sweep_interval_sec"`
	MaxAgeDays       int `mapstructure:"max_age_days"`
}

// ProvidersConfig selects the carrier for each channel.
type ProvidersConfig struct {
	SMS      string `mapstructure:"sms"`
	WhatsApp string `mapstructure:"whatsapp"`
	Email    string `mapstructure:"email"`
}

// TermiiConfig holds Termii carrier credentials.
type TermiiConfig struct {
	APIKey               string `mapstructure:"api_key"`
	SenderID             string `mapstructure:"sender_id"`
	EmailConfigurationID string `mapstructure:"email_configuration_id"`
}

// TwilioConfig holds Twilio carrier credentials.
type TwilioConfig struct {
	AccountSID  string `mapstructure:"account_sid"`
	AuthToken   string `mapstructure:"auth_token"`
	PhoneNumber string `mapstructure:"phone_number"`
}

// AWSConfig holds AWS SES credentials.
type AWSConfig struct {
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	FromEmail string `mapstructure:"from_email"`
}

// OrgConfig holds organization details injected into template variables.
type OrgConfig struct {
	Name               string `mapstructure:"name"`
	SupportEmail       string `mapstructure:"support_email"`
	SupportPhone       string `mapstructure:"support_phone"`
	CommunityGroupLink string `mapstructure:"community_group_link"`
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the OUTREACH_ prefix and underscore separators.
// Example: OUTREACH_SERVER_PORT overrides server.port in config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	// Environment variable settings
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 5)
	v.SetDefault("queue.retry_delay_sec", 30)
	v.SetDefault("send_rate_limit.max_per_hour", 30)
	v.SetDefault("retention.sweep_interval_sec", 86400) // daily
	v.SetDefault("retention.max_age_days", 0)           // keep forever
	v.SetDefault("providers.sms", "termii")
	v.SetDefault("providers.whatsapp", "termii")
	v.SetDefault("providers.email", "aws_ses")
	v.SetDefault("aws.region", "us-east-1")

	// Read config file (optional — env vars can provide everything)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Handle comma-separated API keys from env var
	if apiKeysStr := v.GetString("auth.api_keys"); apiKeysStr != "" && len(cfg.Auth.APIKeys) == 0 {
		keys := strings.Split(apiKeysStr, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.Auth.APIKeys = keys
	}

	return &cfg, nil
}
