package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/tripauth/internal/pkg/password"
)

type Config struct {
	Port          int              `json:"port" env:"TRIPAUTH_PORT"`
	Storage       StorageConfig    `json:"storage"`
	Database      DatabaseConfig   `json:"database"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Mail          MailConfig       `json:"mail"`
	Alert         AlertConfig      `json:"alert"`
	Recovery      RecoveryConfig   `json:"recovery"`
	Purge         PurgeConfig      `json:"purge"`
	CORSAllowlist []string         `json:"cors_allowlist"`
}

type StorageConfig struct {
	Type string `json:"type" env:"TRIPAUTH_STORAGE_TYPE"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" env:"TRIPAUTH_DB_DSN"`
	Host     string `json:"host" env:"TRIPAUTH_DB_HOST"`
	Port     int    `json:"port" env:"TRIPAUTH_DB_PORT"`
	User     string `json:"user" env:"TRIPAUTH_DB_USER"`
	Password string `json:"password" env:"TRIPAUTH_DB_PASSWORD"`
	DBName   string `json:"dbname" env:"TRIPAUTH_DB_NAME"`
	SSLMode  string `json:"sslmode"`
}

type MailConfig struct {
	Type        string         `json:"type" env:"TRIPAUTH_MAIL_TYPE"`
	From        string         `json:"from" env:"TRIPAUTH_MAIL_FROM"`
	ReplyTo     string         `json:"reply_to"`
	ProductName string         `json:"product_name"`
	SMTP        SMTPConfig     `json:"smtp"`
	Postmark    PostmarkConfig `json:"postmark"`
}

type SMTPConfig struct {
	Host     string `json:"host" env:"TRIPAUTH_SMTP_HOST"`
	Port     int    `json:"port" env:"TRIPAUTH_SMTP_PORT"`
	Username string `json:"username" env:"TRIPAUTH_SMTP_USERNAME"`
	Password string `json:"password" env:"TRIPAUTH_SMTP_PASSWORD"`
}

type PostmarkConfig struct {
	ServerToken  string `json:"server_token" env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `json:"account_token" env:"POSTMARK_ACCOUNT_TOKEN"`
}

type AlertConfig struct {
	Type               string      `json:"type" env:"TRIPAUTH_ALERT_TYPE"`
	DedupWindowSeconds int         `json:"dedup_window_seconds"`
	DedupSize          int         `json:"dedup_size"`
	TimeoutSeconds     int         `json:"timeout_seconds"`
	Slack              SlackConfig `json:"slack"`
}

type SlackConfig struct {
	WebhookURL string `json:"webhook_url" env:"SLACK_WEBHOOK_URL"`
	Channel    string `json:"channel"`
	Username   string `json:"username"`
	IconEmoji  string `json:"icon_emoji"`
}

type RecoveryConfig struct {
	OTPExpireMinutes        int             `json:"otp_expire_minutes"`
	ResetTokenExpireMinutes int             `json:"reset_token_expire_minutes"`
	HashCost                int             `json:"hash_cost"`
	PasswordPolicy          password.Policy `json:"password_policy"`
}

type PurgeConfig struct {
	Disabled         bool   `json:"disabled"`
	Spec             string `json:"spec"`
	RetentionMinutes int    `json:"retention_minutes"`
}

// Load reads the JSON file at path, then applies environment overrides. A
// .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "postgres"
	}
	switch cfg.Storage.Type {
	case "postgres":
		if cfg.Database.DSN == "" && cfg.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres storage")
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
	case "memory":
	default:
		return fmt.Errorf("storage.type must be postgres or memory")
	}

	if cfg.Mail.Type == "" {
		cfg.Mail.Type = "log"
	}
	if cfg.Mail.ProductName == "" {
		cfg.Mail.ProductName = "KBT Trip Builder"
	}
	if cfg.Mail.Type != "log" && cfg.Mail.From == "" {
		return fmt.Errorf("mail.from is required for %s mail", cfg.Mail.Type)
	}

	if cfg.Alert.Type == "" {
		cfg.Alert.Type = "log"
		if cfg.Alert.Slack.WebhookURL != "" {
			cfg.Alert.Type = "slack"
		}
	}
	if cfg.Alert.DedupWindowSeconds == 0 {
		cfg.Alert.DedupWindowSeconds = 300
	}
	if cfg.Alert.DedupSize == 0 {
		cfg.Alert.DedupSize = 256
	}
	if cfg.Alert.TimeoutSeconds == 0 {
		cfg.Alert.TimeoutSeconds = 5
	}
	if cfg.Alert.Type == "slack" && cfg.Alert.Slack.WebhookURL == "" {
		return fmt.Errorf("alert.slack.webhook_url is required for slack alerts")
	}

	if cfg.Recovery.OTPExpireMinutes <= 0 {
		cfg.Recovery.OTPExpireMinutes = 10
	}
	if cfg.Recovery.ResetTokenExpireMinutes <= 0 {
		cfg.Recovery.ResetTokenExpireMinutes = 15
	}
	if cfg.Recovery.PasswordPolicy == (password.Policy{}) {
		cfg.Recovery.PasswordPolicy = password.DefaultPolicy()
	}

	if cfg.Purge.Spec == "" {
		cfg.Purge.Spec = "*/30 * * * *"
	}
	if cfg.Purge.RetentionMinutes <= 0 {
		cfg.Purge.RetentionMinutes = 60
	}
	return nil
}
