package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/justinchung712/swe-repo-notify/internal/pkg/mail"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/sms"
)

// DefaultConfigPath is used when no -config flag is given.
const DefaultConfigPath = "config.yaml"

// AppConfig holds runtime startup configuration loaded from YAML,
// with environment variable overrides applied on top.
type AppConfig struct {
	Port           int         `yaml:"port"`
	Env            string      `yaml:"env"` // "development" | "production"
	DSN            string      `yaml:"dsn"` // MySQL DSN
	RedisURL       string      `yaml:"redis_url"`
	BaseURL        string      `yaml:"base_url"` // public URL delivered links point at
	JWTSecret      string      `yaml:"jwt_secret"`
	AllowedOrigins []string    `yaml:"allowed_origins"`
	Admin          AdminConfig `yaml:"admin"`
	Mail           mail.Config `yaml:"mail"`
	SMS            sms.Config  `yaml:"sms"`
}

// AdminConfig guards the operator surface. PasswordHash is a bcrypt hash.
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// Load reads the YAML config file and applies env overrides.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{
		Port:    8000,
		Env:     "production",
		BaseURL: "http://localhost:8000",
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Env-only deployments are fine.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required (dsn key or DSN env)")
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	setIfEnv(&cfg.Env, "APP_ENV")
	setIfEnv(&cfg.DSN, "DSN")
	setIfEnv(&cfg.RedisURL, "REDIS_URL")
	setIfEnv(&cfg.BaseURL, "APP_BASE_URL")
	setIfEnv(&cfg.JWTSecret, "APP_SECRET")
	setIfEnv(&cfg.Admin.Username, "ADMIN_USERNAME")
	setIfEnv(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	setIfEnv(&cfg.Mail.ResendKey, "RESEND_API_KEY")
	setIfEnv(&cfg.Mail.From, "EMAIL_FROM")
	setIfEnv(&cfg.SMS.AccountSID, "TWILIO_ACCOUNT_SID")
	setIfEnv(&cfg.SMS.AuthToken, "TWILIO_AUTH_TOKEN")
	setIfEnv(&cfg.SMS.From, "TWILIO_FROM_NUMBER")

	if cfg.Mail.ResendKey != "" {
		cfg.Mail.UseResend = true
		cfg.Mail.Enable = true
	}
	if cfg.SMS.AccountSID != "" && cfg.SMS.AuthToken != "" {
		cfg.SMS.Enable = true
	}
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}
