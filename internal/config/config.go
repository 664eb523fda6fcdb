// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Mode     string  `yaml:"mode"` // polling | noop
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
	// RateLimit is the number of private messages a user may send per RateWindow.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL        string        `yaml:"url"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	KeyPrefix  string        `yaml:"key_prefix"`
	TTL        time.Duration `yaml:"ttl"`         // group cache entries
	SessionTTL time.Duration `yaml:"session_ttl"` // bot conversations
}

// ProcessorConfig describes one payment processor that posts webhooks to
// /webhook/{name}.
type ProcessorConfig struct {
	Name            string `yaml:"name"`
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header"`
	EventIDHeader   string `yaml:"event_id_header"`
}

type PaymentConfig struct {
	Currency   string            `yaml:"currency"`
	Processors []ProcessorConfig `yaml:"processors"`
}

// Processor returns the processor named name.
func (p PaymentConfig) Processor(name string) (ProcessorConfig, bool) {
	for _, pc := range p.Processors {
		if strings.EqualFold(pc.Name, name) {
			return pc, true
		}
	}
	return ProcessorConfig{}, false
}

type BankConfig struct {
	BaseURL   string        `yaml:"base_url"`
	SecretKey string        `yaml:"secret_key"`
	Country   string        `yaml:"country"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type SchedulerConfig struct {
	ExpiryCheckCron string        `yaml:"expiry_check_cron"`
	EnforcementCron string        `yaml:"enforcement_cron"`
	ShutdownGrace   time.Duration `yaml:"shutdown_grace"`
}

type AccessConfig struct {
	SubscribeBaseURL string `yaml:"subscribe_base_url"`
	UnbanAfterRevoke bool   `yaml:"unban_after_revoke"`
}

type AdminConfig struct {
	Password     string        `yaml:"password"`
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"` // empty disables publishing
	Exchange string `yaml:"exchange"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Bank      BankConfig      `yaml:"bank"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Access    AccessConfig    `yaml:"access"`
	Admin     AdminConfig     `yaml:"admin"`
	Security  SecurityConfig  `yaml:"security"`
	Events    EventsConfig    `yaml:"events"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. A .env file next to the working
// directory is loaded first when present and ${VAR} references in the YAML
// are expanded from the environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse expands, decodes, defaults and validates raw YAML.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.RateLimit <= 0 {
		cfg.Bot.RateLimit = 20
	}
	if cfg.Bot.RateWindow <= 0 {
		cfg.Bot.RateWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "paywall:"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, time.Hour)
	cfg.Redis.SessionTTL = normalizeTTL(cfg.Redis.SessionTTL, 15*time.Minute)

	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "NGN"
	}
	for i := range cfg.Payment.Processors {
		p := &cfg.Payment.Processors[i]
		if p.SignatureHeader == "" {
			p.SignatureHeader = "X-Signature"
		}
		if p.EventIDHeader == "" {
			p.EventIDHeader = "X-Event-Id"
		}
	}

	if cfg.Bank.BaseURL == "" {
		cfg.Bank.BaseURL = "https://api.paystack.co"
	}
	if cfg.Bank.Country == "" {
		cfg.Bank.Country = "nigeria"
	}
	cfg.Bank.Timeout = normalizeTTL(cfg.Bank.Timeout, 10*time.Second)
	cfg.Bank.CacheTTL = normalizeTTL(cfg.Bank.CacheTTL, 12*time.Hour)

	if cfg.Scheduler.ExpiryCheckCron == "" {
		cfg.Scheduler.ExpiryCheckCron = "@every 1h"
	}
	if cfg.Scheduler.EnforcementCron == "" {
		cfg.Scheduler.EnforcementCron = "@every 10m"
	}
	cfg.Scheduler.ShutdownGrace = normalizeTTL(cfg.Scheduler.ShutdownGrace, 30*time.Second)

	cfg.Admin.TokenTTL = normalizeTTL(cfg.Admin.TokenTTL, 24*time.Hour)
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "paywall.events"
	}
}

// Minimal validation
func validate(cfg *Config) error {
	if cfg.Bot.Token == "" && cfg.Bot.Mode != "noop" {
		return errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if len(cfg.Payment.Processors) == 0 {
		return errors.New("payment.processors needs at least one processor")
	}
	seen := map[string]bool{}
	for _, p := range cfg.Payment.Processors {
		name := strings.ToLower(p.Name)
		if name == "" || p.Secret == "" {
			return errors.New("payment.processors entries need name and secret")
		}
		if seen[name] {
			return fmt.Errorf("payment.processors: duplicate name %q", p.Name)
		}
		seen[name] = true
	}
	if cfg.Admin.Password != "" && cfg.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required when admin.password is set")
	}
	return nil
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
