package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Telegram   TelegramConfig
	Perplexity BackendConfig
	OpenRouter BackendConfig
	Bot        BotConfig
	Session    SessionConfig
	Quota      QuotaConfig
	Usage      UsageConfig
	HTTP       HTTPConfig
	WhatsApp   WhatsAppConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

type TelegramConfig struct {
	Token         string
	Mode          string `validate:"oneof=polling webhook"`
	WebhookURL    string
	WebhookSecret string
}

type BackendConfig struct {
	APIKey  string
	BaseURL string `validate:"required,url"`
	Model   string `validate:"required"`
	Timeout time.Duration
}

type BotConfig struct {
	Variant string `validate:"oneof=edit create full"`
}

type SessionConfig struct {
	KeepModeOnReject bool
	TTL              time.Duration
}

type QuotaConfig struct {
	Backend     string `validate:"oneof=file sqlite postgres redis memory"`
	File        string
	SQLitePath  string
	PostgresDSN string
	RedisAddr   string
	RedisKey    string
	Timezone    string
}

type UsageConfig struct {
	LogFile string `validate:"required"`
}

type HTTPConfig struct {
	Addr string
	// StatsToken guards /api/stats when set.
	StatsToken string
}

type WhatsAppConfig struct {
	Enabled bool
	DBPath  string
}

type RateLimitConfig struct {
	PerSecond float64 `validate:"gte=0"`
	Burst     int     `validate:"gte=1"`
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env (if present) and the environment. Keys are upper-case with
// underscores, e.g. QUOTA_BACKEND becomes quota.backend.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}
	return fromKoanf(k), nil
}

func fromKoanf(k *koanf.Koanf) *Config {
	cfg := &Config{
		Telegram: TelegramConfig{
			Token:         k.String("telegram.bot.token"),
			Mode:          k.String("telegram.mode"),
			WebhookURL:    k.String("telegram.webhook.url"),
			WebhookSecret: k.String("telegram.webhook.secret"),
		},
		Perplexity: BackendConfig{
			APIKey:  k.String("perplexity.api.key"),
			BaseURL: k.String("perplexity.base.url"),
			Model:   k.String("perplexity.model"),
			Timeout: k.Duration("perplexity.timeout"),
		},
		OpenRouter: BackendConfig{
			APIKey:  k.String("openrouter.api.key"),
			BaseURL: k.String("openrouter.base.url"),
			Model:   k.String("openrouter.model"),
			Timeout: k.Duration("openrouter.timeout"),
		},
		Bot: BotConfig{
			Variant: k.String("bot.variant"),
		},
		Session: SessionConfig{
			KeepModeOnReject: k.Bool("session.keep.mode.on.reject"),
			TTL:              k.Duration("session.ttl"),
		},
		Quota: QuotaConfig{
			Backend:     k.String("quota.backend"),
			File:        k.String("quota.file"),
			SQLitePath:  k.String("quota.sqlite.path"),
			PostgresDSN: k.String("quota.postgres.dsn"),
			RedisAddr:   k.String("quota.redis.addr"),
			RedisKey:    k.String("quota.redis.key"),
			Timezone:    k.String("quota.timezone"),
		},
		Usage: UsageConfig{
			LogFile: k.String("usage.log.file"),
		},
		HTTP: HTTPConfig{
			Addr:       k.String("http.addr"),
			StatsToken: k.String("http.stats.token"),
		},
		WhatsApp: WhatsAppConfig{
			Enabled: k.Bool("whatsapp.enabled"),
			DBPath:  k.String("whatsapp.db.path"),
		},
		RateLimit: RateLimitConfig{
			PerSecond: k.Float64("rate.limit.per.second"),
			Burst:     k.Int("rate.limit.burst"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Telegram.Mode == "" {
		c.Telegram.Mode = "polling"
	}
	if c.Perplexity.BaseURL == "" {
		c.Perplexity.BaseURL = "https://api.perplexity.ai"
	}
	if c.Perplexity.Model == "" {
		c.Perplexity.Model = "sonar-pro"
	}
	if c.Perplexity.Timeout == 0 {
		c.Perplexity.Timeout = 30 * time.Second
	}
	if c.OpenRouter.BaseURL == "" {
		c.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.OpenRouter.Model == "" {
		c.OpenRouter.Model = "openai/gpt-4o-mini"
	}
	if c.OpenRouter.Timeout == 0 {
		c.OpenRouter.Timeout = 90 * time.Second
	}
	if c.Bot.Variant == "" {
		c.Bot.Variant = "edit"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if c.Quota.Backend == "" {
		c.Quota.Backend = "file"
	}
	if c.Quota.File == "" {
		c.Quota.File = "user_limits.json"
	}
	if c.Quota.SQLitePath == "" {
		c.Quota.SQLitePath = "pocket.db"
	}
	if c.Quota.RedisKey == "" {
		c.Quota.RedisKey = "pocket:quota"
	}
	if c.Usage.LogFile == "" {
		c.Usage.LogFile = "user_logs.jsonl"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.WhatsApp.DBPath == "" {
		c.WhatsApp.DBPath = "devices/whatsapp.db"
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit.PerSecond = 1
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Location resolves QUOTA_TIMEZONE, defaulting to the local zone.
func (c QuotaConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("QUOTA_TIMEZONE: %w", err)
	}
	return loc, nil
}
