package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks Config for problems that would stop the bot from serving.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s: failed %q (got %v)", envName(fe.Namespace()), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if c.Telegram.Token == "" && !c.WhatsApp.Enabled {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required unless WHATSAPP_ENABLED is set")
	}
	if c.Telegram.Mode == "webhook" {
		if c.Telegram.WebhookURL == "" {
			errs = append(errs, "TELEGRAM_WEBHOOK_URL is required in webhook mode")
		}
		if c.Telegram.WebhookSecret == "" {
			errs = append(errs, "TELEGRAM_WEBHOOK_SECRET is required in webhook mode")
		}
	}

	switch c.Quota.Backend {
	case "postgres":
		if c.Quota.PostgresDSN == "" {
			errs = append(errs, "QUOTA_POSTGRES_DSN is required for the postgres backend")
		}
	case "redis":
		if c.Quota.RedisAddr == "" {
			errs = append(errs, "QUOTA_REDIS_ADDR is required for the redis backend")
		}
	}
	if _, err := c.Quota.Location(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Perplexity.APIKey == "" {
		slog.Warn("PERPLEXITY_API_KEY is empty, questions will fail")
	}
	if c.OpenRouter.APIKey == "" {
		slog.Warn("OPENROUTER_API_KEY is empty, document flows will fail")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

// envName maps a validator namespace like Config.Quota.Backend to QUOTA_BACKEND.
func envName(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToUpper(strings.Join(parts, "_"))
}
