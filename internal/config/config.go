package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all runtime settings, sourced from the environment.
type Config struct {
	AppEnv           string `env:"APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPListenAddr   string `env:"HTTP_LISTEN_ADDR" envDefault:":5174"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"storefront"`

	PublicDomain string `env:"PUBLIC_DOMAIN" envDefault:"http://localhost:5173"`
	StatePath    string `env:"STATE_PATH" envDefault:"data/state.json"`

	NowPaymentsAPIBase   string        `env:"NP_API_BASE" envDefault:"https://api.nowpayments.io"`
	NowPaymentsAPIKey    string        `env:"NP_API_KEY"`
	NowPaymentsIPNSecret string        `env:"NP_IPN_SECRET"`
	NowPaymentsWebhook   string        `env:"NP_WEBHOOK_URL"`
	NowPaymentsTimeout   time.Duration `env:"NP_TIMEOUT" envDefault:"20s"`
	SuccessURLTemplate   string        `env:"NP_SUCCESS_URL"`
	CancelURLTemplate    string        `env:"NP_CANCEL_URL"`
	PayCurrency          string        `env:"PAY_CURRENCY" envDefault:"btc"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisTLS      bool   `env:"REDIS_TLS" envDefault:"false"`
}

// Load parses the environment and fills in the URL defaults that depend
// on the public domain.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.PublicDomain = strings.TrimRight(strings.TrimSpace(cfg.PublicDomain), "/")
	cfg.PayCurrency = strings.ToLower(strings.TrimSpace(cfg.PayCurrency))

	if cfg.NowPaymentsWebhook == "" && cfg.PublicDomain != "" {
		cfg.NowPaymentsWebhook = cfg.PublicDomain + "/api/nowpayments/webhook"
	}
	if cfg.SuccessURLTemplate == "" {
		cfg.SuccessURLTemplate = cfg.PublicDomain + "/account?order={{orderId}}&status=success"
	}
	if cfg.CancelURLTemplate == "" {
		cfg.CancelURLTemplate = cfg.PublicDomain + "/account?order={{orderId}}&status=cancelled"
	}

	return cfg, nil
}

// NowPaymentsEnabled reports whether hosted crypto payments are fully
// configured. All three credentials must be present; otherwise the store
// runs in manual-only mode.
func (c *Config) NowPaymentsEnabled() bool {
	return c.NowPaymentsAPIKey != "" && c.NowPaymentsIPNSecret != "" && c.NowPaymentsWebhook != ""
}
