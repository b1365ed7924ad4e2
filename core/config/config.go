package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds the bot credentials and update delivery settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds is the getUpdates wait; 0 selects the default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// Synchronous makes the poller hand updates to handlers one at a time, in arrival order.
	Synchronous *bool `yaml:"synchronous" envconfig:"TELEGRAM_SYNCHRONOUS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig throttles users. ExcludeUpdates lists the Update* kinds
// that bypass the limit.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ReadYAML decodes the file at path into out, then applies environment overrides.
func ReadYAML(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if err := envconfig.Process("", out); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	return nil
}

// Load reads and normalizes the core configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := ReadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsSynchronous reports whether updates are processed one at a time. Defaults to true.
func (t TelegramConfig) IsSynchronous() bool {
	return t.Synchronous == nil || *t.Synchronous
}

func (t *TelegramConfig) normalize(webhook WebhookConfig) error {
	var errs []error
	if t.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if t.AdminID < 0 {
		errs = append(errs, errors.New("telegram.admin_id must be >= 0"))
	}
	if t.LongPollTimeoutSeconds < 0 {
		errs = append(errs, errors.New("telegram.longpoll_timeout_seconds must be >= 0"))
	}
	switch mode := strings.ToLower(strings.TrimSpace(t.RunMode)); mode {
	case "", "polling", RunModeLongpoll:
		t.RunMode = RunModeLongpoll
	case RunModeWebhook:
		t.RunMode = mode
		errs = append(errs, webhook.validate())
	default:
		errs = append(errs, fmt.Errorf("telegram.run_mode %q: want webhook or longpoll", t.RunMode))
	}
	return errors.Join(errs...)
}

func (w WebhookConfig) validate() error {
	var errs []error
	if strings.TrimSpace(w.URL) == "" {
		errs = append(errs, errors.New("webhook.url is required in webhook mode"))
	}
	if strings.TrimSpace(w.Listen) == "" {
		errs = append(errs, errors.New("webhook.listen is required in webhook mode"))
	}
	if w.Port <= 0 {
		errs = append(errs, errors.New("webhook.port must be > 0 in webhook mode"))
	}
	return errors.Join(errs...)
}

var limitKinds = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

func (r *RateLimitConfig) normalize() error {
	var errs []error
	if r.IntervalMS < 0 {
		errs = append(errs, errors.New("rate_limit.interval_ms must be >= 0"))
	}
	kinds := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		switch {
		case kind == "":
		case slices.Contains(limitKinds, kind):
			kinds = append(kinds, kind)
		default:
			errs = append(errs, fmt.Errorf("rate_limit.exclude_updates %q: want one of %s", v, strings.Join(limitKinds, ", ")))
		}
	}
	r.ExcludeUpdates = kinds
	return errors.Join(errs...)
}

// Normalize fills defaults and reports every invalid setting at once.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}
	return errors.Join(
		cfg.Telegram.normalize(cfg.Webhook),
		cfg.RateLimit.normalize(),
	)
}
