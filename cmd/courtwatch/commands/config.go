package commands

import (
	"fmt"
	"os"
	"time"

	"courtwatch/lib/configutil"
	configlibsql "courtwatch/lib/configutil/libsql"
	"courtwatch/lib/dates"
	"courtwatch/lib/retry"
	"courtwatch/lib/scrapers/academy/core"
	"courtwatch/lib/slots"
	"courtwatch/services/notify"
)

type SiteConfig struct {
	Origin  string `json:"origin"`
	APIBase string `json:"api_base"`
}

type CredentialsConfig struct {
	Dir        string `json:"dir"`
	MaxAgeDays int    `json:"max_age_days"`
}

type BrowserConfig struct {
	// Headless defaults to true, a visible window helps debugging logins.
	Headless             *bool  `json:"headless"`
	ExecPath             string `json:"exec_path"`
	ActionTimeoutSeconds int    `json:"action_timeout_seconds"`
	WaitTimeoutSeconds   int    `json:"wait_timeout_seconds"`
	SettleDelayMillis    int    `json:"settle_delay_ms"`
}

type LoginConfig struct {
	TimeoutMinutes int `json:"timeout_minutes"`
	// OTPFile is polled for the one-time code when set, otherwise the
	// code is read from OTP_CODE or asked for on stdin.
	OTPFile string `json:"otp_file"`
}

type TuningConfig struct {
	APIConcurrency    int `json:"api_concurrency"`
	RetryAttempts     int `json:"retry_attempts"`
	RetryDelaySeconds int `json:"retry_delay_seconds"`
	RunTimeoutMinutes int `json:"run_timeout_minutes"`
}

type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type EmailConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

type HistoryConfig struct {
	Database      configlibsql.Struct `json:"database"`
	RetentionDays int                 `json:"retention_days"`
}

type Config struct {
	Site        SiteConfig         `json:"site"`
	PhoneNumber string             `json:"phone_number"`
	Venues      []slots.Venue      `json:"venues"`
	Dates       dates.Rule         `json:"dates"`
	Credentials CredentialsConfig  `json:"credentials"`
	Browser     BrowserConfig      `json:"browser"`
	Login       LoginConfig        `json:"login"`
	Tuning      TuningConfig       `json:"tuning"`
	Telegram    TelegramConfig     `json:"telegram"`
	Email       EmailConfig        `json:"email"`
	History     HistoryConfig      `json:"history"`
	Preferences notify.Preferences `json:"preferences"`
}

// LoadConfig reads the config file (a missing file leaves every
// default in place) then applies environment overrides for secrets.
func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	configutil.OverrideFromEnv(&cfg.PhoneNumber, "PHONE_NUMBER")
	configutil.OverrideFromEnv(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	configutil.OverrideFromEnv(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	configutil.OverrideFromEnv(&cfg.Email.Password, "SMTP_PASSWORD")
	configutil.OverrideFromEnv(&cfg.History.Database.AuthToken, "LIBSQL_AUTH_TOKEN")

	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Site.Origin == "" {
		c.Site.Origin = core.DefaultOrigin
	}
	if c.Site.APIBase == "" {
		c.Site.APIBase = core.DefaultAPIBase
	}
	if len(c.Venues) == 0 {
		c.Venues = core.KnownVenues
	}
	if c.Credentials.Dir == "" {
		c.Credentials.Dir = "<dev_state>/credentials"
	}
	if c.History.Database.File == "" && c.History.Database.Url == "" {
		c.History.Database.File = "<dev_state>/history.db"
	}
	if len(c.Dates.Explicit) == 0 && c.Dates.NextDays <= 0 {
		c.Dates.NextDays = 2
	}
}

func (c Config) headless() bool {
	return c.Browser.Headless == nil || *c.Browser.Headless
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c Config) smtp() notify.SmtpConfig {
	return notify.SmtpConfig{
		Server:       c.Email.Server,
		Port:         c.Email.Port,
		EmailAddress: c.Email.EmailAddress,
		Password:     c.Email.Password,
		To:           c.Email.To,
	}
}

func (c Config) retryPolicy() retry.Policy {
	if c.Tuning.RetryAttempts <= 0 {
		return retry.APITransient
	}
	return retry.Policy{
		Attempts: c.Tuning.RetryAttempts,
		Delay:    seconds(c.Tuning.RetryDelaySeconds),
	}
}
