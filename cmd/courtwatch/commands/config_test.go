package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"courtwatch/lib/retry"
	"courtwatch/lib/scrapers/academy/core"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json5"))
	require.NoError(t, err)

	require.Equal(t, core.DefaultOrigin, cfg.Site.Origin)
	require.Equal(t, core.DefaultAPIBase, cfg.Site.APIBase)
	require.Equal(t, core.KnownVenues, cfg.Venues)
	require.Equal(t, "<dev_state>/credentials", cfg.Credentials.Dir)
	require.Equal(t, "<dev_state>/history.db", cfg.History.Database.File)
	require.Equal(t, 2, cfg.Dates.NextDays)
	require.True(t, cfg.headless())
	require.Equal(t, retry.APITransient, cfg.retryPolicy())
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, "courtwatch.json5", `{
		// comments are allowed
		phone_number: "9876543210",
		venues: [{id: 2, name: "Gachibowli"}],
		dates: {explicit: ["2030-01-05"]},
		browser: {headless: false},
		tuning: {retry_attempts: 4, retry_delay_seconds: 3},
		history: {database: {url: "libsql://history.example"}},
		preferences: {times: ["18:00-21:00"], courts: ["3"]},
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "9876543210", cfg.PhoneNumber)
	require.Len(t, cfg.Venues, 1)
	require.Equal(t, "Gachibowli", cfg.Venues[0].Name)
	require.Equal(t, []string{"2030-01-05"}, cfg.Dates.Explicit)
	require.Zero(t, cfg.Dates.NextDays)
	require.False(t, cfg.headless())
	require.Equal(t, retry.Policy{Attempts: 4, Delay: 3 * time.Second}, cfg.retryPolicy())
	require.Empty(t, cfg.History.Database.File)
	require.Equal(t, []string{"3"}, cfg.Preferences.Courts)
}

func TestLoadConfigLocalOverride(t *testing.T) {
	path := writeConfig(t, "courtwatch.json5", `{phone_number: "1111111111", telegram: {chat_id: "42"}}`)
	local := filepath.Join(filepath.Dir(path), "courtwatch.local.json5")
	require.NoError(t, os.WriteFile(local, []byte(`{phone_number: "2222222222"}`), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "2222222222", cfg.PhoneNumber)
	require.Equal(t, "42", cfg.Telegram.ChatID)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "courtwatch.json5", `{
		phone_number: "1111111111",
		telegram: {bot_token: "from-file", chat_id: "1"},
		email: {server: "smtp.example.com", email_address: "me@example.com"},
	}`)
	t.Setenv("PHONE_NUMBER", "9999999999")
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("TELEGRAM_CHAT_ID", " ")
	t.Setenv("SMTP_PASSWORD", "secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "9999999999", cfg.PhoneNumber)
	require.Equal(t, "from-env", cfg.Telegram.BotToken)
	// blank values leave the file's value alone
	require.Equal(t, "1", cfg.Telegram.ChatID)

	smtp := cfg.smtp()
	require.Equal(t, "secret", smtp.Password)
	require.Equal(t, "me@example.com", smtp.EmailAddress)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := writeConfig(t, "courtwatch.json5", `{phone_number: `)
	_, err := LoadConfig(path)
	require.Error(t, err)
}
