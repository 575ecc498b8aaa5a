package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	devenv "courtwatch/dev/env"
	"courtwatch/lib/credstore"
	"courtwatch/lib/otp"
	"courtwatch/lib/scrapers/academy/api"
	"courtwatch/lib/scrapers/academy/browser"
	"courtwatch/lib/slots"
	"courtwatch/lib/timezone"
	"courtwatch/services/acquisition"
	"courtwatch/services/notify"
)

// engine holds everything a command needs to talk to the booking site.
type engine struct {
	cfg      Config
	store    credstore.Store
	api      *api.Client
	notifier notify.Notifier
}

func openCredentials(cfg Config) (credstore.Store, error) {
	dir, err := devenv.ResolvePath(cfg.Credentials.Dir)
	if err != nil {
		return credstore.Store{}, err
	}
	return credstore.NewStore(credstore.Options{
		Dir:    dir,
		MaxAge: time.Duration(cfg.Credentials.MaxAgeDays) * 24 * time.Hour,
	})
}

func newEngine(cfg Config, notifier notify.Notifier) (engine, error) {
	store, err := openCredentials(cfg)
	if err != nil {
		return engine{}, err
	}
	client, err := api.NewClient(api.Options{
		BaseUrl: cfg.Site.APIBase,
		Origin:  cfg.Site.Origin,
	})
	if err != nil {
		return engine{}, err
	}
	return engine{
		cfg:      cfg,
		store:    store,
		api:      client,
		notifier: notifier,
	}, nil
}

func (e engine) otpSource() otp.Source {
	chain := otp.Chain{otp.Env{Key: "OTP_CODE"}}
	if e.cfg.Login.OTPFile != "" {
		path, err := devenv.ResolvePath(e.cfg.Login.OTPFile)
		if err != nil {
			slog.Warn("resolve otp file", "path", e.cfg.Login.OTPFile, "err", err)
			path = e.cfg.Login.OTPFile
		}
		return append(chain, otp.File{Path: path})
	}
	return append(chain, otp.Prompt{In: os.Stdin, Out: os.Stderr})
}

func (e engine) loginTimeout() time.Duration {
	if e.cfg.Login.TimeoutMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(e.cfg.Login.TimeoutMinutes) * time.Minute
}

func (e engine) newProber() *browser.Prober {
	launch := browser.LaunchChrome(browser.ChromeOptions{
		Headless:      e.cfg.headless(),
		ExecPath:      e.cfg.Browser.ExecPath,
		ActionTimeout: seconds(e.cfg.Browser.ActionTimeoutSeconds),
	})
	return browser.New(launch, browser.Options{
		Origin:      e.cfg.Site.Origin,
		PhoneNumber: e.cfg.PhoneNumber,
		OTP:         e.otpSource(),
		Store:       e.store,
		OnOTPRequested: func(ctx context.Context) {
			msg := notify.FormatOTPRequest(e.cfg.PhoneNumber, timezone.Now().Add(e.loginTimeout()))
			err := e.notifier.Send(ctx, msg)
			if err != nil {
				slog.WarnContext(ctx, "failed to announce one-time code request", "err", err)
			}
		},
		LoginTimeout: e.loginTimeout(),
		WaitTimeout:  seconds(e.cfg.Browser.WaitTimeoutSeconds),
		SettleDelay:  time.Duration(e.cfg.Browser.SettleDelayMillis) * time.Millisecond,
	})
}

func (e engine) orchestrator(venues []slots.Venue, dates []string) acquisition.Orchestrator {
	return acquisition.NewOrchestrator(
		e.api,
		func(ctx context.Context) (acquisition.Browser, error) {
			return e.newProber(), nil
		},
		e.store,
		acquisition.Options{
			Venues:         venues,
			Dates:          dates,
			Origin:         e.cfg.Site.Origin,
			APIConcurrency: e.cfg.Tuning.APIConcurrency,
			Retry:          e.cfg.retryPolicy(),
			RunTimeout:     time.Duration(e.cfg.Tuning.RunTimeoutMinutes) * time.Minute,
		},
	)
}

// notifierFor builds the configured channels. Without any, messages
// go to stdout.
func notifierFor(cfg Config, dryRun bool) notify.Notifier {
	if dryRun {
		return notify.Writer{W: os.Stdout}
	}

	var fanout notify.Fanout
	if cfg.Telegram.BotToken != "" || cfg.Telegram.ChatID != "" {
		telegram, err := notify.NewTelegram(notify.TelegramOptions{
			Token:  cfg.Telegram.BotToken,
			ChatID: cfg.Telegram.ChatID,
			Output: telegramOutput,
		})
		if err != nil {
			slog.Warn("telegram notifications disabled", "err", err)
		} else {
			fanout = append(fanout, telegram)
		}
	}
	if cfg.Email.Server != "" {
		mail, err := notify.NewEmail(cfg.smtp())
		if err != nil {
			slog.Warn("email notifications disabled", "err", err)
		} else {
			fanout = append(fanout, mail)
		}
	}
	if len(fanout) == 0 {
		return notify.Writer{W: os.Stdout}
	}
	return fanout
}
