package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"courtwatch/lib/credstore"
	"courtwatch/lib/otp"
	"courtwatch/lib/retry"
	"courtwatch/lib/scrapers/academy/core"
	"courtwatch/lib/timezone"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrLoginFailed = errors.New("browser login failed")

// CredentialSaver persists captured sessions, credstore.Store satisfies it.
type CredentialSaver interface {
	Save(ctx context.Context, kind credstore.Kind, r credstore.Record) error
}

type Options struct {
	// Origin of the booking site, core.DefaultOrigin by default.
	Origin      string
	PhoneNumber string
	OTP         otp.Source
	Store       CredentialSaver
	// OnOTPRequested is called once the site acknowledged sending a
	// one-time code, before waiting for it.
	OnOTPRequested func(ctx context.Context)

	// LoginTimeout bounds the whole login, the wait for the one-time
	// code included.
	LoginTimeout time.Duration
	// WaitTimeout bounds each wait for an element to appear.
	WaitTimeout time.Duration
	// SettleDelay is slept after a court's slots first appear. The page
	// gives no signal that a slot list finished loading, so a list from
	// the previously selected court could otherwise be read.
	SettleDelay time.Duration

	Restore retry.Policy
	Submit  retry.Policy
	Verify  retry.Policy
	Now     func() time.Time
}

func (o *Options) setDefaults() {
	if o.Origin == "" {
		o.Origin = core.DefaultOrigin
	}
	o.Origin = strings.TrimSuffix(o.Origin, "/")
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = 10 * time.Minute
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 10 * time.Second
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.Restore.Attempts <= 0 {
		o.Restore = retry.SessionRestore
	}
	if o.Submit.Attempts <= 0 {
		o.Submit = retry.LoginSubmit
	}
	if o.Verify.Attempts <= 0 {
		o.Verify = retry.LoginVerify
	}
	if o.Now == nil {
		o.Now = timezone.Now
	}
}

type Authentication struct {
	// Token is the bearer token the site stored, if any.
	Token      string
	Restored   bool
	Indicators []string
}

// Prober drives one browser page. Its operations are serialized, the
// page is never used for two things at once.
type Prober struct {
	opts   Options
	launch Launcher

	mu   sync.Mutex
	page Page
}

func New(launch Launcher, opts Options) *Prober {
	opts.setDefaults()
	return &Prober{opts: opts, launch: launch}
}

func (p *Prober) url(path string) string {
	return p.opts.Origin + path
}

func (p *Prober) protectedURL() string {
	return p.url(core.VenuePath(core.KnownVenues[0].ID))
}

func (p *Prober) ensurePage(ctx context.Context) (Page, error) {
	if p.page != nil {
		return p.page, nil
	}
	page, err := p.launch(ctx)
	if err != nil {
		return nil, err
	}
	p.page = page
	return page, nil
}

func (p *Prober) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.page == nil {
		return nil
	}
	err := p.page.Close()
	p.page = nil
	return err
}

// EnsureSession restores existing when given, falling back to a full
// login. The resulting session is saved before returning.
func (p *Prober) EnsureSession(ctx context.Context, existing *credstore.Record) (Authentication, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := tracer.Start(ctx, "EnsureSession")
	defer span.End()

	page, err := p.ensurePage(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch browser")
		return Authentication{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	if existing != nil {
		auth, err := p.restore(ctx, page, *existing)
		if err == nil {
			span.SetAttributes(attribute.Bool("restored", true))
			return auth, nil
		}
		if ctx.Err() != nil {
			return Authentication{}, ctx.Err()
		}
		slog.InfoContext(ctx, "stored session could not be restored, logging in", "err", err)
	}

	auth, err := p.login(ctx, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return Authentication{}, err
	}
	return auth, nil
}

func (p *Prober) restore(ctx context.Context, page Page, rec credstore.Record) (Authentication, error) {
	ctx, span := tracer.Start(ctx, "restore")
	defer span.End()

	matched, err := retry.DoValue(ctx, p.opts.Restore, func(ctx context.Context) ([]string, error) {
		// cookies go in first so the very first request carries them
		err := page.SetCookies(ctx, rec.Cookies)
		if err != nil {
			return nil, err
		}
		err = page.Navigate(ctx, p.url("/"))
		if err != nil {
			return nil, err
		}
		err = page.SetStorage(ctx, LocalStorage, rec.LocalState)
		if err != nil {
			return nil, err
		}
		err = page.SetStorage(ctx, SessionStorage, rec.SessionState)
		if err != nil {
			return nil, err
		}
		// reload so the app boots with the restored storage
		err = page.Navigate(ctx, p.url("/"))
		if err != nil {
			return nil, err
		}
		return p.verifyOnce(ctx, page)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session restore failed")
		return Authentication{}, err
	}

	slog.InfoContext(ctx, "restored browser session", "indicators", matched)
	token := p.persist(ctx, page)
	if token == "" {
		token = credstore.SessionToken(rec)
	}
	return Authentication{Token: token, Restored: true, Indicators: matched}, nil
}

func (p *Prober) verifyOnce(ctx context.Context, page Page) ([]string, error) {
	// the current page is looked at before navigating to the protected one
	e := gatherEvidence(ctx, page, p.protectedURL())
	matched, ok := Authenticated(e)
	if !ok {
		return matched, fmt.Errorf("only %d of %d required indicators matched: %v", len(matched), RequiredIndicators, matched)
	}
	return matched, nil
}

// capture snapshots cookies and storage into a session record.
func (p *Prober) capture(ctx context.Context, page Page) (credstore.Record, error) {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return credstore.Record{}, err
	}
	local, err := page.Storage(ctx, LocalStorage)
	if err != nil {
		return credstore.Record{}, err
	}
	session, err := page.Storage(ctx, SessionStorage)
	if err != nil {
		return credstore.Record{}, err
	}
	return credstore.Record{
		IssuedAt:     p.opts.Now(),
		TargetOrigin: p.opts.Origin,
		Cookies:      cookies,
		LocalState:   local,
		SessionState: session,
	}, nil
}

// persist captures the session and hands it to the store right away,
// along with the token it holds. The token is returned even when saving
// failed, the session is still usable for this run.
func (p *Prober) persist(ctx context.Context, page Page) string {
	rec, err := p.capture(ctx, page)
	if err != nil {
		slog.WarnContext(ctx, "failed to capture browser session", "err", err)
		return ""
	}
	token := credstore.SessionToken(rec)
	if p.opts.Store == nil {
		return token
	}

	err = p.opts.Store.Save(ctx, credstore.KindSession, rec)
	if err != nil {
		slog.WarnContext(ctx, "browser session was not persisted", "err", err)
	}
	if token != "" {
		err = p.opts.Store.Save(ctx, credstore.KindToken, credstore.Record{
			IssuedAt:     rec.IssuedAt,
			TargetOrigin: p.opts.Origin,
			Token:        token,
		})
		if err != nil {
			slog.WarnContext(ctx, "token was not persisted", "err", err)
		}
	}
	return token
}
