// Package acquisition runs one acquisition pass over every configured
// venue and date: the data API first, the rendered site when the API
// cannot be used.
package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"courtwatch/lib/credstore"
	"courtwatch/lib/retry"
	"courtwatch/lib/scrapers/academy/browser"
	"courtwatch/lib/scrapers/academy/core"
	"courtwatch/lib/slots"
	"courtwatch/lib/timezone"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

type API interface {
	VerifyToken(ctx context.Context, token string) bool
	FetchSlots(ctx context.Context, token string, target slots.Target) ([]slots.RawSlot, error)
}

type Browser interface {
	// EnsureSession restores existing when non-nil, otherwise logs in.
	EnsureSession(ctx context.Context, existing *credstore.Record) (browser.Authentication, error)
	FetchSlots(ctx context.Context, target slots.Target) ([]slots.RawSlot, error)
	Close() error
}

// BrowserFactory launches a browser prober. It is only called when a
// run actually needs the browser path.
type BrowserFactory func(ctx context.Context) (Browser, error)

type CredentialStore interface {
	RestoreWithRetry(ctx context.Context, kind credstore.Kind) (credstore.Record, error)
	Save(ctx context.Context, kind credstore.Kind, r credstore.Record) error
}

type Options struct {
	Venues []slots.Venue
	Dates  []string
	// Origin is recorded on refreshed token records.
	Origin string

	APIConcurrency int
	// Retry bounds transient failures of a single target on either path.
	Retry      retry.Policy
	RunTimeout time.Duration
	Now        func() time.Time
}

func (o *Options) setDefaults() {
	if o.Origin == "" {
		o.Origin = core.DefaultOrigin
	}
	if o.APIConcurrency <= 0 {
		o.APIConcurrency = 3
	}
	if o.Retry.Attempts <= 0 {
		o.Retry = retry.APITransient
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = 15 * time.Minute
	}
	if o.Now == nil {
		o.Now = timezone.Now
	}
}

type Orchestrator struct {
	api        API
	newBrowser BrowserFactory
	store      CredentialStore
	opts       Options
}

func NewOrchestrator(api API, newBrowser BrowserFactory, store CredentialStore, opts Options) Orchestrator {
	opts.setDefaults()
	return Orchestrator{
		api:        api,
		newBrowser: newBrowser,
		store:      store,
		opts:       opts,
	}
}

// Targets lists every venue and date pair, venue-major.
func (o Orchestrator) Targets() []slots.Target {
	var targets []slots.Target
	for _, venue := range o.opts.Venues {
		for _, date := range o.opts.Dates {
			targets = append(targets, slots.Target{Venue: venue, Date: date})
		}
	}
	return targets
}

// run is the state of one Run. results[i] belongs to targets[i], the
// API pass writes disjoint indexes from its goroutines.
type run struct {
	targets []slots.Target
	results []Result
	raw     [][]slots.RawSlot

	loginFailed bool
}

func (r *run) finish(i int, path Path, outcome Outcome, raw []slots.RawSlot, diagnostic string) {
	r.results[i].Path = path
	r.results[i].Outcome = outcome
	r.results[i].Diagnostic = diagnostic
	r.raw[i] = raw
}

// finishFromError records a failed probe. It returns true when the
// failure means the path can no longer be trusted for the remaining
// targets: an AUTH_REJECTED target is left pending for another path, a
// SHAPE_MISMATCH target is fatal on its own.
func (r *run) finishFromError(ctx context.Context, i int, path Path, err error) (fallback bool) {
	if ctx.Err() != nil {
		// abandoned, settled once the run is over
		return false
	}
	kind, ok := core.KindOf(err)
	switch {
	case ok && kind == core.KindAuthRejected:
		return true
	case ok && kind == core.KindShapeMismatch:
		r.finish(i, path, FailedFatal, nil, err.Error())
		return true
	default:
		r.finish(i, path, FailedRecoverable, nil, err.Error())
		return false
	}
}

func (r *run) unsucceeded() []int {
	var out []int
	for i, result := range r.results {
		if result.Outcome != Succeeded && result.Outcome != FailedFatal {
			out = append(out, i)
		}
	}
	return out
}

// Run acquires every target once. It never fails as a whole, each
// target's fate is in its Result.
func (o Orchestrator) Run(ctx context.Context) Report {
	report := Report{StartedAt: o.opts.Now()}
	runID, err := random.String(12)
	if err != nil {
		runID = fmt.Sprint(report.StartedAt.UnixNano())
	}
	report.RunID = runID

	ctx, cancel := context.WithTimeout(ctx, o.opts.RunTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID))

	r := &run{targets: o.Targets()}
	r.results = make([]Result, len(r.targets))
	r.raw = make([][]slots.RawSlot, len(r.targets))
	for i, target := range r.targets {
		r.results[i].Target = target
	}
	slog.InfoContext(ctx, "starting acquisition run", "run_id", runID, "targets", len(r.targets))

	session, sessionErr := o.store.RestoreWithRetry(ctx, credstore.KindSession)
	tokenRecord, tokenErr := o.store.RestoreWithRetry(ctx, credstore.KindToken)
	token := ""
	if tokenErr == nil {
		token = tokenRecord.Token
	}
	if token == "" && sessionErr == nil {
		token = credstore.SessionToken(session)
		if token != "" {
			slog.InfoContext(ctx, "using token from the browser session snapshot")
		}
	}

	needBrowser := r.unsucceeded()
	if token != "" && o.api.VerifyToken(ctx, token) {
		o.refreshToken(ctx, tokenRecord, tokenErr == nil && tokenRecord.Token == token, token)
		fallback := o.runAPI(ctx, r, token)
		needBrowser = nil
		if fallback {
			slog.WarnContext(ctx, "api unusable mid-run, falling back to browser")
			needBrowser = r.unsucceeded()
		}
	} else {
		slog.InfoContext(ctx, "no usable token, using browser", "has_token", token != "")
	}

	if len(needBrowser) > 0 && ctx.Err() == nil {
		var existing *credstore.Record
		if sessionErr == nil {
			existing = &session
		}
		o.runBrowser(ctx, r, existing, needBrowser)
	}

	report.DeadlineExceeded = ctx.Err() != nil
	report.LoginFailed = r.loginFailed
	o.settle(ctx, r, report.DeadlineExceeded)
	report.Results = r.results
	report.FinishedAt = o.opts.Now()

	if report.Count(Succeeded) == 0 && (report.LoginFailed || report.DeadlineExceeded) {
		report.Status = StatusNoReport
		span.SetStatus(codes.Error, "nothing to report")
	}
	span.SetAttributes(
		attribute.Int("succeeded", report.Count(Succeeded)),
		attribute.Bool("deadline_exceeded", report.DeadlineExceeded),
		attribute.Bool("login_failed", report.LoginFailed),
	)
	slog.InfoContext(ctx, "finished acquisition run",
		"run_id", runID,
		"succeeded", report.Count(Succeeded),
		"recoverable", report.Count(FailedRecoverable),
		"fatal", report.Count(FailedFatal),
		"status", report.Status,
	)
	return report
}

// refreshToken persists a token that was just verified. A save failure
// is logged, the run goes on with the verified token.
func (o Orchestrator) refreshToken(ctx context.Context, existing credstore.Record, restored bool, token string) {
	now := o.opts.Now()
	record := credstore.Record{IssuedAt: now, TargetOrigin: o.opts.Origin, Token: token}
	if restored {
		record = existing.Refreshed(now)
	}
	err := o.store.Save(ctx, credstore.KindToken, record)
	if err != nil {
		slog.WarnContext(ctx, "failed to refresh token record", "err", err)
	}
}

// runAPI probes every target concurrently and reports whether the API
// was abandoned, after a rejected token or a response it could not
// read. Targets not finished by then go to the browser.
func (o Orchestrator) runAPI(ctx context.Context, r *run, token string) bool {
	ctx, span := tracer.Start(ctx, "runAPI")
	defer span.End()

	var fallback atomic.Bool
	group := errgroup.Group{}
	group.SetLimit(o.opts.APIConcurrency)
	for i, target := range r.targets {
		group.Go(func() error {
			if fallback.Load() || ctx.Err() != nil {
				return nil
			}
			raw, err := retry.DoValue(ctx, o.opts.Retry, func(ctx context.Context) ([]slots.RawSlot, error) {
				raw, err := o.api.FetchSlots(ctx, token, target)
				if err != nil && !core.IsKind(err, core.KindTransient) {
					return nil, retry.Permanent(err)
				}
				return raw, err
			})
			if err == nil {
				r.finish(i, PathAPI, Succeeded, raw, "")
				return nil
			}
			slog.WarnContext(ctx, "api probe failed", "target", target, "err", err)
			if r.finishFromError(ctx, i, PathAPI, err) {
				fallback.Store(true)
			}
			return nil
		})
	}
	group.Wait()

	span.SetAttributes(attribute.Bool("fallback", fallback.Load()))
	return fallback.Load()
}

// runBrowser probes pending targets one after another on a single
// browser. An AUTH_REJECTED probe triggers one fresh login.
func (o Orchestrator) runBrowser(ctx context.Context, r *run, existing *credstore.Record, pending []int) {
	ctx, span := tracer.Start(ctx, "runBrowser")
	defer span.End()

	b, err := o.newBrowser(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch browser")
		slog.ErrorContext(ctx, "failed to launch browser", "err", err)
		for _, i := range pending {
			r.finish(i, PathBrowser, FailedRecoverable, nil, fmt.Sprintf("launch browser: %v", err))
		}
		return
	}
	defer func() {
		if err := b.Close(); err != nil {
			slog.WarnContext(ctx, "failed to close browser", "err", err)
		}
	}()

	failLogin := func(from int, err error) {
		if ctx.Err() != nil {
			return
		}
		r.loginFailed = true
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		slog.ErrorContext(ctx, "browser login failed", "err", err)
		for _, i := range pending[from:] {
			r.finish(i, PathBrowser, FailedFatal, nil, err.Error())
		}
	}

	auth, err := b.EnsureSession(ctx, existing)
	if err != nil {
		failLogin(0, err)
		return
	}
	slog.InfoContext(ctx, "browser session ready", "restored", auth.Restored, "indicators", auth.Indicators)

	reauthenticated := false
	for n, i := range pending {
		if ctx.Err() != nil {
			return
		}
		target := r.targets[i]
		raw, err := o.browserFetch(ctx, b, target)
		if core.IsKind(err, core.KindAuthRejected) && !reauthenticated && ctx.Err() == nil {
			reauthenticated = true
			slog.WarnContext(ctx, "browser session rejected, logging in again", "target", target)
			_, err = b.EnsureSession(ctx, nil)
			if err != nil {
				failLogin(n, err)
				return
			}
			raw, err = o.browserFetch(ctx, b, target)
		}
		if err == nil {
			r.finish(i, PathBrowser, Succeeded, raw, "")
			continue
		}
		slog.WarnContext(ctx, "browser probe failed", "target", target, "err", err)
		if core.IsKind(err, core.KindAuthRejected) && ctx.Err() == nil {
			// rejected again right after a fresh login
			r.finish(i, PathBrowser, FailedRecoverable, nil, err.Error())
			continue
		}
		r.finishFromError(ctx, i, PathBrowser, err)
	}
}

func (o Orchestrator) browserFetch(ctx context.Context, b Browser, target slots.Target) ([]slots.RawSlot, error) {
	return retry.DoValue(ctx, o.opts.Retry, func(ctx context.Context) ([]slots.RawSlot, error) {
		raw, err := b.FetchSlots(ctx, target)
		if err != nil && !core.IsKind(err, core.KindTransient) {
			return nil, retry.Permanent(err)
		}
		return raw, err
	})
}

const abandonedDiagnostic = "abandoned: run deadline exceeded"

// settle classifies the raw slots of succeeded targets and closes out
// the ones nothing finished.
func (o Orchestrator) settle(ctx context.Context, r *run, deadline bool) {
	// the run context may be over, metrics still get recorded
	ctx = context.WithoutCancel(ctx)

	for i := range r.results {
		result := &r.results[i]
		if result.Outcome == outcomePending {
			result.Outcome = FailedRecoverable
			result.Diagnostic = "not attempted"
			if deadline {
				result.Diagnostic = abandonedDiagnostic
			}
		}
		if result.Outcome == Succeeded {
			result.Slots = slots.ClassifyAll(r.raw[i])
			for _, s := range result.Slots {
				slotStateCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("state", s.State.String())))
			}
		}
		outcomeCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", result.Outcome.String()),
			attribute.String("path", result.Path.String()),
		))
	}
}
