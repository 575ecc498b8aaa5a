package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"courtwatch/lib/htmlutil"
	"courtwatch/lib/otp"
	"courtwatch/lib/retry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type LoginState int

const (
	StateNoSession LoginState = iota
	StateAwaitingCredentialSubmit
	StateAwaitingOTP
	StateVerifying
	StateAuthenticated
	StateFailed
)

func (s LoginState) String() string {
	switch s {
	case StateNoSession:
		return "NO_SESSION"
	case StateAwaitingCredentialSubmit:
		return "AWAITING_CREDENTIAL_SUBMIT"
	case StateAwaitingOTP:
		return "AWAITING_OTP"
	case StateVerifying:
		return "VERIFYING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	default:
		return "FAILED"
	}
}

// locator strategies, tried in order
var (
	loginTriggers = []Selector{
		CSS(`.login-btn`),
		CSS(`#login`),
		ByText("span,a,button", "Login"),
		ByText("span,a,button", "Sign in"),
	}
	sendOTPControls = []Selector{
		CSS(`input[type="submit"].custom-button`),
		CSS(`.custom-button`),
		CSS(`button[type="submit"]`),
		ByText("button,span,a", "Send OTP"),
		ByText("button,span,a", "Get OTP"),
	}
	verifyControls = []Selector{
		ByText("button,span,a", "Verify"),
		CSS(`input[type="submit"].custom-button`),
		CSS(`.custom-button`),
		CSS(`button[type="submit"]`),
	}
)

const (
	phoneInputSelector = `input[type="tel"], input[placeholder*="phone"], input[placeholder*="Phone"], input[placeholder*="mobile"], input[placeholder*="Mobile"], input[name*="phone"], input[name*="mobile"]`
	otpInputSelector   = `input[maxlength="6"], input[placeholder*="OTP"], input[placeholder*="otp"], input[name*="otp"]`
)

// goquerySelector renders sel for matching against a snapshot.
func goquerySelector(sel Selector) string {
	if sel.Text == "" {
		return sel.Query
	}
	var parts []string
	for _, tag := range strings.Split(sel.Query, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			parts = append(parts, fmt.Sprintf(`%s:contains(%q)`, tag, sel.Text))
		}
	}
	return strings.Join(parts, ", ")
}

func exists(doc *goquery.Document, sel Selector) bool {
	return doc != nil && doc.Find(goquerySelector(sel)).Length() > 0
}

type loginMachine struct {
	p     *Prober
	page  Page
	state LoginState
	// visited records every state entered, in order
	visited    []LoginState
	indicators []string
}

func (m *loginMachine) snapshot(ctx context.Context) (*goquery.Document, error) {
	contents, err := m.page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return htmlutil.ParseDocument(ctx, contents)
}

// clickFirst clicks the first locator present in the current snapshot.
func (m *loginMachine) clickFirst(ctx context.Context, locators []Selector) (Selector, error) {
	doc, err := m.snapshot(ctx)
	if err != nil {
		return Selector{}, err
	}
	for _, sel := range locators {
		if !exists(doc, sel) {
			continue
		}
		err := m.page.Click(ctx, sel)
		if err != nil {
			slog.DebugContext(ctx, "locator click failed", "locator", goquerySelector(sel), "err", err)
			continue
		}
		return sel, nil
	}
	return Selector{}, errors.New("no locator matched")
}

func (m *loginMachine) openForm(ctx context.Context) (LoginState, error) {
	if m.p.opts.PhoneNumber == "" {
		return StateFailed, errors.New("no phone number configured")
	}
	err := m.page.Navigate(ctx, m.p.url("/"))
	if err != nil {
		return StateFailed, fmt.Errorf("open site: %w", err)
	}

	doc, err := m.snapshot(ctx)
	if err != nil {
		return StateFailed, err
	}
	if doc.Find(phoneInputSelector).Length() > 0 {
		return StateAwaitingCredentialSubmit, nil
	}

	sel, err := m.clickFirst(ctx, loginTriggers)
	if err != nil {
		return StateFailed, fmt.Errorf("login trigger: %w", err)
	}
	err = m.page.WaitVisible(ctx, phoneInputSelector, m.p.opts.WaitTimeout)
	if err != nil {
		return StateFailed, fmt.Errorf("phone input did not appear after %s: %w", goquerySelector(sel), err)
	}
	return StateAwaitingCredentialSubmit, nil
}

func (m *loginMachine) submitCredential(ctx context.Context) (LoginState, error) {
	err := retry.Do(ctx, m.p.opts.Submit, func(ctx context.Context) error {
		err := m.page.Fill(ctx, phoneInputSelector, m.p.opts.PhoneNumber)
		if err != nil {
			return fmt.Errorf("fill phone number: %w", err)
		}
		_, err = m.clickFirst(ctx, sendOTPControls)
		if err != nil {
			return fmt.Errorf("send code control: %w", err)
		}
		// the code input appearing is the site's acknowledgement
		err = m.page.WaitVisible(ctx, otpInputSelector, m.p.opts.WaitTimeout)
		if err != nil {
			return fmt.Errorf("code request was not acknowledged: %w", err)
		}
		return nil
	})
	if err != nil {
		return StateFailed, err
	}
	return StateAwaitingOTP, nil
}

func (m *loginMachine) enterCode(ctx context.Context) (LoginState, error) {
	if m.p.opts.OTP == nil {
		return StateFailed, errors.New("no one-time code source configured")
	}
	if m.p.opts.OnOTPRequested != nil {
		m.p.opts.OnOTPRequested(ctx)
	}

	code, err := m.p.opts.OTP.Code(ctx)
	if err != nil {
		return StateFailed, fmt.Errorf("one-time code: %w", err)
	}
	if !otp.Valid(code) {
		return StateFailed, fmt.Errorf("one-time code %q is malformed", code)
	}

	err = m.page.Fill(ctx, otpInputSelector, code)
	if err != nil {
		return StateFailed, fmt.Errorf("fill one-time code: %w", err)
	}
	_, err = m.clickFirst(ctx, verifyControls)
	if err != nil {
		return StateFailed, fmt.Errorf("verify control: %w", err)
	}
	return StateVerifying, nil
}

func (m *loginMachine) verify(ctx context.Context) (LoginState, error) {
	matched, err := retry.DoValue(ctx, m.p.opts.Verify, func(ctx context.Context) ([]string, error) {
		return m.p.verifyOnce(ctx, m.page)
	})
	if err != nil {
		return StateFailed, err
	}
	m.indicators = matched
	return StateAuthenticated, nil
}

func (m *loginMachine) step(ctx context.Context) (LoginState, error) {
	switch m.state {
	case StateNoSession:
		return m.openForm(ctx)
	case StateAwaitingCredentialSubmit:
		return m.submitCredential(ctx)
	case StateAwaitingOTP:
		return m.enterCode(ctx)
	case StateVerifying:
		return m.verify(ctx)
	default:
		return StateFailed, fmt.Errorf("no transition out of %s", m.state)
	}
}

// run drives the machine until it reaches AUTHENTICATED or FAILED.
func (m *loginMachine) run(ctx context.Context) error {
	span := trace.SpanFromContext(ctx)
	m.visited = append(m.visited, m.state)

	for m.state != StateAuthenticated && m.state != StateFailed {
		from := m.state
		next, err := m.step(ctx)
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w (login deadline: %w)", err, ctx.Err())
		}
		m.state = next
		m.visited = append(m.visited, next)
		span.AddEvent("transition", trace.WithAttributes(
			attribute.String("from", from.String()),
			attribute.String("to", next.String()),
		))
		if err != nil {
			slog.WarnContext(ctx, "login step failed", "state", from, "err", err)
			return fmt.Errorf("%w: %s: %w", ErrLoginFailed, from, err)
		}
		slog.InfoContext(ctx, "login transition", "from", from, "to", next)
	}
	return nil
}

func (p *Prober) login(ctx context.Context, page Page) (Authentication, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.LoginTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "login")
	defer span.End()

	m := &loginMachine{p: p, page: page, state: StateNoSession}
	err := m.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return Authentication{}, err
	}

	token := p.persist(ctx, page)
	slog.InfoContext(ctx, "logged in", "indicators", m.indicators, "has_token", token != "")
	return Authentication{Token: token, Indicators: m.indicators}, nil
}
