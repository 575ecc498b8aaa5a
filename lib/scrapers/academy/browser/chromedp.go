package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"courtwatch/lib/credstore"
	"courtwatch/lib/scrapers/academy/core"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

type ChromeOptions struct {
	Headless bool
	// ExecPath overrides chrome discovery.
	ExecPath  string
	UserAgent string
	// ActionTimeout bounds element lookups of clicks and fills.
	ActionTimeout time.Duration
}

// ChromePage is a Page backed by a single chrome tab.
type ChromePage struct {
	ctx           context.Context
	actionTimeout time.Duration
	cancel        func()
}

// LaunchChrome returns a Launcher starting a fresh chrome process. The
// browser lives until the page is closed or the launch context ends.
func LaunchChrome(opts ChromeOptions) Launcher {
	return func(ctx context.Context) (Page, error) {
		ua := opts.UserAgent
		if ua == "" {
			ua = core.UserAgent
		}
		allocOpts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.UserAgent(ua),
			chromedp.WindowSize(1366, 900),
		)
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
		tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}))
		cancel := func() {
			cancelTab()
			cancelAlloc()
		}

		// starts the browser
		err := chromedp.Run(tabCtx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("launch chrome: %w", err)
		}

		timeout := opts.ActionTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		return &ChromePage{ctx: tabCtx, actionTimeout: timeout, cancel: cancel}, nil
	}
}

// run executes actions on the tab, bounded by the caller's ctx as well
// as the tab's own lifetime.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *ChromePage) runBounded(ctx context.Context, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()
	return p.run(ctx, actions...)
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *ChromePage) Location(ctx context.Context) (string, error) {
	var location string
	err := p.run(ctx, chromedp.Location(&location))
	return location, err
}

func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	var contents string
	err := p.run(ctx, chromedp.OuterHTML("html", &contents, chromedp.ByQuery))
	return contents, err
}

func (p *ChromePage) WaitVisible(ctx context.Context, css string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.run(ctx, chromedp.WaitVisible(css, chromedp.ByQuery))
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return `'` + s + `'`
}

func textXPath(sel Selector) string {
	tags := strings.Split(sel.Query, ",")
	var tests []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tests = append(tests, "self::"+tag)
	}
	test := "*"
	if len(tests) > 0 {
		test = "*[" + strings.Join(tests, " or ") + "]"
	}
	return fmt.Sprintf(`//%s[contains(normalize-space(.), %s)]`, test, xpathLiteral(sel.Text))
}

func (p *ChromePage) Click(ctx context.Context, sel Selector) error {
	if sel.Text != "" {
		return p.runBounded(ctx, chromedp.Click(textXPath(sel), chromedp.BySearch, chromedp.NodeVisible))
	}
	return p.runBounded(ctx, chromedp.Click(sel.Query, chromedp.ByQuery, chromedp.NodeVisible))
}

func mustJSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(out)
}

func (p *ChromePage) evaluateOK(ctx context.Context, script string, what string) error {
	var ok bool
	err := p.run(ctx, chromedp.Evaluate(script, &ok))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: element not found", what)
	}
	return nil
}

func (p *ChromePage) ClickNth(ctx context.Context, css string, index int) error {
	script := fmt.Sprintf(`(function(sel, i) {
	const els = document.querySelectorAll(sel);
	if (els.length <= i) return false;
	els[i].scrollIntoView({block: "center"});
	els[i].click();
	return true;
})(%s, %d)`, mustJSON(css), index)
	return p.evaluateOK(ctx, script, fmt.Sprintf("click %s[%d]", css, index))
}

func (p *ChromePage) Fill(ctx context.Context, css string, value string) error {
	return p.runBounded(
		ctx,
		chromedp.WaitVisible(css, chromedp.ByQuery),
		chromedp.SetValue(css, "", chromedp.ByQuery),
		chromedp.SendKeys(css, value, chromedp.ByQuery),
	)
}

func (p *ChromePage) SetInputValue(ctx context.Context, css string, value string) error {
	// the native setter is used so frameworks tracking the value see it
	script := fmt.Sprintf(`(function(sel, value) {
	const el = document.querySelector(sel);
	if (!el) return false;
	const setter = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, "value").set;
	setter.call(el, value);
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return true;
})(%s, %s)`, mustJSON(css), mustJSON(value))
	return p.evaluateOK(ctx, script, "set "+css)
}

func (p *ChromePage) Storage(ctx context.Context, area StorageArea) (map[string]string, error) {
	values := map[string]string{}
	err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(`Object.assign({}, window.%s)`, area), &values))
	return values, err
}

func (p *ChromePage) SetStorage(ctx context.Context, area StorageArea, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	script := fmt.Sprintf(`(function(values) {
	for (const [k, v] of Object.entries(values)) window.%s.setItem(k, v);
	return true;
})(%s)`, area, mustJSON(values))
	return p.evaluateOK(ctx, script, "set "+string(area))
}

func (p *ChromePage) Cookies(ctx context.Context) ([]credstore.Cookie, error) {
	var out []credstore.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			expires := c.Expires
			if c.Session || expires < 0 {
				expires = 0
			}
			out = append(out, credstore.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  expires,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			})
		}
		return nil
	}))
	return out, err
}

func (p *ChromePage) SetCookies(ctx context.Context, cookies []credstore.Cookie) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HttpOnly)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				params = params.WithExpires(&expires)
			}
			err := params.Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

func (p *ChromePage) Close() error {
	p.cancel()
	return nil
}
