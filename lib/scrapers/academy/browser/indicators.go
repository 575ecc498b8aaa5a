package browser

import (
	"context"
	"strings"

	"courtwatch/lib/credstore"
	"courtwatch/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

// RequiredIndicators is how many independent signals must agree before
// a session counts as authenticated.
const RequiredIndicators = 2

// Evidence is what the page showed while verifying a session: the page
// the browser was on, its local storage, and a page only reachable
// with a session.
type Evidence struct {
	Page         *goquery.Document
	Storage      map[string]string
	Protected    *goquery.Document
	ProtectedURL string
	ProtectedErr error
}

type Indicator struct {
	Name  string
	Check func(e Evidence) bool
}

var Indicators = []Indicator{
	{Name: "logout_control", Check: hasLogoutControl},
	{Name: "profile_element", Check: hasProfileElement},
	{Name: "protected_page", Check: loadedProtectedPage},
	{Name: "booking_ui", Check: hasBookingUI},
	{Name: "no_login_overlay", Check: noLoginOverlay},
	{Name: "storage_token", Check: hasStorageToken},
}

// Authenticated evaluates every indicator and returns the ones that
// matched.
func Authenticated(e Evidence) (matched []string, ok bool) {
	for _, indicator := range Indicators {
		if indicator.Check(e) {
			matched = append(matched, indicator.Name)
		}
	}
	return matched, len(matched) >= RequiredIndicators
}

var logoutWords = []string{"logout", "log out", "sign out"}

func hasLogoutControl(e Evidence) bool {
	if e.Page == nil {
		return false
	}
	if e.Page.Find(`[href*="logout"], [class*="logout"], [id*="logout"]`).Length() > 0 {
		return true
	}
	found := false
	e.Page.Find("a, button").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ToLower(htmlutil.NodeText(sel))
		for _, word := range logoutWords {
			if strings.Contains(text, word) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func hasProfileElement(e Evidence) bool {
	if e.Page == nil {
		return false
	}
	found := false
	e.Page.Find(`#userNameCss, .user-name, .profile-name, [class*="user-menu"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		found = htmlutil.NodeText(sel) != ""
		return !found
	})
	return found || e.Page.Find(`a[href*="profile"]`).Length() > 0
}

func isLoginURL(url string) bool {
	url = strings.ToLower(url)
	return strings.Contains(url, "login") || strings.Contains(url, "signin")
}

func loadedProtectedPage(e Evidence) bool {
	return e.ProtectedErr == nil &&
		e.Protected != nil &&
		e.ProtectedURL != "" &&
		!isLoginURL(e.ProtectedURL) &&
		e.Protected.Find(loginOverlaySelector).Length() == 0
}

const bookingUISelector = `input#card1[type="date"], div.court-item, form.contact-form`

func hasBookingUI(e Evidence) bool {
	return e.ProtectedErr == nil &&
		e.Protected != nil &&
		e.Protected.Find(bookingUISelector).Length() > 0
}

const loginOverlaySelector = `input[type="tel"], input[maxlength="6"], input[placeholder*="OTP"], input[placeholder*="otp"]`

func noLoginOverlay(e Evidence) bool {
	return e.Page != nil && e.Page.Find(loginOverlaySelector).Length() == 0
}

func hasStorageToken(e Evidence) bool {
	return strings.TrimSpace(e.Storage[credstore.TokenStorageKey]) != ""
}

// gatherEvidence snapshots the current page then opens protectedURL.
// Failures leave the corresponding evidence empty.
func gatherEvidence(ctx context.Context, page Page, protectedURL string) Evidence {
	ctx, span := tracer.Start(ctx, "gatherEvidence")
	defer span.End()

	var e Evidence
	if contents, err := page.HTML(ctx); err == nil {
		e.Page, _ = htmlutil.ParseDocument(ctx, contents)
	}
	if storage, err := page.Storage(ctx, LocalStorage); err == nil {
		e.Storage = storage
	}

	e.ProtectedErr = page.Navigate(ctx, protectedURL)
	if e.ProtectedErr == nil {
		e.ProtectedURL, e.ProtectedErr = page.Location(ctx)
	}
	if e.ProtectedErr == nil {
		var contents string
		contents, e.ProtectedErr = page.HTML(ctx)
		if e.ProtectedErr == nil {
			e.Protected, e.ProtectedErr = htmlutil.ParseDocument(ctx, contents)
		}
	}
	span.SetAttributes(attribute.Bool("protected_loaded", e.ProtectedErr == nil))
	return e
}
