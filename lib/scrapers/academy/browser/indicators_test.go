package browser

import (
	"errors"
	"strings"
	"testing"

	"courtwatch/lib/credstore"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, contents string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(contents))
	require.NoError(t, err)
	return doc
}

const overlayHTML = `<div class="modal"><input type="tel" placeholder="Phone number"></div>`

// noEvidence matches none of the indicators: the login overlay is up,
// storage is empty and the protected page failed to load.
func noEvidence(t *testing.T) Evidence {
	return Evidence{
		Page:         mustDoc(t, `<html><body>`+overlayHTML+`</body></html>`),
		Storage:      map[string]string{},
		ProtectedErr: errors.New("navigation failed"),
	}
}

func TestSingleIndicatorIsNotEnough(t *testing.T) {
	cases := []struct {
		indicator string
		evidence  func(t *testing.T) Evidence
	}{
		{
			indicator: "logout_control",
			evidence: func(t *testing.T) Evidence {
				e := noEvidence(t)
				e.Page = mustDoc(t, overlayHTML+`<a href="#">Log out</a>`)
				return e
			},
		},
		{
			indicator: "profile_element",
			evidence: func(t *testing.T) Evidence {
				e := noEvidence(t)
				e.Page = mustDoc(t, overlayHTML+`<span id="userNameCss"> Asha </span>`)
				return e
			},
		},
		{
			indicator: "protected_page",
			evidence: func(t *testing.T) Evidence {
				e := noEvidence(t)
				e.ProtectedErr = nil
				e.ProtectedURL = testOrigin + "/venue-details/1"
				e.Protected = mustDoc(t, `<div>venue</div>`)
				return e
			},
		},
		{
			indicator: "booking_ui",
			evidence: func(t *testing.T) Evidence {
				e := noEvidence(t)
				e.ProtectedErr = nil
				e.ProtectedURL = testOrigin + "/login?next=/venue-details/1"
				e.Protected = mustDoc(t, `<div class="court-item">1</div>`)
				return e
			},
		},
		{
			indicator: "no_login_overlay",
			evidence: func(t *testing.T) Evidence {
				e := noEvidence(t)
				e.Page = mustDoc(t, `<div>home</div>`)
				return e
			},
		},
		{
			indicator: "storage_token",
			evidence: func(t *testing.T) Evidence {
				e := noEvidence(t)
				e.Storage = map[string]string{credstore.TokenStorageKey: "tok"}
				return e
			},
		},
	}

	for _, test := range cases {
		t.Run(test.indicator, func(t *testing.T) {
			matched, ok := Authenticated(test.evidence(t))
			require.Equal(t, []string{test.indicator}, matched)
			require.False(t, ok)
		})
	}
}

func TestNoIndicators(t *testing.T) {
	matched, ok := Authenticated(noEvidence(t))
	require.Empty(t, matched)
	require.False(t, ok)
}

func TestTwoIndicatorsAuthenticate(t *testing.T) {
	e := noEvidence(t)
	e.Page = mustDoc(t, overlayHTML+`<button>Logout</button>`)
	e.Storage = map[string]string{credstore.TokenStorageKey: "tok"}

	matched, ok := Authenticated(e)
	require.True(t, ok)
	require.Equal(t, []string{"logout_control", "storage_token"}, matched)
}

func TestProtectedPageShowingOverlayDoesNotCount(t *testing.T) {
	e := noEvidence(t)
	e.ProtectedErr = nil
	e.ProtectedURL = testOrigin + "/venue-details/1"
	e.Protected = mustDoc(t, overlayHTML)
	require.False(t, loadedProtectedPage(e))
}

func TestGoquerySelector(t *testing.T) {
	require.Equal(t, `.custom-button`, goquerySelector(CSS(`.custom-button`)))
	require.Equal(t,
		`span:contains("Login"), a:contains("Login")`,
		goquerySelector(ByText("span, a", "Login")),
	)
	require.Equal(t,
		`//*[self::span or self::button][contains(normalize-space(.), "Send OTP")]`,
		textXPath(ByText("span,button", "Send OTP")),
	)
}
