package browser

import (
	"context"
	"time"

	"courtwatch/lib/credstore"
)

// Selector addresses an element either by CSS or, when Text is set, by
// the element's visible text (tags restricted to Query, a comma
// separated list like "span,a,button").
type Selector struct {
	Query string
	Text  string
}

func CSS(query string) Selector {
	return Selector{Query: query}
}

func ByText(tags string, text string) Selector {
	return Selector{Query: tags, Text: text}
}

type StorageArea string

const (
	LocalStorage   StorageArea = "localStorage"
	SessionStorage StorageArea = "sessionStorage"
)

// Page is the small set of browser operations the prober needs. All
// decisions about page contents are made on HTML snapshots.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	// WaitVisible blocks until an element matching css is visible or
	// timeout elapses.
	WaitVisible(ctx context.Context, css string, timeout time.Duration) error
	Click(ctx context.Context, sel Selector) error
	// ClickNth clicks the index-th element matching css.
	ClickNth(ctx context.Context, css string, index int) error
	Fill(ctx context.Context, css string, value string) error
	// SetInputValue assigns value and fires input and change events, as
	// needed by date inputs.
	SetInputValue(ctx context.Context, css string, value string) error
	Storage(ctx context.Context, area StorageArea) (map[string]string, error)
	SetStorage(ctx context.Context, area StorageArea, values map[string]string) error
	Cookies(ctx context.Context) ([]credstore.Cookie, error)
	SetCookies(ctx context.Context, cookies []credstore.Cookie) error
	Close() error
}

// Launcher starts a browser and returns its page.
type Launcher func(ctx context.Context) (Page, error)
