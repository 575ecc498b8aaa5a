package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courtwatch/lib/credstore"

	"github.com/PuerkitoBio/goquery"
)

// fakePage is a scripted Page. Its html comes from render, and the
// hooks let a test react to clicks the way a site would.
type fakePage struct {
	url           string
	render        func(f *fakePage) string
	storage       map[StorageArea]map[string]string
	cookies       []credstore.Cookie
	filled        map[string]string
	inputs        map[string]string
	selectedCourt int
	flags         map[string]bool
	clicks        []Selector
	navigations   []string
	closed        bool

	onClick func(f *fakePage, sel Selector)
}

func newFakePage(render func(f *fakePage) string) *fakePage {
	return &fakePage{
		render: render,
		storage: map[StorageArea]map[string]string{
			LocalStorage:   {},
			SessionStorage: {},
		},
		filled:        map[string]string{},
		inputs:        map[string]string{},
		flags:         map[string]bool{},
		selectedCourt: -1,
	}
}

func (f *fakePage) launcher() Launcher {
	return func(ctx context.Context) (Page, error) {
		return f, nil
	}
}

func (f *fakePage) doc() *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.render(f)))
	if err != nil {
		panic(err)
	}
	return doc
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.url = url
	f.navigations = append(f.navigations, url)
	f.selectedCourt = -1
	return nil
}

func (f *fakePage) Location(ctx context.Context) (string, error) {
	return f.url, nil
}

func (f *fakePage) HTML(ctx context.Context) (string, error) {
	return f.render(f), nil
}

func (f *fakePage) WaitVisible(ctx context.Context, css string, timeout time.Duration) error {
	if f.doc().Find(css).Length() == 0 {
		return fmt.Errorf("waiting for %s: %w", css, context.DeadlineExceeded)
	}
	return nil
}

func (f *fakePage) Click(ctx context.Context, sel Selector) error {
	if !exists(f.doc(), sel) {
		return fmt.Errorf("no element for %s", goquerySelector(sel))
	}
	f.clicks = append(f.clicks, sel)
	if f.onClick != nil {
		f.onClick(f, sel)
	}
	return nil
}

func (f *fakePage) ClickNth(ctx context.Context, css string, index int) error {
	if f.doc().Find(css).Length() <= index {
		return fmt.Errorf("no element %s[%d]", css, index)
	}
	f.selectedCourt = index
	return nil
}

func (f *fakePage) Fill(ctx context.Context, css string, value string) error {
	if f.doc().Find(css).Length() == 0 {
		return fmt.Errorf("no input for %s", css)
	}
	f.filled[css] = value
	return nil
}

func (f *fakePage) SetInputValue(ctx context.Context, css string, value string) error {
	if f.doc().Find(css).Length() == 0 {
		return fmt.Errorf("no input for %s", css)
	}
	f.inputs[css] = value
	return nil
}

func (f *fakePage) Storage(ctx context.Context, area StorageArea) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.storage[area] {
		out[k] = v
	}
	return out, nil
}

func (f *fakePage) SetStorage(ctx context.Context, area StorageArea, values map[string]string) error {
	for k, v := range values {
		f.storage[area][k] = v
	}
	return nil
}

func (f *fakePage) Cookies(ctx context.Context) ([]credstore.Cookie, error) {
	return append([]credstore.Cookie(nil), f.cookies...), nil
}

func (f *fakePage) SetCookies(ctx context.Context, cookies []credstore.Cookie) error {
	f.cookies = append(f.cookies, cookies...)
	return nil
}

func (f *fakePage) Close() error {
	f.closed = true
	return nil
}

func (f *fakePage) hasCookie(name, value string) bool {
	for _, c := range f.cookies {
		if c.Name == name && c.Value == value {
			return true
		}
	}
	return false
}

type savedRecord struct {
	kind   credstore.Kind
	record credstore.Record
}

type fakeStore struct {
	saved []savedRecord
}

func (s *fakeStore) Save(ctx context.Context, kind credstore.Kind, r credstore.Record) error {
	s.saved = append(s.saved, savedRecord{kind: kind, record: r})
	return nil
}

func (s *fakeStore) last(kind credstore.Kind) (credstore.Record, bool) {
	for i := len(s.saved) - 1; i >= 0; i-- {
		if s.saved[i].kind == kind {
			return s.saved[i].record, true
		}
	}
	return credstore.Record{}, false
}
