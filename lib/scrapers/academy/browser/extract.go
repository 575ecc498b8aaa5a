package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"courtwatch/lib/htmlutil"
	"courtwatch/lib/scrapers/academy/core"
	"courtwatch/lib/slots"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	dateInputSelector = `input#card1[type="date"]`
	courtSelector     = `div.court-item`
	slotSelector      = `span.styled-btn`
	slotListSelector  = `div.time-slots-container span.styled-btn`
)

// FetchSlots reads every court's slots of one venue on one day from the
// rendered booking page.
func (p *Prober) FetchSlots(ctx context.Context, target slots.Target) ([]slots.RawSlot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := tracer.Start(ctx, "FetchSlots")
	defer span.End()
	span.SetAttributes(
		attribute.Int("venue_id", target.Venue.ID),
		attribute.String("date", target.Date),
	)

	raw, err := p.fetchSlots(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch slots")
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots", len(raw)))
	return raw, nil
}

func (p *Prober) fetchSlots(ctx context.Context, target slots.Target) ([]slots.RawSlot, error) {
	const op = "browser.FetchSlots"

	page, err := p.ensurePage(ctx)
	if err != nil {
		return nil, core.NewProbeError(core.KindTransient, op, err)
	}

	err = page.Navigate(ctx, p.url(core.VenuePath(target.Venue.ID)))
	if err != nil {
		return nil, core.NewProbeError(core.KindTransient, op, fmt.Errorf("open venue page: %w", err))
	}
	location, err := page.Location(ctx)
	if err == nil && isLoginURL(location) {
		return nil, core.NewProbeError(core.KindAuthRejected, op, fmt.Errorf("redirected to %s", location))
	}

	err = page.WaitVisible(ctx, dateInputSelector, p.opts.WaitTimeout)
	if err != nil {
		if p.showsLoginOverlay(ctx, page) {
			return nil, core.NewProbeError(core.KindAuthRejected, op, errors.New("venue page asks to log in"))
		}
		return nil, core.NewProbeError(core.KindShapeMismatch, op, fmt.Errorf("date input not rendered: %w", err))
	}
	err = page.SetInputValue(ctx, dateInputSelector, target.Date)
	if err != nil {
		return nil, core.NewProbeError(core.KindShapeMismatch, op, fmt.Errorf("set date: %w", err))
	}

	err = page.WaitVisible(ctx, courtSelector, p.opts.WaitTimeout)
	if err != nil {
		return nil, core.NewProbeError(
			core.KindShapeMismatch, op,
			fmt.Errorf("no courts rendered for %s, the date may be outside the booking window: %w", target.Date, err),
		)
	}
	doc, err := p.document(ctx, page)
	if err != nil {
		return nil, core.NewProbeError(core.KindTransient, op, err)
	}
	courts := parseCourts(doc)

	var out []slots.RawSlot
	for i, court := range courts {
		err := page.ClickNth(ctx, courtSelector, i)
		if err != nil {
			return nil, core.NewProbeError(core.KindTransient, op, fmt.Errorf("select %s: %w", court, err))
		}
		err = page.WaitVisible(ctx, slotSelector, p.opts.WaitTimeout)
		if err != nil {
			slog.WarnContext(ctx, "court shows no slots", "target", target, "court", court)
			continue
		}
		err = sleep(ctx, p.opts.SettleDelay)
		if err != nil {
			return nil, core.NewProbeError(core.KindTransient, op, err)
		}

		doc, err := p.document(ctx, page)
		if err != nil {
			return nil, core.NewProbeError(core.KindTransient, op, err)
		}
		out = append(out, parseSlots(doc, target, court)...)
	}

	slog.DebugContext(ctx, "read slots from page", "target", target, "courts", len(courts), "slots", len(out))
	return out, nil
}

func (p *Prober) document(ctx context.Context, page Page) (*goquery.Document, error) {
	contents, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return htmlutil.ParseDocument(ctx, contents)
}

func (p *Prober) showsLoginOverlay(ctx context.Context, page Page) bool {
	doc, err := p.document(ctx, page)
	if err != nil {
		return false
	}
	return doc.Find(loginOverlaySelector).Length() > 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseCourts returns the label of every court tile in page order.
func parseCourts(doc *goquery.Document) []string {
	var courts []string
	doc.Find(courtSelector).Each(func(i int, sel *goquery.Selection) {
		name := htmlutil.NodeText(sel)
		switch {
		case name == "":
			name = fmt.Sprintf("Court %d", i+1)
		case isNumber(name):
			name = "Court " + name
		}
		courts = append(courts, name)
	})
	return courts
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// parseSlots reads the time slots of the selected court. The inline
// style is captured as is, a slot without one carries an empty
// presentation.
func parseSlots(doc *goquery.Document, target slots.Target, court string) []slots.RawSlot {
	found := doc.Find(slotListSelector)
	if found.Length() == 0 {
		found = doc.Find(slotSelector)
	}

	var out []slots.RawSlot
	found.Each(func(_ int, sel *goquery.Selection) {
		label := htmlutil.NodeText(sel)
		if !strings.Contains(label, ":") {
			return
		}
		presentation := slots.Presentation{}
		if style, ok := sel.Attr("style"); ok {
			presentation["style"] = style
		}
		if class, ok := sel.Attr("class"); ok {
			presentation["class"] = class
		}
		out = append(out, slots.RawSlot{
			Target:       target,
			Court:        court,
			TimeRange:    label,
			Presentation: presentation,
		})
	})
	return out
}
