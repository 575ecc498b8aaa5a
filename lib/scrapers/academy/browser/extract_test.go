package browser

import (
	"context"
	"testing"
	"time"

	"courtwatch/lib/credstore"
	"courtwatch/lib/scrapers/academy/core"
	"courtwatch/lib/slots"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testTarget = slots.Target{
	Venue: slots.Venue{ID: 2, Name: "Pullela Gopichand Badminton Academy"},
	Date:  "2024-09-07",
}

func TestParseCourtsAndSlots(t *testing.T) {
	doc := mustDoc(t, `
		<div class="court-item">1</div>
		<div class="court-item">Court A</div>
		<div class="court-item"></div>
		<div class="time-slots-container">
			<span class="styled-btn" style="color: red; cursor: not-allowed;">18:00 - 19:00</span>
			<span class="styled-btn">19:00 - 20:00</span>
			<span class="styled-btn">Choose</span>
		</div>
		<span class="styled-btn">not in the list</span>`)

	require.Equal(t, []string{"Court 1", "Court A", "Court 3"}, parseCourts(doc))

	raw := parseSlots(doc, testTarget, "Court 1")
	expect := []slots.RawSlot{
		{
			Target: testTarget, Court: "Court 1", TimeRange: "18:00 - 19:00",
			Presentation: slots.Presentation{"style": "color: red; cursor: not-allowed;", "class": "styled-btn"},
		},
		{
			Target: testTarget, Court: "Court 1", TimeRange: "19:00 - 20:00",
			Presentation: slots.Presentation{"class": "styled-btn"},
		},
	}
	if diff := cmp.Diff(expect, raw); diff != "" {
		t.Fatal(diff)
	}
}

func loggedInProber(page *fakePage) *Prober {
	page.cookies = []credstore.Cookie{{Name: "sid", Value: "valid"}}
	return New(page.launcher(), Options{
		Origin:      testOrigin,
		WaitTimeout: time.Millisecond,
		SettleDelay: time.Millisecond,
	})
}

func TestFetchSlots(t *testing.T) {
	page := academySite()
	p := loggedInProber(page)

	raw, err := p.FetchSlots(context.Background(), testTarget)
	require.NoError(t, err)
	require.Equal(t, testOrigin+"/venue-details/2", page.url)
	require.Equal(t, "2024-09-07", page.inputs[dateInputSelector])

	classified := slots.ClassifyAll(raw)
	var got []string
	for _, s := range classified {
		got = append(got, s.Court+" "+s.TimeRange+" "+s.State.String())
	}
	require.Equal(t, []string{
		"Court 1 06:00-07:00 BOOKED",
		"Court 1 07:00-08:00 AVAILABLE",
		"Court 2 06:00-07:00 BOOKED",
		"Court 2 07:00-08:00 AVAILABLE",
	}, got)
}

func TestFetchSlotsOutsideWindow(t *testing.T) {
	page := academySite()
	p := loggedInProber(page)

	_, err := p.FetchSlots(context.Background(), slots.Target{Venue: testTarget.Venue, Date: "2031-01-01"})
	require.True(t, core.IsKind(err, core.KindShapeMismatch), err)
}

func TestFetchSlotsWithoutSession(t *testing.T) {
	page := academySite()
	p := New(page.launcher(), Options{Origin: testOrigin, WaitTimeout: time.Millisecond})

	_, err := p.FetchSlots(context.Background(), testTarget)
	require.True(t, core.IsKind(err, core.KindAuthRejected), err)
}

func TestFetchSlotsRedirectedToLogin(t *testing.T) {
	page := academySite()
	page.render = func(f *fakePage) string { return `<html></html>` }
	p := New(func(ctx context.Context) (Page, error) {
		return &redirectingPage{fakePage: page}, nil
	}, Options{Origin: testOrigin, WaitTimeout: time.Millisecond})

	_, err := p.FetchSlots(context.Background(), testTarget)
	require.True(t, core.IsKind(err, core.KindAuthRejected), err)
}

type redirectingPage struct {
	*fakePage
}

func (r *redirectingPage) Location(ctx context.Context) (string, error) {
	return testOrigin + "/login", nil
}

func TestCloseReleasesPage(t *testing.T) {
	page := academySite()
	p := loggedInProber(page)
	_, err := p.FetchSlots(context.Background(), testTarget)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.True(t, page.closed)
	require.NoError(t, p.Close())
}
