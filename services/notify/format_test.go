package notify

import (
	"strings"
	"testing"
	"time"

	"courtwatch/lib/slots"
	"courtwatch/services/acquisition"

	"github.com/stretchr/testify/require"
)

var (
	kotak   = slots.Venue{ID: 1, Name: "Kotak Pullela Gopichand Badminton Academy"}
	gachi   = slots.Venue{ID: 2, Name: "Pullela Gopichand Badminton Academy"}
	finish  = time.Date(2024, time.September, 6, 3, 30, 0, 0, time.UTC)
	sat     = "2024-09-07"
	booked1 = slots.Slot{Venue: kotak, Date: sat, Court: "Court 1", TimeRange: "06:00-07:00", State: slots.StateBooked}
	free1   = slots.Slot{Venue: kotak, Date: sat, Court: "Court 1", TimeRange: "07:00-08:00", State: slots.StateAvailable}
	free2   = slots.Slot{Venue: kotak, Date: sat, Court: "Court 2", TimeRange: "06:00-07:00", State: slots.StateAvailable}
)

func sampleReport() acquisition.Report {
	return acquisition.Report{
		RunID:      "abc123",
		FinishedAt: finish,
		Results: []acquisition.Result{
			{
				Target:  slots.Target{Venue: kotak, Date: sat},
				Slots:   []slots.Slot{booked1, free1, free2},
				Outcome: acquisition.Succeeded,
				Path:    acquisition.PathAPI,
			},
			{
				Target:     slots.Target{Venue: gachi, Date: sat},
				Outcome:    acquisition.FailedFatal,
				Path:       acquisition.PathAPI,
				Diagnostic: "calendar response changed shape",
			},
		},
	}
}

func lineWith(t *testing.T, text, needle string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, needle) {
			return line
		}
	}
	t.Fatalf("no line with %q in:\n%s", needle, text)
	return ""
}

func TestGrid(t *testing.T) {
	grid := Grid([]slots.Slot{booked1, free1, free2})

	court1 := lineWith(t, grid, "Court 1")
	require.Contains(t, court1, "✗")
	require.Contains(t, court1, "✓")

	court2 := lineWith(t, grid, "Court 2")
	require.Contains(t, court2, "✓")
	require.NotContains(t, court2, "✗")

	header := lineWith(t, grid, "06:00")
	require.Less(t, strings.Index(header, "06:00"), strings.Index(header, "07:00"))
}

func TestFormatReport(t *testing.T) {
	msg := FormatReport(sampleReport(), []slots.Slot{free1, free2}, FormatOptions{
		BookingURL: "https://booking.example",
		MaxListed:  1,
	})

	require.Equal(t, "2 new badminton slots available", msg.Subject)
	require.Equal(t,
		"Checked 1 of 2 venue days at 06 Sep 09:00: 2 available, 1 booked (via api).",
		msg.Sections[0].Text,
	)
	require.Equal(t,
		"New:\n• Sat 07 Sep · Kotak Pullela Gopichand Badminton Academy · Court 1 · 07:00-08:00\n… and 1 more",
		msg.Sections[1].Text,
	)
	require.Equal(t, "Kotak Pullela Gopichand Badminton Academy, Sat 07 Sep", msg.Sections[2].Text)
	require.True(t, msg.Sections[3].Preformatted)
	require.Equal(t,
		"Not checked:\n• Pullela Gopichand Badminton Academy, Sat 07 Sep: calendar response changed shape",
		msg.Sections[4].Text,
	)
	require.Equal(t, "Book at https://booking.example", msg.Sections[5].Text)
}

func TestFormatReportWithoutNews(t *testing.T) {
	report := sampleReport()
	report.Results[0].Slots = nil

	msg := FormatReport(report, nil, FormatOptions{})
	require.Equal(t, "Badminton availability", msg.Subject)
	require.Len(t, msg.Sections, 3)
	require.Equal(t, "Kotak Pullela Gopichand Badminton Academy, Sat 07 Sep: no slots listed", msg.Sections[1].Text)
}

func TestFormatFailure(t *testing.T) {
	report := sampleReport()
	report.Results[0] = acquisition.Result{
		Target:     report.Results[0].Target,
		Outcome:    acquisition.FailedFatal,
		Path:       acquisition.PathBrowser,
		Diagnostic: "login failed: AWAITING_OTP: no code",
	}
	report.Results[1].Diagnostic = "login failed: AWAITING_OTP: no code"
	report.LoginFailed = true

	msg := FormatFailure(report)
	require.Equal(t, "Badminton checker error", msg.Subject)
	require.Equal(t,
		"Run abc123 at 06 Sep 09:00: login to the booking site failed. The next scheduled run will try again.\n\n• login failed: AWAITING_OTP: no code",
		msg.PlainText(),
	)
}
